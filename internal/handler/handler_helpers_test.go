package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sis-records-api/internal/middleware"
	"github.com/noah-isme/sis-records-api/internal/models"
)

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func asAdviser(c *gin.Context) *models.JWTClaims {
	claims := &models.JWTClaims{UserID: "adviser-1", Role: models.RoleAdviser}
	c.Set(middleware.ContextUserKey, claims)
	return claims
}

func asAdmin(c *gin.Context) *models.JWTClaims {
	claims := &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin}
	c.Set(middleware.ContextUserKey, claims)
	return claims
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Meta map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func floatPtr(v float64) *float64 { return &v }
