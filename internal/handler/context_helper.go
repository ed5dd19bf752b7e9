package handler

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sis-records-api/internal/middleware"
	"github.com/noah-isme/sis-records-api/internal/models"
	appErrors "github.com/noah-isme/sis-records-api/pkg/errors"
	"github.com/noah-isme/sis-records-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.CurrentUser(c)
}

func pageParams(c *gin.Context) (page, size int) {
	page, size = 1, 20
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		size = v
	}
	return page, size
}

// bindJSON decodes the body and writes a validation error when it cannot.
func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	return true
}

func pdfAttachment(c *gin.Context, filename string, content []byte) {
	response.Attachment(c, filename, "application/pdf", int64(len(content)), bytes.NewReader(content))
}
