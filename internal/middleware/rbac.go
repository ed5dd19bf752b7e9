package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sis-records-api/internal/models"
	appErrors "github.com/noah-isme/sis-records-api/pkg/errors"
	"github.com/noah-isme/sis-records-api/pkg/response"
)

// RequireRoles lets the request through when the caller holds one of the roles. Finer checks,
// such as an adviser owning the section, stay in the services.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims := CurrentUser(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
