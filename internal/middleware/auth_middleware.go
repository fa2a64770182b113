package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "couplespace/focus/internal/errors"
	"couplespace/focus/internal/service"
)

const UserIDContextKey = "userID"

// Auth validates the Bearer token and stores the subject user ID on the
// request context. Requests without a valid token never reach the handler.
func Auth(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortError(c, apperrors.Unauthorized("missing or malformed authorization header"))
			return
		}

		userID, apiErr := authService.ParseToken(token)
		if apiErr != nil {
			abortError(c, apiErr)
			return
		}

		c.Set(UserIDContextKey, userID)
		c.Next()
	}
}

// UserID returns the authenticated user's ID, or "" outside Auth routes.
func UserID(c *gin.Context) string {
	value, ok := c.Get(UserIDContextKey)
	if !ok {
		return ""
	}
	userID, _ := value.(string)
	return userID
}

func bearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return token, token != ""
}

func abortError(c *gin.Context, apiErr *apperrors.APIError) {
	c.AbortWithStatusJSON(apiErr.Status, gin.H{
		"error": gin.H{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}
