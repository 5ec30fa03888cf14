package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/servicehub-api/config"
	"github.com/kendall-kelly/servicehub-api/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const currentUserKey = "current_user"

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// LoadCurrentUser resolves the token subject to an active user row. It must run
// after EnsureValidToken.
func LoadCurrentUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, err := GetUserID(c)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information")
			return
		}

		var user models.User
		err = config.GetDB().WithContext(c.Request.Context()).
			Where("external_id = ?", subject).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			abortWithError(c, http.StatusNotFound, "USER_NOT_FOUND", "User profile not found. Please create a profile first.")
			return
		}
		if err != nil {
			zap.L().Error("failed to load current user", zap.String("subject", subject), zap.Error(err))
			abortWithError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load user")
			return
		}
		if !user.IsActive {
			abortWithError(c, http.StatusForbidden, "ACCOUNT_INACTIVE", "This account has been deactivated")
			return
		}

		c.Set(currentUserKey, &user)
		c.Next()
	}
}

// GetCurrentUser returns the user stored by LoadCurrentUser
func GetCurrentUser(c *gin.Context) (*models.User, error) {
	value, exists := c.Get(currentUserKey)
	if !exists {
		return nil, &AuthError{Code: "USER_NOT_LOADED", Message: "Current user not found in context"}
	}
	user, ok := value.(*models.User)
	if !ok {
		return nil, &AuthError{Code: "USER_NOT_LOADED", Message: "Current user is not in the expected format"}
	}
	return user, nil
}

// RequireRoles lets the request through only if the current user holds one of roles.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := GetCurrentUser(c)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information")
			return
		}
		for _, role := range roles {
			if user.Role == role {
				c.Next()
				return
			}
		}
		abortWithError(c, http.StatusForbidden, "FORBIDDEN", "Your role cannot perform this action")
	}
}
