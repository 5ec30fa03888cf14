package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/servicehub-api/config"
	"github.com/kendall-kelly/servicehub-api/middleware"
	"github.com/kendall-kelly/servicehub-api/models"
	"github.com/kendall-kelly/servicehub-api/services"
	"go.uber.org/zap"
)

// UpdateUserRequest represents the request body for updating a user profile
type UpdateUserRequest struct {
	Name  string `json:"name" binding:"omitempty,max=200"`
	Email string `json:"email" binding:"omitempty,email"`
}

func profileSource() services.ProfileSource {
	if p := services.GetProfileSource(); p != nil {
		return p
	}
	return services.NewAuth0Service(config.GetConfig())
}

// CreateUser handles POST /api/v1/users - registers the caller from the identity
// provider's /userinfo profile. The role comes from the token's role claim.
func CreateUser(c *gin.Context) {
	subject, err := middleware.GetUserID(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user ID from token")
		return
	}
	accessToken, err := middleware.GetAccessToken(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "MISSING_TOKEN", "Access token not found")
		return
	}

	role := models.RoleCustomer
	if claimed := middleware.GetRoleClaim(c); claimed != "" {
		role = models.Role(claimed)
		if !role.Valid() {
			respondError(c, http.StatusBadRequest, "INVALID_ROLE", "Unknown role in token")
			return
		}
	}

	info, err := profileSource().GetUserInfo(c.Request.Context(), accessToken)
	if err != nil {
		zap.L().Warn("userinfo lookup failed", zap.String("subject", subject), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "AUTH0_ERROR", "Failed to fetch user information from Auth0")
		return
	}
	if info.Email == "" {
		respondError(c, http.StatusBadRequest, "MISSING_EMAIL", "Email not provided by Auth0")
		return
	}
	if info.Name == "" {
		respondError(c, http.StatusBadRequest, "MISSING_NAME", "Name not provided by Auth0")
		return
	}

	user := models.User{
		ExternalID: subject,
		Name:       info.Name,
		Email:      info.Email,
		Role:       role,
		IsActive:   true,
	}
	if err := config.GetDB().WithContext(c.Request.Context()).Create(&user).Error; err != nil {
		if services.IsUniqueViolation(err) {
			respondError(c, http.StatusConflict, "USER_EXISTS", "A user with this Auth0 ID or email already exists")
			return
		}
		respondServiceError(c, err)
		return
	}

	respondData(c, http.StatusCreated, user)
}

// GetMyProfile handles GET /api/v1/users/me - gets current user's profile
func GetMyProfile(c *gin.Context) {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information")
		return
	}
	respondData(c, http.StatusOK, user)
}

// UpdateMyProfile handles PUT /api/v1/users/me - updates current user's profile
func UpdateMyProfile(c *gin.Context) {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information")
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	updates := make(map[string]interface{})
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Email != "" {
		updates["email"] = req.Email
	}
	if len(updates) == 0 {
		respondData(c, http.StatusOK, user)
		return
	}

	db := config.GetDB().WithContext(c.Request.Context())
	if err := db.Model(user).Updates(updates).Error; err != nil {
		if services.IsUniqueViolation(err) {
			respondError(c, http.StatusConflict, "EMAIL_EXISTS", "A user with this email already exists")
			return
		}
		respondServiceError(c, err)
		return
	}

	var updated models.User
	if err := db.First(&updated, user.ID).Error; err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, updated)
}
