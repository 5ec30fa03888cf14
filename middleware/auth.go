package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	jwtmiddleware "github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/servicehub-api/config"
	"go.uber.org/zap"
)

// Context keys set by EnsureValidToken.
const (
	userIDKey      = "user_id"
	claimsKey      = "validated_claims"
	accessTokenKey = "access_token"
)

// DefaultAudience is the audience expected on locally signed tokens when
// AUTH0_AUDIENCE is not set.
const DefaultAudience = "servicehub-api"

// CustomClaims contains the non-registered claims we read from the token.
type CustomClaims struct {
	Role string `json:"role"`
}

// Validate satisfies validator.CustomClaims. Role values are checked against the
// user row, not the token.
func (c CustomClaims) Validate(ctx context.Context) error {
	return nil
}

// NewTokenValidator builds the JWT validator for cfg: RS256 against the Auth0
// JWKS endpoint when AUTH0_DOMAIN is set, HS256 with JWT_SECRET otherwise.
func NewTokenValidator(cfg *config.Config) (*validator.Validator, error) {
	customClaims := validator.WithCustomClaims(func() validator.CustomClaims {
		return &CustomClaims{}
	})
	skew := validator.WithAllowedClockSkew(time.Minute)

	audience := cfg.Auth0Audience
	if audience == "" {
		audience = DefaultAudience
	}

	if cfg.UsesAuth0() {
		issuerURL, err := url.Parse("https://" + cfg.Auth0Domain + "/")
		if err != nil {
			return nil, fmt.Errorf("failed to parse the issuer url: %w", err)
		}
		provider := jwks.NewCachingProvider(issuerURL, 5*time.Minute)
		return validator.New(provider.KeyFunc, validator.RS256, issuerURL.String(),
			[]string{audience}, customClaims, skew)
	}

	secret := []byte(cfg.JWTSecret)
	keyFunc := func(context.Context) (interface{}, error) {
		return secret, nil
	}
	return validator.New(keyFunc, validator.HS256, cfg.JWTIssuer, []string{audience}, customClaims, skew)
}

// EnsureValidToken is a middleware that rejects requests without a valid bearer
// token and stores the subject, claims and raw token in the Gin context.
func EnsureValidToken(cfg *config.Config) (gin.HandlerFunc, error) {
	jwtValidator, err := NewTokenValidator(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to set up the jwt validator: %w", err)
	}

	errorHandler := func(w http.ResponseWriter, r *http.Request, err error) {
		zap.L().Debug("rejected bearer token", zap.String("path", r.URL.Path), zap.Error(err))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		if _, writeErr := w.Write([]byte(`{"success":false,"error":{"code":"INVALID_TOKEN","message":"Failed to validate JWT."}}`)); writeErr != nil {
			zap.L().Warn("failed to write error response", zap.Error(writeErr))
		}
	}

	mw := jwtmiddleware.New(
		jwtValidator.ValidateToken,
		jwtmiddleware.WithErrorHandler(errorHandler),
	)

	return func(c *gin.Context) {
		passed := false
		var handler http.HandlerFunc = func(w http.ResponseWriter, r *http.Request) {
			claims := r.Context().Value(jwtmiddleware.ContextKey{}).(*validator.ValidatedClaims)

			c.Set(userIDKey, claims.RegisteredClaims.Subject)
			c.Set(claimsKey, claims)
			if token, err := jwtmiddleware.AuthHeaderTokenExtractor(r); err == nil {
				c.Set(accessTokenKey, token)
			}
			c.Request = r
			passed = true
			c.Next()
		}

		mw.CheckJWT(handler).ServeHTTP(c.Writer, c.Request)
		if !passed {
			c.Abort()
		}
	}, nil
}

// GetUserID extracts the token subject from the Gin context
func GetUserID(c *gin.Context) (string, error) {
	userID, exists := c.Get(userIDKey)
	if !exists {
		return "", &AuthError{Code: "MISSING_USER_ID", Message: "User ID not found in context"}
	}

	userIDStr, ok := userID.(string)
	if !ok || userIDStr == "" {
		return "", &AuthError{Code: "INVALID_USER_ID", Message: "User ID is not a string"}
	}

	return userIDStr, nil
}

// GetClaims extracts the validated JWT claims from the Gin context
func GetClaims(c *gin.Context) (*validator.ValidatedClaims, error) {
	claims, exists := c.Get(claimsKey)
	if !exists {
		return nil, &AuthError{Code: "MISSING_CLAIMS", Message: "Claims not found in context"}
	}

	validatedClaims, ok := claims.(*validator.ValidatedClaims)
	if !ok {
		return nil, &AuthError{Code: "INVALID_CLAIMS", Message: "Claims are not in the expected format"}
	}

	return validatedClaims, nil
}

// GetRoleClaim returns the role custom claim, or "" when absent.
func GetRoleClaim(c *gin.Context) string {
	claims, err := GetClaims(c)
	if err != nil {
		return ""
	}
	if custom, ok := claims.CustomClaims.(*CustomClaims); ok {
		return strings.TrimSpace(custom.Role)
	}
	return ""
}

// GetAccessToken returns the raw bearer token of the request
func GetAccessToken(c *gin.Context) (string, error) {
	token, exists := c.Get(accessTokenKey)
	if !exists {
		return "", &AuthError{Code: "MISSING_TOKEN", Message: "Access token not found in context"}
	}
	tokenStr, ok := token.(string)
	if !ok || tokenStr == "" {
		return "", &AuthError{Code: "MISSING_TOKEN", Message: "Access token not found in context"}
	}
	return tokenStr, nil
}

// AuthError represents an authentication error
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}
