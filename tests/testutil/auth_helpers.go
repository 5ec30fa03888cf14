package testutil

import (
	"testing"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/kendall-kelly/servicehub-api/config"
	"github.com/kendall-kelly/servicehub-api/middleware"
	"github.com/stretchr/testify/require"
)

const (
	// TestJWTSecret signs tokens accepted by TestConfig
	TestJWTSecret = "servicehub-test-secret"
	// TestIssuer is the issuer expected by TestConfig
	TestIssuer = "servicehub-test"
	// SubjectHeader names the user FakeAuth should authenticate as
	SubjectHeader = "X-Test-Subject"
	// RoleHeader sets the role claim FakeAuth puts in the context
	RoleHeader = "X-Test-Role"
)

// TestConfig returns a config that validates locally signed HS256 tokens
func TestConfig() *config.Config {
	return &config.Config{
		DatabaseURL:        "sqlite://:memory:",
		Port:               "8080",
		GoEnv:              "test",
		JWTSecret:          TestJWTSecret,
		JWTIssuer:          TestIssuer,
		LogLevel:           "debug",
		ChatAccessMaxHours: 72,
		ReviewEditWindow:   7 * 24 * time.Hour,
		CORSAllowedOrigins: []string{"*"},
	}
}

type tokenClaims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// MintToken signs an HS256 token for subject that TestConfig accepts
func MintToken(t *testing.T, subject, role string, ttl time.Duration) string {
	t.Helper()
	now := time.Now()
	claims := tokenClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    TestIssuer,
			Audience:  jwt.ClaimStrings{middleware.DefaultAudience},
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(TestJWTSecret))
	require.NoError(t, err)
	return signed
}

// MockValidatedClaims creates ValidatedClaims as EnsureValidToken would store them
func MockValidatedClaims(subject, role string) *validator.ValidatedClaims {
	return &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{
			Issuer:  TestIssuer,
			Subject: subject,
		},
		CustomClaims: &middleware.CustomClaims{Role: role},
	}
}

// FakeAuth stands in for EnsureValidToken. It authenticates as the subject in
// the X-Test-Subject header and rejects requests without one.
func FakeAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := c.GetHeader(SubjectHeader)
		if subject == "" {
			c.AbortWithStatusJSON(401, gin.H{
				"success": false,
				"error":   gin.H{"code": "INVALID_TOKEN", "message": "Failed to validate JWT."},
			})
			return
		}
		c.Set("user_id", subject)
		c.Set("access_token", "token-"+subject)
		c.Set("validated_claims", MockValidatedClaims(subject, c.GetHeader(RoleHeader)))
		c.Next()
	}
}
