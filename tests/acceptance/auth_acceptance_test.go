package acceptance

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/kendall-kelly/servicehub-api/config"
	"github.com/kendall-kelly/servicehub-api/middleware"
	"github.com/kendall-kelly/servicehub-api/models"
	"github.com/kendall-kelly/servicehub-api/routes"
	"github.com/kendall-kelly/servicehub-api/services"
	"github.com/kendall-kelly/servicehub-api/tests/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

// AuthAcceptanceTestSuite runs the real router and token validator over HTTP
type AuthAcceptanceTestSuite struct {
	suite.Suite
	server   *httptest.Server
	userinfo *httptest.Server
	cfg      *config.Config

	mu       sync.Mutex
	profiles map[string]services.Auth0UserInfo
}

// SetupSuite runs once before all tests
func (suite *AuthAcceptanceTestSuite) SetupSuite() {
	testutil.RequireTestEnvironment(suite.T())
	gin.SetMode(gin.TestMode)

	t := suite.T()
	t.Setenv("DATABASE_URL", "sqlite://:memory:")
	t.Setenv("AUTH0_DOMAIN", "")
	t.Setenv("JWT_SECRET", testutil.TestJWTSecret)
	t.Setenv("JWT_ISSUER", testutil.TestIssuer)
	t.Setenv("CHAT_ACCESS_MAX_HOURS", "24")

	cfg, err := config.Load()
	suite.Require().NoError(err)
	suite.cfg = cfg
	suite.Equal(24, cfg.ChatAccessMaxHours)
	suite.False(cfg.UsesAuth0())

	// /userinfo stand-in keyed by the bearer token it receives
	suite.profiles = map[string]services.Auth0UserInfo{}
	suite.userinfo = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		suite.mu.Lock()
		info, ok := suite.profiles[token]
		suite.mu.Unlock()
		if r.URL.Path != "/userinfo" || !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(info)
	}))
	services.SetProfileSource(services.NewAuth0Service(&config.Config{Auth0Domain: suite.userinfo.URL}))

	auth, err := middleware.EnsureValidToken(cfg)
	suite.Require().NoError(err)
	suite.server = httptest.NewServer(routes.SetupRouter(cfg, auth, zap.NewNop()))
}

// TearDownSuite runs once after all tests
func (suite *AuthAcceptanceTestSuite) TearDownSuite() {
	suite.server.Close()
	suite.userinfo.Close()
	services.SetProfileSource(nil)
	config.SetConfig(nil)
}

// SetupTest gives every test an empty database
func (suite *AuthAcceptanceTestSuite) SetupTest() {
	config.SetDB(testutil.NewTestDB(suite.T()))
}

func (suite *AuthAcceptanceTestSuite) addProfile(token string, info services.Auth0UserInfo) {
	suite.mu.Lock()
	defer suite.mu.Unlock()
	suite.profiles[token] = info
}

func (suite *AuthAcceptanceTestSuite) get(method, path, token string) (int, map[string]interface{}) {
	req, err := http.NewRequest(method, suite.server.URL+path, strings.NewReader("{}"))
	suite.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	suite.Require().NoError(err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	suite.Require().NoError(err)
	var out map[string]interface{}
	suite.Require().NoError(json.Unmarshal(body, &out), string(body))
	return resp.StatusCode, out
}

func errorCode(body map[string]interface{}) string {
	errBody, _ := body["error"].(map[string]interface{})
	code, _ := errBody["code"].(string)
	return code
}

// TestPublicEndpointsNeedNoToken checks the health endpoint is open
func (suite *AuthAcceptanceTestSuite) TestPublicEndpointsNeedNoToken() {
	status, body := suite.get(http.MethodGet, "/api/v1/health", "")
	suite.Equal(http.StatusOK, status)
	suite.Equal("ServiceHub API is running", body["message"])
}

// TestRejectsBadTokens covers every way a bearer token can fail validation
func (suite *AuthAcceptanceTestSuite) TestRejectsBadTokens() {
	t := suite.T()
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "auth0|mallory",
		Issuer:    testutil.TestIssuer,
		Audience:  jwt.ClaimStrings{middleware.DefaultAudience},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("not-the-secret"))
	suite.Require().NoError(err)

	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"garbage", "not.a.jwt"},
		{"wrong secret", forged},
		{"expired", testutil.MintToken(t, "auth0|ana", "", -time.Hour)},
	}
	for _, tt := range tests {
		suite.Run(tt.name, func() {
			status, body := suite.get(http.MethodGet, "/api/v1/users/me", tt.token)
			suite.Equal(http.StatusUnauthorized, status)
			suite.Equal("INVALID_TOKEN", errorCode(body))
		})
	}
}

// TestRegisterThenUseProfile signs up through /userinfo and then calls the API
func (suite *AuthAcceptanceTestSuite) TestRegisterThenUseProfile() {
	t := suite.T()
	customerToken := testutil.MintToken(t, "auth0|ana", "", time.Hour)
	providerToken := testutil.MintToken(t, "auth0|binh", "provider", time.Hour)
	suite.addProfile(customerToken, services.Auth0UserInfo{Sub: "auth0|ana", Email: "ana@example.com", Name: "Ana"})
	suite.addProfile(providerToken, services.Auth0UserInfo{Sub: "auth0|binh", Email: "binh@example.com", Name: "Binh"})

	status, body := suite.get(http.MethodGet, "/api/v1/users/me", customerToken)
	suite.Equal(http.StatusNotFound, status)
	suite.Equal("USER_NOT_FOUND", errorCode(body))

	status, body = suite.get(http.MethodPost, "/api/v1/users", customerToken)
	suite.Require().Equal(http.StatusCreated, status, body)
	data := body["data"].(map[string]interface{})
	suite.Equal(string(models.RoleCustomer), data["role"])
	suite.Equal("ana@example.com", data["email"])

	status, body = suite.get(http.MethodPost, "/api/v1/users", providerToken)
	suite.Require().Equal(http.StatusCreated, status, body)
	suite.Equal(string(models.RoleProvider), body["data"].(map[string]interface{})["role"])

	status, body = suite.get(http.MethodGet, "/api/v1/users/me", customerToken)
	suite.Equal(http.StatusOK, status)
	suite.Equal("Ana", body["data"].(map[string]interface{})["name"])

	status, _ = suite.get(http.MethodGet, "/api/v1/admin/reports", customerToken)
	suite.Equal(http.StatusForbidden, status)

	status, body = suite.get(http.MethodPost, "/api/v1/users", testutil.MintToken(t, "auth0|ghost", "", time.Hour))
	suite.Equal(http.StatusInternalServerError, status)
	suite.Equal("AUTH0_ERROR", errorCode(body))
}

func TestAuthAcceptanceTestSuite(t *testing.T) {
	suite.Run(t, new(AuthAcceptanceTestSuite))
}
