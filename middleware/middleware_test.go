package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const secret = "middleware-secret"

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken(secret, "editor-1", "editor@example.org", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(secret, token)
	require.NoError(t, err)
	assert.Equal(t, "editor-1", claims.UserID)
	assert.Equal(t, "editor@example.org", claims.Email)
	assert.Equal(t, "editor-1", claims.Subject)

	_, err = ParseToken("other-secret", token)
	assert.Error(t, err)

	_, err = GenerateToken("", "editor-1", "", time.Hour)
	assert.Error(t, err)
}

func TestParseTokenRejects(t *testing.T) {
	expired, err := GenerateToken(secret, "editor-1", "", -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(secret, expired)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{UserID: "editor-1"}).SignedString([]byte(secret))
	require.NoError(t, err)
	_, err = ParseToken(secret, hs512)
	assert.Error(t, err)

	anonymous, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{}).SignedString([]byte(secret))
	require.NoError(t, err)
	_, err = ParseToken(secret, anonymous)
	assert.Error(t, err)
}

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthMiddleware(secret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"actor": ActorID(c), "email": c.GetString("email")})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	r := newAuthRouter()
	token, err := GenerateToken(secret, "editor-1", "editor@example.org", time.Hour)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"no bearer prefix", token, http.StatusUnauthorized},
		{"garbage token", "Bearer abc.def.ghi", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusOK {
				assert.JSONEq(t, `{"actor":"editor-1","email":"editor@example.org"}`, w.Body.String())
			}
		})
	}
}

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.InfoLevel)

	r := gin.New()
	r.Use(RequestLogger(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "req-123", entries[0].ContextMap()["request_id"])
	assert.Equal(t, "/ok", entries[0].ContextMap()["path"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.EqualValues(t, 500, entries[1].ContextMap()["status"])
}
