package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAuthRouter(cfg JWTConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(JWTAuthMiddleware(cfg))
	r.GET("/me", func(c *gin.Context) {
		id, ok := GetUserIDFromContext(c)
		if !ok {
			c.JSON(http.StatusOK, gin.H{"user_id": "anonymous"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": id.String()})
	})
	return r
}

func TestJWTAuthMiddleware(t *testing.T) {
	cfg := JWTConfig{
		SecretKey:       "test-secret-key-with-enough-length",
		TokenExpiration: time.Hour,
		Logger:          zap.NewNop(),
	}
	userID := uuid.New()
	valid, err := GenerateToken(cfg, userID.String(), "a@example.com", "alice")
	require.NoError(t, err)

	otherCfg := cfg
	otherCfg.SecretKey = "another-secret-key-with-enough-len"
	forged, err := GenerateToken(otherCfg, userID.String(), "", "")
	require.NoError(t, err)

	badUser, err := GenerateToken(cfg, "not-a-uuid", "", "")
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		cookie     string
		wantStatus int
		wantBody   string
	}{
		{name: "valid bearer token", header: "Bearer " + valid, wantStatus: http.StatusOK, wantBody: userID.String()},
		{name: "valid cookie", cookie: valid, wantStatus: http.StatusOK, wantBody: userID.String()},
		{name: "missing token", wantStatus: http.StatusUnauthorized},
		{name: "wrong secret", header: "Bearer " + forged, wantStatus: http.StatusUnauthorized},
		{name: "malformed user id", header: "Bearer " + badUser, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newAuthRouter(cfg)

			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "auth_token", Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.Contains(t, w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestCORSMiddlewarePreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SecurityMiddleware(), CORSMiddleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/x", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}
