package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-radar/internal/app/domain/chat"
	"github.com/FACorreiaa/go-radar/internal/app/domain/discover"
	"github.com/FACorreiaa/go-radar/internal/app/domain/places"
	"github.com/FACorreiaa/go-radar/internal/app/middleware"
	"github.com/FACorreiaa/go-radar/internal/routes"
)

func testRouter(t *testing.T) (http.Handler, middleware.JWTConfig) {
	t.Helper()
	jwtCfg := middleware.JWTConfig{SecretKey: "test-secret", TokenExpiration: time.Hour, Logger: zap.NewNop()}
	handlers := &routes.AppHandlers{
		Places:   places.NewHandler(nil, zap.NewNop()),
		Discover: discover.NewDiscoverHandlers(nil, zap.NewNop()),
		Chat:     chat.NewHandler(nil, zap.NewNop()),
	}
	return SetupRouter(handlers, jwtCfg, zap.NewNop()), jwtCfg
}

func TestHealthIsPublic(t *testing.T) {
	r, _ := testRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestAPIRequiresToken(t *testing.T) {
	r, jwtCfg := testRouter(t)

	for _, path := range []string{"/api/v1/places", "/api/v1/discover/trending", "/api/v1/categories"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/chat", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := middleware.GenerateToken(jwtCfg, uuid.NewString(), "a@example.com", "a")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/places/not-a-uuid", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
