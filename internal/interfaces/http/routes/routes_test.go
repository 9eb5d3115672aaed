package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/drinksharbour/drinksharbour-api/internal/config"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/logging"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	cfg := &config.Config{JWT: config.JWTConfig{Secret: "routes-test-secret"}}
	require.NotPanics(t, func() {
		SetupRoutes(engine.Group("/api"), &Handlers{}, Deps{
			Config: cfg,
			Logger: logging.Component(logging.Discard(), "routes"),
		})
	})
	return engine
}

func TestSetupRoutesRegistersEveryArea(t *testing.T) {
	engine := newEngine(t)

	registered := map[string]bool{}
	for _, r := range engine.Routes() {
		registered[r.Method+" "+r.Path] = true
	}

	for _, want := range []string{
		"POST /api/auth/login",
		"GET /api/products/search",
		"GET /api/cart",
		"POST /api/cart/items",
		"POST /api/coupons/validate",
		"POST /api/checkout/quote",
		"POST /api/orders",
		"POST /api/orders/:id",
		"GET /api/orders/number/:orderNumber",
		"POST /api/payments/webhook",
		"GET /api/banners/placement/:placement",
		"GET /api/flash-sales/active",
		"DELETE /api/upload/image/:public_id",
		"PUT /api/vendor/sizes/:id/stock",
		"GET /api/admin/analytics/revenue",
		"PUT /api/admin/orders/:id/status",
	} {
		assert.True(t, registered[want], "missing route %s", want)
	}
}

func TestProtectedAreasRequireAuthentication(t *testing.T) {
	engine := newEngine(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/orders"},
		{http.MethodGet, "/api/wishlist"},
		{http.MethodPost, "/api/upload/image"},
		{http.MethodGet, "/api/vendor/orders"},
		{http.MethodGet, "/api/admin/tenants"},
	} {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", tc.method, tc.path)
	}
}
