package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/drinksharbour/drinksharbour-api/internal/config"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/auth"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/logging"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			Secret:             "test-secret-that-is-at-least-32-chars",
			Issuer:             "drinksharbour-test",
			AccessTokenExpiry:  15 * time.Minute,
			RefreshTokenExpiry: time.Hour,
		},
		Security: config.SecurityConfig{
			CORSAllowedOrigins: []string{"https://shop.drinksharbour.com", "*.vendors.drinksharbour.com"},
			CORSAllowedMethods: []string{"GET", "POST"},
			CORSAllowedHeaders: []string{"Authorization", "Content-Type"},
		},
	}
}

func token(t *testing.T, cfg *config.Config, p auth.Principal) string {
	t.Helper()
	tok, err := auth.NewJWTManager(cfg).GenerateAccessToken(p)
	require.NoError(t, err)
	return "Bearer " + tok
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRespondError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		code      string
		retryable bool
	}{
		{"validation", apperrors.New(apperrors.CodeValidation, "quantity must be positive"), http.StatusBadRequest, "VALIDATION_ERROR", false},
		{"business rule", apperrors.New(apperrors.CodeUnprocessable, "coupon expired"), http.StatusUnprocessableEntity, "BUSINESS_RULE_VIOLATION", false},
		{"dependency", apperrors.New(apperrors.CodeDependency, "stripe unavailable"), http.StatusServiceUnavailable, "DEPENDENCY_ERROR", true},
		{"untyped", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			RespondError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			body := decode(t, w)
			assert.Equal(t, tt.code, body["code"])
			assert.Equal(t, tt.retryable, body["retryable"])
			assert.True(t, c.IsAborted())
		})
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	RespondError(c, apperrors.New(apperrors.CodeValidation, "invalid request").WithDetails(map[string]string{"email": "is required"}))
	body := decode(t, w)
	assert.Equal(t, map[string]any{"email": "is required"}, body["fields"])
	assert.Equal(t, "invalid request", body["details"])
}

func TestAuthMiddleware(t *testing.T) {
	cfg := testConfig()
	tenantID := uint(7)

	r := gin.New()
	r.GET("/me", AuthMiddleware(cfg), func(c *gin.Context) {
		id, _ := GetUserIDFromContext(c)
		email, _ := GetUserEmailFromContext(c)
		c.JSON(http.StatusOK, gin.H{"id": id, "email": email, "admin": IsAdminFromContext(c)})
	})
	r.GET("/vendor", AuthMiddleware(cfg), VendorMiddleware(), func(c *gin.Context) {
		scope := TenantIDFromContext(c)
		if scope == nil {
			c.JSON(http.StatusOK, gin.H{"tenant": nil})
			return
		}
		c.JSON(http.StatusOK, gin.H{"tenant": *scope})
	})
	r.GET("/admin", AuthMiddleware(cfg), AdminMiddleware(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	do := func(path, authz string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if authz != "" {
			req.Header.Set("Authorization", authz)
		}
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, do("/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do("/me", "Token abc").Code)
	assert.Equal(t, http.StatusUnauthorized, do("/me", "Bearer not-a-jwt").Code)

	customer := token(t, cfg, auth.Principal{UserID: 11, Email: "ana@example.com", Role: auth.RoleCustomer})
	w := do("/me", customer)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(11), body["id"])
	assert.Equal(t, "ana@example.com", body["email"])
	assert.Equal(t, false, body["admin"])

	assert.Equal(t, http.StatusForbidden, do("/vendor", customer).Code)
	assert.Equal(t, http.StatusForbidden, do("/admin", customer).Code)

	vendor := token(t, cfg, auth.Principal{UserID: 12, Email: "cellar@example.com", Role: auth.RoleVendor, TenantID: &tenantID})
	w = do("/vendor", vendor)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(7), decode(t, w)["tenant"])

	unbound := token(t, cfg, auth.Principal{UserID: 13, Email: "new@example.com", Role: auth.RoleVendor})
	assert.Equal(t, http.StatusForbidden, do("/vendor", unbound).Code)

	admin := token(t, cfg, auth.Principal{UserID: 1, Email: "ops@example.com", Role: auth.RoleAdmin})
	w = do("/vendor", admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decode(t, w)["tenant"])
	assert.Equal(t, http.StatusNoContent, do("/admin", admin).Code)
}

func TestOptionalAuthMiddleware(t *testing.T) {
	cfg := testConfig()
	r := gin.New()
	r.GET("/", OptionalAuthMiddleware(cfg), func(c *gin.Context) {
		_, ok := GetUserIDFromContext(c)
		c.JSON(http.StatusOK, gin.H{"authenticated": ok})
	})

	for _, tt := range []struct {
		authz string
		want  bool
	}{
		{"", false},
		{"Bearer garbage", false},
		{token(t, cfg, auth.Principal{UserID: 5, Email: "x@example.com", Role: auth.RoleCustomer}), true},
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", tt.authz)
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, tt.want, decode(t, w)["authenticated"])
	}
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS(testConfig()))
	r.GET("/products", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/products", nil)
	req.Header.Set("Origin", "https://shop.drinksharbour.com")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://shop.drinksharbour.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), IdempotencyHeader)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/products", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	assert.True(t, isOriginAllowed("https://cellar.vendors.drinksharbour.com", testConfig().Security.CORSAllowedOrigins))
	assert.False(t, isOriginAllowed("https://vendors.drinksharbour.com.evil.io", testConfig().Security.CORSAllowedOrigins))
}

func TestRequestIDAndSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), SecurityHeaders())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(ContextRequestID)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := w.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
}

func TestRateLimit(t *testing.T) {
	rdb := newRedis(t)
	r := gin.New()
	r.Use(RateLimit(2, rdb, logging.Component(logging.Discard(), "http")))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
		if i == 2 {
			assert.NotEmpty(t, w.Header().Get("Retry-After"))
			assert.Equal(t, "RATE_LIMIT_EXCEEDED", decode(t, w)["code"])
		}
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimitFailsOpen(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 50 * time.Millisecond})
	t.Cleanup(func() { _ = rdb.Close() })

	r := gin.New()
	r.Use(RateLimit(1, rdb, logging.Component(logging.Discard(), "http")))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIdempotency(t *testing.T) {
	rdb := newRedis(t)
	var calls int32

	r := gin.New()
	r.POST("/api/orders", Idempotency(rdb, time.Hour, logging.Component(logging.Discard(), "http")), func(c *gin.Context) {
		n := atomic.AddInt32(&calls, 1)
		c.JSON(http.StatusCreated, gin.H{"order": n})
	})
	r.POST("/api/coupons/validate", Idempotency(rdb, time.Hour, logging.Component(logging.Discard(), "http")), func(c *gin.Context) {
		atomic.AddInt32(&calls, 1)
		RespondError(c, apperrors.New(apperrors.CodeUnprocessable, "coupon expired"))
	})

	post := func(path, key, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if key != "" {
			req.Header.Set(IdempotencyHeader, key)
		}
		req.Header.Set(SessionHeader, "guest-1")
		r.ServeHTTP(w, req)
		return w
	}

	first := post("/api/orders", "k1", `{"items":1}`)
	require.Equal(t, http.StatusCreated, first.Code)

	replayed := post("/api/orders", "k1", `{"items":1}`)
	assert.Equal(t, http.StatusCreated, replayed.Code)
	assert.Equal(t, first.Body.String(), replayed.Body.String())
	assert.Equal(t, "true", replayed.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	conflict := post("/api/orders", "k1", `{"items":2}`)
	assert.Equal(t, http.StatusConflict, conflict.Code)
	assert.Equal(t, "IDEMPOTENCY_KEY_REUSED", decode(t, conflict)["code"])

	// no key means no dedupe
	post("/api/orders", "", `{"items":1}`)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	// failures are not stored
	post("/api/coupons/validate", "k2", `{"code":"OLD"}`)
	post("/api/coupons/validate", "k2", `{"code":"OLD"}`)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestIdempotencyConcurrentRetry(t *testing.T) {
	rdb := newRedis(t)
	var calls int32
	entered := make(chan struct{})
	release := make(chan struct{})

	r := gin.New()
	r.POST("/api/orders", Idempotency(rdb, time.Hour, logging.Component(logging.Discard(), "http")), func(c *gin.Context) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			close(entered)
			<-release
		}
		c.JSON(http.StatusCreated, gin.H{"order": n})
	})

	post := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{"items":1}`))
		req.Header.Set(IdempotencyHeader, "double-click")
		req.Header.Set(SessionHeader, "guest-2")
		r.ServeHTTP(w, req)
		return w
	}

	firstDone := make(chan *httptest.ResponseRecorder, 1)
	go func() { firstDone <- post() }()
	<-entered

	second := post()
	assert.Equal(t, http.StatusConflict, second.Code)
	assert.Equal(t, "IDEMPOTENCY_KEY_REUSED", decode(t, second)["code"])

	close(release)
	first := <-firstDone
	require.Equal(t, http.StatusCreated, first.Code)

	third := post()
	assert.Equal(t, http.StatusCreated, third.Code)
	assert.Equal(t, first.Body.String(), third.Body.String())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTimeout(t *testing.T) {
	r := gin.New()
	r.Use(Timeout(20 * time.Millisecond))
	r.GET("/slow", func(c *gin.Context) {
		<-c.Request.Context().Done()
	})
	r.GET("/fast", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slow", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fast", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery(logging.Component(logging.Discard(), "http")))
	r.GET("/", func(c *gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", decode(t, w)["code"])
}
