package handlers

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/drinksharbour/drinksharbour-api/internal/config"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/cart"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/flashsale"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/product"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/tenant"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/upload"
	"github.com/drinksharbour/drinksharbour-api/internal/interfaces/http/middleware"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/logging"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/testdb"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/validation"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := validation.RegisterGin(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type envelope struct {
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Fields  map[string]string `json:"fields"`
}

func perform(t *testing.T, r http.Handler, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var body envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	}
	return w, body
}

func jsonRequest(method, target string, payload any) *http.Request {
	var buf bytes.Buffer
	if payload != nil {
		_ = json.NewEncoder(&buf).Encode(payload)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// asUser stands in for AuthMiddleware
func asUser(id uint, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserID, id)
		c.Set(middleware.ContextRole, role)
		c.Next()
	}
}

func newCartRouter(t *testing.T) (*gin.Engine, *product.SubProduct) {
	t.Helper()
	db := testdb.Open(t,
		&product.Product{}, &product.SubProduct{}, &product.SubProductSize{},
		&flashsale.FlashSale{}, &flashsale.FlashSaleItem{},
		&cart.Cart{}, &cart.CartItem{},
	)
	_, rdb := testdb.Redis(t)
	cfg := &config.Config{Marketplace: config.MarketplaceConfig{Currency: "USD", CartTTL: 24 * time.Hour}}
	h := NewCartHandler(cart.NewService(db, rdb, cfg, logging.Component(logging.Discard(), "cart")))

	p := product.Product{Name: "Rioja Reserva", Slug: "rioja-reserva", Type: product.TypeWine, ABV: 13.5, IsAlcoholic: true, Status: product.StatusActive}
	require.NoError(t, db.Create(&p).Error)
	sp := product.SubProduct{ProductID: p.ID, TenantID: 3, SKU: "RR-1", BasePrice: 1500, Status: product.StatusActive,
		Sizes: []product.SubProductSize{{Size: "750ml", VolumeML: 750, Stock: 10, IsAvailable: true}}}
	require.NoError(t, db.Create(&sp).Error)

	r := gin.New()
	r.GET("/cart", h.GetCart)
	r.POST("/cart/items", h.AddToCart)
	r.PUT("/cart/items/:key", h.UpdateCartItem)
	r.DELETE("/cart", h.ClearCart)
	return r, &sp
}

func TestGuestCartFlow(t *testing.T) {
	r, sp := newCartRouter(t)

	w, body := perform(t, r, jsonRequest(http.MethodPost, "/cart/items", gin.H{
		"product_id": sp.ProductID, "sub_product_id": sp.ID, "size": "750ml", "vendor_id": sp.TenantID, "quantity": 2,
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	session := w.Header().Get(middleware.SessionHeader)
	require.NotEmpty(t, session, "guest gets a session id")

	var added cart.CartResponse
	require.NoError(t, json.Unmarshal(body.Data, &added))
	assert.Equal(t, int64(3000), added.Subtotal)

	req := jsonRequest(http.MethodGet, "/cart", nil)
	req.Header.Set(middleware.SessionHeader, session)
	w, body = perform(t, r, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, session, w.Header().Get(middleware.SessionHeader))

	var got cart.CartResponse
	require.NoError(t, json.Unmarshal(body.Data, &got))
	require.Len(t, got.Items, 1)
	assert.Equal(t, 2, got.TotalQuantity)

	// A different session sees an empty cart
	req = jsonRequest(http.MethodGet, "/cart", nil)
	w, body = perform(t, r, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(body.Data, &got))
	assert.Empty(t, got.Items)
}

func TestUpdateCartItemValidatesKey(t *testing.T) {
	r, sp := newCartRouter(t)

	w, body := perform(t, r, jsonRequest(http.MethodPost, "/cart/items", gin.H{
		"product_id": sp.ProductID, "sub_product_id": sp.ID, "size": "750ml", "vendor_id": sp.TenantID, "quantity": 1,
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	session := w.Header().Get(middleware.SessionHeader)
	var added cart.CartResponse
	require.NoError(t, json.Unmarshal(body.Data, &added))
	require.Len(t, added.Items, 1)

	req := jsonRequest(http.MethodPut, "/cart/items/not-a-key", gin.H{"quantity": 3})
	req.Header.Set(middleware.SessionHeader, session)
	w, body = perform(t, r, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", body.Code)
	assert.Contains(t, body.Fields, "key")

	req = jsonRequest(http.MethodPut, "/cart/items/"+added.Items[0].Key, gin.H{"quantity": 3})
	req.Header.Set(middleware.SessionHeader, session)
	w, body = perform(t, r, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated cart.CartResponse
	require.NoError(t, json.Unmarshal(body.Data, &updated))
	assert.Equal(t, 3, updated.TotalQuantity)
}

func TestAddToCartValidation(t *testing.T) {
	r, _ := newCartRouter(t)

	w, body := perform(t, r, jsonRequest(http.MethodPost, "/cart/items", gin.H{"quantity": 0}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", body.Code)
	assert.Contains(t, body.Fields, "product_id")
	assert.Contains(t, body.Fields, "size")
}

func TestTenantHandler(t *testing.T) {
	db := testdb.Open(t, &tenant.Tenant{})
	cfg := &config.Config{Marketplace: config.MarketplaceConfig{DefaultCommissionRate: 0.15}}
	h := NewTenantHandler(tenant.NewService(db, cfg))

	r := gin.New()
	r.POST("/admin/tenants", h.CreateTenant)
	r.GET("/admin/tenants/:id", h.GetTenant)
	r.PUT("/admin/tenants/:id", h.UpdateTenant)

	w, body := perform(t, r, jsonRequest(http.MethodPost, "/admin/tenants", gin.H{"name": "Vine & Co", "email": "hello@vine.example"}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created tenant.Tenant
	require.NoError(t, json.Unmarshal(body.Data, &created))
	assert.Equal(t, tenant.StatusPending, created.Status)

	w, body = perform(t, r, jsonRequest(http.MethodPost, "/admin/tenants", gin.H{"name": "Vine & Co", "email": "other@vine.example"}))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONFLICT", body.Code)

	w, body = perform(t, r, jsonRequest(http.MethodPut, "/admin/tenants/"+jsonID(created.ID), gin.H{"status": "active"}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated tenant.Tenant
	require.NoError(t, json.Unmarshal(body.Data, &updated))
	assert.True(t, updated.IsActive())

	w, _ = perform(t, r, jsonRequest(http.MethodGet, "/admin/tenants/abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = perform(t, r, jsonRequest(http.MethodGet, "/admin/tenants/999", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", body.Code)
}

func jsonID(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}

func pngFile(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

func multipartRequest(t *testing.T, target, field string, files map[string][]byte, folder string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	if folder != "" {
		require.NoError(t, mw.WriteField("folder", folder))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadHandler(t *testing.T) {
	db := testdb.Open(t, &upload.Upload{})
	cfg := &config.Config{Upload: config.UploadConfig{MaxFileSize: 64 * 1024, MaxFiles: 10}}
	storage := upload.NewLocalStorage(t.TempDir(), "http://localhost:8080/uploads")
	h := NewUploadHandler(upload.NewService(db, cfg, storage, logging.Component(logging.Discard(), "upload")))

	r := gin.New()
	r.Use(asUser(1, "admin"))
	r.POST("/upload/image", h.UploadImage)
	r.POST("/upload/images", h.UploadMultipleImages)
	r.DELETE("/upload/image/:public_id", h.DeleteImage)

	w, body := perform(t, r, multipartRequest(t, "/upload/image", "image", map[string][]byte{"label.png": pngFile(t)}, "products"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var up upload.Upload
	require.NoError(t, json.Unmarshal(body.Data, &up))
	assert.Equal(t, "image/png", up.MimeType)
	assert.Equal(t, 2, up.Width)

	w, body = perform(t, r, multipartRequest(t, "/upload/images", "images", map[string][]byte{
		"front.png": pngFile(t),
		"notes.png": []byte("definitely not an image"),
	}, ""))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var result upload.BulkUploadResult
	require.NoError(t, json.Unmarshal(body.Data, &result))
	assert.Equal(t, 1, result.Summary.SuccessCount)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "notes.png", result.Failed[0].Filename)

	w, _ = perform(t, r, httptest.NewRequest(http.MethodDelete, "/upload/image/"+upload.EncodePublicID(up.PublicID), nil))
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, body = perform(t, r, httptest.NewRequest(http.MethodDelete, "/upload/image/"+upload.EncodePublicID(up.PublicID), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", body.Code)

	w, body = perform(t, r, multipartRequest(t, "/upload/image", "photo", map[string][]byte{"x.png": pngFile(t)}, ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", body.Code)
}
