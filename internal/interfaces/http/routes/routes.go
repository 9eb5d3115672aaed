// internal/interfaces/http/routes/routes.go
package routes

import (
	"github.com/drinksharbour/drinksharbour-api/internal/config"
	"github.com/drinksharbour/drinksharbour-api/internal/interfaces/http/handlers"
	"github.com/drinksharbour/drinksharbour-api/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Handlers groups every HTTP handler the API exposes
type Handlers struct {
	Auth      *handlers.AuthHandler
	Profile   *handlers.UserProfileHandler
	UserAdmin *handlers.UserAdminHandler
	Product   *handlers.ProductHandler
	Taxonomy  *handlers.TaxonomyHandler
	Tenant    *handlers.TenantHandler
	Cart      *handlers.CartHandler
	Wishlist  *handlers.WishlistHandler
	Coupon    *handlers.CouponHandler
	Checkout  *handlers.CheckoutHandler
	Order     *handlers.OrderHandler
	Invoice   *handlers.InvoiceHandler
	Payment   *handlers.PaymentHandler
	Banner    *handlers.BannerHandler
	FlashSale *handlers.FlashSaleHandler
	Upload    *handlers.UploadHandler
	Analytics *handlers.AnalyticsHandler
	Inventory *handlers.InventoryHandler
}

// Deps are the cross cutting collaborators the routes need
type Deps struct {
	Config *config.Config
	Redis  redis.Cmdable
	Logger *logrus.Entry
}

// SetupAuthRoutes sets up authentication and profile routes
func SetupAuthRoutes(rg *gin.RouterGroup, h *Handlers, d Deps) {
	auth := rg.Group("/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
		auth.POST("/refresh", h.Auth.RefreshToken)

		protected := auth.Group("")
		protected.Use(middleware.AuthMiddleware(d.Config))
		{
			protected.POST("/logout", h.Auth.Logout)
			protected.GET("/profile", h.Profile.GetProfile)
			protected.PUT("/profile", h.Profile.UpdateProfile)
			protected.PUT("/password", h.Profile.ChangePassword)
		}
	}
}

// SetupCatalogRoutes sets up public product and taxonomy routes
func SetupCatalogRoutes(rg *gin.RouterGroup, h *Handlers, d Deps) {
	products := rg.Group("/products")
	products.Use(middleware.OptionalAuthMiddleware(d.Config))
	{
		products.GET("/search", h.Product.SearchProducts)
		products.GET("/featured", h.Product.GetFeaturedProducts)
		products.GET("/slug/:slug", h.Product.GetProductBySlug)
		products.GET("/:id", h.Product.GetProduct)
		products.GET("/:id/related", h.Product.GetRelatedProducts)
	}

	rg.GET("/sub-products/:id", h.Product.GetSubProduct)

	rg.GET("/categories", h.Taxonomy.GetCategories)
	rg.GET("/categories/:slug", h.Taxonomy.GetCategoryBySlug)
	rg.GET("/brands", h.Taxonomy.GetBrands)
	rg.GET("/tags", h.Taxonomy.GetTags)
	rg.GET("/tags/popular", h.Taxonomy.GetPopularTags)
}

// SetupShoppingRoutes sets up cart, wishlist, compare, coupon and checkout routes.
// Guests are identified by the X-Session-ID header.
func SetupShoppingRoutes(rg *gin.RouterGroup, h *Handlers, d Deps) {
	idempotent := middleware.Idempotency(d.Redis, d.Config.Security.IdempotencyTTL, d.Logger)

	shopping := rg.Group("")
	shopping.Use(middleware.OptionalAuthMiddleware(d.Config))

	cart := shopping.Group("/cart")
	{
		cart.GET("", h.Cart.GetCart)
		cart.POST("", h.Cart.SyncCart)
		cart.DELETE("", h.Cart.ClearCart)
		cart.POST("/items", h.Cart.AddToCart)
		cart.PUT("/items/:key", h.Cart.UpdateCartItem)
		cart.DELETE("/items/:key", h.Cart.RemoveFromCart)
	}

	compare := shopping.Group("/compare")
	{
		compare.GET("", h.Wishlist.GetCompare)
		compare.POST("", h.Wishlist.AddToCompare)
		compare.DELETE("", h.Wishlist.ClearCompare)
		compare.DELETE("/:product_id", h.Wishlist.RemoveFromCompare)
	}

	coupons := shopping.Group("/coupons")
	{
		coupons.POST("/validate", idempotent, h.Coupon.ValidateCoupon)
		coupons.POST("/auto-apply", h.Coupon.AutoApply)
	}

	shopping.POST("/checkout/quote", h.Checkout.Quote)

	wishlist := rg.Group("/wishlist")
	wishlist.Use(middleware.AuthMiddleware(d.Config))
	{
		wishlist.GET("", h.Wishlist.GetWishlist)
		wishlist.POST("", h.Wishlist.AddToWishlist)
		wishlist.DELETE("", h.Wishlist.ClearWishlist)
		wishlist.GET("/check/:product_id", h.Wishlist.CheckWishlistStatus)
		wishlist.DELETE("/:product_id", h.Wishlist.RemoveFromWishlist)
		wishlist.POST("/:item_id/move-to-cart", h.Wishlist.MoveToCart)
	}
}

// SetupOrderRoutes sets up order, invoice and payment routes
func SetupOrderRoutes(rg *gin.RouterGroup, h *Handlers, d Deps) {
	idempotent := middleware.Idempotency(d.Redis, d.Config.Security.IdempotencyTTL, d.Logger)

	orders := rg.Group("/orders")
	orders.Use(middleware.OptionalAuthMiddleware(d.Config))
	{
		orders.POST("", idempotent, h.Order.CreateOrder)
		orders.GET("/number/:orderNumber", h.Order.GetOrderByNumber)
		orders.GET("/:id", h.Order.GetOrder)
		orders.POST("/:id", idempotent, h.Order.ConfirmPayment)
		orders.PUT("/:id/cancel", h.Order.CancelOrder)
		orders.GET("/:id/invoice", h.Invoice.GenerateInvoice)
		orders.GET("/:id/invoice/preview", h.Invoice.GetInvoiceHTML)
	}
	rg.GET("/orders", middleware.AuthMiddleware(d.Config), h.Order.GetUserOrders)

	rg.POST("/payments/webhook", h.Payment.StripeWebhook)
}

// SetupPromotionRoutes sets up public banner and flash sale routes
func SetupPromotionRoutes(rg *gin.RouterGroup, h *Handlers, d Deps) {
	banners := rg.Group("/banners")
	banners.Use(middleware.OptionalAuthMiddleware(d.Config))
	{
		banners.GET("/placement/:placement", h.Banner.GetByPlacement)
		banners.POST("/:id/impression", h.Banner.RecordImpression)
		banners.POST("/:id/click", h.Banner.RecordClick)
	}

	flashSales := rg.Group("/flash-sales")
	{
		flashSales.GET("/active", h.FlashSale.GetActive)
		flashSales.GET("/:slug", h.FlashSale.GetBySlug)
	}
}

// SetupUploadRoutes sets up image upload routes for vendors and admins
func SetupUploadRoutes(rg *gin.RouterGroup, h *Handlers, d Deps) {
	uploads := rg.Group("/upload")
	uploads.Use(middleware.AuthMiddleware(d.Config))
	{
		uploads.POST("/image", middleware.VendorMiddleware(), h.Upload.UploadImage)
		uploads.POST("/images", middleware.VendorMiddleware(), h.Upload.UploadMultipleImages)
		uploads.DELETE("/image/:public_id", middleware.AdminMiddleware(), h.Upload.DeleteImage)
	}
}

// SetupVendorRoutes sets up routes scoped to the caller's tenant
func SetupVendorRoutes(rg *gin.RouterGroup, h *Handlers, d Deps) {
	vendor := rg.Group("/vendor")
	vendor.Use(middleware.AuthMiddleware(d.Config))
	vendor.Use(middleware.VendorMiddleware())
	{
		vendor.GET("/orders", h.Order.GetVendorOrders)

		vendor.GET("/sub-products", h.Product.ListVendorSubProducts)
		vendor.POST("/sub-products", h.Product.CreateSubProduct)
		vendor.PUT("/sub-products/:id", h.Product.UpdateSubProduct)
		vendor.PUT("/sizes/:id/stock", h.Product.UpdateSizeStock)

		setupInventoryRoutes(vendor, h)
	}
}

// SetupAdminRoutes sets up admin routes
func SetupAdminRoutes(rg *gin.RouterGroup, h *Handlers, d Deps) {
	admin := rg.Group("/admin")
	admin.Use(middleware.AuthMiddleware(d.Config))
	admin.Use(middleware.AdminMiddleware())
	{
		users := admin.Group("/users")
		{
			users.GET("", h.UserAdmin.GetUsers)
			users.GET("/export", h.UserAdmin.ExportUsers)
			users.GET("/:id", h.UserAdmin.GetUser)
			users.PUT("/:id/status", h.UserAdmin.UpdateUserStatus)
			users.PUT("/:id/role", h.UserAdmin.UpdateUserRole)
		}

		orders := admin.Group("/orders")
		{
			orders.GET("", h.Order.GetAllOrders)
			orders.PUT("/:id/status", h.Order.UpdateOrderStatus)
		}

		products := admin.Group("/products")
		{
			products.GET("", h.Product.ListProducts)
			products.POST("", h.Product.CreateProduct)
			products.PUT("/:id", h.Product.UpdateProduct)
			products.DELETE("/:id", h.Product.DeleteProduct)
		}

		// Admins may manage any tenant's listings
		admin.POST("/sub-products", h.Product.CreateSubProduct)
		admin.PUT("/sub-products/:id", h.Product.UpdateSubProduct)
		admin.PUT("/sizes/:id/stock", h.Product.UpdateSizeStock)

		categories := admin.Group("/categories")
		{
			categories.GET("", h.Taxonomy.GetAllCategories)
			categories.POST("", h.Taxonomy.CreateCategory)
			categories.PUT("/:id", h.Taxonomy.UpdateCategory)
			categories.DELETE("/:id", h.Taxonomy.DeleteCategory)
		}

		brands := admin.Group("/brands")
		{
			brands.POST("", h.Taxonomy.CreateBrand)
			brands.PUT("/:id", h.Taxonomy.UpdateBrand)
			brands.DELETE("/:id", h.Taxonomy.DeleteBrand)
		}

		tags := admin.Group("/tags")
		{
			tags.POST("", h.Taxonomy.CreateTag)
			tags.PUT("/:id", h.Taxonomy.UpdateTag)
			tags.DELETE("/:id", h.Taxonomy.DeleteTag)
		}
		admin.POST("/taxonomy/recalculate", h.Taxonomy.RecalculatePopularity)

		coupons := admin.Group("/coupons")
		{
			coupons.GET("", h.Coupon.ListCoupons)
			coupons.POST("", h.Coupon.CreateCoupon)
			coupons.GET("/:id", h.Coupon.GetCoupon)
			coupons.PUT("/:id", h.Coupon.UpdateCoupon)
			coupons.DELETE("/:id", h.Coupon.DeleteCoupon)
		}

		tenants := admin.Group("/tenants")
		{
			tenants.GET("", h.Tenant.ListTenants)
			tenants.POST("", h.Tenant.CreateTenant)
			tenants.GET("/:id", h.Tenant.GetTenant)
			tenants.PUT("/:id", h.Tenant.UpdateTenant)
		}

		banners := admin.Group("/banners")
		{
			banners.GET("", h.Banner.ListBanners)
			banners.POST("", h.Banner.CreateBanner)
			banners.GET("/:id", h.Banner.GetBanner)
			banners.GET("/:id/stats", h.Banner.GetBannerStats)
			banners.PUT("/:id", h.Banner.UpdateBanner)
			banners.DELETE("/:id", h.Banner.DeleteBanner)
		}

		flashSales := admin.Group("/flash-sales")
		{
			flashSales.GET("", h.FlashSale.ListFlashSales)
			flashSales.POST("", h.FlashSale.CreateFlashSale)
			flashSales.GET("/:id", h.FlashSale.GetFlashSale)
			flashSales.PUT("/:id", h.FlashSale.UpdateFlashSale)
			flashSales.POST("/:id/cancel", h.FlashSale.CancelFlashSale)
		}

		analytics := admin.Group("/analytics")
		{
			analytics.GET("/dashboard", h.Analytics.GetDashboard)
			analytics.GET("/searches", h.Analytics.GetTopSearches)
			analytics.GET("/revenue", h.Analytics.GetRevenueReport)
		}

		setupInventoryRoutes(admin, h)
	}
}

func setupInventoryRoutes(rg *gin.RouterGroup, h *Handlers) {
	inventory := rg.Group("/inventory")
	{
		inventory.GET("/movements", h.Inventory.GetMovements)
		inventory.GET("/alerts", h.Inventory.GetAlerts)
		inventory.PUT("/alerts/:id/resolve", h.Inventory.ResolveAlert)
		inventory.GET("/low-stock", h.Inventory.GetLowStock)
	}
}

// SetupRoutes registers every API route on rg
func SetupRoutes(rg *gin.RouterGroup, h *Handlers, d Deps) {
	SetupAuthRoutes(rg, h, d)
	SetupCatalogRoutes(rg, h, d)
	SetupShoppingRoutes(rg, h, d)
	SetupOrderRoutes(rg, h, d)
	SetupPromotionRoutes(rg, h, d)
	SetupUploadRoutes(rg, h, d)
	SetupVendorRoutes(rg, h, d)
	SetupAdminRoutes(rg, h, d)
}
