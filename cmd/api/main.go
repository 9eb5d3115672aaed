// cmd/api/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/drinksharbour/drinksharbour-api/internal/config"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/activity"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/analytics"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/banner"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/cart"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/checkout"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/coupon"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/flashsale"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/inventory"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/order"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/payment"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/product"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/tenant"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/upload"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/user"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/wishlist"
	"github.com/drinksharbour/drinksharbour-api/internal/infrastructure/database/mongo"
	"github.com/drinksharbour/drinksharbour-api/internal/infrastructure/database/postgres"
	"github.com/drinksharbour/drinksharbour-api/internal/infrastructure/database/redis"
	"github.com/drinksharbour/drinksharbour-api/internal/infrastructure/messaging"
	"github.com/drinksharbour/drinksharbour-api/internal/interfaces/http"
	"github.com/drinksharbour/drinksharbour-api/internal/interfaces/http/handlers"
	"github.com/drinksharbour/drinksharbour-api/internal/interfaces/http/routes"
	"github.com/drinksharbour/drinksharbour-api/internal/jobs"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/email"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/logging"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/metrics"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/pdf"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/validation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg)
	logger.WithFields(logrus.Fields{
		"app":         cfg.App.Name,
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	}).Info("starting")

	if err := validation.RegisterGin(); err != nil {
		logger.Fatalf("Failed to register validators: %v", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// Connect to database
	db, err := postgres.NewConnection(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Connect to Redis
	redisClient, err := redis.NewConnection(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Activity log lives in Mongo when configured
	mongoClient, err := mongo.NewConnection(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	var activityStore activity.Store = activity.NoopStore{}
	if mongoClient != nil {
		defer mongoClient.Close(context.Background())
		mongoStore := activity.NewMongoStore(mongoClient.Database)
		if err := mongoStore.EnsureIndexes(context.Background()); err != nil {
			logger.WithError(err).Warn("failed to ensure activity indexes")
		}
		activityStore = mongoStore
	}

	publisher := messaging.NewPublisher(cfg, logger)
	defer publisher.Close()

	if cfg.Database.AutoMigrate {
		migration := postgres.NewMigration(db.DB, logging.Component(logger, "migration"))
		if err := migration.RunAutoMigrations(); err != nil {
			logger.Fatalf("Database migration failed: %v", err)
		}
		if err := migration.CreateIndexes(); err != nil {
			logger.WithError(err).Warn("index creation incomplete")
		}
		if cfg.Database.Seed {
			if err := migration.SeedInitialData(); err != nil {
				logger.WithError(err).Warn("data seeding failed")
			}
		}
	}

	// Domain services
	emails, err := email.NewEmailService(cfg, email.NewSender(cfg.External.Email, logging.Component(logger, "email")), logging.Component(logger, "email"))
	if err != nil {
		logger.Fatalf("Failed to load email templates: %v", err)
	}
	defer emails.Wait()

	recorder := activity.NewRecorder(activityStore, logging.Component(logger, "activity"))
	rdb := redisClient.Redis

	tenantService := tenant.NewService(db.DB, cfg)
	productService := product.NewService(db.DB, rdb, cfg, recorder, logging.Component(logger, "catalog"))
	taxonomyService := product.NewTaxonomyService(db.DB, productService)
	cartService := cart.NewService(db.DB, rdb, cfg, logging.Component(logger, "cart"))
	couponService := coupon.NewService(db.DB, m, logging.Component(logger, "coupon"))
	checkoutService := checkout.NewService(db.DB, cfg, cartService, couponService)
	flashSaleService := flashsale.NewService(db.DB, rdb, publisher, m, logging.Component(logger, "flash_sale"))
	orderService := order.NewService(db.DB, cfg, order.Dependencies{
		Checkout:  checkoutService,
		Carts:     cartService,
		Coupons:   couponService,
		FlashSale: flashSaleService,
		Gateway:   payment.NewGateway(cfg.External.Stripe, m, logging.Component(logger, "payment")),
		Publisher: publisher,
		Emails:    emails,
		Metrics:   m,
		Logger:    logging.Component(logger, "order"),
	})
	userService := user.NewService(db.DB, cfg, cartService, emails, logging.Component(logger, "user"))
	adminService := user.NewAdminService(db.DB, logging.Component(logger, "user_admin"))
	wishlistService := wishlist.NewService(db.DB, rdb, cfg, cartService)
	bannerService := banner.NewService(db.DB, rdb, recorder, logging.Component(logger, "banner"))
	inventoryService := inventory.NewService(db.DB)
	analyticsService := analytics.NewService(db.DB, activityStore, tenantService)

	storage, err := upload.NewStorage(cfg, m, logging.Component(logger, "storage"))
	if err != nil {
		logger.Fatalf("Failed to configure upload storage: %v", err)
	}
	uploadService := upload.NewService(db.DB, cfg, storage, logging.Component(logger, "upload"))

	// Background jobs
	scheduler, err := jobs.NewScheduler(logging.Component(logger, "jobs"), m)
	if err != nil {
		logger.Fatalf("Failed to create scheduler: %v", err)
	}
	if cfg.Jobs.Enabled {
		tasks := jobs.Tasks(cfg, jobs.Dependencies{
			FlashSales: flashSaleService,
			Orders:     orderService,
			Coupons:    couponService,
			Taxonomy:   taxonomyService,
			Tenants:    tenantService,
			Carts:      cartService,
			Mailer:     emails,
			Logger:     logging.Component(logger, "jobs"),
		})
		for _, task := range tasks {
			if err := scheduler.Register(task); err != nil {
				logger.Fatalf("Failed to register job: %v", err)
			}
		}
		scheduler.Start()
	}

	checks := map[string]http.HealthCheck{
		"postgres": db.Health,
		"redis":    redisClient.Health,
	}
	if mongoClient != nil {
		checks["mongo"] = mongoClient.Health
	}

	server := http.NewServer(cfg, http.Options{
		Handlers: &routes.Handlers{
			Auth:      handlers.NewAuthHandler(userService),
			Profile:   handlers.NewUserProfileHandler(userService),
			UserAdmin: handlers.NewUserAdminHandler(adminService),
			Product:   handlers.NewProductHandler(productService),
			Taxonomy:  handlers.NewTaxonomyHandler(taxonomyService),
			Tenant:    handlers.NewTenantHandler(tenantService),
			Cart:      handlers.NewCartHandler(cartService),
			Wishlist:  handlers.NewWishlistHandler(wishlistService),
			Coupon:    handlers.NewCouponHandler(couponService, cartService, cfg.Marketplace.ShippingFlatFee),
			Checkout:  handlers.NewCheckoutHandler(checkoutService),
			Order:     handlers.NewOrderHandler(orderService),
			Invoice:   handlers.NewInvoiceHandler(orderService, pdf.NewService(cfg)),
			Payment:   handlers.NewPaymentHandler(orderService),
			Banner:    handlers.NewBannerHandler(bannerService),
			FlashSale: handlers.NewFlashSaleHandler(flashSaleService),
			Upload:    handlers.NewUploadHandler(uploadService),
			Analytics: handlers.NewAnalyticsHandler(analyticsService),
			Inventory: handlers.NewInventoryHandler(inventoryService),
		},
		Redis:    rdb,
		Logger:   logger,
		Metrics:  m,
		Gatherer: registry,
		Checks:   checks,
	})

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down gracefully")

	// Give server 30 seconds to shutdown gracefully
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		logger.WithError(err).Error("failed to shutdown HTTP server gracefully")
	}
	if err := scheduler.Shutdown(); err != nil {
		logger.WithError(err).Error("failed to stop scheduler")
	}

	logger.Info("server shutdown completed")
}
