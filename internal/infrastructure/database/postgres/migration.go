// internal/infrastructure/database/postgres/migration.go
package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/drinksharbour/drinksharbour-api/internal/domain/banner"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/cart"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/coupon"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/flashsale"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/inventory"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/order"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/product"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/tenant"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/upload"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/user"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/wishlist"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/auth"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Migration handles database migrations
type Migration struct {
	db     *gorm.DB
	logger *logrus.Entry
}

// NewMigration creates a new migration instance
func NewMigration(db *gorm.DB, logger *logrus.Entry) *Migration {
	return &Migration{
		db:     db,
		logger: logger,
	}
}

// Models lists every persisted model in dependency order
func Models() []interface{} {
	return []interface{}{
		&tenant.Tenant{},
		&user.User{},

		&product.Category{},
		&product.Brand{},
		&product.Tag{},
		&product.Product{},
		&product.SubProduct{},
		&product.SubProductSize{},

		&inventory.StockMovement{},
		&inventory.StockAlert{},

		&cart.Cart{},
		&cart.CartItem{},
		&wishlist.WishlistItem{},

		&coupon.Coupon{},
		&coupon.CouponRedemption{},
		&flashsale.FlashSale{},
		&flashsale.FlashSaleItem{},
		&banner.Banner{},

		&order.Order{},
		&order.OrderItem{},
		&order.PaymentTransaction{},
		&order.OrderStatusHistory{},

		&upload.Upload{},
	}
}

// RunAutoMigrations runs GORM auto-migrations for all models
func (m *Migration) RunAutoMigrations() error {
	m.logger.Info("running database auto-migrations")

	for _, model := range Models() {
		if err := m.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate model %T: %w", model, err)
		}
	}

	m.logger.Info("database auto-migrations completed")
	return nil
}

// CreateIndexes creates composite indexes the model tags cannot express
func (m *Migration) CreateIndexes() error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_products_status_featured ON products(status, is_featured)",
		"CREATE INDEX IF NOT EXISTS idx_products_category_status ON products(category_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_products_created_at ON products(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_sub_products_product_status ON sub_products(product_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_categories_parent_active ON categories(parent_id, is_active)",

		"CREATE INDEX IF NOT EXISTS idx_orders_user_created ON orders(user_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_orders_status_created ON orders(status, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_order_items_tenant_order ON order_items(tenant_id, order_id)",

		"CREATE INDEX IF NOT EXISTS idx_stock_movements_size_created ON stock_movements(sub_product_size_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_stock_alerts_tenant_resolved ON stock_alerts(tenant_id, is_resolved)",

		"CREATE INDEX IF NOT EXISTS idx_flash_sales_status_window ON flash_sales(status, starts_at, ends_at)",
		"CREATE INDEX IF NOT EXISTS idx_banners_placement_priority ON banners(placement, priority DESC)",
		"CREATE INDEX IF NOT EXISTS idx_coupon_redemptions_coupon_user ON coupon_redemptions(coupon_id, user_id)",
	}

	failed := 0
	for _, indexSQL := range indexes {
		if err := m.db.Exec(indexSQL).Error; err != nil {
			m.logger.WithError(err).WithField("sql", indexSQL).Warn("failed to create index")
			failed++
		}
	}

	m.logger.WithFields(logrus.Fields{
		"created": len(indexes) - failed,
		"failed":  failed,
	}).Info("database indexes ensured")
	if failed > 0 {
		return fmt.Errorf("%d indexes could not be created", failed)
	}
	return nil
}

// SeedInitialData inserts development data. Existing rows are left alone.
func (m *Migration) SeedInitialData() error {
	m.logger.Info("seeding initial data")

	if err := m.seedCategories(); err != nil {
		return fmt.Errorf("failed to seed categories: %w", err)
	}
	if err := m.seedAdminUser(); err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}
	tenantID, err := m.seedTenant()
	if err != nil {
		return fmt.Errorf("failed to seed tenant: %w", err)
	}
	if err := m.seedProducts(tenantID); err != nil {
		return fmt.Errorf("failed to seed products: %w", err)
	}
	if err := m.seedCoupons(); err != nil {
		return fmt.Errorf("failed to seed coupons: %w", err)
	}

	m.logger.Info("initial data seeded")
	return nil
}

// seedCategories creates the default beverage category tree
func (m *Migration) seedCategories() error {
	var count int64
	if err := m.db.Model(&product.Category{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	tree := []struct {
		name     string
		slug     string
		children [][2]string
	}{
		{"Wine", "wine", [][2]string{{"Red Wine", "red-wine"}, {"White Wine", "white-wine"}, {"Sparkling", "sparkling"}}},
		{"Beer", "beer", [][2]string{{"Lager", "lager"}, {"Craft Beer", "craft-beer"}}},
		{"Spirits", "spirits", [][2]string{{"Whisky", "whisky"}, {"Gin", "gin"}, {"Vodka", "vodka"}, {"Rum", "rum"}}},
		{"Non-Alcoholic", "non-alcoholic", nil},
		{"Mixers", "mixers", nil},
	}

	return m.db.Transaction(func(tx *gorm.DB) error {
		for i, node := range tree {
			parent := product.Category{Name: node.name, Slug: node.slug, SortOrder: i + 1, IsActive: true}
			if err := tx.Create(&parent).Error; err != nil {
				return err
			}
			for j, child := range node.children {
				c := product.Category{Name: child[0], Slug: child[1], ParentID: &parent.ID, SortOrder: j + 1, IsActive: true}
				if err := tx.Create(&c).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// seedAdminUser creates the default admin account
func (m *Migration) seedAdminUser() error {
	return m.seedUser("admin@drinksharbour.com", "Admin123!", "Admin", "User", auth.RoleAdmin, nil)
}

// seedTenant creates a demo vendor and its vendor login
func (m *Migration) seedTenant() (uint, error) {
	var t tenant.Tenant
	err := m.db.Where("slug = ?", "harbour-cellars").First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		t = tenant.Tenant{
			Name:           "Harbour Cellars",
			Slug:           "harbour-cellars",
			Email:          "vendor@drinksharbour.com",
			Status:         tenant.StatusActive,
			RevenueModel:   tenant.RevenueModelCommission,
			CommissionRate: 0.15,
			PayoutEmail:    "payouts@harbourcellars.test",
		}
		err = m.db.Create(&t).Error
	}
	if err != nil {
		return 0, err
	}

	if err := m.seedUser("vendor@drinksharbour.com", "Vendor123!", "Harbour", "Cellars", auth.RoleVendor, &t.ID); err != nil {
		return 0, err
	}
	return t.ID, nil
}

func (m *Migration) seedUser(email, password, firstName, lastName, role string, tenantID *uint) error {
	var count int64
	if err := m.db.Model(&user.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	u := user.User{
		Email:           email,
		Password:        string(hashed),
		FirstName:       firstName,
		LastName:        lastName,
		Role:            role,
		TenantID:        tenantID,
		IsActive:        true,
		EmailVerified:   true,
		EmailVerifiedAt: &now,
	}
	if err := m.db.Create(&u).Error; err != nil {
		return err
	}

	m.logger.WithFields(logrus.Fields{"email": email, "role": role}).Info("seeded user")
	return nil
}

// seedProducts creates a few catalog products offered by the demo tenant
func (m *Migration) seedProducts(tenantID uint) error {
	var count int64
	if err := m.db.Model(&product.Product{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	categoryID := func(slug string) *uint {
		var c product.Category
		if err := m.db.Where("slug = ?", slug).First(&c).Error; err != nil {
			return nil
		}
		return &c.ID
	}

	seeds := []struct {
		product product.Product
		sku     string
		price   int64
		sizes   []product.SubProductSize
	}{
		{
			product: product.Product{
				Name: "Highland Single Malt 12 Year", Slug: "highland-single-malt-12-year",
				Description: "Honeyed single malt with a gentle peat finish.",
				Type:        product.TypeSpirit, CategoryID: categoryID("whisky"),
				OriginCountry: "Scotland", ABV: 40, VolumeML: 700, IsAlcoholic: true,
				Status: product.StatusActive, IsFeatured: true,
			},
			sku: "HC-HSM12", price: 5499,
			sizes: []product.SubProductSize{
				{Size: "700ml", VolumeML: 700, Stock: 40, LowStockThreshold: 5, IsAvailable: true},
				{Size: "1L", VolumeML: 1000, Price: 7299, Stock: 12, LowStockThreshold: 3, IsAvailable: true},
			},
		},
		{
			product: product.Product{
				Name: "Coastal Sauvignon Blanc", Slug: "coastal-sauvignon-blanc",
				Description: "Crisp white with citrus and cut grass.",
				Type:        product.TypeWine, CategoryID: categoryID("white-wine"),
				OriginCountry: "New Zealand", ABV: 12.5, VolumeML: 750, IsAlcoholic: true,
				Status: product.StatusActive,
			},
			sku: "HC-CSB", price: 1899,
			sizes: []product.SubProductSize{
				{Size: "750ml", VolumeML: 750, Stock: 60, LowStockThreshold: 10, IsAvailable: true},
			},
		},
		{
			product: product.Product{
				Name: "Harbour Pale Lager", Slug: "harbour-pale-lager",
				Description: "Clean, easy drinking lager.",
				Type:        product.TypeBeer, CategoryID: categoryID("lager"),
				OriginCountry: "Germany", ABV: 4.8, VolumeML: 330, IsAlcoholic: true,
				Status: product.StatusActive,
			},
			sku: "HC-HPL", price: 299,
			sizes: []product.SubProductSize{
				{Size: "330ml", VolumeML: 330, Stock: 200, LowStockThreshold: 24, IsAvailable: true},
				{Size: "6-pack", VolumeML: 1980, Price: 1599, Stock: 50, LowStockThreshold: 6, IsAvailable: true},
			},
		},
		{
			product: product.Product{
				Name: "Zero Proof Botanical Spritz", Slug: "zero-proof-botanical-spritz",
				Description: "Bittersweet alcohol-free aperitif.",
				Type:        product.TypeNonAlcoholic, CategoryID: categoryID("non-alcoholic"),
				ABV: 0, VolumeML: 500, IsAlcoholic: false,
				Status: product.StatusActive,
			},
			sku: "HC-ZPBS", price: 1299,
			sizes: []product.SubProductSize{
				{Size: "500ml", VolumeML: 500, Stock: 30, LowStockThreshold: 5, IsAvailable: true},
			},
		},
	}

	return m.db.Transaction(func(tx *gorm.DB) error {
		for _, seed := range seeds {
			p := seed.product
			minPrice, maxPrice, stock := seed.price, seed.price, 0
			for _, size := range seed.sizes {
				price := seed.price
				if size.Price > 0 {
					price = size.Price
				}
				if price < minPrice {
					minPrice = price
				}
				if price > maxPrice {
					maxPrice = price
				}
				stock += size.Stock
			}
			p.MinPrice, p.MaxPrice, p.TotalStock = minPrice, maxPrice, stock

			if err := tx.Create(&p).Error; err != nil {
				return err
			}
			sub := product.SubProduct{
				ProductID: p.ID,
				TenantID:  tenantID,
				SKU:       seed.sku,
				BasePrice: seed.price,
				Currency:  "USD",
				Status:    product.StatusActive,
				Sizes:     seed.sizes,
			}
			if err := tx.Create(&sub).Error; err != nil {
				return err
			}
		}
		m.logger.WithField("count", len(seeds)).Info("seeded products")
		return nil
	})
}

// seedCoupons creates a welcome code and a free shipping auto-apply rule
func (m *Migration) seedCoupons() error {
	var count int64
	if err := m.db.Model(&coupon.Coupon{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	coupons := []coupon.Coupon{
		{
			Code: "WELCOME10", Description: "10% off your first order",
			Type: coupon.TypePercentage, Value: 10, MaxDiscount: 2000,
			FirstOrderOnly: true, PerUserLimit: 1, IsActive: true,
		},
		{
			Code: "FREESHIP75", Description: "Free shipping over $75",
			Type: coupon.TypeFreeShipping, MinOrderAmount: 7500,
			AutoApply: true, IsActive: true,
		},
	}
	return m.db.Create(&coupons).Error
}

// DropAllTables removes every table, for test environments only
func (m *Migration) DropAllTables() error {
	models := Models()
	for i := len(models) - 1; i >= 0; i-- {
		if err := m.db.Migrator().DropTable(models[i]); err != nil {
			return fmt.Errorf("failed to drop table for %T: %w", models[i], err)
		}
	}
	return m.db.Migrator().DropTable("product_tags")
}
