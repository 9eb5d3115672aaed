package product

import (
	"context"
	"testing"
	"time"

	"github.com/drinksharbour/drinksharbour-api/internal/config"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/inventory"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/tenant"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/logging"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	svc      *Service
	taxonomy *TaxonomyService
	tenant   tenant.Tenant
	markup   tenant.Tenant
	wine     Category
	red      Category
	brand    Brand
}

func testConfig() *config.Config {
	return &config.Config{
		Marketplace: config.MarketplaceConfig{
			Currency:       "USD",
			SearchCacheTTL: time.Minute,
		},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testdb.Open(t,
		&tenant.Tenant{}, &Category{}, &Brand{}, &Tag{}, &Product{}, &SubProduct{}, &SubProductSize{},
		&inventory.StockMovement{}, &inventory.StockAlert{},
	)
	_, rdb := testdb.Redis(t)

	logger := logging.Component(logging.Discard(), "product")
	svc := NewService(db, rdb, testConfig(), nil, logger)

	f := &fixture{db: db, svc: svc, taxonomy: NewTaxonomyService(db, svc)}

	f.tenant = tenant.Tenant{Name: "Harbour Cellars", Slug: "harbour-cellars", Email: "cellars@example.com",
		Status: tenant.StatusActive, RevenueModel: tenant.RevenueModelCommission, CommissionRate: 0.15}
	f.markup = tenant.Tenant{Name: "Dockside Spirits", Slug: "dockside-spirits", Email: "dock@example.com",
		Status: tenant.StatusActive, RevenueModel: tenant.RevenueModelMarkup, MarkupRate: 0.25}
	require.NoError(t, db.Create(&f.tenant).Error)
	require.NoError(t, db.Create(&f.markup).Error)

	ctx := context.Background()
	wine, err := f.taxonomy.CreateCategory(ctx, &CategoryRequest{Name: "Wine"})
	require.NoError(t, err)
	red, err := f.taxonomy.CreateCategory(ctx, &CategoryRequest{Name: "Red Wine", ParentID: &wine.ID})
	require.NoError(t, err)
	brand, err := f.taxonomy.CreateBrand(ctx, &BrandRequest{Name: "Domaine Hârbour"})
	require.NoError(t, err)
	f.wine, f.red, f.brand = *wine, *red, *brand

	return f
}

func (f *fixture) product(t *testing.T, name string, categoryID *uint, price int64, stock int) (*Product, *SubProduct) {
	t.Helper()
	ctx := context.Background()

	p, err := f.svc.CreateProduct(ctx, &ProductCreateRequest{
		Name:       name,
		Type:       TypeWine,
		CategoryID: categoryID,
		BrandID:    &f.brand.ID,
		ABV:        13.5,
		VolumeML:   750,
		Status:     StatusActive,
	})
	require.NoError(t, err)

	sp, err := f.svc.CreateSubProduct(ctx, nil, &SubProductCreateRequest{
		ProductID: p.ID,
		TenantID:  f.tenant.ID,
		SKU:       "sku-" + p.Slug,
		BasePrice: price,
		Sizes:     []SizeRequest{{Size: "750ml", VolumeML: 750, Stock: stock}},
	})
	require.NoError(t, err)
	return p, sp
}

func TestCreateProductGeneratesUniqueSlug(t *testing.T) {
	f := newFixture(t)

	first, _ := f.product(t, "Grand Vin 2015", &f.red.ID, 45000, 3)
	second, _ := f.product(t, "Grand Vin 2015", &f.red.ID, 47000, 3)

	assert.Equal(t, "grand-vin-2015", first.Slug)
	assert.Equal(t, "grand-vin-2015-2", second.Slug)
}

func TestCreateProductRejectsAlcoholInNonAlcoholic(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateProduct(context.Background(), &ProductCreateRequest{
		Name: "Zero Lager",
		Type: TypeNonAlcoholic,
		ABV:  4.2,
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
}

func TestSubProductAggregatesAndMarkupPricing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, _ := f.product(t, "Pauillac", &f.red.ID, 3000, 4)

	sp, err := f.svc.CreateSubProduct(ctx, nil, &SubProductCreateRequest{
		ProductID: p.ID,
		TenantID:  f.markup.ID,
		SKU:       "dock-pauillac",
		BasePrice: 2000,
		Sizes: []SizeRequest{
			{Size: "750ml", VolumeML: 750, Stock: 2},
			{Size: "6-pack", VolumeML: 4500, Price: 10000, Stock: 1},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2000), sp.TenantPrice)
	assert.Equal(t, int64(2500), sp.BasePrice)
	assert.Equal(t, int64(12500), sp.FindSize("6-pack").Price)

	reloaded, err := f.svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), reloaded.MinPrice)
	assert.Equal(t, int64(12500), reloaded.MaxPrice)
	assert.Equal(t, 7, reloaded.TotalStock)
}

func TestCreateSubProductRequiresActiveTenant(t *testing.T) {
	f := newFixture(t)
	p, _ := f.product(t, "Margaux", &f.red.ID, 3000, 1)

	require.NoError(t, f.db.Model(&f.markup).Update("status", tenant.StatusSuspended).Error)

	_, err := f.svc.CreateSubProduct(context.Background(), &f.markup.ID, &SubProductCreateRequest{
		ProductID: p.ID,
		SKU:       "x-1",
		BasePrice: 100,
		Sizes:     []SizeRequest{{Size: "750ml"}},
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeUnprocessable))
}

func TestUpdateSubProductScopedToTenant(t *testing.T) {
	f := newFixture(t)
	_, sp := f.product(t, "Saint-Julien", &f.red.ID, 3000, 1)

	price := int64(2800)
	_, err := f.svc.UpdateSubProduct(context.Background(), &f.markup.ID, sp.ID, &SubProductUpdateRequest{BasePrice: &price})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeForbidden))

	updated, err := f.svc.UpdateSubProduct(context.Background(), &f.tenant.ID, sp.ID, &SubProductUpdateRequest{BasePrice: &price})
	require.NoError(t, err)
	assert.Equal(t, price, updated.BasePrice)
}

func TestDecrementStockGuardsAvailability(t *testing.T) {
	f := newFixture(t)
	_, sp := f.product(t, "Sauternes", &f.wine.ID, 5000, 3)
	sizeID := sp.Sizes[0].ID

	err := f.db.Transaction(func(tx *gorm.DB) error {
		return DecrementStock(tx, StockChange{SizeID: sizeID, Quantity: 2, Reason: inventory.ReasonSale, ReferenceType: "order", ReferenceID: 7})
	})
	require.NoError(t, err)

	err = f.db.Transaction(func(tx *gorm.DB) error {
		return DecrementStock(tx, StockChange{SizeID: sizeID, Quantity: 2, Reason: inventory.ReasonSale})
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeUnprocessable))

	var size SubProductSize
	require.NoError(t, f.db.First(&size, sizeID).Error)
	assert.Equal(t, 1, size.Stock)

	var movements []inventory.StockMovement
	require.NoError(t, f.db.Where("sub_product_size_id = ?", sizeID).Order("id").Find(&movements).Error)
	require.Len(t, movements, 2)
	assert.Equal(t, inventory.ReasonRestock, movements[0].Reason)
	assert.Equal(t, -2, movements[1].Delta())
	assert.Equal(t, uint(7), movements[1].ReferenceID)

	var alerts []inventory.StockAlert
	require.NoError(t, f.db.Where("sub_product_size_id = ?", sizeID).Find(&alerts).Error)
	require.Len(t, alerts, 1)
	assert.Equal(t, inventory.AlertLowStock, alerts[0].AlertType)

	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		return RestoreStock(tx, StockChange{SizeID: sizeID, Quantity: 2, Reason: inventory.ReasonCancellation})
	}))
	require.NoError(t, f.db.First(&size, sizeID).Error)
	assert.Equal(t, 3, size.Stock)
}

func TestUpdateSizeStockRejectsBelowReserved(t *testing.T) {
	f := newFixture(t)
	_, sp := f.product(t, "Rioja", &f.wine.ID, 2000, 5)
	sizeID := sp.Sizes[0].ID
	require.NoError(t, f.db.Model(&SubProductSize{}).Where("id = ?", sizeID).UpdateColumn("reserved", 3).Error)

	stock := 2
	_, err := f.svc.UpdateSizeStock(context.Background(), nil, 1, sizeID, &StockUpdateRequest{Stock: &stock})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))

	delta := 10
	size, err := f.svc.UpdateSizeStock(context.Background(), nil, 1, sizeID, &StockUpdateRequest{Delta: &delta, Reason: inventory.ReasonRestock})
	require.NoError(t, err)
	assert.Equal(t, 15, size.Stock)
}

func TestSearchFiltersFacetsAndCaches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.product(t, "Margaux Reserve", &f.red.ID, 9000, 2)
	f.product(t, "Margaux Blanc", &f.wine.ID, 6000, 0)
	f.product(t, "Highland Malt", nil, 5000, 4)

	res, err := f.svc.Search(ctx, &SearchRequest{Query: "  MARGAUX ", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Pagination.Total)
	assert.Equal(t, "margaux", res.Query)
	require.Len(t, res.Facets["categories"], 2)

	res, err = f.svc.Search(ctx, &SearchRequest{Category: f.wine.Slug, InStock: true})
	require.NoError(t, err)
	require.Len(t, res.Products, 1)
	assert.Equal(t, "Margaux Reserve", res.Products[0].Name)

	res, err = f.svc.Search(ctx, &SearchRequest{Sort: "price_asc", MaxPrice: 8000})
	require.NoError(t, err)
	require.Len(t, res.Products, 2)
	assert.Equal(t, "Highland Malt", res.Products[0].Name)

	keys, err := f.svc.redisClient.Keys(ctx, searchCachePrefix+"*").Result()
	require.NoError(t, err)
	assert.Len(t, keys, 3)

	f.product(t, "Margaux Second", &f.red.ID, 7000, 1)
	keys, err = f.svc.redisClient.Keys(ctx, searchCachePrefix+"*").Result()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestSearchCountsMatchingTags(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tag, err := f.taxonomy.CreateTag(ctx, &TagRequest{Name: "Peaty"})
	require.NoError(t, err)
	assert.Equal(t, "peaty", tag.Name)

	_, err = f.svc.Search(ctx, &SearchRequest{Query: "peaty"})
	require.NoError(t, err)

	var reloaded Tag
	require.NoError(t, f.db.First(&reloaded, tag.ID).Error)
	assert.Equal(t, int64(1), reloaded.SearchCount)
}

func TestGetProductBySlugCountsViews(t *testing.T) {
	f := newFixture(t)
	p, _ := f.product(t, "Barolo", &f.red.ID, 8000, 1)

	got, err := f.svc.GetProductBySlug(context.Background(), p.Slug, nil, "sess")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ViewCount)
	require.Len(t, got.SubProducts, 1)

	var category Category
	require.NoError(t, f.db.First(&category, f.red.ID).Error)
	assert.Equal(t, int64(1), category.ViewCount)

	_, err = f.svc.GetProductBySlug(context.Background(), "missing", nil, "")
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}

func TestOfferForRejectsUnknownSize(t *testing.T) {
	f := newFixture(t)
	_, sp := f.product(t, "Chianti", &f.red.ID, 2500, 1)

	offer, err := f.svc.GetOffer(context.Background(), sp.ID, "750ml")
	require.NoError(t, err)
	assert.Equal(t, int64(2500), offer.UnitPrice())

	_, err = f.svc.GetOffer(context.Background(), sp.ID, "1.5l")
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
}

func TestCategoryCycleRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.taxonomy.UpdateCategory(ctx, f.wine.ID, &CategoryRequest{Name: "Wine", ParentID: &f.red.ID})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))

	tree, err := f.taxonomy.GetCategoryTree(ctx, false)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, "red-wine", tree[0].Children[0].Slug)
}

func TestRecalculatePopularity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, _ := f.product(t, "Pomerol", &f.red.ID, 9000, 1)
	require.NoError(t, f.db.Model(&Product{}).Where("id = ?", p.ID).UpdateColumn("sales_count", 4).Error)
	require.NoError(t, f.db.Model(&Category{}).Where("id = ?", f.red.ID).UpdateColumns(map[string]interface{}{"view_count": 10, "search_count": 3}).Error)

	require.NoError(t, f.taxonomy.RecalculatePopularity(ctx))

	var category Category
	require.NoError(t, f.db.First(&category, f.red.ID).Error)
	assert.Equal(t, int64(1), category.ProductCount)
	assert.InDelta(t, 3*4+10+2*3, category.PopularityScore, 0.001)

	var brand Brand
	require.NoError(t, f.db.First(&brand, f.brand.ID).Error)
	assert.Equal(t, int64(1), brand.ProductCount)
	assert.Equal(t, "domaine-harbour", brand.Slug)
}
