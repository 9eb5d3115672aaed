// internal/domain/product/entity.go
package product

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ProductType is the beverage family of a product
type ProductType string

const (
	TypeWine         ProductType = "wine"
	TypeBeer         ProductType = "beer"
	TypeSpirit       ProductType = "spirit"
	TypeLiqueur      ProductType = "liqueur"
	TypeCider        ProductType = "cider"
	TypeNonAlcoholic ProductType = "non_alcoholic"
	TypeMixer        ProductType = "mixer"
	TypeOther        ProductType = "other"
)

// Status represents a catalog item's publication state
type Status string

const (
	StatusDraft    Status = "draft"
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// MaxNonAlcoholicABV is the highest ABV a non-alcoholic product may declare
const MaxNonAlcoholicABV = 0.5

// Popularity holds the analytics counters shared by taxonomy entities
type Popularity struct {
	ProductCount    int64   `gorm:"default:0" json:"product_count"`
	ViewCount       int64   `gorm:"default:0" json:"view_count"`
	SearchCount     int64   `gorm:"default:0" json:"search_count"`
	PopularityScore float64 `gorm:"default:0;index" json:"popularity_score"`
}

// Product is a catalog item. Sellable offers live on SubProduct.
type Product struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	Name             string         `gorm:"not null;size:255" json:"name"`
	Slug             string         `gorm:"uniqueIndex;not null;size:255" json:"slug"`
	Description      string         `gorm:"type:text" json:"description"`
	ShortDescription string         `gorm:"size:500" json:"short_description"`
	Type             ProductType    `gorm:"size:30;not null;index" json:"type"`
	CategoryID       *uint          `gorm:"index" json:"category_id"`
	BrandID          *uint          `gorm:"index" json:"brand_id"`
	OriginCountry    string         `gorm:"size:100" json:"origin_country"`
	Region           string         `gorm:"size:100" json:"region"`
	ABV              float64        `gorm:"type:decimal(5,2);default:0" json:"abv"`
	VolumeML         int            `gorm:"default:0" json:"volume_ml"`
	IsAlcoholic      bool           `gorm:"default:true" json:"is_alcoholic"`
	Images           []string       `gorm:"serializer:json;type:text" json:"images"`
	Status           Status         `gorm:"size:20;default:'draft';index" json:"status"`
	IsFeatured       bool           `gorm:"default:false;index" json:"is_featured"`
	MinPrice         int64          `gorm:"default:0;index" json:"min_price"`
	MaxPrice         int64          `gorm:"default:0" json:"max_price"`
	TotalStock       int            `gorm:"default:0" json:"total_stock"`
	ViewCount        int64          `gorm:"default:0" json:"view_count"`
	SalesCount       int64          `gorm:"default:0" json:"sales_count"`
	AverageRating    float64        `gorm:"default:0" json:"average_rating"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Category    *Category    `gorm:"foreignKey:CategoryID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"category,omitempty"`
	Brand       *Brand       `gorm:"foreignKey:BrandID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"brand,omitempty"`
	Tags        []Tag        `gorm:"many2many:product_tags;" json:"tags,omitempty"`
	SubProducts []SubProduct `gorm:"foreignKey:ProductID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"sub_products,omitempty"`
}

// SubProduct is one tenant's sellable offer of a catalog product
type SubProduct struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	ProductID   uint           `gorm:"not null;index" json:"product_id"`
	TenantID    uint           `gorm:"not null;index" json:"tenant_id"`
	SKU         string         `gorm:"uniqueIndex;not null;size:100" json:"sku"`
	BasePrice   int64          `gorm:"not null" json:"base_price"`
	TenantPrice int64          `gorm:"default:0" json:"tenant_price,omitempty"`
	SalePrice   *int64         `json:"sale_price,omitempty"`
	CostPrice   int64          `gorm:"default:0" json:"-"`
	Currency    string         `gorm:"size:3;default:'USD'" json:"currency"`
	Colors      []string       `gorm:"serializer:json;type:text" json:"colors,omitempty"`
	Status      Status         `gorm:"size:20;default:'active';index" json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Product *Product         `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Sizes   []SubProductSize `gorm:"foreignKey:SubProductID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"sizes"`
}

// SubProductSize is a size variant with its own stock and optional price
type SubProductSize struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	SubProductID      uint      `gorm:"not null;uniqueIndex:idx_sub_product_size" json:"sub_product_id"`
	Size              string    `gorm:"not null;size:50;uniqueIndex:idx_sub_product_size" json:"size"`
	VolumeML          int       `gorm:"default:0" json:"volume_ml"`
	Price             int64     `gorm:"default:0" json:"price"`
	Stock             int       `gorm:"default:0" json:"stock"`
	Reserved          int       `gorm:"default:0" json:"reserved"`
	LowStockThreshold int       `gorm:"default:5" json:"low_stock_threshold"`
	IsAvailable       bool      `gorm:"default:true" json:"is_available"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Category is a hierarchical product category
type Category struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"not null;size:255" json:"name"`
	Slug        string         `gorm:"uniqueIndex;not null;size:255" json:"slug"`
	Description string         `gorm:"size:500" json:"description"`
	Image       string         `gorm:"size:500" json:"image"`
	ParentID    *uint          `gorm:"index" json:"parent_id"`
	SortOrder   int            `gorm:"default:0" json:"sort_order"`
	IsActive    bool           `gorm:"default:true" json:"is_active"`
	Popularity  `gorm:"embedded"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Parent   *Category  `gorm:"foreignKey:ParentID" json:"parent,omitempty"`
	Children []Category `gorm:"foreignKey:ParentID" json:"children,omitempty"`
}

// Brand is a beverage producer or label
type Brand struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"not null;size:255" json:"name"`
	Slug        string         `gorm:"uniqueIndex;not null;size:255" json:"slug"`
	Description string         `gorm:"size:500" json:"description"`
	Logo        string         `gorm:"size:500" json:"logo"`
	Website     string         `gorm:"size:255" json:"website"`
	Country     string         `gorm:"size:100" json:"country"`
	IsActive    bool           `gorm:"default:true" json:"is_active"`
	IsFeatured  bool           `gorm:"default:false" json:"is_featured"`
	Popularity  `gorm:"embedded"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// Tag is a free-form label such as "peaty" or "gift"
type Tag struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"not null;size:100" json:"name"`
	Slug       string    `gorm:"uniqueIndex;not null;size:120" json:"slug"`
	IsActive   bool      `gorm:"default:true" json:"is_active"`
	Popularity `gorm:"embedded"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName overrides
func (Product) TableName() string        { return "products" }
func (SubProduct) TableName() string     { return "sub_products" }
func (SubProductSize) TableName() string { return "sub_product_sizes" }
func (Category) TableName() string       { return "categories" }
func (Brand) TableName() string          { return "brands" }
func (Tag) TableName() string            { return "tags" }

// BeforeSave enforces beverage attribute rules
func (p *Product) BeforeSave(tx *gorm.DB) error {
	return p.ValidateAttributes()
}

// ValidateAttributes checks ABV and volume constraints
func (p *Product) ValidateAttributes() error {
	if p.ABV < 0 || p.ABV > 100 {
		return fmt.Errorf("abv must be between 0 and 100")
	}
	if p.VolumeML < 0 {
		return fmt.Errorf("volume must not be negative")
	}
	if (p.Type == TypeNonAlcoholic || !p.IsAlcoholic) && p.ABV > MaxNonAlcoholicABV {
		return fmt.Errorf("non-alcoholic products cannot exceed %.1f%% abv", MaxNonAlcoholicABV)
	}
	return nil
}

// IsPurchasable reports whether the product is published
func (p *Product) IsPurchasable() bool {
	return p.Status == StatusActive
}

// PrimaryImage returns the first image, if any
func (p *Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// EffectivePrice returns the sale price when it undercuts the base price
func (sp *SubProduct) EffectivePrice() int64 {
	if sp.SalePrice != nil && *sp.SalePrice > 0 && *sp.SalePrice < sp.BasePrice {
		return *sp.SalePrice
	}
	return sp.BasePrice
}

// LowestUnitPrice returns the cheapest price any size sells at
func (sp *SubProduct) LowestUnitPrice() int64 {
	lowest := sp.EffectivePrice()
	for i := range sp.Sizes {
		if price := sp.Sizes[i].UnitPrice(sp); price < lowest {
			lowest = price
		}
	}
	return lowest
}

// FindSize returns the size variant with the given label
func (sp *SubProduct) FindSize(size string) *SubProductSize {
	for i := range sp.Sizes {
		if sp.Sizes[i].Size == size {
			return &sp.Sizes[i]
		}
	}
	return nil
}

// SupportsColor reports whether color is a valid option. Empty is always valid.
func (sp *SubProduct) SupportsColor(color string) bool {
	if color == "" {
		return true
	}
	for _, c := range sp.Colors {
		if c == color {
			return true
		}
	}
	return false
}

// BeforeSave validates stock bookkeeping
func (sz *SubProductSize) BeforeSave(tx *gorm.DB) error {
	if sz.Price < 0 {
		return fmt.Errorf("size price must not be negative")
	}
	if sz.Stock < 0 || sz.Reserved < 0 || sz.Reserved > sz.Stock {
		return fmt.Errorf("invalid stock for size %s", sz.Size)
	}
	return nil
}

// UnitPrice returns the size price, falling back to the sub-product price
func (sz *SubProductSize) UnitPrice(sp *SubProduct) int64 {
	if sz.Price > 0 {
		return sz.Price
	}
	return sp.EffectivePrice()
}

// Available returns the quantity that can still be sold
func (sz *SubProductSize) Available() int {
	if !sz.IsAvailable {
		return 0
	}
	if avail := sz.Stock - sz.Reserved; avail > 0 {
		return avail
	}
	return 0
}

// IsLowStock reports whether availability is at or below the threshold
func (sz *SubProductSize) IsLowStock() bool {
	return sz.Available() <= sz.LowStockThreshold
}
