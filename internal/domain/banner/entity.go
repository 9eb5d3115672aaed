// internal/domain/banner/entity.go
package banner

import (
	"time"

	"gorm.io/gorm"
)

// Placement is a storefront slot a banner renders in
type Placement string

const (
	PlacementHomeHero       Placement = "home_hero"
	PlacementHomeSecondary  Placement = "home_secondary"
	PlacementCategoryTop    Placement = "category_top"
	PlacementProductSidebar Placement = "product_sidebar"
	PlacementCheckout       Placement = "checkout"
	PlacementPopup          Placement = "popup"
)

// Placements lists every valid placement
var Placements = []Placement{
	PlacementHomeHero,
	PlacementHomeSecondary,
	PlacementCategoryTop,
	PlacementProductSidebar,
	PlacementCheckout,
	PlacementPopup,
}

// ValidPlacement reports whether p is a known placement
func ValidPlacement(p string) bool {
	for _, v := range Placements {
		if string(v) == p {
			return true
		}
	}
	return false
}

// Banner is a promotional creative
type Banner struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	Title            string         `gorm:"not null;size:200" json:"title"`
	Subtitle         string         `gorm:"size:300" json:"subtitle"`
	ImageURL         string         `gorm:"not null;size:500" json:"image_url"`
	MobileImageURL   string         `gorm:"size:500" json:"mobile_image_url"`
	LinkURL          string         `gorm:"size:500" json:"link_url"`
	Placement        Placement      `gorm:"size:30;not null;index" json:"placement"`
	Priority         int            `gorm:"default:0;index" json:"priority"`
	StartsAt         *time.Time     `json:"starts_at"`
	EndsAt           *time.Time     `json:"ends_at"`
	IsActive         bool           `gorm:"not null;index" json:"is_active"`
	TargetCategoryID *uint          `gorm:"index" json:"target_category_id"`
	Impressions      int64          `gorm:"default:0" json:"impressions"`
	Clicks           int64          `gorm:"default:0" json:"clicks"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName overrides the table name
func (Banner) TableName() string {
	return "banners"
}

// CTR returns the click-through rate as a percentage
func (b *Banner) CTR() float64 {
	if b.Impressions == 0 {
		return 0
	}
	return float64(b.Clicks) / float64(b.Impressions) * 100
}
