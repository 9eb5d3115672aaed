// internal/domain/upload/entity.go
package upload

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Upload represents an image stored on the CDN or local disk
type Upload struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	PublicID     string `gorm:"not null;size:255;uniqueIndex" json:"public_id"`
	Provider     string `gorm:"not null;size:20" json:"provider"`
	Folder       string `gorm:"size:100;index" json:"folder"`
	URL          string `gorm:"not null;size:500" json:"url"`
	OriginalName string `gorm:"not null;size:255" json:"original_name"`
	MimeType     string `gorm:"not null;size:100" json:"mime_type"`
	Size         int64  `gorm:"not null" json:"size"`

	// Image specific fields
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`

	UploadedBy uint `gorm:"not null;index" json:"uploaded_by"`

	// Timestamps
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName overrides the table name
func (Upload) TableName() string { return "uploads" }

// GetFormattedSize returns human-readable file size
func (u *Upload) GetFormattedSize() string {
	const unit = 1024
	if u.Size < unit {
		return fmt.Sprintf("%d B", u.Size)
	}

	div, exp := int64(unit), 0
	for n := u.Size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(u.Size)/float64(div), "KMGTPE"[exp])
}

// GetDimensions returns image dimensions as string
func (u *Upload) GetDimensions() string {
	if u.Width > 0 && u.Height > 0 {
		return fmt.Sprintf("%dx%d", u.Width, u.Height)
	}
	return ""
}

// EncodePublicID makes a public id safe for a single URL path segment
func EncodePublicID(publicID string) string {
	return strings.ReplaceAll(publicID, "/", ":")
}

// DecodePublicID reverses EncodePublicID
func DecodePublicID(segment string) string {
	return strings.ReplaceAll(segment, ":", "/")
}
