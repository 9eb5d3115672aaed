// internal/domain/banner/service.go
package banner

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/drinksharbour/drinksharbour-api/internal/domain/activity"
	redisdb "github.com/drinksharbour/drinksharbour-api/internal/infrastructure/database/redis"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	placementCacheTTL    = 60 * time.Second
	placementCachePrefix = "banners:placement:"
	defaultPlacementSize = 5
)

// Service handles banner business logic
type Service struct {
	db          *gorm.DB
	redisClient *redis.Client
	activity    *activity.Recorder
	logger      *logrus.Entry
	now         func() time.Time
}

// NewService creates a new banner service
func NewService(db *gorm.DB, redisClient *redis.Client, recorder *activity.Recorder, logger *logrus.Entry) *Service {
	return &Service{
		db:          db,
		redisClient: redisClient,
		activity:    recorder,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Request represents an admin banner definition
type Request struct {
	Title            string     `json:"title" binding:"required,max=200"`
	Subtitle         string     `json:"subtitle" binding:"max=300"`
	ImageURL         string     `json:"image_url" binding:"required,url"`
	MobileImageURL   string     `json:"mobile_image_url" binding:"omitempty,url"`
	LinkURL          string     `json:"link_url" binding:"max=500"`
	Placement        Placement  `json:"placement" binding:"required,placement"`
	Priority         int        `json:"priority"`
	StartsAt         *time.Time `json:"starts_at"`
	EndsAt           *time.Time `json:"ends_at"`
	IsActive         *bool      `json:"is_active"`
	TargetCategoryID *uint      `json:"target_category_id"`
}

// Interaction carries the caller context of an impression or click
type Interaction struct {
	UserID    *uint
	SessionID string
	IP        string
	UserAgent string
}

// Stats summarizes banner performance
type Stats struct {
	BannerID    uint      `json:"banner_id"`
	Title       string    `json:"title"`
	Placement   Placement `json:"placement"`
	Impressions int64     `json:"impressions"`
	Clicks      int64     `json:"clicks"`
	CTR         float64   `json:"ctr"`
	Live        bool      `json:"live"`
}

// ByPlacement returns live banners for a placement, highest priority first
func (s *Service) ByPlacement(ctx context.Context, placement string, categoryID *uint, limit int) ([]Banner, error) {
	if !ValidPlacement(placement) {
		return nil, apperrors.Newf(apperrors.CodeValidation, "unknown placement %q", placement)
	}
	if limit <= 0 || limit > 20 {
		limit = defaultPlacementSize
	}

	key := placementCachePrefix + placement + ":" + strconv.Itoa(limit)
	if categoryID != nil {
		key += ":c" + strconv.FormatUint(uint64(*categoryID), 10)
	}

	var banners []Banner
	err := redisdb.GetJSON(ctx, s.redisClient, key, &banners)
	if err == nil {
		return banners, nil
	}
	if !errors.Is(err, redisdb.ErrCacheMiss) {
		s.logger.WithError(err).Warn("banner cache read failed")
	}

	now := s.now()
	query := s.db.WithContext(ctx).
		Where("placement = ? AND is_active = ?", placement, true).
		Where("starts_at IS NULL OR starts_at <= ?", now).
		Where("ends_at IS NULL OR ends_at > ?", now)
	if categoryID != nil {
		query = query.Where("target_category_id IS NULL OR target_category_id = ?", *categoryID)
	}

	banners = []Banner{}
	if err := query.Order("priority DESC, id DESC").Limit(limit).Find(&banners).Error; err != nil {
		return nil, fmt.Errorf("failed to load banners: %w", err)
	}

	if err := redisdb.SetJSON(ctx, s.redisClient, key, banners, placementCacheTTL); err != nil {
		s.logger.WithError(err).Warn("banner cache write failed")
	}
	return banners, nil
}

// RecordImpression increments the impression counter and logs an activity event
func (s *Service) RecordImpression(ctx context.Context, id uint, in Interaction) error {
	return s.track(ctx, id, "impressions", activity.TypeBannerImpression, in)
}

// RecordClick increments the click counter and logs an activity event
func (s *Service) RecordClick(ctx context.Context, id uint, in Interaction) error {
	return s.track(ctx, id, "clicks", activity.TypeBannerClick, in)
}

func (s *Service) track(ctx context.Context, id uint, column, eventType string, in Interaction) error {
	var b Banner
	if err := s.db.WithContext(ctx).Select("id", "placement").First(&b, id).Error; err != nil {
		return apperrors.FromGorm(err, "banner")
	}

	if err := s.db.WithContext(ctx).Model(&Banner{}).
		Where("id = ?", id).
		UpdateColumn(column, gorm.Expr(column+" + 1")).Error; err != nil {
		return fmt.Errorf("failed to record banner %s: %w", column, err)
	}

	s.activity.Record(activity.Event{
		Type:       eventType,
		EntityType: activity.EntityBanner,
		EntityID:   id,
		Placement:  string(b.Placement),
		UserID:     in.UserID,
		SessionID:  in.SessionID,
		IP:         in.IP,
		UserAgent:  in.UserAgent,
	})
	return nil
}

// Stats returns counters and CTR for a banner
func (s *Service) Stats(ctx context.Context, id uint) (*Stats, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Stats{
		BannerID:    b.ID,
		Title:       b.Title,
		Placement:   b.Placement,
		Impressions: b.Impressions,
		Clicks:      b.Clicks,
		CTR:         b.CTR(),
		Live:        b.IsActive && inWindow(b, s.now()),
	}, nil
}

// Get returns a banner by id
func (s *Service) Get(ctx context.Context, id uint) (*Banner, error) {
	var b Banner
	if err := s.db.WithContext(ctx).First(&b, id).Error; err != nil {
		return nil, apperrors.FromGorm(err, "banner")
	}
	return &b, nil
}

// List returns banners for the admin console
func (s *Service) List(ctx context.Context, placement string) ([]Banner, error) {
	query := s.db.WithContext(ctx)
	if placement != "" {
		query = query.Where("placement = ?", placement)
	}
	banners := []Banner{}
	if err := query.Order("placement ASC, priority DESC").Find(&banners).Error; err != nil {
		return nil, fmt.Errorf("failed to list banners: %w", err)
	}
	return banners, nil
}

// Create adds a banner
func (s *Service) Create(ctx context.Context, req *Request) (*Banner, error) {
	b := &Banner{IsActive: true}
	if err := apply(b, req); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(b).Error; err != nil {
		return nil, fmt.Errorf("failed to create banner: %w", err)
	}
	s.invalidate(ctx)
	return b, nil
}

// Update replaces a banner definition
func (s *Service) Update(ctx context.Context, id uint, req *Request) (*Banner, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(b, req); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Save(b).Error; err != nil {
		return nil, fmt.Errorf("failed to update banner: %w", err)
	}
	s.invalidate(ctx)
	return b, nil
}

// Delete soft-deletes a banner
func (s *Service) Delete(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&Banner{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete banner: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("banner")
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := redisdb.DeleteByPattern(ctx, s.redisClient, placementCachePrefix+"*"); err != nil {
		s.logger.WithError(err).Warn("failed to invalidate banner cache")
	}
}

func apply(b *Banner, req *Request) error {
	if !ValidPlacement(string(req.Placement)) {
		return apperrors.Newf(apperrors.CodeValidation, "unknown placement %q", req.Placement)
	}
	if req.StartsAt != nil && req.EndsAt != nil && !req.EndsAt.After(*req.StartsAt) {
		return apperrors.New(apperrors.CodeValidation, "ends_at must be after starts_at")
	}

	b.Title = req.Title
	b.Subtitle = req.Subtitle
	b.ImageURL = req.ImageURL
	b.MobileImageURL = req.MobileImageURL
	b.LinkURL = req.LinkURL
	b.Placement = req.Placement
	b.Priority = req.Priority
	b.StartsAt = req.StartsAt
	b.EndsAt = req.EndsAt
	b.TargetCategoryID = req.TargetCategoryID
	if req.IsActive != nil {
		b.IsActive = *req.IsActive
	}
	return nil
}

func inWindow(b *Banner, now time.Time) bool {
	if b.StartsAt != nil && now.Before(*b.StartsAt) {
		return false
	}
	if b.EndsAt != nil && !now.Before(*b.EndsAt) {
		return false
	}
	return true
}
