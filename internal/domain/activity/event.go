// internal/domain/activity/event.go
package activity

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Event types recorded in the activity log
const (
	TypeSearch           = "search"
	TypeProductView      = "product_view"
	TypeBannerImpression = "banner_impression"
	TypeBannerClick      = "banner_click"
	TypeCouponValidated  = "coupon_validated"
)

// Entity types referenced by events
const (
	EntityProduct = "product"
	EntityBanner  = "banner"
	EntityCoupon  = "coupon"
)

// Event is one storefront interaction
type Event struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Type       string             `bson:"type" json:"type"`
	EntityType string             `bson:"entity_type,omitempty" json:"entity_type,omitempty"`
	EntityID   uint               `bson:"entity_id,omitempty" json:"entity_id,omitempty"`
	Query      string             `bson:"query,omitempty" json:"query,omitempty"`
	Placement  string             `bson:"placement,omitempty" json:"placement,omitempty"`
	UserID     *uint              `bson:"user_id,omitempty" json:"user_id,omitempty"`
	SessionID  string             `bson:"session_id,omitempty" json:"session_id,omitempty"`
	IP         string             `bson:"ip,omitempty" json:"-"`
	UserAgent  string             `bson:"user_agent,omitempty" json:"-"`
	Metadata   map[string]string  `bson:"metadata,omitempty" json:"metadata,omitempty"`
	OccurredAt time.Time          `bson:"occurred_at" json:"occurred_at"`
}

// SearchTerm is an aggregated search query count
type SearchTerm struct {
	Query string `bson:"_id" json:"query"`
	Count int64  `bson:"count" json:"count"`
}

// EntityCount is an aggregated event count for one entity
type EntityCount struct {
	EntityID uint  `bson:"_id" json:"entity_id"`
	Count    int64 `bson:"count" json:"count"`
}

// Store persists and aggregates activity events
type Store interface {
	Record(ctx context.Context, event Event) error
	TopSearches(ctx context.Context, since time.Time, limit int) ([]SearchTerm, error)
	CountByEntity(ctx context.Context, eventType, entityType string, since time.Time) ([]EntityCount, error)
}

// NormalizeQuery lowercases and collapses whitespace in a search query
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// Recorder writes events without blocking the caller
type Recorder struct {
	store   Store
	logger  *logrus.Entry
	timeout time.Duration
}

// NewRecorder creates a recorder over store
func NewRecorder(store Store, logger *logrus.Entry) *Recorder {
	if store == nil {
		store = NoopStore{}
	}
	return &Recorder{store: store, logger: logger, timeout: 3 * time.Second}
}

// Store returns the underlying store
func (r *Recorder) Store() Store {
	return r.store
}

// Record stores the event in the background. Failures are logged and dropped.
func (r *Recorder) Record(event Event) {
	if r == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if event.Type == TypeSearch {
		event.Query = NormalizeQuery(event.Query)
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := r.store.Record(ctx, event); err != nil && r.logger != nil {
			r.logger.WithError(err).WithField("event_type", event.Type).Warn("failed to record activity event")
		}
	}()
}

// NoopStore discards events. Used when Mongo is not configured.
type NoopStore struct{}

// Record discards the event
func (NoopStore) Record(ctx context.Context, event Event) error { return nil }

// TopSearches returns nothing
func (NoopStore) TopSearches(ctx context.Context, since time.Time, limit int) ([]SearchTerm, error) {
	return []SearchTerm{}, nil
}

// CountByEntity returns nothing
func (NoopStore) CountByEntity(ctx context.Context, eventType, entityType string, since time.Time) ([]EntityCount, error) {
	return []EntityCount{}, nil
}
