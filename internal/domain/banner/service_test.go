package banner

import (
	"context"
	"testing"
	"time"

	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/logging"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(v bool) *bool { return &v }

func TestByPlacementFiltersOrdersAndCaches(t *testing.T) {
	db := testdb.Open(t, &Banner{})
	_, rdb := testdb.Redis(t)
	svc := NewService(db, rdb, nil, logging.Component(logging.Discard(), "banner"))
	ctx := context.Background()
	past := time.Now().UTC().Add(-2 * time.Hour)
	hourAgo := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)

	low, err := svc.Create(ctx, &Request{Title: "Low", ImageURL: "https://cdn.example.com/low.jpg", Placement: PlacementHomeHero, Priority: 1})
	require.NoError(t, err)
	high, err := svc.Create(ctx, &Request{Title: "High", ImageURL: "https://cdn.example.com/high.jpg", Placement: PlacementHomeHero, Priority: 10})
	require.NoError(t, err)
	_, err = svc.Create(ctx, &Request{Title: "Expired", ImageURL: "https://cdn.example.com/x.jpg", Placement: PlacementHomeHero, StartsAt: &past, EndsAt: &hourAgo})
	require.NoError(t, err)
	_, err = svc.Create(ctx, &Request{Title: "Upcoming", ImageURL: "https://cdn.example.com/u.jpg", Placement: PlacementHomeHero, StartsAt: &future})
	require.NoError(t, err)
	_, err = svc.Create(ctx, &Request{Title: "Off", ImageURL: "https://cdn.example.com/o.jpg", Placement: PlacementHomeHero, IsActive: boolPtr(false)})
	require.NoError(t, err)
	_, err = svc.Create(ctx, &Request{Title: "Checkout", ImageURL: "https://cdn.example.com/c.jpg", Placement: PlacementCheckout})
	require.NoError(t, err)

	banners, err := svc.ByPlacement(ctx, "home_hero", nil, 0)
	require.NoError(t, err)
	require.Len(t, banners, 2)
	assert.Equal(t, high.ID, banners[0].ID)
	assert.Equal(t, low.ID, banners[1].ID)

	require.NoError(t, db.Model(&Banner{}).Where("id = ?", low.ID).Update("title", "Renamed").Error)
	cached, err := svc.ByPlacement(ctx, "home_hero", nil, 0)
	require.NoError(t, err)
	assert.Equal(t, "Low", cached[1].Title)

	_, err = svc.ByPlacement(ctx, "sidebar", nil, 0)
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
}

func TestImpressionsClicksAndStats(t *testing.T) {
	db := testdb.Open(t, &Banner{})
	_, rdb := testdb.Redis(t)
	svc := NewService(db, rdb, nil, logging.Component(logging.Discard(), "banner"))
	ctx := context.Background()

	b, err := svc.Create(ctx, &Request{Title: "Promo", ImageURL: "https://cdn.example.com/p.jpg", Placement: PlacementPopup})
	require.NoError(t, err)

	for i := 0; i < 8; i++ {
		require.NoError(t, svc.RecordImpression(ctx, b.ID, Interaction{SessionID: "s"}))
	}
	require.NoError(t, svc.RecordClick(ctx, b.ID, Interaction{SessionID: "s"}))
	require.NoError(t, svc.RecordClick(ctx, b.ID, Interaction{SessionID: "s"}))

	stats, err := svc.Stats(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(8), stats.Impressions)
	assert.Equal(t, int64(2), stats.Clicks)
	assert.InDelta(t, 25.0, stats.CTR, 0.001)
	assert.True(t, stats.Live)

	err = svc.RecordClick(ctx, 999, Interaction{})
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}
