// internal/domain/cart/service.go
package cart

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/drinksharbour/drinksharbour-api/internal/config"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/flashsale"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/product"
	redisdb "github.com/drinksharbour/drinksharbour-api/internal/infrastructure/database/redis"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Sync modes
const (
	ModeReplace = "replace"
	ModeMerge   = "merge"
)

// Adjustment reasons
const (
	ReasonClampedToStock = "clamped_to_stock"
	ReasonClampedToLimit = "clamped_to_limit"
	ReasonOutOfStock     = "out_of_stock"
	ReasonUnavailable    = "unavailable"
)

// Service handles cart business logic
type Service struct {
	db          *gorm.DB
	redisClient *redis.Client
	config      *config.Config
	logger      *logrus.Entry
	now         func() time.Time
}

// NewService creates a new cart service
func NewService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, logger *logrus.Entry) *Service {
	return &Service{
		db:          db,
		redisClient: redisClient,
		config:      cfg,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Owner identifies whose cart is addressed: a user, or a guest session
type Owner struct {
	UserID    *uint
	SessionID string
}

// IsGuest reports whether the owner is an anonymous session
func (o Owner) IsGuest() bool {
	return o.UserID == nil
}

// ItemRequest describes a cart line submitted by a client
type ItemRequest struct {
	ProductID    uint   `json:"product_id" binding:"required"`
	SubProductID uint   `json:"sub_product_id" binding:"required"`
	Size         string `json:"size" binding:"required,max=50"`
	VendorID     uint   `json:"vendor_id" binding:"required"`
	Color        string `json:"color" binding:"max=50"`
	Quantity     int    `json:"quantity" binding:"required,min=1,max=99"`
}

// SyncRequest replaces or merges the server cart with client state
type SyncRequest struct {
	Items []ItemRequest `json:"items" binding:"max=100,dive"`
	Mode  string        `json:"mode" binding:"omitempty,oneof=replace merge"`
}

// UpdateItemRequest sets a line quantity. Zero removes the line.
type UpdateItemRequest struct {
	Quantity int `json:"quantity" binding:"min=0,max=99"`
}

// Adjustment reports a line the server changed while validating
type Adjustment struct {
	Key       string `json:"key"`
	Requested int    `json:"requested"`
	Granted   int    `json:"granted"`
	Reason    string `json:"reason"`
}

// ItemView is a priced cart line
type ItemView struct {
	Key              string  `json:"key"`
	ProductID        uint    `json:"product_id"`
	SubProductID     uint    `json:"sub_product_id"`
	SizeID           uint    `json:"size_id"`
	Size             string  `json:"size"`
	VendorID         uint    `json:"vendor_id"`
	Color            string  `json:"color,omitempty"`
	Quantity         int     `json:"quantity"`
	UnitPrice        int64   `json:"unit_price"`
	RegularPrice     int64   `json:"regular_price"`
	LineTotal        int64   `json:"line_total"`
	Available        int     `json:"available"`
	ProductName      string  `json:"product_name"`
	ProductSlug      string  `json:"product_slug"`
	SKU              string  `json:"sku"`
	Image            string  `json:"image,omitempty"`
	CategoryID       *uint   `json:"category_id,omitempty"`
	ABV              float64 `json:"abv"`
	VolumeML         int     `json:"volume_ml"`
	FlashSaleItemID  *uint   `json:"flash_sale_item_id,omitempty"`
	PerCustomerLimit int     `json:"per_customer_limit,omitempty"`
}

// CartResponse is a priced cart
type CartResponse struct {
	SessionID     string       `json:"session_id,omitempty"`
	UserID        *uint        `json:"user_id,omitempty"`
	Items         []ItemView   `json:"items"`
	ItemCount     int          `json:"item_count"`
	TotalQuantity int          `json:"total_quantity"`
	Subtotal      int64        `json:"subtotal"`
	Currency      string       `json:"currency"`
	ExpiresAt     time.Time    `json:"expires_at"`
	Adjustments   []Adjustment `json:"adjustments,omitempty"`
}

// GetCart returns the owner's cart re-priced from the current catalog.
// Reading does not extend the cart; ExpiresAt is the stored expiry.
func (s *Service) GetCart(ctx context.Context, owner Owner) (*CartResponse, error) {
	lines, expiresAt, err := s.loadCart(ctx, owner)
	if err != nil {
		return nil, err
	}

	resp, kept, changed, err := s.price(ctx, owner, lines)
	if err != nil {
		return nil, err
	}
	if changed {
		if err := s.saveLines(ctx, owner, kept); err != nil {
			return nil, err
		}
		expiresAt = time.Time{}
	}
	if expiresAt.IsZero() {
		expiresAt = s.now().Add(s.config.Marketplace.CartTTL)
	}
	resp.ExpiresAt = expiresAt
	return resp, nil
}

// Sync stores client cart state. Merge adds quantities of identical keys; replace overwrites.
func (s *Service) Sync(ctx context.Context, owner Owner, req *SyncRequest) (*CartResponse, error) {
	incoming := make([]Line, 0, len(req.Items))
	for _, it := range req.Items {
		incoming = append(incoming, lineFromRequest(it, s.now()))
	}
	incoming = mergeLines(nil, incoming)

	lines := incoming
	if req.Mode == ModeMerge {
		existing, err := s.loadLines(ctx, owner)
		if err != nil {
			return nil, err
		}
		lines = mergeLines(existing, incoming)
	}

	return s.store(ctx, owner, lines)
}

// AddItem adds a line, incrementing the quantity when the key already exists
func (s *Service) AddItem(ctx context.Context, owner Owner, req *ItemRequest) (*CartResponse, error) {
	existing, err := s.loadLines(ctx, owner)
	if err != nil {
		return nil, err
	}

	line := lineFromRequest(*req, s.now())
	if _, err := s.validateLine(ctx, line); err != nil {
		return nil, err
	}

	return s.store(ctx, owner, mergeLines(existing, []Line{line}))
}

// UpdateItem sets the quantity of an existing line
func (s *Service) UpdateItem(ctx context.Context, owner Owner, key string, quantity int) (*CartResponse, error) {
	lines, err := s.loadLines(ctx, owner)
	if err != nil {
		return nil, err
	}

	found := false
	updated := lines[:0]
	for _, l := range lines {
		if l.Key == key {
			found = true
			if quantity == 0 {
				continue
			}
			l.Quantity = ClampQuantity(quantity)
		}
		updated = append(updated, l)
	}
	if !found {
		return nil, apperrors.NotFound("cart item")
	}

	return s.store(ctx, owner, updated)
}

// RemoveItem deletes a line
func (s *Service) RemoveItem(ctx context.Context, owner Owner, key string) (*CartResponse, error) {
	return s.UpdateItem(ctx, owner, key, 0)
}

// Clear empties the cart
func (s *Service) Clear(ctx context.Context, owner Owner) error {
	if owner.IsGuest() {
		if owner.SessionID == "" {
			return nil
		}
		if err := s.redisClient.Del(ctx, sessionKey(owner.SessionID)).Err(); err != nil {
			return fmt.Errorf("failed to clear guest cart: %w", err)
		}
		return nil
	}
	return s.ClearUserCart(s.db.WithContext(ctx), *owner.UserID)
}

// ClearUserCart deletes a user's persisted cart using db, which may be a transaction
func (s *Service) ClearUserCart(db *gorm.DB, userID uint) error {
	if err := db.Where("cart_id IN (SELECT id FROM carts WHERE user_id = ?)", userID).Delete(&CartItem{}).Error; err != nil {
		return fmt.Errorf("failed to clear cart items: %w", err)
	}
	if err := db.Where("user_id = ?", userID).Delete(&Cart{}).Error; err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// MergeGuestCart folds a guest session cart into the user's cart after login
func (s *Service) MergeGuestCart(ctx context.Context, userID uint, sessionID string) (*CartResponse, error) {
	user := Owner{UserID: &userID}
	if sessionID == "" {
		return s.GetCart(ctx, user)
	}

	guest := Owner{SessionID: sessionID}
	guestLines, err := s.loadLines(ctx, guest)
	if err != nil {
		return nil, err
	}
	if len(guestLines) == 0 {
		return s.GetCart(ctx, user)
	}

	userLines, err := s.loadLines(ctx, user)
	if err != nil {
		return nil, err
	}

	resp, err := s.store(ctx, user, mergeLines(userLines, guestLines))
	if err != nil {
		return nil, err
	}
	if err := s.Clear(ctx, guest); err != nil {
		s.logger.WithError(err).WithField("session_id", sessionID).Warn("failed to clear merged guest cart")
	}
	return resp, nil
}

// store prices and clamps lines, persists the result and returns the priced cart
func (s *Service) store(ctx context.Context, owner Owner, lines []Line) (*CartResponse, error) {
	resp, kept, _, err := s.price(ctx, owner, lines)
	if err != nil {
		return nil, err
	}
	if err := s.saveLines(ctx, owner, kept); err != nil {
		return nil, err
	}
	resp.ExpiresAt = s.now().Add(s.config.Marketplace.CartTTL)
	return resp, nil
}

// validateLine checks a single line against the catalog
func (s *Service) validateLine(ctx context.Context, l Line) (*product.Offer, error) {
	offers, err := product.LoadOffers(s.db.WithContext(ctx), []uint{l.SubProductID})
	if err != nil {
		return nil, err
	}
	sp, ok := offers[l.SubProductID]
	if !ok {
		return nil, apperrors.NotFound("sub-product")
	}
	return matchOffer(sp, l)
}

func matchOffer(sp *product.SubProduct, l Line) (*product.Offer, error) {
	if sp.ProductID != l.ProductID || sp.TenantID != l.VendorID {
		return nil, apperrors.New(apperrors.CodeValidation, "sub-product does not match product and vendor")
	}
	if !sp.SupportsColor(l.Color) {
		return nil, apperrors.Newf(apperrors.CodeValidation, "color %q is not offered", l.Color)
	}
	return product.OfferFor(sp, l.Size)
}

// price resolves every line against the catalog, dropping or clamping lines that cannot be sold.
// It returns the priced response, the surviving lines and whether anything changed.
func (s *Service) price(ctx context.Context, owner Owner, lines []Line) (*CartResponse, []Line, bool, error) {
	resp := &CartResponse{
		SessionID: owner.SessionID,
		UserID:    owner.UserID,
		Items:     []ItemView{},
		Currency:  s.config.Marketplace.Currency,
	}
	if len(lines) == 0 {
		return resp, lines, false, nil
	}

	ids := make([]uint, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.SubProductID)
	}
	db := s.db.WithContext(ctx)
	offers, err := product.LoadOffers(db, ids)
	if err != nil {
		return nil, nil, false, err
	}
	flashItems, err := flashsale.ActiveItemsTx(db, ids, s.now())
	if err != nil {
		return nil, nil, false, err
	}

	changed := false
	kept := make([]Line, 0, len(lines))
	for _, l := range lines {
		sp, ok := offers[l.SubProductID]
		if !ok {
			resp.Adjustments = append(resp.Adjustments, Adjustment{Key: l.Key, Requested: l.Quantity, Reason: ReasonUnavailable})
			changed = true
			continue
		}
		offer, err := matchOffer(sp, l)
		if err != nil {
			resp.Adjustments = append(resp.Adjustments, Adjustment{Key: l.Key, Requested: l.Quantity, Reason: ReasonUnavailable})
			changed = true
			continue
		}

		available := offer.Size.Available()
		requested := l.Quantity
		granted := ClampQuantity(requested)
		reason := ""
		if granted < requested {
			reason = ReasonClampedToLimit
		}
		if granted > available {
			granted = available
			reason = ReasonClampedToStock
		}
		if granted == 0 {
			resp.Adjustments = append(resp.Adjustments, Adjustment{Key: l.Key, Requested: requested, Reason: ReasonOutOfStock})
			changed = true
			continue
		}
		if granted != requested {
			resp.Adjustments = append(resp.Adjustments, Adjustment{Key: l.Key, Requested: requested, Granted: granted, Reason: reason})
			l.Quantity = granted
			changed = true
		}

		regular := offer.UnitPrice()
		unit := regular
		view := ItemView{
			Key:          l.Key,
			ProductID:    l.ProductID,
			SubProductID: l.SubProductID,
			SizeID:       offer.Size.ID,
			Size:         l.Size,
			VendorID:     l.VendorID,
			Color:        l.Color,
			Quantity:     l.Quantity,
			RegularPrice: regular,
			Available:    available,
			ProductName:  offer.Product.Name,
			ProductSlug:  offer.Product.Slug,
			SKU:          sp.SKU,
			Image:        offer.Product.PrimaryImage(),
			CategoryID:   offer.Product.CategoryID,
			ABV:          offer.Product.ABV,
			VolumeML:     offer.Size.VolumeML,
		}
		if it, ok := flashItems[l.SubProductID]; ok {
			unit = it.SalePrice(regular)
			itemID := it.ID
			view.FlashSaleItemID = &itemID
			view.PerCustomerLimit = it.PerCustomerLimit
		}
		view.UnitPrice = unit
		view.LineTotal = unit * int64(l.Quantity)

		resp.Items = append(resp.Items, view)
		resp.Subtotal += view.LineTotal
		resp.TotalQuantity += l.Quantity
		kept = append(kept, l)
	}
	resp.ItemCount = len(resp.Items)

	return resp, kept, changed, nil
}

// loadLines reads the owner's stored lines, discarding expired carts
func (s *Service) loadLines(ctx context.Context, owner Owner) ([]Line, error) {
	lines, _, err := s.loadCart(ctx, owner)
	return lines, err
}

// loadCart returns the stored lines and their expiry, zero when nothing is stored
func (s *Service) loadCart(ctx context.Context, owner Owner) ([]Line, time.Time, error) {
	if owner.IsGuest() {
		if owner.SessionID == "" {
			return nil, time.Time{}, apperrors.New(apperrors.CodeValidation, "session id is required for guest carts")
		}
		var sc SessionCart
		err := redisdb.GetJSON(ctx, s.redisClient, sessionKey(owner.SessionID), &sc)
		if errors.Is(err, redisdb.ErrCacheMiss) {
			return []Line{}, time.Time{}, nil
		}
		if err != nil {
			return nil, time.Time{}, fmt.Errorf("failed to load guest cart: %w", err)
		}
		if !sc.ExpiresAt.IsZero() && s.now().After(sc.ExpiresAt) {
			return []Line{}, time.Time{}, nil
		}
		return sc.Items, sc.ExpiresAt, nil
	}

	var c Cart
	err := s.db.WithContext(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	}).Where("user_id = ?", *owner.UserID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []Line{}, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to load cart: %w", err)
	}
	if s.now().After(c.ExpiresAt) {
		if err := s.ClearUserCart(s.db.WithContext(ctx), *owner.UserID); err != nil {
			return nil, time.Time{}, err
		}
		return []Line{}, time.Time{}, nil
	}

	lines := make([]Line, 0, len(c.Items))
	for _, it := range c.Items {
		lines = append(lines, Line{
			Key:          it.ItemKey,
			ProductID:    it.ProductID,
			SubProductID: it.SubProductID,
			Size:         it.Size,
			VendorID:     it.VendorID,
			Color:        it.Color,
			Quantity:     it.Quantity,
			AddedAt:      it.CreatedAt,
		})
	}
	return lines, c.ExpiresAt, nil
}

// saveLines persists lines and refreshes the 7-day expiry window
func (s *Service) saveLines(ctx context.Context, owner Owner, lines []Line) error {
	now := s.now()
	ttl := s.config.Marketplace.CartTTL

	if owner.IsGuest() {
		sc := SessionCart{
			SessionID: owner.SessionID,
			Items:     lines,
			CreatedAt: now,
			UpdatedAt: now,
			ExpiresAt: now.Add(ttl),
		}
		if len(lines) > 0 && !lines[0].AddedAt.IsZero() {
			sc.CreatedAt = lines[0].AddedAt
		}
		if err := redisdb.SetJSON(ctx, s.redisClient, sessionKey(owner.SessionID), sc, ttl); err != nil {
			return fmt.Errorf("failed to save guest cart: %w", err)
		}
		return nil
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c Cart
		err := tx.Where("user_id = ?", *owner.UserID).First(&c).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c = Cart{UserID: *owner.UserID}
		} else if err != nil {
			return fmt.Errorf("failed to load cart: %w", err)
		}
		c.ExpiresAt = now.Add(ttl)
		if err := tx.Omit("Items").Save(&c).Error; err != nil {
			return fmt.Errorf("failed to save cart: %w", err)
		}

		if err := tx.Where("cart_id = ?", c.ID).Delete(&CartItem{}).Error; err != nil {
			return fmt.Errorf("failed to reset cart items: %w", err)
		}
		if len(lines) == 0 {
			return nil
		}

		items := make([]CartItem, 0, len(lines))
		for _, l := range lines {
			items = append(items, CartItem{
				CartID:       c.ID,
				ItemKey:      l.Key,
				ProductID:    l.ProductID,
				SubProductID: l.SubProductID,
				Size:         l.Size,
				VendorID:     l.VendorID,
				Color:        l.Color,
				Quantity:     l.Quantity,
				CreatedAt:    l.AddedAt,
			})
		}
		if err := tx.Create(&items).Error; err != nil {
			return fmt.Errorf("failed to save cart items: %w", err)
		}
		return nil
	})
}

// PurgeExpired deletes persisted carts past their expiry
func (s *Service) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("cart_id IN (SELECT id FROM carts WHERE expires_at < ?)", now).Delete(&CartItem{}).Error; err != nil {
			return fmt.Errorf("failed to purge cart items: %w", err)
		}
		res := tx.Where("expires_at < ?", now).Delete(&Cart{})
		if res.Error != nil {
			return fmt.Errorf("failed to purge carts: %w", res.Error)
		}
		total = res.RowsAffected
		return nil
	})
	return total, err
}

func sessionKey(sessionID string) string {
	return "cart:session:" + sessionID
}

func lineFromRequest(it ItemRequest, now time.Time) Line {
	return Line{
		Key:          BuildItemKey(it.ProductID, it.Size, it.VendorID, it.Color),
		ProductID:    it.ProductID,
		SubProductID: it.SubProductID,
		Size:         it.Size,
		VendorID:     it.VendorID,
		Color:        it.Color,
		Quantity:     it.Quantity,
		AddedAt:      now,
	}
}

// mergeLines appends incoming to base, summing quantities of identical keys.
// The earliest AddedAt of a key wins and ordering follows first appearance.
func mergeLines(base, incoming []Line) []Line {
	merged := make([]Line, 0, len(base)+len(incoming))
	index := make(map[string]int, len(base)+len(incoming))
	for _, group := range [][]Line{base, incoming} {
		for _, l := range group {
			if i, ok := index[l.Key]; ok {
				merged[i].Quantity += l.Quantity
				if l.AddedAt.Before(merged[i].AddedAt) {
					merged[i].AddedAt = l.AddedAt
				}
				continue
			}
			index[l.Key] = len(merged)
			merged = append(merged, l)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].AddedAt.Before(merged[j].AddedAt)
	})
	return merged
}
