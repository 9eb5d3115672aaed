package user

import (
	"context"
	"encoding/csv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/drinksharbour/drinksharbour-api/internal/config"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/cart"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/auth"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/email"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/logging"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const strongPassword = "Sommelier42x"

type recordingMerger struct {
	mu     sync.Mutex
	merged map[uint]string
}

func (r *recordingMerger) MergeGuestCart(_ context.Context, userID uint, sessionID string) (*cart.CartResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.merged == nil {
		r.merged = map[uint]string{}
	}
	r.merged[userID] = sessionID
	return &cart.CartResponse{}, nil
}

type userFixture struct {
	db     *gorm.DB
	svc    *Service
	admin  *AdminService
	carts  *recordingMerger
	emails *email.EmailService
	sent   *email.MemorySender
}

func newUserFixture(t *testing.T) *userFixture {
	t.Helper()
	db := testdb.Open(t, &User{})
	require.NoError(t, db.Exec(`CREATE TABLE tenants (id INTEGER PRIMARY KEY, name TEXT, deleted_at DATETIME)`).Error)
	require.NoError(t, db.Exec(`CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER, status TEXT, total_amount INTEGER, created_at DATETIME, deleted_at DATETIME)`).Error)

	cfg := &config.Config{
		JWT: config.JWTConfig{
			Secret:             "test-secret-that-is-long-enough-123456",
			Issuer:             "drinksharbour-test",
			AccessTokenExpiry:  time.Hour,
			RefreshTokenExpiry: 24 * time.Hour,
		},
		Security:    config.SecurityConfig{BcryptCost: 4},
		Marketplace: config.MarketplaceConfig{LegalDrinkingAge: 21},
	}

	logger := logging.Discard()
	sent := &email.MemorySender{}
	emails, err := email.NewEmailService(cfg, sent, logging.Component(logger, "email"))
	require.NoError(t, err)

	carts := &recordingMerger{}
	svc := NewService(db, cfg, carts, emails, logging.Component(logger, "user"))
	svc.now = func() time.Time { return time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC) }

	return &userFixture{
		db:     db,
		svc:    svc,
		admin:  NewAdminService(db, logging.Component(logger, "user_admin")),
		carts:  carts,
		emails: emails,
		sent:   sent,
	}
}

func registerReq(email, dob string) *RegisterRequest {
	return &RegisterRequest{
		Email:           email,
		Password:        strongPassword,
		ConfirmPassword: strongPassword,
		FirstName:       "Ada",
		LastName:        "Lovelace",
		DateOfBirth:     dob,
	}
}

func TestRegisterIssuesTokensAndMergesGuestCart(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	res, err := f.svc.Register(ctx, registerReq(" Ada@Example.com ", "1990-01-01"), "guest-123")
	require.NoError(t, err)

	assert.Equal(t, "ada@example.com", res.User.Email)
	assert.Equal(t, auth.RoleCustomer, res.User.Role)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	assert.Equal(t, "guest-123", f.carts.merged[res.User.ID])

	f.emails.Wait()
	require.Len(t, f.sent.Sent(), 1)
	assert.Equal(t, email.EmailTypeWelcome, f.sent.Sent()[0].Type)

	_, err = f.svc.Register(ctx, registerReq("ada@example.com", ""), "")
	assert.True(t, apperrors.Is(err, apperrors.CodeConflict), "got %v", err)
}

func TestRegisterAgeGate(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		dob  string
		ok   bool
	}{
		{"turns 21 today", "2005-06-15", true},
		{"turns 21 tomorrow", "2005-06-16", false},
		{"no birth date", "", true},
		{"malformed", "15/06/2005", false},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr := "user" + string(rune('a'+i)) + "@example.com"
			_, err := f.svc.Register(ctx, registerReq(addr, tt.dob), "")
			if tt.ok {
				require.NoError(t, err)
				return
			}
			assert.True(t, apperrors.Is(err, apperrors.CodeValidation), "got %v", err)
		})
	}
}

func TestRegisterRejectsWeakOrMismatchedPasswords(t *testing.T) {
	f := newUserFixture(t)

	req := registerReq("weak@example.com", "")
	req.Password, req.ConfirmPassword = "password1A", "password1A"
	_, err := f.svc.Register(context.Background(), req, "")
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))

	req = registerReq("typo@example.com", "")
	req.ConfirmPassword = strongPassword + "!"
	_, err = f.svc.Register(context.Background(), req, "")
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
}

func TestLoginAndRefresh(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, registerReq("ada@example.com", ""), "")
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, &LoginRequest{Email: "ada@example.com", Password: "Wrong1234x"}, "")
	assert.True(t, apperrors.Is(err, apperrors.CodeUnauthorized))

	_, err = f.svc.Login(ctx, &LoginRequest{Email: "nobody@example.com", Password: strongPassword}, "")
	assert.True(t, apperrors.Is(err, apperrors.CodeUnauthorized))

	res, err := f.svc.Login(ctx, &LoginRequest{Email: "ADA@example.com", Password: strongPassword}, "guest-9")
	require.NoError(t, err)
	assert.Equal(t, "guest-9", f.carts.merged[res.User.ID])

	// Promote to vendor, the refreshed token must carry the new role
	require.NoError(t, f.db.Exec(`INSERT INTO tenants (id, name) VALUES (3, 'Cellar Co')`).Error)
	require.NoError(t, f.db.Model(&User{}).Where("id = ?", res.User.ID).Updates(map[string]interface{}{"role": auth.RoleVendor, "tenant_id": 3}).Error)

	refreshed, err := f.svc.RefreshToken(ctx, res.RefreshToken)
	require.NoError(t, err)
	claims, err := auth.NewJWTManager(f.svc.config).ValidateAccessToken(refreshed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleVendor, claims.Role)
	require.NotNil(t, claims.TenantID)
	assert.Equal(t, uint(3), *claims.TenantID)

	_, err = f.svc.RefreshToken(ctx, res.AccessToken)
	assert.True(t, apperrors.Is(err, apperrors.CodeUnauthorized))

	require.NoError(t, f.db.Model(&User{}).Where("id = ?", res.User.ID).Update("is_active", false).Error)
	_, err = f.svc.RefreshToken(ctx, res.RefreshToken)
	assert.True(t, apperrors.Is(err, apperrors.CodeUnauthorized))
}

func TestUpdateProfileAndChangePassword(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	res, err := f.svc.Register(ctx, registerReq("ada@example.com", ""), "")
	require.NoError(t, err)
	id := res.User.ID

	first, phone := " Augusta ", "+44 20 7946 0000"
	updated, err := f.svc.UpdateProfile(ctx, id, &UpdateProfileRequest{FirstName: &first, Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, "Augusta", updated.FirstName)
	assert.Equal(t, "Lovelace", updated.LastName)
	assert.Equal(t, phone, updated.Phone)

	young := "2010-01-01"
	_, err = f.svc.UpdateProfile(ctx, id, &UpdateProfileRequest{DateOfBirth: &young})
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))

	err = f.svc.ChangePassword(ctx, id, &ChangePasswordRequest{CurrentPassword: "Nope12345x", NewPassword: "Vintage2019z", ConfirmPassword: "Vintage2019z"})
	assert.True(t, apperrors.Is(err, apperrors.CodeUnauthorized))

	require.NoError(t, f.svc.ChangePassword(ctx, id, &ChangePasswordRequest{CurrentPassword: strongPassword, NewPassword: "Vintage2019z", ConfirmPassword: "Vintage2019z"}))
	_, err = f.svc.Login(ctx, &LoginRequest{Email: "ada@example.com", Password: "Vintage2019z"}, "")
	require.NoError(t, err)

	_, err = f.svc.GetProfile(ctx, 999)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}

func TestAgeOn(t *testing.T) {
	dob := time.Date(2000, 2, 29, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 20, AgeOn(dob, time.Date(2021, 2, 28, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 21, AgeOn(dob, time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)))
}

func seedUser(t *testing.T, db *gorm.DB, email, role string) User {
	t.Helper()
	u := User{Email: email, Password: "x", FirstName: "Test", Role: role, IsActive: true}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func TestAdminListAndStats(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	admin := seedUser(t, f.db, "root@example.com", auth.RoleAdmin)
	buyer := seedUser(t, f.db, "buyer@example.com", auth.RoleCustomer)
	seedUser(t, f.db, "other@example.com", auth.RoleCustomer)

	now := time.Now().UTC()
	require.NoError(t, f.db.Exec(`INSERT INTO orders (user_id, status, total_amount, created_at) VALUES (?, 'delivered', 2500, ?), (?, 'pending', 1000, ?), (?, 'cancelled', 9999, ?)`,
		buyer.ID, now, buyer.ID, now, buyer.ID, now).Error)

	res, err := f.admin.GetUsers(ctx, &UserListRequest{Page: 1, Limit: 10, Role: auth.RoleCustomer, SortBy: "email", SortOrder: "asc"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Total)
	require.Len(t, res.Users, 2)
	assert.Equal(t, "buyer@example.com", res.Users[0].Email)
	assert.Equal(t, int64(2), res.Users[0].OrderCount)
	assert.Equal(t, int64(3500), res.Users[0].TotalSpent)
	assert.Zero(t, res.Users[1].OrderCount)

	_, err = f.admin.GetUsers(ctx, &UserListRequest{Role: "superuser"})
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))

	one, err := f.admin.GetUser(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, one.Role)
}

func TestAdminStatusAndRole(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	admin := seedUser(t, f.db, "root@example.com", auth.RoleAdmin)
	shop := seedUser(t, f.db, "shop@example.com", auth.RoleCustomer)
	inactive := false

	err := f.admin.UpdateUserStatus(ctx, admin.ID, &UserStatusUpdateRequest{IsActive: &inactive}, admin.ID)
	assert.True(t, apperrors.Is(err, apperrors.CodeUnprocessable))

	require.NoError(t, f.admin.UpdateUserStatus(ctx, shop.ID, &UserStatusUpdateRequest{IsActive: &inactive}, admin.ID))
	var reloaded User
	require.NoError(t, f.db.First(&reloaded, shop.ID).Error)
	assert.False(t, reloaded.IsActive)

	err = f.admin.UpdateUserRole(ctx, shop.ID, &UserRoleUpdateRequest{Role: auth.RoleVendor}, admin.ID)
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))

	missing := uint(44)
	err = f.admin.UpdateUserRole(ctx, shop.ID, &UserRoleUpdateRequest{Role: auth.RoleVendor, TenantID: &missing}, admin.ID)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))

	require.NoError(t, f.db.Exec(`INSERT INTO tenants (id, name) VALUES (5, 'Hop House')`).Error)
	tenantID := uint(5)
	require.NoError(t, f.admin.UpdateUserRole(ctx, shop.ID, &UserRoleUpdateRequest{Role: auth.RoleVendor, TenantID: &tenantID}, admin.ID))
	require.NoError(t, f.db.First(&reloaded, shop.ID).Error)
	assert.Equal(t, auth.RoleVendor, reloaded.Role)
	require.NotNil(t, reloaded.TenantID)
	assert.Equal(t, uint(5), *reloaded.TenantID)

	err = f.admin.UpdateUserRole(ctx, admin.ID, &UserRoleUpdateRequest{Role: auth.RoleCustomer}, shop.ID)
	assert.True(t, apperrors.Is(err, apperrors.CodeUnprocessable), "last admin must remain")
}

func TestExportUsersCSV(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	seedUser(t, f.db, "a@example.com", auth.RoleCustomer)
	seedUser(t, f.db, "b@example.com", auth.RoleAdmin)

	data, filename, err := f.admin.ExportUsers(ctx, &UserExportRequest{Format: "csv", Role: auth.RoleCustomer, IncludeStats: true})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(filename, ".csv"))

	rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a@example.com", rows[1][1])
	assert.Equal(t, "0", rows[1][11])

	_, _, err = f.admin.ExportUsers(ctx, &UserExportRequest{Format: "xml"})
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
}
