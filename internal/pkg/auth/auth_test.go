package auth

import (
	"testing"
	"time"

	"github.com/drinksharbour/drinksharbour-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			Secret:             "test-secret-that-is-long-enough-123456",
			Issuer:             "drinksharbour-test",
			AccessTokenExpiry:  time.Hour,
			RefreshTokenExpiry: 24 * time.Hour,
		},
		Security: config.SecurityConfig{BcryptCost: 4},
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	manager := NewJWTManager(testConfig())
	tenantID := uint(7)

	token, err := manager.GenerateAccessToken(Principal{UserID: 42, Email: "vendor@example.com", Role: RoleVendor, TenantID: &tenantID})
	require.NoError(t, err)

	claims, err := manager.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, RoleVendor, claims.Role)
	require.NotNil(t, claims.TenantID)
	assert.Equal(t, uint(7), *claims.TenantID)
	assert.False(t, claims.IsAdmin())

	_, err = manager.ValidateRefreshToken(token)
	assert.Error(t, err)
}

func TestRefreshTokenDropsRole(t *testing.T) {
	manager := NewJWTManager(testConfig())

	token, err := manager.GenerateRefreshToken(Principal{UserID: 1, Email: "a@example.com", Role: RoleAdmin})
	require.NoError(t, err)

	claims, err := manager.ValidateRefreshToken(token)
	require.NoError(t, err)
	assert.Empty(t, claims.Role)
}

func TestExpiredTokenRejected(t *testing.T) {
	manager := NewJWTManager(testConfig())
	manager.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := manager.GenerateAccessToken(Principal{UserID: 1, Role: RoleCustomer})
	require.NoError(t, err)

	manager.now = time.Now
	_, err = manager.ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestTokenSignedWithOtherSecretRejected(t *testing.T) {
	other := testConfig()
	other.JWT.Secret = "another-secret-that-is-long-enough-999"
	token, err := NewJWTManager(other).GenerateAccessToken(Principal{UserID: 1})
	require.NoError(t, err)

	_, err = NewJWTManager(testConfig()).ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestExtractTokenFromHeader(t *testing.T) {
	assert.Equal(t, "abc.def", ExtractTokenFromHeader("Bearer abc.def"))
	assert.Equal(t, "abc.def", ExtractTokenFromHeader("bearer abc.def"))
	assert.Empty(t, ExtractTokenFromHeader("Basic abc"))
	assert.Empty(t, ExtractTokenFromHeader(""))
}

func TestPasswordValidation(t *testing.T) {
	pm := NewPasswordManager(testConfig())

	assert.Error(t, pm.ValidatePassword("short1A"))
	assert.Error(t, pm.ValidatePassword("alllowercase1"))
	assert.Error(t, pm.ValidatePassword("Baaad1234x"))
	assert.Error(t, pm.ValidatePassword("MyPassword99"))
	assert.NoError(t, pm.ValidatePassword("Harbour2Rum"))
}

func TestHashAndVerify(t *testing.T) {
	pm := NewPasswordManager(testConfig())

	hash, err := pm.HashPassword("Harbour2Rum")
	require.NoError(t, err)
	assert.NoError(t, pm.VerifyPassword("Harbour2Rum", hash))
	assert.Error(t, pm.VerifyPassword("Harbour2Gin", hash))
}

func TestGenerateTemporaryPassword(t *testing.T) {
	pm := NewPasswordManager(testConfig())
	pw, err := pm.GenerateTemporaryPassword()
	require.NoError(t, err)
	assert.NoError(t, pm.ValidatePassword(pw))
}
