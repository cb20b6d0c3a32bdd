package jwt_test

import (
	"testing"
	"time"

	"github.com/pharmachain/pharmachain-backend/internal/party/jwt"
	"github.com/pharmachain/pharmachain-backend/pkg/config"
	"github.com/pharmachain/pharmachain-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.JWTConfig {
	return &config.JWTConfig{
		Secret:        "test-secret-at-least-32-characters!!",
		AccessExpiry:  15 * time.Minute,
		RefreshExpiry: 7 * 24 * time.Hour,
		Issuer:        "pharmachain-test",
	}
}

func testParty() *jwt.PartyInfo {
	return &jwt.PartyInfo{
		ID:    "11111111-1111-1111-1111-111111111111",
		Email: "ops@acmepharma.example",
		Name:  "Acme Pharma",
		Role:  "manufacturer",
	}
}

func TestManager_GenerateAndValidate(t *testing.T) {
	manager := jwt.NewManager(testConfig())

	pair, err := manager.GenerateTokenPair(testParty())
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.True(t, pair.ExpiresAt.After(time.Now()))

	claims, err := manager.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", claims.PartyID)
	assert.Equal(t, "ops@acmepharma.example", claims.Email)
	assert.Equal(t, "manufacturer", claims.Role)
	assert.Equal(t, "pharmachain-test", claims.Issuer)

	refreshClaims, err := manager.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", refreshClaims.PartyID)
}

func TestManager_WrongSecret(t *testing.T) {
	manager := jwt.NewManager(testConfig())
	pair, err := manager.GenerateTokenPair(testParty())
	require.NoError(t, err)

	other := testConfig()
	other.Secret = "a-completely-different-32-char-secret"
	otherManager := jwt.NewManager(other)

	_, err = otherManager.ValidateAccessToken(pair.AccessToken)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTokenInvalid))
}

func TestManager_ExpiredToken(t *testing.T) {
	cfg := testConfig()
	cfg.AccessExpiry = -time.Minute
	manager := jwt.NewManager(cfg)

	pair, err := manager.GenerateTokenPair(testParty())
	require.NoError(t, err)

	_, err = manager.ValidateAccessToken(pair.AccessToken)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTokenExpired))
}

func TestManager_GarbageToken(t *testing.T) {
	manager := jwt.NewManager(testConfig())

	_, err := manager.ValidateAccessToken("not.a.token")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTokenInvalid))
}

func TestManager_RefreshTokenIsNotAnAccessToken(t *testing.T) {
	manager := jwt.NewManager(testConfig())
	pair, err := manager.GenerateTokenPair(testParty())
	require.NoError(t, err)

	// A refresh token parses as access claims but carries no role; the
	// gateway rejects identities without one.
	claims, err := manager.ValidateAccessToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Empty(t, claims.Role)
	assert.Empty(t, claims.Email)
}
