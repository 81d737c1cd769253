package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService() *JWTService {
	return NewJWTService("test-secret-key", "outreach-engine", nil)
}

func TestJWTService_GenerateAndValidate(t *testing.T) {
	svc := newTestJWTService()

	pair, err := svc.GenerateTokenPair("user-1", "workspace-1", []string{"admin"})
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, "Bearer", pair.TokenType)

	claims, err := svc.ValidateToken(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "workspace-1", claims.WorkspaceID)
	assert.Equal(t, []string{"admin"}, claims.Roles)
	assert.Equal(t, "access", claims.TokenType)
}

func TestJWTService_ValidateRejectsWrongSecret(t *testing.T) {
	pair, err := newTestJWTService().GenerateTokenPair("user-1", "workspace-1", nil)
	require.NoError(t, err)

	other := NewJWTService("another-secret", "outreach-engine", nil)
	_, err = other.ValidateToken(context.Background(), pair.AccessToken)
	require.Error(t, err)
}

func TestJWTService_ValidateRejectsGarbage(t *testing.T) {
	_, err := newTestJWTService().ValidateToken(context.Background(), "not.a.token")
	require.Error(t, err)
}

func TestJWTService_RefreshAccessToken(t *testing.T) {
	svc := newTestJWTService()
	pair, err := svc.GenerateTokenPair("user-2", "workspace-2", []string{"member"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshAccessToken(context.Background(), pair.RefreshToken)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(context.Background(), refreshed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-2", claims.UserID)
	assert.Equal(t, "workspace-2", claims.WorkspaceID)

	// 访问令牌不能当刷新令牌用
	_, err = svc.RefreshAccessToken(context.Background(), pair.AccessToken)
	require.Error(t, err)
}

func TestExtractTokenFromBearer(t *testing.T) {
	assert.Equal(t, "abc123", ExtractTokenFromBearer("Bearer abc123"))
	assert.Equal(t, "abc123", ExtractTokenFromBearer("abc123"))
	assert.Equal(t, "", ExtractTokenFromBearer(""))
}
