package token_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Jitendra7073/HSM-backend-sub001/internal/domain"
	"github.com/Jitendra7073/HSM-backend-sub001/internal/token"
)

var testUser = domain.User{
	ID:           42,
	Email:        "pro@example.com",
	Role:         domain.RoleProvider,
	TokenVersion: 3,
}

func TestAccessTokenRoundTrip(t *testing.T) {
	codec := token.NewCodec([]byte("secret-0123456789abcdef0123456789abcdef"), 15*time.Minute, 7*24*time.Hour)

	raw, err := codec.IssueAccess(testUser)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	claims, err := codec.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, int64(42), claims.UserID)
	require.Equal(t, domain.RoleProvider, claims.Role)
	require.Equal(t, token.TypeAccess, claims.TokenType)
	require.Zero(t, claims.TokenVersion)
	require.WithinDuration(t, time.Now().Add(15*time.Minute), claims.ExpiresAt, time.Minute)
}

func TestRefreshTokenCarriesVersion(t *testing.T) {
	codec := token.NewCodec([]byte("secret-0123456789abcdef0123456789abcdef"), 15*time.Minute, 7*24*time.Hour)

	raw, err := codec.IssueRefresh(testUser)
	require.NoError(t, err)

	claims, err := codec.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, token.TypeRefresh, claims.TokenType)
	require.Equal(t, 3, claims.TokenVersion)
}

func TestIssuedTokensAreUnique(t *testing.T) {
	codec := token.NewCodec([]byte("secret-0123456789abcdef0123456789abcdef"), 15*time.Minute, 7*24*time.Hour)

	a, err := codec.IssueRefresh(testUser)
	require.NoError(t, err)
	b, err := codec.IssueRefresh(testUser)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestDecodeRejectsExpired(t *testing.T) {
	codec := token.NewCodec([]byte("secret-0123456789abcdef0123456789abcdef"), -time.Minute, -time.Minute)

	raw, err := codec.IssueAccess(testUser)
	require.NoError(t, err)

	_, err = codec.Decode(raw)
	require.ErrorIs(t, err, token.ErrExpired)
}

func TestDecodeRejectsWrongKey(t *testing.T) {
	codec := token.NewCodec([]byte("secret-0123456789abcdef0123456789abcdef"), time.Minute, time.Hour)
	other := token.NewCodec([]byte("different-0123456789abcdef0123456789abcdef"), time.Minute, time.Hour)

	raw, err := codec.IssueAccess(testUser)
	require.NoError(t, err)

	_, err = other.Decode(raw)
	require.ErrorIs(t, err, token.ErrInvalid)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	codec := token.NewCodec([]byte("secret-0123456789abcdef0123456789abcdef"), time.Minute, time.Hour)

	for _, raw := range []string{"", "not-a-token", "a.b.c"} {
		_, err := codec.Decode(raw)
		require.ErrorIs(t, err, token.ErrInvalid)
	}
}
