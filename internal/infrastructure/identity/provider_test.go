package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-portal/portal-core/internal/domain/account"
	"github.com/campus-portal/portal-core/internal/domain/shared"
	"github.com/campus-portal/portal-core/internal/infrastructure/persistence/memory"
)

const testSecret = "test-secret-0123456789"

func newTestProvider(t *testing.T) (*Provider, *memory.AccountRepository, *memory.ClaimsStore) {
	t.Helper()
	accounts := memory.NewAccountRepository()
	claims := memory.NewClaimsStore()
	p := NewProvider(Config{Secret: testSecret, Issuer: "portal-test", TokenTTL: time.Hour}, accounts, claims)
	return p, accounts, claims
}

func TestIssueAndVerify_RoundTripsClaims(t *testing.T) {
	p, _, _ := newTestProvider(t)

	tok, err := p.IssueToken("u1", account.ClaimsForRole(account.RoleFaculty, "ECE"))
	require.NoError(t, err)
	assert.NotEmpty(t, tok.Token)

	caller, err := p.Verify(tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "u1", caller.UID)
	assert.Equal(t, account.ClaimSet{Faculty: true, Branch: "ECE"}, caller.Claims)
	assert.False(t, caller.IsAdmin())
}

func TestVerify_RejectsBadTokens(t *testing.T) {
	p, _, _ := newTestProvider(t)
	tok, err := p.IssueToken("u1", account.ClaimSet{Admin: true})
	require.NoError(t, err)

	other := NewProvider(Config{Secret: "another-secret-abcdef", Issuer: "portal-test"}, nil, nil)
	expired := NewProvider(Config{Secret: testSecret, Issuer: "portal-test"}, nil, nil)
	expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	wrongIssuer := NewProvider(Config{Secret: testSecret, Issuer: "elsewhere"}, nil, nil)

	cases := map[string]struct {
		p     *Provider
		token string
	}{
		"empty":        {p, ""},
		"garbage":      {p, "not.a.token"},
		"wrong secret": {other, tok.Token},
		"expired":      {expired, tok.Token},
		"wrong issuer": {wrongIssuer, tok.Token},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := tc.p.Verify(tc.token)
			require.Error(t, err)
			assert.True(t, errors.Is(err, shared.ErrUnauthenticated))
		})
	}
}

func TestSignIn(t *testing.T) {
	p, accounts, claims := newTestProvider(t)
	ctx := context.Background()

	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	require.NoError(t, accounts.Create(ctx, &account.Account{ID: "u1", Email: "a@campus.edu", PasswordHash: hash, Role: account.RoleStudent, Branch: "CSE"}))

	t.Run("derives claims from mirror when none stored", func(t *testing.T) {
		tok, err := p.SignIn(ctx, "a@campus.edu", "hunter22")
		require.NoError(t, err)
		caller, err := p.Verify(tok.Token)
		require.NoError(t, err)
		assert.Equal(t, account.ClaimSet{Student: true, Branch: "CSE"}, caller.Claims)
	})

	t.Run("stored claims win", func(t *testing.T) {
		require.NoError(t, claims.SetClaims(ctx, "u1", account.ClaimsForRole(account.RoleAdmin, "")))
		tok, err := p.SignIn(ctx, "A@campus.edu", "hunter22")
		require.NoError(t, err)
		caller, err := p.Verify(tok.Token)
		require.NoError(t, err)
		assert.True(t, caller.IsAdmin())
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := p.SignIn(ctx, "a@campus.edu", "nope")
		assert.True(t, errors.Is(err, shared.ErrUnauthenticated))
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := p.SignIn(ctx, "ghost@campus.edu", "hunter22")
		assert.True(t, errors.Is(err, shared.ErrUnauthenticated))
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := p.SignIn(ctx, "", "")
		assert.True(t, errors.Is(err, shared.ErrInvalidArgument))
	})
}
