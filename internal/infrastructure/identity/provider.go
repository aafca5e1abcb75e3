// Package identity issues and verifies the signed tokens that carry an
// account's claim set to the callable endpoints.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/campus-portal/portal-core/internal/domain/account"
	"github.com/campus-portal/portal-core/internal/domain/shared"
)

// Claims is the JWT body: the registered claims plus the account's claim set.
type Claims struct {
	jwt.RegisteredClaims
	account.ClaimSet
}

// Config configures a Provider.
type Config struct {
	Secret   string
	Issuer   string
	TokenTTL time.Duration
}

// Provider issues HS256 tokens and turns verified tokens into callers.
type Provider struct {
	secret   []byte
	issuer   string
	ttl      time.Duration
	accounts account.Repository
	claims   account.ClaimsStore
	now      func() time.Time
}

// NewProvider creates a Provider. accounts and claims are only needed by SignIn.
func NewProvider(cfg Config, accounts account.Repository, claims account.ClaimsStore) *Provider {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Provider{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		ttl:      ttl,
		accounts: accounts,
		claims:   claims,
		now:      time.Now,
	}
}

// Token is a signed token and its expiry.
type Token struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// IssueToken signs a token for uid carrying claims as they are now. Claim
// changes take effect on the next token.
func (p *Provider) IssueToken(uid string, claims account.ClaimSet) (Token, error) {
	if uid == "" {
		return Token{}, shared.NewDomainError("identity", "IssueToken", shared.ErrInvalidArgument, "uid is required")
	}

	now := p.now().UTC()
	expiresAt := now.Add(p.ttl)
	body := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   uid,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		ClaimSet: claims,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, body).SignedString(p.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{Token: signed, ExpiresAt: expiresAt}, nil
}

// Verify checks the signature, expiry and issuer of a bearer token.
// Every failure is Unauthenticated.
func (p *Provider) Verify(token string) (account.Caller, error) {
	if token == "" {
		return account.Caller{}, shared.ErrNoCaller
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(p.now),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, opts...)
	if err != nil {
		return account.Caller{}, shared.WrapError("identity", "Verify", shared.ErrUnauthenticated, "invalid or expired token", err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return account.Caller{}, shared.NewDomainError("identity", "Verify", shared.ErrUnauthenticated, "invalid or expired token")
	}

	return account.Caller{UID: claims.Subject, Claims: claims.ClaimSet}, nil
}

// SignIn checks an email and password and issues a token carrying the
// account's current claim set. Accounts without a claim set get one derived
// from their mirrored role.
func (p *Provider) SignIn(ctx context.Context, email, password string) (Token, error) {
	if email == "" || password == "" {
		return Token{}, shared.NewDomainError("identity", "SignIn", shared.ErrInvalidArgument, "email and password are required")
	}

	acc, err := p.accounts.GetByEmail(ctx, email)
	if err != nil {
		if shared.IsNotFound(err) {
			return Token{}, shared.ErrBadCredentials
		}
		return Token{}, fmt.Errorf("load account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) || errors.Is(err, bcrypt.ErrHashTooShort) {
			return Token{}, shared.ErrBadCredentials
		}
		return Token{}, fmt.Errorf("compare password: %w", err)
	}

	claims, ok, err := p.claims.GetClaims(ctx, acc.ID)
	if err != nil {
		return Token{}, fmt.Errorf("load claims: %w", err)
	}
	if !ok && acc.Role != "" {
		claims = account.ClaimsForRole(acc.Role, acc.Branch)
	}

	return p.IssueToken(acc.ID, claims)
}

// HashPassword hashes a password for storage on an account.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}
