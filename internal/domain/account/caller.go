package account

import (
	"context"
)

// Caller is the authenticated identity behind a request, with the claim set
// embedded in its token at issue time. The claims are trusted as issued; they
// are not re-read from the claims store.
type Caller struct {
	UID    string
	Claims ClaimSet
}

// IsAdmin reports whether the caller's token carries the admin claim.
func (c Caller) IsAdmin() bool { return c.Claims.Admin }

type callerKey struct{}

// WithCaller attaches the authenticated caller to ctx.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFromContext returns the authenticated caller. ok is false when the
// request carries no identity.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	if !ok || c.UID == "" {
		return Caller{}, false
	}
	return c, true
}
