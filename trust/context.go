package trust

import (
	"context"

	"github.com/Hung6066/IVF-sub008/models"
)

// Context is the per-request trust context. It is built once per inbound
// request, attached to the request envelope, and never persisted.
type Context struct {
	DeviceFingerprint   string
	FingerprintMismatch bool
	SessionID           string
	CorrelationID       string
	SourceIP            string
	Country             string
	AuthenticatedUserID string
	Role                string
	AuthLevel           models.AuthLevel
	SessionFresh        bool
	TrustedDevice       bool
}

type contextKey struct{}

// FromRequest retrieves the trust context from a request context. Returns a
// zero-value context (AuthLevel None) when none was attached, so downstream
// checks fail closed.
func FromRequest(ctx context.Context) *Context {
	if tc, ok := ctx.Value(contextKey{}).(*Context); ok {
		return tc
	}
	return &Context{AuthLevel: models.AuthLevelNone}
}

// WithContext attaches the trust context to a request context
func WithContext(ctx context.Context, tc *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, tc)
}
