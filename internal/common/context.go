package common

import "context"

type contextKey string

const ownerIDKey contextKey = "owner_id"

// WithOwnerID attaches the authenticated owner to a request context.
func WithOwnerID(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerIDKey, ownerID)
}

// OwnerIDFromContext returns the authenticated owner, or "" when the
// request was not authenticated (auth disabled in local setups).
func OwnerIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ownerIDKey).(string); ok {
		return v
	}
	return ""
}
