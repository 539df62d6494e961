package auth

import "context"

type ctxKey int

const userKey ctxKey = iota

func WithUser(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userKey, userID)
}

// UserFromContext returns the authenticated user id, or nil for anonymous
// requests.
func UserFromContext(ctx context.Context) *int64 {
	id, ok := ctx.Value(userKey).(int64)
	if !ok {
		return nil
	}
	return &id
}
