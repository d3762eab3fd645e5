package api

import "context"

type ctxKey int

const sessionIDKey ctxKey = iota

// WithSessionID tags a request context with the browser session it
// belongs to. Token lookup, toast routing and 401 invalidation all key
// off this.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// SessionID returns the browser session attached to ctx, or "".
func SessionID(ctx context.Context) string {
	sid, _ := ctx.Value(sessionIDKey).(string)
	return sid
}
