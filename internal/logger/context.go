package logger

import (
	"context"
	"log/slog"
)

type ctxKey int

const requestIDKey ctxKey = iota

// WithRequestID stores the ID that correlates every log line emitted while
// serving one API call.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the stored request ID, or "" outside a request.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Request returns a slog attribute carrying the request ID, ready to attach
// to any record emitted on behalf of the call.
func Request(ctx context.Context) slog.Attr {
	return slog.String("request_id", RequestID(ctx))
}
