package logger

import "context"

// ctxKey is unexported so other packages cannot collide with the
// values stored here.
type ctxKey int

const (
	requestIDKey ctxKey = iota
	jobIDKey
)

// WithRequestID stores the correlation ID of an inbound HTTP request
// or queue message.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the correlation ID, or "" when the context
// carries none.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithJobID tags the context with the analysis job being processed so
// classification and wiki logs can be traced back to the job that
// triggered them.
func WithJobID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, jobIDKey, id)
}

// JobID returns the analysis job ID, or "" when the context
// carries none.
func JobID(ctx context.Context) string {
	id, _ := ctx.Value(jobIDKey).(string)
	return id
}
