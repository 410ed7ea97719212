package services

import "context"

type contextKey int

const (
	videoIDKey contextKey = iota
	stageKey
	hostKey
	requestIDKey
)

// WithVideoID annotates context with the catalog video identifier.
func WithVideoID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, videoIDKey, id)
}

// VideoIDFromContext extracts the catalog video identifier if present.
func VideoIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(videoIDKey).(int64)
	return id, ok
}

// WithStage annotates context with the pipeline stage name (scan, convert, dispatch).
func WithStage(ctx context.Context, stage string) context.Context {
	return withString(ctx, stageKey, stage)
}

func StageFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, stageKey)
}

// WithHost annotates context with the fleet host a job was dispatched to.
func WithHost(ctx context.Context, host string) context.Context {
	return withString(ctx, hostKey, host)
}

func HostFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, hostKey)
}

// WithRequestID annotates context with the scan-cycle correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withString(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, requestIDKey)
}

// withString leaves ctx untouched for blank values so an outer value survives.
func withString(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringValue(ctx context.Context, key contextKey) (string, bool) {
	s, ok := ctx.Value(key).(string)
	return s, ok && s != ""
}
