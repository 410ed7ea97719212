package logging

import (
	"context"
	"log/slog"

	"mediaagent/internal/services"
)

// Structured field keys shared by every component.
const (
	FieldComponent     = "component"
	FieldVideoID       = "video_id"
	FieldStage         = "stage"
	FieldHost          = "host"
	FieldCorrelationID = "correlation_id" // one per scan cycle
	FieldEventType     = "event_type"
	FieldErrorHint     = "error_hint"
	FieldDecisionType  = "decision_type"
)

// ContextFields returns the video, stage, host and cycle attributes carried by ctx.
func ContextFields(ctx context.Context) []Attr {
	if ctx == nil {
		return nil
	}
	var fields []Attr
	if id, ok := services.VideoIDFromContext(ctx); ok {
		fields = append(fields, Int64(FieldVideoID, id))
	}
	for _, s := range []struct {
		key string
		get func(context.Context) (string, bool)
	}{
		{FieldStage, services.StageFromContext},
		{FieldHost, services.HostFromContext},
		{FieldCorrelationID, services.RequestIDFromContext},
	} {
		if v, ok := s.get(ctx); ok {
			fields = append(fields, String(s.key, v))
		}
	}
	return fields
}

// WithContext returns logger extended with ContextFields(ctx).
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if fields := ContextFields(ctx); len(fields) > 0 {
		return logger.With(Args(fields...)...)
	}
	return logger
}
