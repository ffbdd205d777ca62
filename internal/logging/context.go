package logging

import (
	"context"

	"go.uber.org/zap"
)

type leadCtxKey struct{}
type requestCtxKey struct{}

// WithLead stores the lead id for log correlation.
func WithLead(ctx context.Context, leadID string) context.Context {
	return context.WithValue(ctx, leadCtxKey{}, leadID)
}

func LeadFromContext(ctx context.Context) string {
	id, _ := ctx.Value(leadCtxKey{}).(string)
	return id
}

// WithRequestID stores the inbound request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestCtxKey{}, id)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestCtxKey{}).(string)
	return id
}

// ContextFields extracts correlation data from ctx.
func ContextFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	fields := make([]zap.Field, 0, 2)
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request.id", id))
	}
	if id := LeadFromContext(ctx); id != "" {
		fields = append(fields, zap.String("lead.id", id))
	}
	return fields
}
