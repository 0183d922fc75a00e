package internal

import (
	"context"
	"time"
)

type ctxKey string

const (
	ContextTenantKey ctxKey = "tenantID"
	ContextRunKey    ctxKey = "runID"
)

func TenantIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if tenantID, ok := ctx.Value(ContextTenantKey).(string); ok {
		return tenantID
	}
	return ""
}

func ContextWithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, ContextTenantKey, tenantID)
}

func RunIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if runID, ok := ctx.Value(ContextRunKey).(string); ok {
		return runID
	}
	return ""
}

func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, ContextRunKey, runID)
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
