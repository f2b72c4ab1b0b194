package core

import (
	"context"
	"time"
)

// MetricsRecorder observes operation outcomes for aggregation.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer produces one span per observed operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan finalizes a single traced operation.
type TraceSpan interface {
	End(err error)
}

type scopeKey struct{}

// WithScope attaches a unit-of-work scope identifier to the context.
func WithScope(ctx context.Context, scope string) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// ScopeFromContext returns the unit-of-work scope identifier, if any.
func ScopeFromContext(ctx context.Context) string {
	scope, _ := ctx.Value(scopeKey{}).(string)
	return scope
}
