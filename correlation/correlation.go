// Package correlation contains extensions for go-eventfold key components
// to support correlated events for tracing and debugging purposes.
//
// You can read more about events correlation here:
// https://blog.arkency.com/correlation-id-and-causation-id-in-evented-systems/
package correlation

import "context"

type (
	correlationCtxKey struct{}
	causationCtxKey   struct{}
)

// WithCorrelationID returns a new context carrying the specified
// correlation id, picked up by the correlation.EventStoreWrapper on Append.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationCtxKey{}, id)
}

// WithCausationID returns a new context carrying the specified
// causation id, picked up by the correlation.EventStoreWrapper on Append.
func WithCausationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, causationCtxKey{}, id)
}

// CorrelationID extracts the correlation id from the context, if any.
func CorrelationID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(correlationCtxKey{}).(string)
	return id, ok && id != ""
}

// CausationID extracts the causation id from the context, if any.
func CausationID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(causationCtxKey{}).(string)
	return id, ok && id != ""
}
