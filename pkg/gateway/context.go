package gateway

import "context"

type ctxKey string

const (
	clientIDKey  ctxKey = "clientID"
	transportKey ctxKey = "transport"
)

func withClient(ctx context.Context, transport, clientID string) context.Context {
	ctx = context.WithValue(ctx, transportKey, transport)
	return context.WithValue(ctx, clientIDKey, clientID)
}

func clientIDFromContext(ctx context.Context) string {
	if value, ok := ctx.Value(clientIDKey).(string); ok {
		return value
	}
	return ""
}

func transportFromContext(ctx context.Context) string {
	if value, ok := ctx.Value(transportKey).(string); ok {
		return value
	}
	return "unknown"
}
