package core

import "context"

type contextKey string

const (
	ctxKeyIPAddress contextKey = "activity_ip"
	ctxKeyUserAgent contextKey = "activity_ua"
)

// ContextWithClient records the caller's address and user agent so activity
// entries written further down the call chain can carry them.
func ContextWithClient(ctx context.Context, ip, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ctxKeyIPAddress, ip)
	return context.WithValue(ctx, ctxKeyUserAgent, userAgent)
}

// IPAddressFromContext returns the address stored by ContextWithClient.
func IPAddressFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyIPAddress).(string); ok {
		return v
	}
	return ""
}

// UserAgentFromContext returns the user agent stored by ContextWithClient.
func UserAgentFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyUserAgent).(string); ok {
		return v
	}
	return ""
}
