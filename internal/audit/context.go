package audit

import "context"

// clientIPKey is an unexported context key for passing the client IP
// through internal layers. HTTP handlers resolve the real client IP and
// attach it with WithClientIP; audit hooks read it back out.

type clientIPKey struct{}

func WithClientIP(ctx context.Context, ip string) context.Context {
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func ClientIPFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(clientIPKey{}).(string); ok {
		return s
	}
	return ""
}
