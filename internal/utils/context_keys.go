package utils

import "context"

// ctxKey is unexported to prevent collisions.
type ctxKey string

// CtxKeyClientIP stores the caller's IP as resolved by the controller.
const CtxKeyClientIP ctxKey = "clientIP"

func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, CtxKeyClientIP, ip)
}

func ClientIPFrom(ctx context.Context) string {
	ip, _ := ctx.Value(CtxKeyClientIP).(string)
	return ip
}
