package apiclient

import "context"

const IdempotencyKeyHeader = "Idempotency-Key"

type idempotencyKey struct{}

// WithIdempotencyKey makes Call send key so a retried create is applied once.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKey{}, key)
}

func IdempotencyKeyFromContext(ctx context.Context) string {
	key, _ := ctx.Value(idempotencyKey{}).(string)
	return key
}
