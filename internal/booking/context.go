package booking

import "context"

type idempotencyCtxKey struct{}

type idempotency struct {
	key   string
	owner string
}

func NewContextWithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyCtxKey{}, idempotency{key: key})
}

// scopeIdempotencyKey binds the key already carried by ctx to ownerID, so two users sending the
// same key never share an order.
func scopeIdempotencyKey(ctx context.Context, ownerID string) context.Context {
	v, ok := ctx.Value(idempotencyCtxKey{}).(idempotency)
	if !ok || v.key == "" {
		return ctx
	}

	v.owner = ownerID

	return context.WithValue(ctx, idempotencyCtxKey{}, v)
}

func IdempotencyKeyFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(idempotencyCtxKey{}).(idempotency)
	if !ok || v.key == "" {
		return "", false
	}

	if v.owner == "" {
		return v.key, true
	}

	return v.owner + "/" + v.key, true
}
