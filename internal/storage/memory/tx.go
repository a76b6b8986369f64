package memory

import (
	"context"
	"errors"
)

var (
	ErrTransactionIDNotFoundInCtx = errors.New("no transaction id found in ctx")
	ErrTransactionNotFound        = errors.New("transaction not found or already finished")
)

type trxKey struct{}

func withTransactionID(ctx context.Context, trxID string) context.Context {
	return context.WithValue(ctx, trxKey{}, trxID)
}

func transactionIDFromContext(ctx context.Context) (string, bool) {
	trxID, ok := ctx.Value(trxKey{}).(string)

	return trxID, ok
}
