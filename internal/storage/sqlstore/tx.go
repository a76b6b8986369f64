package sqlstore

import (
	"context"

	"gorm.io/gorm"
)

type trxKey struct{}

func withTransaction(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, trxKey{}, tx)
}

func transactionFromContext(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(trxKey{}).(*gorm.DB)

	return tx, ok && tx != nil
}
