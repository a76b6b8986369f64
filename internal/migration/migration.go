package migration

import (
	"context"
	"fmt"

	"github.com/avstrong/roomstay/internal/booking"
	"github.com/avstrong/roomstay/internal/logger"
)

type storage interface {
	BeginTransaction(ctx context.Context, level string) (context.Context, error)
	CommitTransaction(ctx context.Context) error
	RollbackTransaction(ctx context.Context) error
	SaveListings(ctx context.Context, listings []*booking.Listing) error
}

type schemaMigrator interface {
	AutoMigrate(ctx context.Context) error
}

func Listings() []*booking.Listing {
	return []*booking.Listing{
		{
			ID:                  "himalaya-101",
			Title:               "Himalaya 101",
			Description:         "Ground floor room facing the lawn, attached bath.",
			Type:                booking.RoomTypeBoth,
			SingleOccupancyRate: 1000,
			DoubleOccupancyRate: 1500,
		},
		{
			ID:                  "himalaya-102",
			Title:               "Himalaya 102",
			Description:         "Corner room with a study desk.",
			Type:                booking.RoomTypeAC,
			SingleOccupancyRate: 1200,
			DoubleOccupancyRate: 1700,
		},
		{
			ID:                  "nilgiri-201",
			Title:               "Nilgiri 201",
			Description:         "First floor room near the dining hall.",
			Type:                booking.RoomTypeNonAC,
			SingleOccupancyRate: 700,
			DoubleOccupancyRate: 1100,
		},
	}
}

func Up(ctx context.Context, l *logger.Logger, storage storage) (err error) {
	if m, ok := storage.(schemaMigrator); ok {
		if err := m.AutoMigrate(ctx); err != nil {
			return fmt.Errorf("migrate schema: %w", err)
		}

		l.LogInfo("Schema is up to date")
	}

	ctx, err = storage.BeginTransaction(ctx, "")
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := storage.RollbackTransaction(ctx); rbErr != nil {
				l.LogErrorf("Could not rollback migration transaction after panic %v", p)
			}

			l.LogInfo("Migration transaction has been roll backed after panic")

			panic(p)
		}

		if err != nil {
			if rbErr := storage.RollbackTransaction(ctx); rbErr != nil {
				l.LogErrorf("Could not rollback migration transaction after error %v", rbErr.Error())
			}

			l.LogInfo("Migration transaction has been roll backed after error")

			return
		}

		if err = storage.CommitTransaction(ctx); err != nil {
			l.LogErrorf("Could not commit migration transaction, err %v", err.Error())

			return
		}

		l.LogInfo("Migration transaction has been committed")
	}()

	if err = storage.SaveListings(ctx, Listings()); err != nil {
		return fmt.Errorf("save listings to storage: %w", err)
	}

	return nil
}
