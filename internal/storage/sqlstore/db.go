package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/avstrong/roomstay/internal/booking"
	"github.com/avstrong/roomstay/internal/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var (
	ErrUnknownDriver       = errors.New("unknown storage driver")
	ErrTransactionNotFound = errors.New("transaction not found in context")
)

type Config struct {
	L      *logger.Logger
	Driver string
	DSN    string
}

type DB struct {
	l      *logger.Logger
	gdb    *gorm.DB
	driver string
}

func Open(conf Config) (*DB, error) {
	var dialector gorm.Dialector

	switch conf.Driver {
	case DriverPostgres:
		dialector = postgres.Open(conf.DSN)
	case DriverSQLite:
		dialector = sqlite.Open(conf.DSN)
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownDriver, conf.Driver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Discard,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %v database: %w", conf.Driver, err)
	}

	if conf.Driver == DriverSQLite {
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, fmt.Errorf("get sqlite handle: %w", err)
		}

		// sqlite has a single writer; one connection also keeps ":memory:" databases shared.
		sqlDB.SetMaxOpenConns(1)
	}

	return &DB{
		l:      conf.L,
		gdb:    gdb,
		driver: conf.Driver,
	}, nil
}

func (db *DB) AutoMigrate(ctx context.Context) error {
	if err := db.gdb.WithContext(ctx).AutoMigrate(models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	return nil
}

func (db *DB) Close() error {
	sqlDB, err := db.gdb.DB()
	if err != nil {
		return fmt.Errorf("get sql handle: %w", err)
	}

	return sqlDB.Close()
}

func (db *DB) BeginTransaction(ctx context.Context, level string) (context.Context, error) {
	var opts *sql.TxOptions
	if db.driver == DriverPostgres {
		opts = &sql.TxOptions{Isolation: isolationLevel(level)}
	}

	tx := db.gdb.WithContext(ctx).Begin(opts)
	if tx.Error != nil {
		return ctx, fmt.Errorf("begin transaction: %w", tx.Error)
	}

	return withTransaction(ctx, tx), nil
}

func (db *DB) CommitTransaction(ctx context.Context) error {
	tx, ok := transactionFromContext(ctx)
	if !ok {
		return ErrTransactionNotFound
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

func (db *DB) RollbackTransaction(ctx context.Context) error {
	tx, ok := transactionFromContext(ctx)
	if !ok {
		return ErrTransactionNotFound
	}

	if err := tx.Rollback().Error; err != nil {
		return fmt.Errorf("rollback transaction: %w", err)
	}

	return nil
}

func (db *DB) SaveListings(ctx context.Context, listings []*booking.Listing) error {
	tx, ok := transactionFromContext(ctx)
	if !ok {
		return ErrTransactionNotFound
	}

	if len(listings) == 0 {
		return nil
	}

	rows := make([]listingRow, 0, len(listings))
	for _, l := range listings {
		rows = append(rows, toListingRow(l))
	}

	if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error; err != nil {
		return fmt.Errorf("save listings: %w", err)
	}

	return nil
}

// ReserveBooking locks the listing row so that concurrent reservations of one listing are serialised,
// then repeats the conflict check and writes b.
func (db *DB) ReserveBooking(ctx context.Context, b *booking.Booking, from booking.Status, policy booking.ConflictPolicy) error {
	tx, ok := transactionFromContext(ctx)
	if !ok {
		return ErrTransactionNotFound
	}

	if err := db.lockListing(tx, b.ListingID); err != nil {
		return err
	}

	if b.Status.Blocking() {
		candidates, err := listBlocking(tx, b.ListingID)
		if err != nil {
			return err
		}

		conflicts := booking.FindConflicts(candidates, b.ListingID, b.Range(), policy, b.ID)
		if len(conflicts) > 0 {
			return &booking.AvailabilityConflictError{
				ListingID: b.ListingID,
				Range:     b.Range(),
				Conflicts: conflicts,
			}
		}
	}

	if from == "" {
		row := toBookingRow(b)
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert booking %v: %w", b.ID, err)
		}

		return nil
	}

	return compareAndSet(tx, b, from)
}

func (db *DB) UpdateBookingStatus(ctx context.Context, b *booking.Booking, from booking.Status) error {
	tx, ok := transactionFromContext(ctx)
	if !ok {
		return ErrTransactionNotFound
	}

	if from == "" {
		return fmt.Errorf("update booking %v without expected status: %w", b.ID, booking.ErrLogic)
	}

	return compareAndSet(tx, b, from)
}

func (db *DB) lockListing(tx *gorm.DB, listingID string) error {
	q := tx
	if db.driver == DriverPostgres {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var row listingRow
	if err := q.Where("id = ?", listingID).Take(&row).Error; err != nil {
		return wrapNotFound(fmt.Sprintf("lock listing %v", listingID), err)
	}

	return nil
}

func listBlocking(tx *gorm.DB, listingID string) ([]*booking.Booking, error) {
	var rows []bookingRow

	err := tx.Where("listing_id = ? AND status IN ?", listingID,
		[]string{string(booking.StatusAwaitingPayment), string(booking.StatusBooked)}).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list blocking bookings of %v: %w", listingID, err)
	}

	return toBookings(rows), nil
}

func compareAndSet(tx *gorm.DB, b *booking.Booking, from booking.Status) error {
	row := toBookingRow(b)

	res := tx.Model(&bookingRow{}).
		Where("id = ? AND status = ?", b.ID, string(from)).
		Updates(map[string]any{
			"status":            row.Status,
			"total_cost":        row.TotalCost,
			"payment_id":        row.PaymentID,
			"payment_signature": row.PaymentSignature,
			"updated_at":        row.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("update booking %v: %w", b.ID, res.Error)
	}

	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := tx.Model(&bookingRow{}).Where("id = ?", b.ID).Count(&count).Error; err != nil {
		return fmt.Errorf("count booking %v: %w", b.ID, err)
	}

	if count == 0 {
		return fmt.Errorf("booking %v: %w", b.ID, booking.ErrRecordNotFound)
	}

	return fmt.Errorf("booking %v is no longer %v: %w", b.ID, from, booking.ErrStatusChanged)
}

func (db *DB) SaveOrder(ctx context.Context, order *booking.PaymentOrder) error {
	tx, ok := transactionFromContext(ctx)
	if !ok {
		return ErrTransactionNotFound
	}

	row := toOrderRow(order)
	if key, ok := booking.IdempotencyKeyFromContext(ctx); ok {
		row.IdempotencyKey = &key

		var taken int64
		if err := tx.Model(&orderRow{}).
			Where("idempotency_key = ? AND order_id <> ?", key, order.OrderID).
			Count(&taken).Error; err != nil {
			return fmt.Errorf("check idempotency key of order %v: %w", order.OrderID, err)
		}

		if taken > 0 {
			return fmt.Errorf("order %v: %w", order.OrderID, booking.ErrDuplicateIdempotencyKey)
		}
	}

	// Only a repeated order id is a no-op; a key taken concurrently must fail the transaction.
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}},
		DoNothing: true,
	}).Create(&row).Error

	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("order %v: %w", order.OrderID, booking.ErrDuplicateIdempotencyKey)
	case err != nil:
		return fmt.Errorf("save order %v: %w", order.OrderID, err)
	}

	return nil
}

func (db *DB) SaveEvent(ctx context.Context, event *booking.Event) error {
	tx, ok := transactionFromContext(ctx)
	if !ok {
		return ErrTransactionNotFound
	}

	row := toEventRow(event)
	if err := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).Create(&row).Error; err != nil {
		return fmt.Errorf("save event %v: %w", event.ID, err)
	}

	return nil
}

func (db *DB) GetListing(ctx context.Context, id string) (*booking.Listing, error) {
	var row listingRow
	if err := db.conn(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return nil, wrapNotFound(fmt.Sprintf("get listing %v", id), err)
	}

	return row.toListing(), nil
}

func (db *DB) ListListings(ctx context.Context) ([]*booking.Listing, error) {
	var rows []listingRow
	if err := db.conn(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}

	res := make([]*booking.Listing, 0, len(rows))
	for i := range rows {
		res = append(res, rows[i].toListing())
	}

	return res, nil
}

func (db *DB) GetBooking(ctx context.Context, id string) (*booking.Booking, error) {
	var row bookingRow
	if err := db.conn(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return nil, wrapNotFound(fmt.Sprintf("get booking %v", id), err)
	}

	return row.toBooking(), nil
}

func (db *DB) GetBookingByOrderID(ctx context.Context, orderID string) (*booking.Booking, error) {
	var row bookingRow
	if err := db.conn(ctx).Where("order_id = ?", orderID).Take(&row).Error; err != nil {
		return nil, wrapNotFound(fmt.Sprintf("get booking of order %v", orderID), err)
	}

	return row.toBooking(), nil
}

func (db *DB) ListBookingsByListing(ctx context.Context, listingID string, rng booking.DateRange) ([]*booking.Booking, error) {
	var rows []bookingRow
	if err := db.conn(ctx).Where("listing_id = ?", listingID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list bookings of listing %v: %w", listingID, err)
	}

	res := make([]*booking.Booking, 0, len(rows))
	for _, b := range toBookings(rows) {
		if b.Range().Overlaps(rng) {
			res = append(res, b)
		}
	}

	return res, nil
}

func (db *DB) ListBookingsByOwner(ctx context.Context, ownerID string) ([]*booking.Booking, error) {
	var rows []bookingRow
	if err := db.conn(ctx).Where("owner_id = ?", ownerID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list bookings of owner %v: %w", ownerID, err)
	}

	return sorted(toBookings(rows)), nil
}

func (db *DB) ListBookingsByStatus(ctx context.Context, status booking.Status) ([]*booking.Booking, error) {
	var rows []bookingRow
	if err := db.conn(ctx).Where("status = ?", string(status)).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list %v bookings: %w", status, err)
	}

	return sorted(toBookings(rows)), nil
}

func (db *DB) GetOrder(ctx context.Context, orderID string) (*booking.PaymentOrder, error) {
	var row orderRow
	if err := db.conn(ctx).Where("order_id = ?", orderID).Take(&row).Error; err != nil {
		return nil, wrapNotFound(fmt.Sprintf("get order %v", orderID), err)
	}

	return row.toOrder(), nil
}

func (db *DB) GetOrderByIdempotencyKey(ctx context.Context) (*booking.PaymentOrder, error) {
	key, ok := booking.IdempotencyKeyFromContext(ctx)
	if !ok {
		return nil, booking.ErrIdempotencyKey
	}

	var row orderRow
	if err := db.conn(ctx).Where("idempotency_key = ?", key).Take(&row).Error; err != nil {
		return nil, wrapNotFound("get order by idempotency key", err)
	}

	return row.toOrder(), nil
}

func (db *DB) conn(ctx context.Context) *gorm.DB {
	if tx, ok := transactionFromContext(ctx); ok {
		return tx
	}

	return db.gdb.WithContext(ctx)
}

func toBookings(rows []bookingRow) []*booking.Booking {
	res := make([]*booking.Booking, 0, len(rows))
	for i := range rows {
		res = append(res, rows[i].toBooking())
	}

	return res
}

func sorted(bookings []*booking.Booking) []*booking.Booking {
	sort.Slice(bookings, func(i, j int) bool {
		if !bookings[i].CreatedAt.Equal(bookings[j].CreatedAt) {
			return bookings[i].CreatedAt.After(bookings[j].CreatedAt)
		}

		return bookings[i].ID < bookings[j].ID
	})

	return bookings
}

func wrapNotFound(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%v: %w", op, booking.ErrRecordNotFound)
	}

	return fmt.Errorf("%v: %w", op, err)
}

func isolationLevel(level string) sql.IsolationLevel {
	switch level {
	case "READ COMMITTED":
		return sql.LevelReadCommitted
	case "REPEATABLE READ":
		return sql.LevelRepeatableRead
	case "SERIALIZABLE":
		return sql.LevelSerializable
	default:
		return sql.LevelDefault
	}
}
