package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/avstrong/roomstay/internal/booking"
	"github.com/avstrong/roomstay/internal/logger"
)

type Config struct {
	L *logger.Logger
}

type bookingModification struct {
	booking *booking.Booking
	from    booking.Status
	policy  booking.ConflictPolicy
	reserve bool
}

type transaction struct {
	id                   string
	listingModifications map[string]*booking.Listing
	bookingModifications map[string]*bookingModification
	orderModifications   map[string]*booking.PaymentOrder
	eventModifications   map[string]*booking.Event
}

// DB buffers writes per transaction and validates them again at commit time, so the
// check-and-reserve of a booking is atomic with respect to every other transaction.
type DB struct {
	mu                   sync.Mutex
	l                    *logger.Logger
	listings             map[string]*booking.Listing
	bookings             map[string]*booking.Booking
	bookingsByOrder      map[string]string
	orders               map[string]*booking.PaymentOrder
	events               map[string]*booking.Event
	transactions         map[string]*transaction
	nextTrxID            int64
	orderIdempotencyKeys map[string]*booking.PaymentOrder
}

func New(conf Config) *DB {
	//nolint:exhaustruct
	return &DB{
		l:                    conf.L,
		listings:             make(map[string]*booking.Listing),
		bookings:             make(map[string]*booking.Booking),
		bookingsByOrder:      make(map[string]string),
		orders:               make(map[string]*booking.PaymentOrder),
		events:               make(map[string]*booking.Event),
		transactions:         make(map[string]*transaction),
		orderIdempotencyKeys: make(map[string]*booking.PaymentOrder),
	}
}

func (db *DB) BeginTransaction(ctx context.Context, _ string) (context.Context, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	trxID := fmt.Sprintf("trx-%d", db.nextTrxID)
	db.nextTrxID++

	db.transactions[trxID] = &transaction{
		id:                   trxID,
		listingModifications: make(map[string]*booking.Listing),
		bookingModifications: make(map[string]*bookingModification),
		orderModifications:   make(map[string]*booking.PaymentOrder),
		eventModifications:   make(map[string]*booking.Event),
	}

	return withTransactionID(ctx, trxID), nil
}

func (db *DB) CommitTransaction(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	trx, err := db.transactionFromContext(ctx)
	if err != nil {
		return err
	}

	defer delete(db.transactions, trx.id)

	for _, mod := range trx.bookingModifications {
		if err := db.validateModification(mod); err != nil {
			return err
		}
	}

	for id := range trx.orderModifications {
		if err := db.checkIdempotencyKey(ctx, id); err != nil {
			return err
		}
	}

	for id, listing := range trx.listingModifications {
		db.listings[id] = listing
	}

	for id, mod := range trx.bookingModifications {
		db.bookings[id] = mod.booking
		if mod.booking.OrderID != "" {
			db.bookingsByOrder[mod.booking.OrderID] = id
		}
	}

	idempotencyKey, hasKey := booking.IdempotencyKeyFromContext(ctx)

	for id, order := range trx.orderModifications {
		db.orders[id] = order

		if hasKey {
			db.orderIdempotencyKeys[idempotencyKey] = order
		}
	}

	for id, event := range trx.eventModifications {
		db.events[id] = event
	}

	return nil
}

func (db *DB) RollbackTransaction(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	trx, err := db.transactionFromContext(ctx)
	if err != nil {
		return err
	}

	delete(db.transactions, trx.id)

	return nil
}

// validateModification repeats the guards of ReserveBooking/UpdateBookingStatus against committed state.
func (db *DB) validateModification(mod *bookingModification) error {
	current, exists := db.bookings[mod.booking.ID]

	switch {
	case mod.from == "" && exists:
		return fmt.Errorf("booking %v already exists: %w", mod.booking.ID, booking.ErrLogic)
	case mod.from != "" && (!exists || current.Status != mod.from):
		return fmt.Errorf("booking %v: %w", mod.booking.ID, booking.ErrStatusChanged)
	}

	if !mod.reserve {
		return nil
	}

	return db.conflictError(db.committedBookings(), mod.booking, mod.policy)
}

func (db *DB) conflictError(candidates []*booking.Booking, b *booking.Booking, policy booking.ConflictPolicy) error {
	conflicts := booking.FindConflicts(candidates, b.ListingID, b.Range(), policy, b.ID)
	if len(conflicts) == 0 {
		return nil
	}

	return &booking.AvailabilityConflictError{
		ListingID: b.ListingID,
		Range:     b.Range(),
		Conflicts: cloneAll(conflicts),
	}
}

func (db *DB) committedBookings() []*booking.Booking {
	res := make([]*booking.Booking, 0, len(db.bookings))
	for _, b := range db.bookings {
		res = append(res, b)
	}

	return res
}

func (db *DB) visibleBookings(trx *transaction) []*booking.Booking {
	res := make([]*booking.Booking, 0, len(db.bookings)+len(trx.bookingModifications))

	for id, b := range db.bookings {
		if _, modified := trx.bookingModifications[id]; modified {
			continue
		}

		res = append(res, b)
	}

	for _, mod := range trx.bookingModifications {
		res = append(res, mod.booking)
	}

	return res
}

func (db *DB) SaveListings(ctx context.Context, listings []*booking.Listing) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	trx, err := db.transactionFromContext(ctx)
	if err != nil {
		return err
	}

	for _, listing := range listings {
		l := *listing
		trx.listingModifications[l.ID] = &l
	}

	return nil
}

func (db *DB) ReserveBooking(ctx context.Context, b *booking.Booking, from booking.Status, policy booking.ConflictPolicy) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	trx, err := db.transactionFromContext(ctx)
	if err != nil {
		return err
	}

	if err := db.checkFrom(trx, b.ID, from); err != nil {
		return err
	}

	if err := db.conflictError(db.visibleBookings(trx), b, policy); err != nil {
		return err
	}

	trx.bookingModifications[b.ID] = &bookingModification{
		booking: b.Clone(),
		from:    from,
		policy:  policy,
		reserve: b.Status.Blocking(),
	}

	return nil
}

func (db *DB) UpdateBookingStatus(ctx context.Context, b *booking.Booking, from booking.Status) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	trx, err := db.transactionFromContext(ctx)
	if err != nil {
		return err
	}

	if from == "" {
		return fmt.Errorf("update booking %v without expected status: %w", b.ID, booking.ErrLogic)
	}

	if err := db.checkFrom(trx, b.ID, from); err != nil {
		return err
	}

	//nolint:exhaustruct
	trx.bookingModifications[b.ID] = &bookingModification{
		booking: b.Clone(),
		from:    from,
	}

	return nil
}

func (db *DB) checkFrom(trx *transaction, id string, from booking.Status) error {
	current, exists := db.bookings[id]
	if mod, ok := trx.bookingModifications[id]; ok {
		current, exists = mod.booking, true
	}

	if from == "" {
		if exists {
			return fmt.Errorf("booking %v already exists: %w", id, booking.ErrLogic)
		}

		return nil
	}

	if !exists {
		return fmt.Errorf("booking %v: %w", id, booking.ErrRecordNotFound)
	}

	if current.Status != from {
		return fmt.Errorf("booking %v is %v, expected %v: %w", id, current.Status, from, booking.ErrStatusChanged)
	}

	return nil
}

func (db *DB) SaveOrder(ctx context.Context, order *booking.PaymentOrder) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	trx, err := db.transactionFromContext(ctx)
	if err != nil {
		return err
	}

	if _, ok := trx.orderModifications[order.OrderID]; ok {
		return nil
	}

	if err := db.checkIdempotencyKey(ctx, order.OrderID); err != nil {
		return err
	}

	o := *order
	trx.orderModifications[order.OrderID] = &o

	return nil
}

// checkIdempotencyKey must be called with db.mu held.
func (db *DB) checkIdempotencyKey(ctx context.Context, orderID string) error {
	key, ok := booking.IdempotencyKeyFromContext(ctx)
	if !ok {
		return nil
	}

	if existing, ok := db.orderIdempotencyKeys[key]; ok && existing.OrderID != orderID {
		return fmt.Errorf("order %v: %w", orderID, booking.ErrDuplicateIdempotencyKey)
	}

	return nil
}

func (db *DB) SaveEvent(ctx context.Context, event *booking.Event) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	trx, err := db.transactionFromContext(ctx)
	if err != nil {
		return err
	}

	if _, ok := trx.eventModifications[event.ID]; ok {
		return nil
	}

	e := *event
	trx.eventModifications[event.ID] = &e

	return nil
}

func (db *DB) GetListing(_ context.Context, id string) (*booking.Listing, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	listing, ok := db.listings[id]
	if !ok {
		return nil, booking.ErrRecordNotFound
	}

	l := *listing

	return &l, nil
}

func (db *DB) ListListings(_ context.Context) ([]*booking.Listing, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	res := make([]*booking.Listing, 0, len(db.listings))

	for _, listing := range db.listings {
		l := *listing
		res = append(res, &l)
	}

	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })

	return res, nil
}

func (db *DB) GetBooking(_ context.Context, id string) (*booking.Booking, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	b, ok := db.bookings[id]
	if !ok {
		return nil, booking.ErrRecordNotFound
	}

	return b.Clone(), nil
}

func (db *DB) GetBookingByOrderID(_ context.Context, orderID string) (*booking.Booking, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	id, ok := db.bookingsByOrder[orderID]
	if !ok {
		return nil, booking.ErrRecordNotFound
	}

	return db.bookings[id].Clone(), nil
}

func (db *DB) ListBookingsByListing(_ context.Context, listingID string, rng booking.DateRange) ([]*booking.Booking, error) {
	return db.filterBookings(func(b *booking.Booking) bool {
		return b.ListingID == listingID && b.Range().Overlaps(rng)
	}), nil
}

func (db *DB) ListBookingsByOwner(_ context.Context, ownerID string) ([]*booking.Booking, error) {
	return db.filterBookings(func(b *booking.Booking) bool {
		return b.OwnerID == ownerID
	}), nil
}

func (db *DB) ListBookingsByStatus(_ context.Context, status booking.Status) ([]*booking.Booking, error) {
	return db.filterBookings(func(b *booking.Booking) bool {
		return b.Status == status
	}), nil
}

func (db *DB) filterBookings(keep func(b *booking.Booking) bool) []*booking.Booking {
	db.mu.Lock()
	defer db.mu.Unlock()

	var res []*booking.Booking

	for _, b := range db.bookings {
		if keep(b) {
			res = append(res, b.Clone())
		}
	}

	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].ID < res[j].ID
		}

		return res[i].CreatedAt.After(res[j].CreatedAt)
	})

	return res
}

func (db *DB) GetOrder(_ context.Context, orderID string) (*booking.PaymentOrder, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	order, ok := db.orders[orderID]
	if !ok {
		return nil, booking.ErrRecordNotFound
	}

	o := *order

	return &o, nil
}

func (db *DB) GetOrderByIdempotencyKey(ctx context.Context) (*booking.PaymentOrder, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	key, ok := booking.IdempotencyKeyFromContext(ctx)
	if !ok {
		return nil, booking.ErrIdempotencyKey
	}

	order, exists := db.orderIdempotencyKeys[key]
	if !exists {
		return nil, booking.ErrRecordNotFound
	}

	o := *order

	return &o, nil
}

func (db *DB) transactionFromContext(ctx context.Context) (*transaction, error) {
	trxID, ok := transactionIDFromContext(ctx)
	if !ok || trxID == "" {
		return nil, ErrTransactionIDNotFoundInCtx
	}

	trx, exists := db.transactions[trxID]
	if !exists {
		return nil, fmt.Errorf("transaction %s not found: %w", trxID, ErrTransactionNotFound)
	}

	return trx, nil
}

func cloneAll(bookings []*booking.Booking) []*booking.Booking {
	res := make([]*booking.Booking, 0, len(bookings))
	for _, b := range bookings {
		res = append(res, b.Clone())
	}

	return res
}
