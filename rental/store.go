/*
store.go - Persistence interfaces for the rental engine

PURPOSE:
  Defines the interface between domain logic and the database. Different
  implementations use SQLite (production) or in-memory maps (tests/dev).

KEY INTERFACES:
  Store:   All persisted reads and writes (users, cars, calendar, bookings,
           wallet entries, notifications, recovery questions)
  TxStore: Store plus WithTx for atomic multi-table writes

SETTLEMENT ATOMICITY:
  A settlement is {availability re-check, renter debit, booking insert,
  owner credit}. The orchestrator runs all four against the Store handed to
  it by WithTx: either everything commits or nothing does. Implementations
  must also serialize concurrent WithTx calls so that wallet read-modify-write
  never loses an update.

NON-OVERLAP ENFORCEMENT:
  InsertBooking for a confirmed booking writes one row per rented day under a
  (car, date) uniqueness constraint. Two settlements racing for overlapping
  dates cannot both commit: the loser gets ErrConcurrencyConflict.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite (same SQL works on PostgreSQL)
  - rental/store/memory.go: In-memory for testing

SEE ALSO:
  - settlement.go: The only writer of bookings and settlement wallet entries
  - wallet.go: Balance operations built on this interface
*/
package rental

import "context"

// =============================================================================
// STORE - All persisted state
// =============================================================================

type Store interface {
	// Users
	SaveUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id UserID) (*User, error)

	// Cars
	SaveCar(ctx context.Context, c Car) error
	GetCar(ctx context.Context, id CarID) (*Car, error)
	ListCars(ctx context.Context) ([]Car, error)

	// Calendar blocks. SetBlocked upserts: last write for (car, date) wins.
	SetBlocked(ctx context.Context, carID CarID, date Date, blocked bool) error
	ListBlocked(ctx context.Context, carID CarID) ([]Date, error)
	BlockedWithin(ctx context.Context, carID CarID, r DateRange) ([]Date, error)

	// Bookings. InsertBooking enforces per-day (car, date) uniqueness for
	// confirmed bookings and returns ErrConcurrencyConflict on violation.
	InsertBooking(ctx context.Context, b Booking) error
	GetBooking(ctx context.Context, id BookingID) (*Booking, error)
	ListConfirmedOverlapping(ctx context.Context, carID CarID, r DateRange) ([]Booking, error)
	ListBookingsForCar(ctx context.Context, carID CarID) ([]Booking, error)
	ListBookingsForRenter(ctx context.Context, renterID UserID) ([]Booking, error)
	ListBookingsForOwner(ctx context.Context, ownerID UserID) ([]Booking, error)
	// HasConfirmedFrom reports whether the car has any confirmed booking
	// ending on or after the given day (used by car retirement).
	HasConfirmedFrom(ctx context.Context, carID CarID, from Date) (bool, error)

	// Wallet. ApplyWalletEntry atomically adjusts the user's balance by
	// entry.Delta and records the entry. Fails with ErrInsufficientFunds if
	// the balance would go negative, ErrUserNotFound if the user is missing.
	ApplyWalletEntry(ctx context.Context, entry WalletEntry) error
	ListWalletEntries(ctx context.Context, userID UserID) ([]WalletEntry, error)

	// Notifications (append-only, per-user, timestamp-ordered).
	AppendNotification(ctx context.Context, n Notification) error
	ListNotifications(ctx context.Context, userID UserID) ([]Notification, error)

	// Reviews. SaveReview enforces one review per (booking, reviewer) and
	// returns ErrConcurrencyConflict on violation.
	SaveReview(ctx context.Context, rv Review) error
	GetReview(ctx context.Context, bookingID BookingID, reviewerID UserID) (*Review, error)
	ListReviewsReceived(ctx context.Context, revieweeID UserID) ([]Review, error)

	// Account recovery questions, ordered.
	SaveRecoveryQuestions(ctx context.Context, userID UserID, qs []RecoveryQuestion) error
	GetRecoveryQuestions(ctx context.Context, userID UserID) ([]RecoveryQuestion, error)
}

// =============================================================================
// TRANSACTIONAL STORE - For atomic operations across multiple writes
// =============================================================================

// TxStore wraps Store with transaction support. The settlement orchestrator
// requires it: debit, insert, and credit must be all-or-nothing.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	// Concurrent WithTx calls serialize.
	WithTx(ctx context.Context, fn func(Store) error) error
}
