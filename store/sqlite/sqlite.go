/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements rental.TxStore using SQLite. In production, the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  users:              Marketplace accounts; balance lives on the row
  cars:               Vehicle listings (soft-retired, never deleted)
  calendar_blocks:    Owner blackout dates, one row per (car, date)
  bookings:           Reservation records with status and cost
  booking_days:       One row per rented day of a confirmed booking
  wallet_entries:     Immutable audit of every balance change
  notifications:      Per-user settlement outcome feed
  reviews:            Post-booking ratings, one per (booking, reviewer)
  recovery_questions: Ordered security questions per user

NON-OVERLAP ENFORCEMENT:
  idx_unique_booking_day on booking_days(car_id, date) is the backstop for
  the double-booking invariant: a confirmed booking writes one row per day,
  so two overlapping settlements cannot both commit even if both passed the
  in-transaction availability re-check. The loser surfaces
  rental.ErrConcurrencyConflict.

MONEY:
  Balances, prices, and deltas are stored as decimal strings, never floats.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety; WithTx holds the write lock for the
  whole transaction so wallet read-modify-write never loses an update. In
  production with PostgreSQL, SELECT ... FOR UPDATE row locking replaces
  this.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block, a single writer at a time, better crash
  recovery.

USAGE:
  store, err := sqlite.New("./data/rental.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - rental/store.go: Interface definitions
  - rental/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/driveway/rental-engine/rental"
)

// Store implements rental.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		balance TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cars (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		make TEXT NOT NULL,
		model TEXT NOT NULL,
		year INTEGER NOT NULL,
		mileage INTEGER NOT NULL,
		color TEXT,
		price TEXT NOT NULL,
		location TEXT NOT NULL,
		retired BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_cars_owner ON cars(owner_id);

	-- Owner blackout dates; last write per (car, date) wins via upsert.
	CREATE TABLE IF NOT EXISTS calendar_blocks (
		car_id TEXT NOT NULL,
		date TEXT NOT NULL,
		blocked BOOLEAN NOT NULL,
		PRIMARY KEY (car_id, date)
	);

	CREATE TABLE IF NOT EXISTS bookings (
		id TEXT PRIMARY KEY,
		car_id TEXT NOT NULL,
		renter_id TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		status TEXT NOT NULL,
		total_cost TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Hot path: overlap checks and per-car listings.
	CREATE INDEX IF NOT EXISTS idx_bookings_car_dates
		ON bookings(car_id, status, start_date, end_date);
	CREATE INDEX IF NOT EXISTS idx_bookings_renter
		ON bookings(renter_id, start_date DESC);
	CREATE INDEX IF NOT EXISTS idx_bookings_owner
		ON bookings(owner_id, start_date DESC);

	-- CRITICAL: one row per rented day of a confirmed booking. The unique
	-- index makes double-booking impossible at the database level: two
	-- settlements racing for overlapping dates cannot both commit.
	CREATE TABLE IF NOT EXISTS booking_days (
		booking_id TEXT NOT NULL,
		car_id TEXT NOT NULL,
		date TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_booking_day
		ON booking_days(car_id, date);

	-- Immutable audit of balance changes (append-only).
	CREATE TABLE IF NOT EXISTS wallet_entries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		delta TEXT NOT NULL,
		kind TEXT NOT NULL,
		reference_id TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_wallet_entries_user
		ON wallet_entries(user_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		message TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notifications_user
		ON notifications(user_id, created_at ASC);

	CREATE TABLE IF NOT EXISTS reviews (
		id TEXT PRIMARY KEY,
		booking_id TEXT NOT NULL,
		reviewer_id TEXT NOT NULL,
		reviewee_id TEXT NOT NULL,
		rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
		comment TEXT,
		created_at TEXT NOT NULL,
		FOREIGN KEY (booking_id) REFERENCES bookings(id)
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_booking_reviewer
		ON reviews(booking_id, reviewer_id);

	CREATE INDEX IF NOT EXISTS idx_reviews_reviewee
		ON reviews(reviewee_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS recovery_questions (
		user_id TEXT NOT NULL,
		ord INTEGER NOT NULL,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		PRIMARY KEY (user_id, ord)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so every query helper works
// inside and outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// TRANSACTIONAL STORE (rental.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction. The store-wide write
// lock is held for the duration, serializing settlements.
func (s *Store) WithTx(ctx context.Context, fn func(rental.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &rental.StoreError{Op: "begin tx", Err: err}
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{q: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return &rental.StoreError{Op: "commit tx", Err: err}
	}
	return nil
}

// txStore routes every Store method through the open transaction.
type txStore struct {
	q *sql.Tx
}

func (t *txStore) SaveUser(ctx context.Context, u rental.User) error {
	return saveUser(ctx, t.q, u)
}
func (t *txStore) GetUser(ctx context.Context, id rental.UserID) (*rental.User, error) {
	return getUser(ctx, t.q, id)
}
func (t *txStore) SaveCar(ctx context.Context, c rental.Car) error {
	return saveCar(ctx, t.q, c)
}
func (t *txStore) GetCar(ctx context.Context, id rental.CarID) (*rental.Car, error) {
	return getCar(ctx, t.q, id)
}
func (t *txStore) ListCars(ctx context.Context) ([]rental.Car, error) {
	return listCars(ctx, t.q)
}
func (t *txStore) SetBlocked(ctx context.Context, carID rental.CarID, date rental.Date, blocked bool) error {
	return setBlocked(ctx, t.q, carID, date, blocked)
}
func (t *txStore) ListBlocked(ctx context.Context, carID rental.CarID) ([]rental.Date, error) {
	return listBlocked(ctx, t.q, carID)
}
func (t *txStore) BlockedWithin(ctx context.Context, carID rental.CarID, r rental.DateRange) ([]rental.Date, error) {
	return blockedWithin(ctx, t.q, carID, r)
}
func (t *txStore) InsertBooking(ctx context.Context, b rental.Booking) error {
	return insertBooking(ctx, t.q, b)
}
func (t *txStore) GetBooking(ctx context.Context, id rental.BookingID) (*rental.Booking, error) {
	return getBooking(ctx, t.q, id)
}
func (t *txStore) ListConfirmedOverlapping(ctx context.Context, carID rental.CarID, r rental.DateRange) ([]rental.Booking, error) {
	return listConfirmedOverlapping(ctx, t.q, carID, r)
}
func (t *txStore) ListBookingsForCar(ctx context.Context, carID rental.CarID) ([]rental.Booking, error) {
	return listBookingsBy(ctx, t.q, "car_id", string(carID))
}
func (t *txStore) ListBookingsForRenter(ctx context.Context, renterID rental.UserID) ([]rental.Booking, error) {
	return listBookingsBy(ctx, t.q, "renter_id", string(renterID))
}
func (t *txStore) ListBookingsForOwner(ctx context.Context, ownerID rental.UserID) ([]rental.Booking, error) {
	return listBookingsBy(ctx, t.q, "owner_id", string(ownerID))
}
func (t *txStore) HasConfirmedFrom(ctx context.Context, carID rental.CarID, from rental.Date) (bool, error) {
	return hasConfirmedFrom(ctx, t.q, carID, from)
}
func (t *txStore) ApplyWalletEntry(ctx context.Context, e rental.WalletEntry) error {
	return applyWalletEntry(ctx, t.q, e)
}
func (t *txStore) ListWalletEntries(ctx context.Context, userID rental.UserID) ([]rental.WalletEntry, error) {
	return listWalletEntries(ctx, t.q, userID)
}
func (t *txStore) AppendNotification(ctx context.Context, n rental.Notification) error {
	return appendNotification(ctx, t.q, n)
}
func (t *txStore) ListNotifications(ctx context.Context, userID rental.UserID) ([]rental.Notification, error) {
	return listNotifications(ctx, t.q, userID)
}
func (t *txStore) SaveReview(ctx context.Context, rv rental.Review) error {
	return saveReview(ctx, t.q, rv)
}
func (t *txStore) GetReview(ctx context.Context, bookingID rental.BookingID, reviewerID rental.UserID) (*rental.Review, error) {
	return getReview(ctx, t.q, bookingID, reviewerID)
}
func (t *txStore) ListReviewsReceived(ctx context.Context, revieweeID rental.UserID) ([]rental.Review, error) {
	return listReviewsReceived(ctx, t.q, revieweeID)
}
func (t *txStore) SaveRecoveryQuestions(ctx context.Context, userID rental.UserID, qs []rental.RecoveryQuestion) error {
	return saveRecoveryQuestions(ctx, t.q, userID, qs)
}
func (t *txStore) GetRecoveryQuestions(ctx context.Context, userID rental.UserID) ([]rental.RecoveryQuestion, error) {
	return getRecoveryQuestions(ctx, t.q, userID)
}

// =============================================================================
// USERS
// =============================================================================

func (s *Store) SaveUser(ctx context.Context, u rental.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveUser(ctx, s.db, u)
}

func saveUser(ctx context.Context, q dbtx, u rental.User) error {
	// Balance is deliberately not touched on conflict: only wallet entries
	// move money.
	query := `
		INSERT INTO users (id, name, email, balance, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email
	`
	_, err := q.ExecContext(ctx, query,
		u.ID, u.Name, u.Email, u.Balance.String(),
		u.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return &rental.StoreError{Op: "save user", Err: err}
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id rental.UserID) (*rental.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getUser(ctx, s.db, id)
}

func getUser(ctx context.Context, q dbtx, id rental.UserID) (*rental.User, error) {
	var (
		u         rental.User
		balance   string
		createdAt string
	)
	err := q.QueryRowContext(ctx,
		"SELECT id, name, email, balance, created_at FROM users WHERE id = ?", id,
	).Scan(&u.ID, &u.Name, &u.Email, &balance, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &rental.StoreError{Op: "get user", Err: err}
	}

	u.Balance = rental.MustParseMoney(balance)
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &u, nil
}

// =============================================================================
// CARS
// =============================================================================

func (s *Store) SaveCar(ctx context.Context, c rental.Car) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveCar(ctx, s.db, c)
}

func saveCar(ctx context.Context, q dbtx, c rental.Car) error {
	query := `
		INSERT INTO cars (id, owner_id, make, model, year, mileage, color, price, location, retired, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			make = excluded.make,
			model = excluded.model,
			year = excluded.year,
			mileage = excluded.mileage,
			color = excluded.color,
			price = excluded.price,
			location = excluded.location,
			retired = excluded.retired
	`
	_, err := q.ExecContext(ctx, query,
		c.ID, c.OwnerID, c.Make, c.Model, c.Year, c.Mileage, c.Color,
		c.Price.String(), c.Location, c.Retired,
		c.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return &rental.StoreError{Op: "save car", Err: err}
	}
	return nil
}

func (s *Store) GetCar(ctx context.Context, id rental.CarID) (*rental.Car, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getCar(ctx, s.db, id)
}

func getCar(ctx context.Context, q dbtx, id rental.CarID) (*rental.Car, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, owner_id, make, model, year, mileage, color, price, location, retired, created_at
		FROM cars WHERE id = ?`, id)
	car, err := scanCar(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &rental.StoreError{Op: "get car", Err: err}
	}
	return &car, nil
}

func (s *Store) ListCars(ctx context.Context) ([]rental.Car, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listCars(ctx, s.db)
}

func listCars(ctx context.Context, q dbtx) ([]rental.Car, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, owner_id, make, model, year, mileage, color, price, location, retired, created_at
		FROM cars ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, &rental.StoreError{Op: "list cars", Err: err}
	}
	defer rows.Close()

	var cars []rental.Car
	for rows.Next() {
		car, err := scanCar(rows.Scan)
		if err != nil {
			return nil, &rental.StoreError{Op: "scan car", Err: err}
		}
		cars = append(cars, car)
	}
	return cars, rows.Err()
}

func scanCar(scan func(...any) error) (rental.Car, error) {
	var (
		c         rental.Car
		color     sql.NullString
		price     string
		createdAt string
	)
	err := scan(&c.ID, &c.OwnerID, &c.Make, &c.Model, &c.Year, &c.Mileage,
		&color, &price, &c.Location, &c.Retired, &createdAt)
	if err != nil {
		return c, err
	}
	c.Color = color.String
	c.Price = rental.MustParseMoney(price)
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return c, nil
}

// =============================================================================
// CALENDAR BLOCKS
// =============================================================================

func (s *Store) SetBlocked(ctx context.Context, carID rental.CarID, date rental.Date, blocked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setBlocked(ctx, s.db, carID, date, blocked)
}

func setBlocked(ctx context.Context, q dbtx, carID rental.CarID, date rental.Date, blocked bool) error {
	query := `
		INSERT INTO calendar_blocks (car_id, date, blocked)
		VALUES (?, ?, ?)
		ON CONFLICT(car_id, date) DO UPDATE SET
			blocked = excluded.blocked
	`
	_, err := q.ExecContext(ctx, query, carID, date.String(), blocked)
	if err != nil {
		return &rental.StoreError{Op: "set blocked", Err: err}
	}
	return nil
}

func (s *Store) ListBlocked(ctx context.Context, carID rental.CarID) ([]rental.Date, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listBlocked(ctx, s.db, carID)
}

func listBlocked(ctx context.Context, q dbtx, carID rental.CarID) ([]rental.Date, error) {
	return queryDates(ctx, q, `
		SELECT date FROM calendar_blocks
		WHERE car_id = ? AND blocked = TRUE
		ORDER BY date ASC`, carID)
}

func (s *Store) BlockedWithin(ctx context.Context, carID rental.CarID, r rental.DateRange) ([]rental.Date, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return blockedWithin(ctx, s.db, carID, r)
}

func blockedWithin(ctx context.Context, q dbtx, carID rental.CarID, r rental.DateRange) ([]rental.Date, error) {
	// ISO date strings compare lexicographically in calendar order.
	return queryDates(ctx, q, `
		SELECT date FROM calendar_blocks
		WHERE car_id = ? AND blocked = TRUE AND date >= ? AND date <= ?
		ORDER BY date ASC`, carID, r.Start.String(), r.End.String())
}

func queryDates(ctx context.Context, q dbtx, query string, args ...any) ([]rental.Date, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &rental.StoreError{Op: "query dates", Err: err}
	}
	defer rows.Close()

	var dates []rental.Date
	for rows.Next() {
		var ds string
		if err := rows.Scan(&ds); err != nil {
			return nil, &rental.StoreError{Op: "scan date", Err: err}
		}
		d, err := rental.ParseDate(ds)
		if err != nil {
			continue
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// =============================================================================
// BOOKINGS
// =============================================================================

// InsertBooking outside a settlement still needs the booking row and its day
// rows to land together, so it opens its own transaction.
func (s *Store) InsertBooking(ctx context.Context, b rental.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &rental.StoreError{Op: "begin tx", Err: err}
	}
	defer sqlTx.Rollback()

	if err := insertBooking(ctx, sqlTx, b); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return &rental.StoreError{Op: "commit booking", Err: err}
	}
	return nil
}

func insertBooking(ctx context.Context, q dbtx, b rental.Booking) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO bookings (id, car_id, renter_id, owner_id, start_date, end_date, status, total_cost, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.CarID, b.RenterID, b.OwnerID,
		b.Range.Start.String(), b.Range.End.String(),
		b.Status, b.TotalCost.String(),
		b.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return &rental.StoreError{Op: "insert booking", Err: err}
	}

	if b.Status != rental.BookingConfirmed {
		return nil
	}

	// One day row per rented day; the unique index turns a lost commit race
	// into a constraint violation here.
	for _, d := range b.Range.Dates() {
		_, err := q.ExecContext(ctx,
			"INSERT INTO booking_days (booking_id, car_id, date) VALUES (?, ?, ?)",
			b.ID, b.CarID, d.String(),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return rental.ErrConcurrencyConflict
			}
			return &rental.StoreError{Op: "insert booking day", Err: err}
		}
	}
	return nil
}

func (s *Store) GetBooking(ctx context.Context, id rental.BookingID) (*rental.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getBooking(ctx, s.db, id)
}

func getBooking(ctx context.Context, q dbtx, id rental.BookingID) (*rental.Booking, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, car_id, renter_id, owner_id, start_date, end_date, status, total_cost, created_at
		FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &rental.StoreError{Op: "get booking", Err: err}
	}
	return &b, nil
}

func (s *Store) ListConfirmedOverlapping(ctx context.Context, carID rental.CarID, r rental.DateRange) ([]rental.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listConfirmedOverlapping(ctx, s.db, carID, r)
}

func listConfirmedOverlapping(ctx context.Context, q dbtx, carID rental.CarID, r rental.DateRange) ([]rental.Booking, error) {
	// Closed-interval overlap: existing.start <= requested.end AND
	// existing.end >= requested.start.
	return queryBookings(ctx, q, `
		SELECT id, car_id, renter_id, owner_id, start_date, end_date, status, total_cost, created_at
		FROM bookings
		WHERE car_id = ? AND status = 'confirmed'
		  AND start_date <= ? AND end_date >= ?
		ORDER BY start_date DESC`,
		carID, r.End.String(), r.Start.String())
}

func (s *Store) ListBookingsForCar(ctx context.Context, carID rental.CarID) ([]rental.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listBookingsBy(ctx, s.db, "car_id", string(carID))
}

func (s *Store) ListBookingsForRenter(ctx context.Context, renterID rental.UserID) ([]rental.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listBookingsBy(ctx, s.db, "renter_id", string(renterID))
}

func (s *Store) ListBookingsForOwner(ctx context.Context, ownerID rental.UserID) ([]rental.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listBookingsBy(ctx, s.db, "owner_id", string(ownerID))
}

func listBookingsBy(ctx context.Context, q dbtx, column, value string) ([]rental.Booking, error) {
	query := fmt.Sprintf(`
		SELECT id, car_id, renter_id, owner_id, start_date, end_date, status, total_cost, created_at
		FROM bookings
		WHERE %s = ?
		ORDER BY start_date DESC`, column)
	return queryBookings(ctx, q, query, value)
}

func (s *Store) HasConfirmedFrom(ctx context.Context, carID rental.CarID, from rental.Date) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return hasConfirmedFrom(ctx, s.db, carID, from)
}

func hasConfirmedFrom(ctx context.Context, q dbtx, carID rental.CarID, from rental.Date) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM bookings
		WHERE car_id = ? AND status = 'confirmed' AND end_date >= ?`,
		carID, from.String(),
	).Scan(&count)
	if err != nil {
		return false, &rental.StoreError{Op: "has confirmed from", Err: err}
	}
	return count > 0, nil
}

func queryBookings(ctx context.Context, q dbtx, query string, args ...any) ([]rental.Booking, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &rental.StoreError{Op: "query bookings", Err: err}
	}
	defer rows.Close()

	var bookings []rental.Booking
	for rows.Next() {
		b, err := scanBooking(rows.Scan)
		if err != nil {
			return nil, &rental.StoreError{Op: "scan booking", Err: err}
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func scanBooking(scan func(...any) error) (rental.Booking, error) {
	var (
		b          rental.Booking
		start, end string
		cost       string
		createdAt  string
	)
	err := scan(&b.ID, &b.CarID, &b.RenterID, &b.OwnerID, &start, &end, &b.Status, &cost, &createdAt)
	if err != nil {
		return b, err
	}
	b.Range.Start, _ = rental.ParseDate(start)
	b.Range.End, _ = rental.ParseDate(end)
	b.TotalCost = rental.MustParseMoney(cost)
	b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return b, nil
}

// =============================================================================
// WALLET
// =============================================================================

// ApplyWalletEntry outside a settlement wraps the balance adjustment and the
// audit row in its own transaction.
func (s *Store) ApplyWalletEntry(ctx context.Context, e rental.WalletEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &rental.StoreError{Op: "begin tx", Err: err}
	}
	defer sqlTx.Rollback()

	if err := applyWalletEntry(ctx, sqlTx, e); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return &rental.StoreError{Op: "commit wallet entry", Err: err}
	}
	return nil
}

func applyWalletEntry(ctx context.Context, q dbtx, e rental.WalletEntry) error {
	var balance string
	err := q.QueryRowContext(ctx, "SELECT balance FROM users WHERE id = ?", e.UserID).Scan(&balance)
	if err == sql.ErrNoRows {
		return rental.ErrUserNotFound
	}
	if err != nil {
		return &rental.StoreError{Op: "read balance", Err: err}
	}

	next := rental.MustParseMoney(balance).Add(e.Delta)
	if next.IsNegative() {
		return rental.ErrInsufficientFunds
	}

	if _, err := q.ExecContext(ctx,
		"UPDATE users SET balance = ? WHERE id = ?", next.String(), e.UserID); err != nil {
		return &rental.StoreError{Op: "update balance", Err: err}
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO wallet_entries (id, user_id, delta, kind, reference_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Delta.String(), e.Kind,
		nullString(e.ReferenceID),
		e.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return &rental.StoreError{Op: "insert wallet entry", Err: err}
	}
	return nil
}

func (s *Store) ListWalletEntries(ctx context.Context, userID rental.UserID) ([]rental.WalletEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listWalletEntries(ctx, s.db, userID)
}

// created_at is second-resolution RFC3339, so rowid breaks ties in insert
// order for entries written within the same second.
func listWalletEntries(ctx context.Context, q dbtx, userID rental.UserID) ([]rental.WalletEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, user_id, delta, kind, reference_id, created_at
		FROM wallet_entries
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC`, userID)
	if err != nil {
		return nil, &rental.StoreError{Op: "list wallet entries", Err: err}
	}
	defer rows.Close()

	var entries []rental.WalletEntry
	for rows.Next() {
		var (
			e         rental.WalletEntry
			delta     string
			ref       sql.NullString
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &delta, &e.Kind, &ref, &createdAt); err != nil {
			return nil, &rental.StoreError{Op: "scan wallet entry", Err: err}
		}
		e.Delta = rental.MustParseMoney(delta)
		e.ReferenceID = ref.String
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func (s *Store) AppendNotification(ctx context.Context, n rental.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendNotification(ctx, s.db, n)
}

func appendNotification(ctx context.Context, q dbtx, n rental.Notification) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, message, created_at)
		VALUES (?, ?, ?, ?)`,
		n.ID, n.UserID, n.Message, n.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return &rental.StoreError{Op: "append notification", Err: err}
	}
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, userID rental.UserID) ([]rental.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listNotifications(ctx, s.db, userID)
}

func listNotifications(ctx context.Context, q dbtx, userID rental.UserID) ([]rental.Notification, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, user_id, message, created_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at ASC, rowid ASC`, userID)
	if err != nil {
		return nil, &rental.StoreError{Op: "list notifications", Err: err}
	}
	defer rows.Close()

	var out []rental.Notification
	for rows.Next() {
		var (
			n         rental.Notification
			createdAt string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &createdAt); err != nil {
			return nil, &rental.StoreError{Op: "scan notification", Err: err}
		}
		n.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, n)
	}
	return out, rows.Err()
}

// =============================================================================
// REVIEWS
// =============================================================================

func (s *Store) SaveReview(ctx context.Context, rv rental.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveReview(ctx, s.db, rv)
}

func saveReview(ctx context.Context, q dbtx, rv rental.Review) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO reviews (id, booking_id, reviewer_id, reviewee_id, rating, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rv.ID, rv.BookingID, rv.ReviewerID, rv.RevieweeID, rv.Rating,
		nullString(rv.Comment), rv.CreatedAt.UTC().Format(time.RFC3339),
	)
	if isUniqueConstraintError(err) {
		return rental.ErrConcurrencyConflict
	}
	if err != nil {
		return &rental.StoreError{Op: "save review", Err: err}
	}
	return nil
}

func (s *Store) GetReview(ctx context.Context, bookingID rental.BookingID, reviewerID rental.UserID) (*rental.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getReview(ctx, s.db, bookingID, reviewerID)
}

func getReview(ctx context.Context, q dbtx, bookingID rental.BookingID, reviewerID rental.UserID) (*rental.Review, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, booking_id, reviewer_id, reviewee_id, rating, comment, created_at
		FROM reviews
		WHERE booking_id = ? AND reviewer_id = ?`, bookingID, reviewerID)

	rv, err := scanReview(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &rental.StoreError{Op: "get review", Err: err}
	}
	return rv, nil
}

func (s *Store) ListReviewsReceived(ctx context.Context, revieweeID rental.UserID) ([]rental.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listReviewsReceived(ctx, s.db, revieweeID)
}

func listReviewsReceived(ctx context.Context, q dbtx, revieweeID rental.UserID) ([]rental.Review, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, booking_id, reviewer_id, reviewee_id, rating, comment, created_at
		FROM reviews
		WHERE reviewee_id = ?
		ORDER BY created_at DESC, rowid DESC`, revieweeID)
	if err != nil {
		return nil, &rental.StoreError{Op: "list reviews", Err: err}
	}
	defer rows.Close()

	var out []rental.Review
	for rows.Next() {
		rv, err := scanReview(rows.Scan)
		if err != nil {
			return nil, &rental.StoreError{Op: "scan review", Err: err}
		}
		out = append(out, *rv)
	}
	return out, rows.Err()
}

func scanReview(scan func(...any) error) (*rental.Review, error) {
	var (
		rv        rental.Review
		comment   sql.NullString
		createdAt string
	)
	if err := scan(&rv.ID, &rv.BookingID, &rv.ReviewerID, &rv.RevieweeID,
		&rv.Rating, &comment, &createdAt); err != nil {
		return nil, err
	}
	rv.Comment = comment.String
	rv.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &rv, nil
}

// =============================================================================
// RECOVERY QUESTIONS
// =============================================================================

func (s *Store) SaveRecoveryQuestions(ctx context.Context, userID rental.UserID, qs []rental.RecoveryQuestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &rental.StoreError{Op: "begin tx", Err: err}
	}
	defer sqlTx.Rollback()

	if err := saveRecoveryQuestions(ctx, sqlTx, userID, qs); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return &rental.StoreError{Op: "commit recovery questions", Err: err}
	}
	return nil
}

func saveRecoveryQuestions(ctx context.Context, q dbtx, userID rental.UserID, qs []rental.RecoveryQuestion) error {
	if _, err := q.ExecContext(ctx,
		"DELETE FROM recovery_questions WHERE user_id = ?", userID); err != nil {
		return &rental.StoreError{Op: "clear recovery questions", Err: err}
	}
	for i, rq := range qs {
		_, err := q.ExecContext(ctx, `
			INSERT INTO recovery_questions (user_id, ord, question, answer)
			VALUES (?, ?, ?, ?)`,
			userID, i, rq.Question, rq.Answer)
		if err != nil {
			return &rental.StoreError{Op: "insert recovery question", Err: err}
		}
	}
	return nil
}

func (s *Store) GetRecoveryQuestions(ctx context.Context, userID rental.UserID) ([]rental.RecoveryQuestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getRecoveryQuestions(ctx, s.db, userID)
}

func getRecoveryQuestions(ctx context.Context, q dbtx, userID rental.UserID) ([]rental.RecoveryQuestion, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT question, answer FROM recovery_questions
		WHERE user_id = ?
		ORDER BY ord ASC`, userID)
	if err != nil {
		return nil, &rental.StoreError{Op: "get recovery questions", Err: err}
	}
	defer rows.Close()

	var qs []rental.RecoveryQuestion
	for rows.Next() {
		var rq rental.RecoveryQuestion
		if err := rows.Scan(&rq.Question, &rq.Answer); err != nil {
			return nil, &rental.StoreError{Op: "scan recovery question", Err: err}
		}
		qs = append(qs, rq)
	}
	return qs, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"reviews", "booking_days", "bookings", "calendar_blocks",
		"wallet_entries", "notifications", "recovery_questions", "cars", "users",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
