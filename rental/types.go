/*
Package rental provides the booking-availability-and-settlement engine for a
peer-to-peer car rental marketplace.

PURPOSE:
  This package contains the domain types and algorithms that reconcile a car's
  availability calendar against confirmed bookings, compute rental cost,
  reserve a slot, and settle payment atomically against user wallet balances.
  The surrounding HTTP application supplies authenticated identity and request
  parameters and consumes the outcomes produced here.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A currency amount backed by decimal arithmetic
  - Car/User/Booking/CalendarBlock: Persisted marketplace records
  - Hold: An ephemeral, not-yet-paid reservation awaiting confirmation
  - WalletEntry: An immutable record of a balance change
  - Notification: A best-effort settlement outcome record

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point money errors
  2. Type Safety: Strong typing for IDs prevents mixing car/user/booking IDs
  3. Conservation: Every settlement nets to zero across wallets
  4. Auditability: Every wallet change carries a kind and a reference

SEE ALSO:
  - availability.go: Availability resolution against blocks and bookings
  - settlement.go: The reserve-and-pay state machine
  - wallet.go: Balance operations and transfer
  - store.go: Persistence interfaces
*/
package rental

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Currency amount with fixed 2-decimal rounding
// =============================================================================

// Money is a non-negative-by-convention currency amount. Arithmetic never
// rounds implicitly; Round applies banker's rounding to 2 decimal places,
// which is the platform-wide rounding rule for rental costs.
type Money struct {
	Value decimal.Decimal
}

func NewMoney(value float64) Money          { return Money{Value: decimal.NewFromFloat(value)} }
func NewMoneyFromInt(value int) Money       { return Money{Value: decimal.NewFromInt(int64(value))} }
func ZeroMoney() Money                      { return Money{Value: decimal.Zero} }

// ParseMoney parses a decimal string like "125.50".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ZeroMoney(), &FieldError{Field: "amount", Message: "invalid decimal: " + s}
	}
	return Money{Value: d}, nil
}

// MustParseMoney is ParseMoney for trusted input (store rows); a bad string
// yields zero rather than a panic.
func MustParseMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ZeroMoney()
	}
	return Money{Value: d}
}

func (m Money) Add(o Money) Money           { return Money{Value: m.Value.Add(o.Value)} }
func (m Money) Sub(o Money) Money           { return Money{Value: m.Value.Sub(o.Value)} }
func (m Money) Mul(n int) Money             { return Money{Value: m.Value.Mul(decimal.NewFromInt(int64(n)))} }
func (m Money) Neg() Money                  { return Money{Value: m.Value.Neg()} }
func (m Money) Round() Money                { return Money{Value: m.Value.RoundBank(2)} }
func (m Money) IsZero() bool                { return m.Value.IsZero() }
func (m Money) IsNegative() bool            { return m.Value.IsNegative() }
func (m Money) IsPositive() bool            { return m.Value.IsPositive() }
func (m Money) Equal(o Money) bool          { return m.Value.Equal(o.Value) }
func (m Money) LessThan(o Money) bool       { return m.Value.LessThan(o.Value) }
func (m Money) GreaterThan(o Money) bool    { return m.Value.GreaterThan(o.Value) }
func (m Money) String() string              { return m.Value.StringFixedBank(2) }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type CarID string
type BookingID string
type HoldID string

// =============================================================================
// USER - Marketplace account with a wallet balance
// =============================================================================

// User carries the wallet balance directly. The balance is only ever mutated
// through WalletEntry writes inside a store transaction; it is never negative.
type User struct {
	ID        UserID
	Name      string
	Email     string
	Balance   Money
	CreatedAt time.Time
}

// =============================================================================
// CAR - Listed vehicle, owned by exactly one user
// =============================================================================

// Car is a plain immutable value; construct with named fields and call
// Validate before persisting. Cars are soft-retired, never hard-deleted,
// so historical bookings always resolve their car reference.
type Car struct {
	ID        CarID
	OwnerID   UserID
	Make      string
	Model     string
	Year      int
	Mileage   int
	Color     string
	Price     Money // cost per day
	Location  string
	Retired   bool
	CreatedAt time.Time
}

// Validate checks the listing fields. Price must be non-negative.
func (c Car) Validate() error {
	if c.OwnerID == "" {
		return &FieldError{Field: "owner_id", Message: "owner is required"}
	}
	if c.Make == "" || c.Model == "" {
		return &FieldError{Field: "make/model", Message: "make and model are required"}
	}
	if c.Year < 1900 {
		return &FieldError{Field: "year", Message: "year is implausible"}
	}
	if c.Mileage < 0 {
		return &FieldError{Field: "mileage", Message: "mileage cannot be negative"}
	}
	if !c.Price.IsPositive() {
		return &FieldError{Field: "price", Message: "daily price must be positive"}
	}
	if c.Location == "" {
		return &FieldError{Field: "location", Message: "location is required"}
	}
	return nil
}

// =============================================================================
// CALENDAR BLOCK - Owner-imposed blackout date, independent of bookings
// =============================================================================

// CalendarBlock is unique per (car, date); the last write for a date wins.
type CalendarBlock struct {
	CarID   CarID
	Date    Date
	Blocked bool
}

// =============================================================================
// BOOKING - Confirmed or pending reservation record
// =============================================================================

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking is append-only once confirmed. For any car, the date ranges of
// confirmed bookings are pairwise non-overlapping; the store enforces this
// with a per-day uniqueness constraint at commit time.
type Booking struct {
	ID        BookingID
	CarID     CarID
	RenterID  UserID
	OwnerID   UserID
	Range     DateRange
	Status    BookingStatus
	TotalCost Money
	CreatedAt time.Time
}

// =============================================================================
// HOLD - Ephemeral reservation awaiting payment confirmation
// =============================================================================

// Hold is computed but not yet committed: it lives only in the hold registry,
// never in the booking ledger, and pending holds never block availability.
// A hold is consumed by ConfirmPayment or discarded by Abandon/expiry.
type Hold struct {
	ID        HoldID
	CarID     CarID
	RenterID  UserID
	OwnerID   UserID
	Range     DateRange
	TotalCost Money
	CreatedAt time.Time
}

// =============================================================================
// WALLET ENTRY - Immutable record of a single balance change
// =============================================================================

type WalletEntryKind string

const (
	EntryTopUp  WalletEntryKind = "topup"
	EntryDebit  WalletEntryKind = "debit"  // renter pays for a booking
	EntryCredit WalletEntryKind = "credit" // owner receives for a booking
)

// WalletEntry records one signed balance delta. Entries for a settlement
// reference the booking that caused them; the deltas of one settlement sum
// to zero across the two wallets involved.
type WalletEntry struct {
	ID          string
	UserID      UserID
	Delta       Money
	Kind        WalletEntryKind
	ReferenceID string // booking ID for settlement entries, empty for top-ups
	CreatedAt   time.Time
}

// =============================================================================
// NOTIFICATION - Best-effort settlement outcome record
// =============================================================================

type Notification struct {
	ID        string
	UserID    UserID
	Message   string
	CreatedAt time.Time
}

// =============================================================================
// REVIEW - Post-booking feedback between the two parties
// =============================================================================

// Review is one party's rating of the other for a single booking. The renter
// reviews the owner and vice versa; each party reviews a booking at most once.
type Review struct {
	ID         string
	BookingID  BookingID
	ReviewerID UserID
	RevieweeID UserID
	Rating     int // 1..5
	Comment    string
	CreatedAt  time.Time
}

func (r Review) Validate() error {
	if r.Rating < 1 || r.Rating > 5 {
		return &FieldError{Field: "rating", Message: "rating must be between 1 and 5"}
	}
	return nil
}
