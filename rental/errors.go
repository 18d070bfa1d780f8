/*
errors.go - Centralized error types for the rental engine

PURPOSE:
  All error kinds in one place for consistency and discoverability.
  The HTTP layer maps these to status codes; nothing is silently swallowed.

ERROR CATEGORIES:
  1. Validation errors - bad input (range, amount, listing fields)
  2. Availability errors - the requested slot cannot be booked
  3. Settlement errors - wallet shortfalls and lost commit races
  4. Store errors - infrastructure failures (retryable)

USAGE:
  Callers branch with errors.Is / errors.As:

    if errors.Is(err, rental.ErrInsufficientFunds) {
        var short *rental.InsufficientFundsError
        errors.As(err, &short)
        // short.Shortfall tells the user how much to top up
    }

SEE ALSO:
  - availability.go: Produces UnavailableError
  - settlement.go: Produces InsufficientFundsError, ErrConcurrencyConflict
*/
package rental

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidRange is returned when a date range has end before start,
	// is malformed, or starts in the past.
	ErrInvalidRange = errors.New("invalid date range")

	// ErrCarNotFound is returned when a referenced car doesn't exist.
	ErrCarNotFound = errors.New("car not found")

	// ErrUserNotFound is returned when a referenced user doesn't exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrHoldNotFound is returned when a hold was never created, already
	// consumed, abandoned, or expired.
	ErrHoldNotFound = errors.New("hold not found")

	// ErrBookingNotFound is returned when a referenced booking doesn't exist.
	ErrBookingNotFound = errors.New("booking not found")

	// ErrUnauthorized is returned when a caller acts on a car they don't own.
	ErrUnauthorized = errors.New("not the owner of this car")

	// ErrUnavailable is returned when the requested dates cannot be booked.
	ErrUnavailable = errors.New("dates unavailable")

	// ErrInsufficientFunds is returned when a debit exceeds the wallet balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidAmount is returned for zero or negative wallet amounts.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrConcurrencyConflict is returned when another settlement won the race
	// between the availability re-check and the booking commit.
	ErrConcurrencyConflict = errors.New("concurrent booking conflict")

	// ErrCarHasBookings is returned when retiring a car that still has
	// confirmed future bookings.
	ErrCarHasBookings = errors.New("car has confirmed future bookings")

	// ErrStoreFailure wraps infrastructure failures. Any already-applied
	// settlement step is rolled back before this surfaces; safe to retry.
	ErrStoreFailure = errors.New("store failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// UnavailableError explains why dates cannot be booked and which ones conflict.
type UnavailableError struct {
	CarID  CarID
	Reason string // "booked", "blocked", or "unlisted"
	Dates  []Date
}

const (
	ReasonBooked   = "booked"
	ReasonBlocked  = "blocked"
	ReasonUnlisted = "unlisted"
)

func (e *UnavailableError) Error() string {
	if len(e.Dates) == 0 {
		return fmt.Sprintf("car %s unavailable: %s", e.CarID, e.Reason)
	}
	return fmt.Sprintf("car %s unavailable (%s): %v", e.CarID, e.Reason, FormatDates(e.Dates))
}

func (e *UnavailableError) Unwrap() error { return ErrUnavailable }

// InsufficientFundsError reports the exact shortfall so the renter can top up.
type InsufficientFundsError struct {
	UserID    UserID
	Available Money
	Requested Money
	Shortfall Money
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: available %s, requested %s, shortfall %s",
		e.Available, e.Requested, e.Shortfall)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// FieldError reports an invalid listing or request field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Message }

// StoreError wraps a low-level persistence failure with its operation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return "store: " + e.Op + ": " + e.Err.Error() }
func (e *StoreError) Unwrap() error { return ErrStoreFailure }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict) || errors.Is(err, ErrStoreFailure)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	var fe *FieldError
	return errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrUnavailable) ||
		errors.As(err, &fe)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCarNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrHoldNotFound) ||
		errors.Is(err, ErrBookingNotFound)
}
