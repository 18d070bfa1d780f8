/*
settlement.go - Booking-settlement orchestrator

PURPOSE:
  Coordinates the availability resolver, booking ledger, and wallet ledger
  into one atomic reserve-and-pay flow.

STATE MACHINE:
  Requested -> Held -> PaidPending -> Confirmed
  with Rejected and Abandoned as terminal states.

  Requested    input validated (range sane, car exists, renter exists)
  Held         availability passed, hold stored, cost computed
  PaidPending  hold surfaced to the payer; no ledger mutation yet
  Confirmed    payment confirmed: re-check availability, debit renter,
               commit booking, credit owner - one transaction
  Rejected     invalid input, unavailable dates, or insufficient funds
  Abandoned    hold discarded with zero side effects

THE CONFLICT WINDOW:
  Between RequestHold's availability check and ConfirmPayment's commit,
  another request can take the same dates. ConfirmPayment therefore re-runs
  the availability check INSIDE the commit transaction, and the store's
  per-day (car, date) uniqueness constraint backstops even that: of two
  racing settlements, exactly one commits; the loser sees
  ErrConcurrencyConflict or ErrUnavailable and no wallet is touched.

FAILURE RULES:
  - Re-check fails at confirm  -> rejected, wallets untouched, hold consumed
  - Debit fails (insufficient) -> rejected, hold PRESERVED so the renter can
                                  top up and retry
  - Any failure after debit    -> transaction rollback; the renter is never
                                  left debited without a booking
  - Notification sink failure  -> logged, never escalated

SEE ALSO:
  - availability.go: The shared check
  - holds.go: Hold lifecycle
  - store.go: WithTx contract
*/
package rental

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// Settlement runs the reserve-and-pay flow.
type Settlement struct {
	store    TxStore
	holds    *HoldRegistry
	resolver *Resolver
	wallet   *WalletLedger
	sink     NotificationSink

	// clock supplies "today" for date-range validation; injectable for tests.
	clock func() Date
}

func NewSettlement(store TxStore, holds *HoldRegistry, sink NotificationSink) *Settlement {
	return &Settlement{
		store:    store,
		holds:    holds,
		resolver: NewResolver(store),
		wallet:   NewWalletLedger(store),
		sink:     sink,
		clock:    Today,
	}
}

// WithClock overrides the "today" source. Used by tests and by callers that
// pin request time at the edge.
func (s *Settlement) WithClock(clock func() Date) *Settlement {
	s.clock = clock
	return s
}

// =============================================================================
// REQUESTED -> HELD
// =============================================================================

// RequestHold validates the request, checks availability, computes cost, and
// stores a hold. The renter's previous outstanding hold, if any, is replaced.
func (s *Settlement) RequestHold(ctx context.Context, renterID UserID, carID CarID, rng DateRange) (Hold, error) {
	if err := rng.Validate(); err != nil {
		return Hold{}, err
	}
	if rng.Start.Before(s.clock()) {
		return Hold{}, ErrInvalidRange
	}

	renter, err := s.store.GetUser(ctx, renterID)
	if err != nil {
		return Hold{}, err
	}
	if renter == nil {
		return Hold{}, ErrUserNotFound
	}

	car, err := s.store.GetCar(ctx, carID)
	if err != nil {
		return Hold{}, err
	}
	if car == nil {
		return Hold{}, ErrCarNotFound
	}
	if car.OwnerID == renterID {
		return Hold{}, &FieldError{Field: "renter_id", Message: "cannot book your own car"}
	}

	avail, err := s.resolver.Check(ctx, carID, rng)
	if err != nil {
		return Hold{}, err
	}
	if !avail.Available {
		return Hold{}, avail.Unavailable(carID)
	}

	hold := Hold{
		ID:        HoldID(uuid.NewString()),
		CarID:     carID,
		RenterID:  renterID,
		OwnerID:   car.OwnerID,
		Range:     rng,
		TotalCost: CostFor(car, rng),
		CreatedAt: time.Now().UTC(),
	}
	s.holds.Put(hold)
	return hold, nil
}

// =============================================================================
// PAIDPENDING -> CONFIRMED
// =============================================================================

// ConfirmPayment settles a hold: availability re-check, renter debit, booking
// insert, owner credit - all inside one store transaction. On success the
// hold is consumed and both parties are notified. Only the renter who placed
// the hold may confirm it.
func (s *Settlement) ConfirmPayment(ctx context.Context, actor UserID, holdID HoldID) (Booking, error) {
	// Take removes the hold up front so a second concurrent confirm of the
	// same hold fails fast with ErrHoldNotFound. The ownership check happens
	// inside Take, under the registry lock.
	hold, err := s.holds.Take(holdID, actor)
	if err != nil {
		return Booking{}, err
	}

	booking := Booking{
		ID:        BookingID(uuid.NewString()),
		CarID:     hold.CarID,
		RenterID:  hold.RenterID,
		OwnerID:   hold.OwnerID,
		Range:     hold.Range,
		Status:    BookingConfirmed,
		TotalCost: hold.TotalCost,
		CreatedAt: time.Now().UTC(),
	}

	err = s.store.WithTx(ctx, func(tx Store) error {
		// Close the conflict window: re-check against the transaction's view.
		recheck := NewResolver(tx)
		avail, err := recheck.Check(ctx, hold.CarID, hold.Range)
		if err != nil {
			return err
		}
		if !avail.Available {
			return avail.Unavailable(hold.CarID)
		}

		// Debit renter first: if funds are short, nothing else happens.
		if err := s.wallet.debit(ctx, tx, hold.RenterID, hold.TotalCost, string(booking.ID)); err != nil {
			return err
		}

		// Booking insert may still lose the race to a concurrent commit; the
		// per-day uniqueness constraint turns that into ErrConcurrencyConflict
		// and the whole transaction, debit included, rolls back.
		if err := tx.InsertBooking(ctx, booking); err != nil {
			return err
		}

		return s.wallet.credit(ctx, tx, hold.OwnerID, hold.TotalCost, EntryCredit, string(booking.ID))
	})

	if err != nil {
		if IsRetryable(err) || isInsufficient(err) {
			// Preserve the hold: the renter can top up (or retry) and confirm
			// again without redoing the checkout.
			s.holds.Put(hold)
		}
		return Booking{}, err
	}

	s.fanOut(ctx, booking)
	return booking, nil
}

// =============================================================================
// PAIDPENDING -> ABANDONED
// =============================================================================

// Abandon discards a hold. No ledger has been touched at this point, so
// there is nothing to roll back.
func (s *Settlement) Abandon(holdID HoldID) error {
	return s.holds.Remove(holdID)
}

// =============================================================================
// NOTIFICATION FAN-OUT
// =============================================================================

func (s *Settlement) fanOut(ctx context.Context, b Booking) {
	renterMsg := fmt.Sprintf("Booking confirmed: car %s from %s to %s for %s",
		b.CarID, b.Range.Start, b.Range.End, b.TotalCost)
	ownerMsg := fmt.Sprintf("Your car %s was booked from %s to %s; %s credited to your wallet",
		b.CarID, b.Range.Start, b.Range.End, b.TotalCost)

	if err := s.sink.Notify(ctx, b.RenterID, renterMsg); err != nil {
		log.Printf("[Settlement] notify renter %s failed: %v", b.RenterID, err)
	}
	if err := s.sink.Notify(ctx, b.OwnerID, ownerMsg); err != nil {
		log.Printf("[Settlement] notify owner %s failed: %v", b.OwnerID, err)
	}
}

func isInsufficient(err error) bool {
	return errors.Is(err, ErrInsufficientFunds)
}
