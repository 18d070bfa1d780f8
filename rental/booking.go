/*
booking.go - Booking ledger: cost computation and read projections

PURPOSE:
  The booking ledger is the source of truth for conflict detection. Rows are
  appended by the settlement orchestrator when a hold is committed; confirmed
  bookings are never mutated afterwards (a future cancellation flow would add
  a status transition, not an edit).

COST RULE:
  total_cost = day_count * car.price, where day_count is inclusive:
  [2024-06-01, 2024-06-03] at 50.00/day is 3 days = 150.00.
  Rounded half-even (banker's rounding) to 2 decimal places.

SEE ALSO:
  - settlement.go: The only writer
  - availability.go: Reads confirmed bookings for overlap checks
*/
package rental

import "context"

// CostFor computes the rental cost for a car over a range.
func CostFor(car *Car, rng DateRange) Money {
	return car.Price.Mul(rng.Days()).Round()
}

// Bookings provides read-only projections over the booking ledger.
// Listings are ordered by start date descending (most recent trip first).
type Bookings struct {
	store Store
}

func NewBookings(store Store) *Bookings {
	return &Bookings{store: store}
}

func (b *Bookings) Get(ctx context.Context, id BookingID) (*Booking, error) {
	return b.store.GetBooking(ctx, id)
}

func (b *Bookings) ListForCar(ctx context.Context, carID CarID) ([]Booking, error) {
	return b.store.ListBookingsForCar(ctx, carID)
}

func (b *Bookings) ListForRenter(ctx context.Context, renterID UserID) ([]Booking, error) {
	return b.store.ListBookingsForRenter(ctx, renterID)
}

func (b *Bookings) ListForOwner(ctx context.Context, ownerID UserID) ([]Booking, error) {
	return b.store.ListBookingsForOwner(ctx, ownerID)
}
