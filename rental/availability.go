/*
availability.go - Availability resolution for a car and date range

PURPOSE:
  Decides whether a requested date range is bookable by combining two
  independent sources of conflict:
    1. Confirmed bookings on the same car (closed-interval overlap)
    2. Owner-imposed calendar blocks

  Pending holds never block availability. Only confirmed bookings do, so an
  abandoned cart can never poison the calendar.

CHECK ORDER:
  1. Reject malformed ranges (ErrInvalidRange)
  2. Reject unknown cars (ErrCarNotFound); retired cars are "unlisted"
  3. Confirmed-booking overlap -> Unavailable("booked", overlap days)
  4. Calendar blocks in range   -> Unavailable("blocked", blocked days)
  5. Otherwise Available with the inclusive day count

RACE WINDOW:
  A passing check here can be invalidated before commit. The settlement
  orchestrator re-runs this check inside the commit transaction; see
  settlement.go.

SEE ALSO:
  - calendar.go: Owner-facing block management
  - settlement.go: Re-check at commit time
*/
package rental

import (
	"context"
	"sort"
)

// =============================================================================
// AVAILABILITY RESULT
// =============================================================================

// Availability is the outcome of a check. When Available is false, Reason
// and Conflicts explain exactly which days are in the way.
type Availability struct {
	Available bool
	Days      int
	Reason    string // ReasonBooked, ReasonBlocked, or ReasonUnlisted
	Conflicts []Date
}

// Unavailable converts a negative result into its error form.
func (a Availability) Unavailable(carID CarID) error {
	if a.Available {
		return nil
	}
	return &UnavailableError{CarID: carID, Reason: a.Reason, Dates: a.Conflicts}
}

// =============================================================================
// RESOLVER
// =============================================================================

// Resolver answers "can this car be booked for these dates?".
type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Check resolves availability for a car and validated date range.
// The conflict days returned are the intersection with the requested range,
// ascending, so the caller can surface them directly to the user.
func (r *Resolver) Check(ctx context.Context, carID CarID, rng DateRange) (Availability, error) {
	if err := rng.Validate(); err != nil {
		return Availability{}, err
	}

	car, err := r.store.GetCar(ctx, carID)
	if err != nil {
		return Availability{}, err
	}
	if car == nil {
		return Availability{}, ErrCarNotFound
	}
	if car.Retired {
		return Availability{Reason: ReasonUnlisted}, nil
	}

	// Confirmed bookings first: they are the stronger conflict.
	overlapping, err := r.store.ListConfirmedOverlapping(ctx, carID, rng)
	if err != nil {
		return Availability{}, err
	}
	if len(overlapping) > 0 {
		var conflicts []Date
		seen := make(map[string]bool)
		for _, b := range overlapping {
			for _, d := range b.Range.Intersection(rng) {
				if !seen[d.String()] {
					seen[d.String()] = true
					conflicts = append(conflicts, d)
				}
			}
		}
		sortDates(conflicts)
		return Availability{Reason: ReasonBooked, Conflicts: conflicts}, nil
	}

	blocked, err := r.store.BlockedWithin(ctx, carID, rng)
	if err != nil {
		return Availability{}, err
	}
	if len(blocked) > 0 {
		sortDates(blocked)
		return Availability{Reason: ReasonBlocked, Conflicts: blocked}, nil
	}

	return Availability{Available: true, Days: rng.Days()}, nil
}

func sortDates(dates []Date) {
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
}
