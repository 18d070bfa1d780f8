/*
calendar.go - Owner-managed availability calendar

PURPOSE:
  Lets a car's owner black out dates independently of bookings. Blocks are
  idempotent per (car, date) with last-write-wins semantics, and only the
  owner of the car may change them.

SEE ALSO:
  - availability.go: Consumes blocks when resolving bookability
*/
package rental

import "context"

// Calendar manages owner-imposed blackout dates.
type Calendar struct {
	store Store
}

func NewCalendar(store Store) *Calendar {
	return &Calendar{store: store}
}

// BlockDates idempotently marks each date blocked for the car.
// Fails with ErrUnauthorized if actor is not the owner, ErrCarNotFound
// if the car does not exist.
func (c *Calendar) BlockDates(ctx context.Context, actor UserID, carID CarID, dates []Date) error {
	return c.setBlocked(ctx, actor, carID, dates, true)
}

// UnblockDates re-opens previously blocked dates. Same authorization rules.
func (c *Calendar) UnblockDates(ctx context.Context, actor UserID, carID CarID, dates []Date) error {
	return c.setBlocked(ctx, actor, carID, dates, false)
}

func (c *Calendar) setBlocked(ctx context.Context, actor UserID, carID CarID, dates []Date, blocked bool) error {
	car, err := c.store.GetCar(ctx, carID)
	if err != nil {
		return err
	}
	if car == nil {
		return ErrCarNotFound
	}
	if car.OwnerID != actor {
		return ErrUnauthorized
	}

	for _, d := range dates {
		if err := c.store.SetBlocked(ctx, carID, d, blocked); err != nil {
			return err
		}
	}
	return nil
}

// IsBlocked reports whether a single date is blocked for the car.
func (c *Calendar) IsBlocked(ctx context.Context, carID CarID, date Date) (bool, error) {
	blocked, err := c.store.BlockedWithin(ctx, carID, DateRange{Start: date, End: date})
	if err != nil {
		return false, err
	}
	return len(blocked) > 0, nil
}

// ListBlocked returns the car's blocked dates, ascending.
func (c *Calendar) ListBlocked(ctx context.Context, carID CarID) ([]Date, error) {
	car, err := c.store.GetCar(ctx, carID)
	if err != nil {
		return nil, err
	}
	if car == nil {
		return nil, ErrCarNotFound
	}
	dates, err := c.store.ListBlocked(ctx, carID)
	if err != nil {
		return nil, err
	}
	sortDates(dates)
	return dates, nil
}
