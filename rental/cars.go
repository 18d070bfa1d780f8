/*
cars.go - Car registry

PURPOSE:
  Listing management for the marketplace. Cars are plain values validated on
  construction; mutation is owner-only; removal is a soft retirement rather
  than a delete, and retirement is refused while confirmed future bookings
  still reference the car.
*/
package rental

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Cars manages vehicle listings.
type Cars struct {
	store Store
	clock func() Date
}

func NewCars(store Store) *Cars {
	return &Cars{store: store, clock: Today}
}

// Create validates and persists a new listing for the owner.
func (c *Cars) Create(ctx context.Context, car Car) (Car, error) {
	if car.ID == "" {
		car.ID = CarID(uuid.NewString())
	}
	if car.CreatedAt.IsZero() {
		car.CreatedAt = time.Now().UTC()
	}
	if err := car.Validate(); err != nil {
		return Car{}, err
	}
	owner, err := c.store.GetUser(ctx, car.OwnerID)
	if err != nil {
		return Car{}, err
	}
	if owner == nil {
		return Car{}, ErrUserNotFound
	}
	if err := c.store.SaveCar(ctx, car); err != nil {
		return Car{}, err
	}
	return car, nil
}

// Update replaces the descriptive attributes of a listing. Owner-only.
func (c *Cars) Update(ctx context.Context, actor UserID, car Car) (Car, error) {
	existing, err := c.store.GetCar(ctx, car.ID)
	if err != nil {
		return Car{}, err
	}
	if existing == nil {
		return Car{}, ErrCarNotFound
	}
	if existing.OwnerID != actor {
		return Car{}, ErrUnauthorized
	}
	car.OwnerID = existing.OwnerID
	car.CreatedAt = existing.CreatedAt
	// Retirement is a lifecycle state, not a descriptive attribute: an
	// attribute update must not relist a retired car.
	car.Retired = existing.Retired
	if err := car.Validate(); err != nil {
		return Car{}, err
	}
	if err := c.store.SaveCar(ctx, car); err != nil {
		return Car{}, err
	}
	return car, nil
}

// Retire soft-disables a listing. Refused while the car still has confirmed
// bookings ending today or later: renters with paid trips keep their booking.
func (c *Cars) Retire(ctx context.Context, actor UserID, carID CarID) error {
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
	busy, err := c.store.HasConfirmedFrom(ctx, carID, c.clock())
	if err != nil {
		return err
	}
	if busy {
		return ErrCarHasBookings
	}
	car.Retired = true
	return c.store.SaveCar(ctx, *car)
}

func (c *Cars) Get(ctx context.Context, id CarID) (*Car, error) {
	car, err := c.store.GetCar(ctx, id)
	if err != nil {
		return nil, err
	}
	if car == nil {
		return nil, ErrCarNotFound
	}
	return car, nil
}

func (c *Cars) List(ctx context.Context) ([]Car, error) {
	return c.store.ListCars(ctx)
}
