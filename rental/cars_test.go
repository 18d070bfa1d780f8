package rental_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveway/rental-engine/rental"
)

func validCar() rental.Car {
	return rental.Car{
		OwnerID:  "owner-1",
		Make:     "Honda",
		Model:    "Jazz",
		Year:     2019,
		Mileage:  61000,
		Price:    rental.MustParseMoney("35.00"),
		Location: "Porto",
	}
}

// =============================================================================
// CREATE
// =============================================================================

func TestCars_Create_AssignsID(t *testing.T) {
	m, ctx := newMarket(t)
	cars := rental.NewCars(m)

	created, err := cars.Create(ctx, validCar())
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	got, err := cars.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Honda", got.Make)
}

func TestCars_Create_UnknownOwner_Rejected(t *testing.T) {
	m, ctx := newMarket(t)
	cars := rental.NewCars(m)

	car := validCar()
	car.OwnerID = "ghost"
	_, err := cars.Create(ctx, car)
	assert.ErrorIs(t, err, rental.ErrUserNotFound)
}

func TestCars_Create_Invalid_Rejected(t *testing.T) {
	m, ctx := newMarket(t)
	cars := rental.NewCars(m)

	cases := []struct {
		name   string
		mutate func(*rental.Car)
	}{
		{"empty make", func(c *rental.Car) { c.Make = "" }},
		{"empty model", func(c *rental.Car) { c.Model = "" }},
		{"zero price", func(c *rental.Car) { c.Price = rental.ZeroMoney() }},
		{"negative mileage", func(c *rental.Car) { c.Mileage = -1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			car := validCar()
			tc.mutate(&car)

			_, err := cars.Create(ctx, car)
			var fieldErr *rental.FieldError
			assert.ErrorAs(t, err, &fieldErr)
		})
	}
}

// =============================================================================
// UPDATE
// =============================================================================

func TestCars_Update_OwnerOnly(t *testing.T) {
	m, ctx := newMarket(t)
	cars := rental.NewCars(m)

	created, err := cars.Create(ctx, validCar())
	require.NoError(t, err)

	created.Price = rental.MustParseMoney("45.00")
	_, err = cars.Update(ctx, "renter-1", created)
	assert.ErrorIs(t, err, rental.ErrUnauthorized)

	updated, err := cars.Update(ctx, "owner-1", created)
	require.NoError(t, err)
	assert.True(t, updated.Price.Equal(rental.MustParseMoney("45.00")))
}

func TestCars_Update_CannotReassignOwner(t *testing.T) {
	m, ctx := newMarket(t)
	cars := rental.NewCars(m)

	created, err := cars.Create(ctx, validCar())
	require.NoError(t, err)

	created.OwnerID = "renter-1"
	updated, err := cars.Update(ctx, "owner-1", created)
	require.NoError(t, err)
	assert.Equal(t, rental.UserID("owner-1"), updated.OwnerID)
}

func TestCars_Update_KeepsRetiredListingRetired(t *testing.T) {
	// GIVEN: A retired listing
	// WHEN: The owner updates an ordinary attribute
	// THEN: The car stays retired; updating is not relisting

	m, ctx := newMarket(t)
	cars := rental.NewCars(m)

	created, err := cars.Create(ctx, validCar())
	require.NoError(t, err)
	require.NoError(t, cars.Retire(ctx, "owner-1", created.ID))

	created.Price = rental.MustParseMoney("45.00")
	updated, err := cars.Update(ctx, "owner-1", created)
	require.NoError(t, err)
	assert.True(t, updated.Retired)

	fetched, err := cars.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, fetched.Retired)
	assert.True(t, fetched.Price.Equal(rental.MustParseMoney("45.00")))
}

// =============================================================================
// RETIRE
// =============================================================================

func TestCars_Retire_StopsNewBookings(t *testing.T) {
	m, ctx := newMarket(t)
	cars := rental.NewCars(m)

	require.NoError(t, cars.Retire(ctx, "owner-1", "car-1"))

	got, err := cars.Get(ctx, "car-1")
	require.NoError(t, err)
	assert.True(t, got.Retired)

	avail, err := rental.NewResolver(m).Check(ctx, "car-1", futureRange(t, 10, 12))
	require.NoError(t, err)
	assert.False(t, avail.Available)
	assert.Equal(t, rental.ReasonUnlisted, avail.Reason)
}

func TestCars_Retire_WithFutureBookings_Refused(t *testing.T) {
	// A retirement would strand confirmed renters, so it is refused while
	// any confirmed booking lies in the future.

	m, ctx := newMarket(t)
	cars := rental.NewCars(m)

	future := futureRange(t, 10, 12)
	require.NoError(t, m.InsertBooking(ctx, rental.Booking{
		ID: "bk-1", CarID: "car-1", RenterID: "renter-1", OwnerID: "owner-1",
		Range: future, Status: rental.BookingConfirmed,
		TotalCost: rental.MustParseMoney("150.00"),
	}))

	err := cars.Retire(ctx, "owner-1", "car-1")
	assert.ErrorIs(t, err, rental.ErrCarHasBookings)

	got, err := cars.Get(ctx, "car-1")
	require.NoError(t, err)
	assert.False(t, got.Retired)
}

func TestCars_Retire_NotOwner_Refused(t *testing.T) {
	m, ctx := newMarket(t)
	cars := rental.NewCars(m)

	err := cars.Retire(ctx, "renter-1", "car-1")
	assert.ErrorIs(t, err, rental.ErrUnauthorized)
}
