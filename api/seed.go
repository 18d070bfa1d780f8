/*
seed.go - Demo data loader for development and demos

PURPOSE:
  Populates an empty database with a small, realistic marketplace: two
  owners with listed cars, two renters with funded wallets, and a few
  calendar blocks. Enough to exercise the whole hold -> confirm flow from
  a REST client without any setup.

HOW SEEDING WORKS:
 1. Create owner and renter accounts
 2. Top up renter wallets through the wallet ledger (auditable entries,
    never direct balance writes)
 3. List cars priced per day
 4. Block a maintenance window on one car

NOTE:
  Seeding is additive and only meant for a fresh database. Only use in
  development/demo environments.

SEE ALSO:
  - cmd/server/main.go: -seed flag
  - handlers.go: The endpoints this data feeds
*/
package api

import (
	"context"
	"fmt"

	"github.com/driveway/rental-engine/rental"
)

// Seed loads the demo marketplace. Returns an error on the first failed
// write; partially seeded data is left in place.
func Seed(ctx context.Context, h *Handler) error {
	users := []rental.User{
		{ID: "owner-ana", Name: "Ana Flores", Email: "ana@example.com", Balance: rental.ZeroMoney()},
		{ID: "owner-raj", Name: "Raj Patel", Email: "raj@example.com", Balance: rental.ZeroMoney()},
		{ID: "renter-bo", Name: "Bo Lindqvist", Email: "bo@example.com", Balance: rental.ZeroMoney()},
		{ID: "renter-kim", Name: "Kim Osei", Email: "kim@example.com", Balance: rental.ZeroMoney()},
	}
	for _, u := range users {
		if err := h.Store.SaveUser(ctx, u); err != nil {
			return fmt.Errorf("seed user %s: %w", u.ID, err)
		}
	}

	for _, topup := range []struct {
		user   rental.UserID
		amount string
	}{
		{"renter-bo", "500.00"},
		{"renter-kim", "120.00"},
	} {
		amount := rental.MustParseMoney(topup.amount)
		if err := h.Wallet.TopUp(ctx, topup.user, amount); err != nil {
			return fmt.Errorf("seed topup %s: %w", topup.user, err)
		}
	}

	cars := []rental.Car{
		{
			OwnerID: "owner-ana", Make: "Toyota", Model: "Corolla", Year: 2021,
			Mileage: 24000, Color: "white", Price: rental.MustParseMoney("50.00"),
			Location: "Lisbon",
		},
		{
			OwnerID: "owner-ana", Make: "Tesla", Model: "Model 3", Year: 2023,
			Mileage: 8000, Color: "red", Price: rental.MustParseMoney("110.00"),
			Location: "Lisbon",
		},
		{
			OwnerID: "owner-raj", Make: "Honda", Model: "Jazz", Year: 2019,
			Mileage: 61000, Color: "blue", Price: rental.MustParseMoney("35.00"),
			Location: "Porto",
		},
	}
	var carIDs []rental.CarID
	for _, c := range cars {
		created, err := h.Cars.Create(ctx, c)
		if err != nil {
			return fmt.Errorf("seed car %s %s: %w", c.Make, c.Model, err)
		}
		carIDs = append(carIDs, created.ID)
	}

	// Maintenance window on the Corolla, two weeks out.
	var window []rental.Date
	for d, i := rental.Today().AddDays(14), 0; i < 3; d, i = d.AddDays(1), i+1 {
		window = append(window, d)
	}
	if err := h.Calendar.BlockDates(ctx, "owner-ana", carIDs[0], window); err != nil {
		return fmt.Errorf("seed calendar block: %w", err)
	}

	return nil
}
