/*
scheduler.go - Hold expiry sweeper

PURPOSE:
  Holds are priced quotes, and prices move; a hold that sits unpaid past its
  TTL is discarded by this background sweeper so the dates go back on the
  market at current pricing.

DESIGN:
  - robfig/cron drives a fixed "@every 1m" sweep
  - The registry itself decides which holds are stale (TTL lives there)
  - Sweeps are cheap: registry is in-process, no store access

USAGE:
  sweeper := NewHoldSweeper(holds)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - rental/holds.go: HoldRegistry and TTL policy
  - cmd/server/main.go: Lifecycle wiring
*/
package api

import (
	"log"

	"github.com/robfig/cron/v3"

	"github.com/driveway/rental-engine/rental"
)

// HoldSweeper periodically discards expired holds.
type HoldSweeper struct {
	holds *rental.HoldRegistry
	cron  *cron.Cron
}

// NewHoldSweeper creates a sweeper over the given registry.
func NewHoldSweeper(holds *rental.HoldRegistry) *HoldSweeper {
	return &HoldSweeper{
		holds: holds,
		cron:  cron.New(),
	}
}

// Start schedules the sweep and begins running it.
func (s *HoldSweeper) Start() {
	s.cron.AddFunc("@every 1m", func() {
		if n := s.holds.Sweep(); n > 0 {
			log.Printf("[Sweeper] Discarded %d expired hold(s)", n)
		}
	})
	s.cron.Start()
	log.Println("[Sweeper] Started, sweeping every minute")
}

// Stop halts the schedule. A sweep already in flight finishes.
func (s *HoldSweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("[Sweeper] Stopped")
}
