/*
holds.go - Ephemeral registry of pending booking holds

PURPOSE:
  A hold is a computed reservation awaiting payment confirmation. Holds are
  deliberately NOT persisted to the booking ledger: pending holds never block
  availability, and an abandoned hold leaves zero trace.

LIFECYCLE:
  Put       when the availability check succeeds and cost is computed
  Take      when payment is confirmed (hold consumed exactly once)
  Remove    on explicit abandonment
  Sweep     periodically discards holds older than the TTL

ONE HOLD PER RENTER:
  A renter has at most one outstanding hold. Creating a new one replaces
  the previous, mirroring a single checkout session.

SEE ALSO:
  - settlement.go: Creates and consumes holds
  - api/scheduler.go: Runs Sweep on a schedule
*/
package rental

import (
	"sync"
	"time"
)

// HoldRegistry is an in-process, concurrency-safe hold table.
type HoldRegistry struct {
	mu      sync.Mutex
	byID    map[HoldID]Hold
	byUser  map[UserID]HoldID
	ttl     time.Duration
	now     func() time.Time
}

// DefaultHoldTTL bounds how long an unpaid hold survives.
const DefaultHoldTTL = 30 * time.Minute

func NewHoldRegistry(ttl time.Duration) *HoldRegistry {
	if ttl <= 0 {
		ttl = DefaultHoldTTL
	}
	return &HoldRegistry{
		byID:   make(map[HoldID]Hold),
		byUser: make(map[UserID]HoldID),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Put stores a hold, replacing any outstanding hold for the same renter.
func (r *HoldRegistry) Put(h Hold) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byUser[h.RenterID]; ok {
		delete(r.byID, prev)
	}
	r.byID[h.ID] = h
	r.byUser[h.RenterID] = h.ID
}

// Get returns the hold if it exists and has not expired.
func (r *HoldRegistry) Get(id HoldID) (Hold, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.byID[id]
	if !ok || r.expired(h) {
		return Hold{}, ErrHoldNotFound
	}
	return h, nil
}

// Take returns the hold and removes it in one step, so two confirmations of
// the same hold cannot both proceed. Ownership is checked under the same
// lock: a foreign renter gets ErrUnauthorized and the hold stays put.
func (r *HoldRegistry) Take(id HoldID, renter UserID) (Hold, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.byID[id]
	if !ok || r.expired(h) {
		return Hold{}, ErrHoldNotFound
	}
	if h.RenterID != renter {
		return Hold{}, ErrUnauthorized
	}
	r.removeLocked(h)
	return h, nil
}

// Remove discards a hold. Returns ErrHoldNotFound if there is nothing to
// discard, which callers may treat as already-gone.
func (r *HoldRegistry) Remove(id HoldID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.byID[id]
	if !ok {
		return ErrHoldNotFound
	}
	r.removeLocked(h)
	return nil
}

// Sweep removes all expired holds and returns how many were discarded.
func (r *HoldRegistry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, h := range r.byID {
		if r.expired(h) {
			r.removeLocked(h)
			n++
		}
	}
	return n
}

// Len reports the number of live holds (expired ones included until swept).
func (r *HoldRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

func (r *HoldRegistry) expired(h Hold) bool {
	return r.now().Sub(h.CreatedAt) > r.ttl
}

func (r *HoldRegistry) removeLocked(h Hold) {
	delete(r.byID, h.ID)
	if r.byUser[h.RenterID] == h.ID {
		delete(r.byUser, h.RenterID)
	}
}
