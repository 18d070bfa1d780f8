package rental

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// White-box: these tests pin the registry clock to exercise TTL expiry
// without sleeping.

func testHold(id HoldID, renter UserID, at time.Time) Hold {
	return Hold{
		ID:        id,
		CarID:     "car-1",
		RenterID:  renter,
		OwnerID:   "owner-1",
		TotalCost: MustParseMoney("100.00"),
		CreatedAt: at,
	}
}

func TestHoldRegistry_PutGet(t *testing.T) {
	r := NewHoldRegistry(0)
	r.Put(testHold("h-1", "renter-1", time.Now()))

	h, err := r.Get("h-1")
	require.NoError(t, err)
	assert.Equal(t, HoldID("h-1"), h.ID)
	assert.Equal(t, 1, r.Len())
}

func TestHoldRegistry_Put_ReplacesRenterPriorHold(t *testing.T) {
	// A renter gets one outstanding hold. A new request evicts the old one.

	r := NewHoldRegistry(0)
	r.Put(testHold("h-1", "renter-1", time.Now()))
	r.Put(testHold("h-2", "renter-1", time.Now()))

	_, err := r.Get("h-1")
	assert.ErrorIs(t, err, ErrHoldNotFound)

	_, err = r.Get("h-2")
	assert.NoError(t, err)
	assert.Equal(t, 1, r.Len())
}

func TestHoldRegistry_Take_IsConsuming(t *testing.T) {
	// Take hands the hold to exactly one caller; the second caller finds
	// nothing. This is what makes double-confirmation fail fast.

	r := NewHoldRegistry(0)
	r.Put(testHold("h-1", "renter-1", time.Now()))

	_, err := r.Take("h-1", "renter-1")
	require.NoError(t, err)

	_, err = r.Take("h-1", "renter-1")
	assert.ErrorIs(t, err, ErrHoldNotFound)
}

func TestHoldRegistry_Take_WrongRenter_Refused(t *testing.T) {
	// Ownership and consumption are decided under one lock; a foreign
	// renter neither gets the hold nor disturbs it.

	r := NewHoldRegistry(0)
	r.Put(testHold("h-1", "renter-1", time.Now()))

	_, err := r.Take("h-1", "renter-2")
	assert.ErrorIs(t, err, ErrUnauthorized)

	h, err := r.Take("h-1", "renter-1")
	require.NoError(t, err)
	assert.Equal(t, HoldID("h-1"), h.ID)
}

func TestHoldRegistry_Remove_Missing(t *testing.T) {
	r := NewHoldRegistry(0)
	assert.ErrorIs(t, r.Remove("nope"), ErrHoldNotFound)
}

func TestHoldRegistry_ExpiredHold_Invisible(t *testing.T) {
	// GIVEN: A hold created 31 minutes ago under a 30 minute TTL
	// WHEN: Getting or taking it
	// THEN: ErrHoldNotFound, same as if it never existed

	r := NewHoldRegistry(30 * time.Minute)
	base := time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return base }

	r.Put(testHold("h-1", "renter-1", base.Add(-31*time.Minute)))

	_, err := r.Get("h-1")
	assert.ErrorIs(t, err, ErrHoldNotFound)

	_, err = r.Take("h-1", "renter-1")
	assert.ErrorIs(t, err, ErrHoldNotFound)
}

func TestHoldRegistry_Sweep_DiscardsOnlyStale(t *testing.T) {
	r := NewHoldRegistry(30 * time.Minute)
	base := time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return base }

	r.Put(testHold("h-old", "renter-1", base.Add(-2*time.Hour)))
	r.Put(testHold("h-new", "renter-2", base.Add(-5*time.Minute)))

	assert.Equal(t, 1, r.Sweep())
	assert.Equal(t, 1, r.Len())

	_, err := r.Get("h-new")
	assert.NoError(t, err)
}
