package rental_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveway/rental-engine/rental"
)

// =============================================================================
// SUBMISSION
// =============================================================================

func TestSubmit_RenterReviewsOwner(t *testing.T) {
	// GIVEN: A confirmed booking between renter-1 and owner-1
	// WHEN: The renter submits a rating
	// THEN: The review lands on the owner's received list

	m, ctx := newMarket(t)
	require.NoError(t, m.InsertBooking(ctx, confirmedBooking("bk-1", "car-1", "2026-06-01", "2026-06-03", t)))
	reviews := rental.NewReviews(m)

	review, err := reviews.Submit(ctx, "renter-1", "bk-1", 5, "spotless car")
	require.NoError(t, err)
	assert.Equal(t, rental.UserID("owner-1"), review.RevieweeID)

	received, err := reviews.Received(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, 5, received[0].Rating)
	assert.Equal(t, "spotless car", received[0].Comment)
}

func TestSubmit_OwnerReviewsRenter(t *testing.T) {
	m, ctx := newMarket(t)
	require.NoError(t, m.InsertBooking(ctx, confirmedBooking("bk-1", "car-1", "2026-06-01", "2026-06-03", t)))
	reviews := rental.NewReviews(m)

	review, err := reviews.Submit(ctx, "owner-1", "bk-1", 4, "")
	require.NoError(t, err)
	assert.Equal(t, rental.UserID("renter-1"), review.RevieweeID)

	received, err := reviews.Received(ctx, "renter-1")
	require.NoError(t, err)
	assert.Len(t, received, 1)
}

func TestSubmit_NonParty_Refused(t *testing.T) {
	m, ctx := newMarket(t)
	require.NoError(t, m.InsertBooking(ctx, confirmedBooking("bk-1", "car-1", "2026-06-01", "2026-06-03", t)))
	reviews := rental.NewReviews(m)

	_, err := reviews.Submit(ctx, "renter-2", "bk-1", 5, "")
	assert.ErrorIs(t, err, rental.ErrUnauthorized)
}

func TestSubmit_UnknownBooking(t *testing.T) {
	m, ctx := newMarket(t)
	reviews := rental.NewReviews(m)

	_, err := reviews.Submit(ctx, "renter-1", "nope", 5, "")
	assert.ErrorIs(t, err, rental.ErrBookingNotFound)
}

func TestSubmit_RatingOutOfBounds_Refused(t *testing.T) {
	m, ctx := newMarket(t)
	require.NoError(t, m.InsertBooking(ctx, confirmedBooking("bk-1", "car-1", "2026-06-01", "2026-06-03", t)))
	reviews := rental.NewReviews(m)

	for _, rating := range []int{0, -1, 6} {
		_, err := reviews.Submit(ctx, "renter-1", "bk-1", rating, "")
		var fe *rental.FieldError
		require.ErrorAs(t, err, &fe, "rating %d must be rejected", rating)
		assert.Equal(t, "rating", fe.Field)
	}

	// The rejections left nothing behind; a valid rating still goes through.
	_, err := reviews.Submit(ctx, "renter-1", "bk-1", 1, "")
	assert.NoError(t, err)
}

func TestSubmit_SameBookingTwice_Refused(t *testing.T) {
	// Each party reviews a booking at most once; both parties may review
	// the same booking independently.

	m, ctx := newMarket(t)
	require.NoError(t, m.InsertBooking(ctx, confirmedBooking("bk-1", "car-1", "2026-06-01", "2026-06-03", t)))
	reviews := rental.NewReviews(m)

	_, err := reviews.Submit(ctx, "renter-1", "bk-1", 5, "")
	require.NoError(t, err)

	_, err = reviews.Submit(ctx, "renter-1", "bk-1", 3, "changed my mind")
	var fe *rental.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "booking_id", fe.Field)

	_, err = reviews.Submit(ctx, "owner-1", "bk-1", 4, "")
	assert.NoError(t, err, "the other party's review is independent")
}

// =============================================================================
// RECEIVED LISTING
// =============================================================================

func TestReceived_NewestFirst(t *testing.T) {
	m, ctx := newMarket(t)
	base := time.Date(2026, time.June, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, m.SaveReview(ctx, rental.Review{
		ID: "rv-old", BookingID: "bk-1", ReviewerID: "renter-1",
		RevieweeID: "owner-1", Rating: 3, CreatedAt: base,
	}))
	require.NoError(t, m.SaveReview(ctx, rental.Review{
		ID: "rv-new", BookingID: "bk-2", ReviewerID: "renter-2",
		RevieweeID: "owner-1", Rating: 5, CreatedAt: base.Add(time.Hour),
	}))

	received, err := rental.NewReviews(m).Received(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, received, 2)
	assert.Equal(t, "rv-new", received[0].ID)
	assert.Equal(t, "rv-old", received[1].ID)
}

func TestReceived_NoneIsEmpty(t *testing.T) {
	m, ctx := newMarket(t)

	received, err := rental.NewReviews(m).Received(ctx, "owner-1")
	require.NoError(t, err)
	assert.Empty(t, received)
}
