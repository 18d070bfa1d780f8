/*
reviews.go - Post-booking reviews

PURPOSE:
  After a booking, each party can rate the other once: the renter reviews
  the owner, the owner reviews the renter. Ratings are 1..5 with an optional
  comment, and a user's received reviews are listed newest first.
*/
package rental

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Reviews manages post-booking feedback.
type Reviews struct {
	store Store
}

func NewReviews(store Store) *Reviews {
	return &Reviews{store: store}
}

// Submit records the actor's review of the other party on the booking. Only
// the renter or the owner of the booking may review it, and each at most once.
func (r *Reviews) Submit(ctx context.Context, actor UserID, bookingID BookingID, rating int, comment string) (Review, error) {
	booking, err := r.store.GetBooking(ctx, bookingID)
	if err != nil {
		return Review{}, err
	}
	if booking == nil {
		return Review{}, ErrBookingNotFound
	}

	var reviewee UserID
	switch actor {
	case booking.RenterID:
		reviewee = booking.OwnerID
	case booking.OwnerID:
		reviewee = booking.RenterID
	default:
		return Review{}, ErrUnauthorized
	}

	review := Review{
		ID:         uuid.NewString(),
		BookingID:  bookingID,
		ReviewerID: actor,
		RevieweeID: reviewee,
		Rating:     rating,
		Comment:    comment,
		CreatedAt:  time.Now().UTC(),
	}
	if err := review.Validate(); err != nil {
		return Review{}, err
	}

	existing, err := r.store.GetReview(ctx, bookingID, actor)
	if err != nil {
		return Review{}, err
	}
	if existing != nil {
		return Review{}, &FieldError{Field: "booking_id", Message: "booking already reviewed"}
	}

	// The store's (booking, reviewer) uniqueness backstops the check above
	// under concurrent submissions.
	if err := r.store.SaveReview(ctx, review); err != nil {
		return Review{}, err
	}
	return review, nil
}

// Received lists the reviews a user has been given, newest first.
func (r *Reviews) Received(ctx context.Context, userID UserID) ([]Review, error) {
	return r.store.ListReviewsReceived(ctx, userID)
}
