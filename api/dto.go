/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  All amounts cross the wire as decimal strings ("150.00"), never floats.

DATES:
  All dates cross the wire as "YYYY-MM-DD" strings.

VALIDATION:
  Validation is done in handlers and domain services, not in DTOs. DTOs are
  pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - rental/types.go: Domain model these map from
*/
package api

import (
	"time"

	"github.com/driveway/rental-engine/rental"
)

// =============================================================================
// USERS
// =============================================================================

// UserDTO represents a marketplace account in API responses.
type UserDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Balance   string `json:"balance"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateUserRequest is the request to create a user. ID is optional; one is
// generated when absent.
type CreateUserRequest struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// BalanceDTO is the wallet balance response.
type BalanceDTO struct {
	UserID  string           `json:"user_id"`
	Balance string           `json:"balance"`
	Entries []WalletEntryDTO `json:"entries,omitempty"`
}

// TopUpRequest adds funds to a wallet.
type TopUpRequest struct {
	Amount string `json:"amount"`
}

// WalletEntryDTO is one immutable balance change.
type WalletEntryDTO struct {
	ID          string `json:"id"`
	Delta       string `json:"delta"`
	Kind        string `json:"kind"`
	ReferenceID string `json:"reference_id,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// =============================================================================
// CARS
// =============================================================================

// CarDTO represents a listing in API responses.
type CarDTO struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	Make      string `json:"make"`
	Model     string `json:"model"`
	Year      int    `json:"year"`
	Mileage   int    `json:"mileage"`
	Color     string `json:"color,omitempty"`
	Price     string `json:"price"`
	Location  string `json:"location"`
	Retired   bool   `json:"retired"`
	CreatedAt string `json:"created_at,omitempty"`
}

// SaveCarRequest creates or updates a listing. Price is a decimal string,
// per day.
type SaveCarRequest struct {
	Make     string `json:"make"`
	Model    string `json:"model"`
	Year     int    `json:"year"`
	Mileage  int    `json:"mileage"`
	Color    string `json:"color"`
	Price    string `json:"price"`
	Location string `json:"location"`
}

// =============================================================================
// AVAILABILITY AND CALENDAR
// =============================================================================

// AvailabilityDTO is the result of an availability check.
type AvailabilityDTO struct {
	CarID     string   `json:"car_id"`
	Start     string   `json:"start"`
	End       string   `json:"end"`
	Available bool     `json:"available"`
	Days      int      `json:"days,omitempty"`
	Reason    string   `json:"reason,omitempty"`
	Conflicts []string `json:"conflicts,omitempty"`
}

// BlockDatesRequest blocks or unblocks calendar dates.
type BlockDatesRequest struct {
	Dates []string `json:"dates"`
}

// =============================================================================
// BOOKINGS AND HOLDS
// =============================================================================

// HoldDTO is an unexpired reservation hold awaiting payment.
type HoldDTO struct {
	ID        string `json:"id"`
	CarID     string `json:"car_id"`
	RenterID  string `json:"renter_id"`
	OwnerID   string `json:"owner_id"`
	Start     string `json:"start"`
	End       string `json:"end"`
	TotalCost string `json:"total_cost"`
	CreatedAt string `json:"created_at"`
}

// CreateHoldRequest reserves a car for a date range at current pricing.
type CreateHoldRequest struct {
	CarID string `json:"car_id"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// ConfirmRequest settles a hold: debit renter, book, credit owner.
type ConfirmRequest struct {
	HoldID string `json:"hold_id"`
}

// AbandonRequest discards a hold without side effects.
type AbandonRequest struct {
	HoldID string `json:"hold_id"`
}

// BookingDTO represents a settled reservation.
type BookingDTO struct {
	ID        string `json:"id"`
	CarID     string `json:"car_id"`
	RenterID  string `json:"renter_id"`
	OwnerID   string `json:"owner_id"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Status    string `json:"status"`
	TotalCost string `json:"total_cost"`
	CreatedAt string `json:"created_at,omitempty"`
}

// =============================================================================
// NOTIFICATIONS AND RECOVERY
// =============================================================================

// NotificationDTO is one settlement-outcome message.
type NotificationDTO struct {
	ID        string `json:"id"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

// SubmitReviewRequest rates the other party of a booking.
type SubmitReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

// ReviewDTO is one post-booking review.
type ReviewDTO struct {
	ID         string `json:"id"`
	BookingID  string `json:"booking_id"`
	ReviewerID string `json:"reviewer_id"`
	RevieweeID string `json:"reviewee_id"`
	Rating     int    `json:"rating"`
	Comment    string `json:"comment,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// SetRecoveryRequest stores a user's ordered security questions.
type SetRecoveryRequest struct {
	Questions []RecoveryPairDTO `json:"questions"`
}

// RecoveryPairDTO is one (question, expected answer) pair.
type RecoveryPairDTO struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// VerifyRecoveryRequest submits answers in question order.
type VerifyRecoveryRequest struct {
	Answers []string `json:"answers"`
}

// VerifyRecoveryResponse reports whether every answer matched.
type VerifyRecoveryResponse struct {
	Verified bool `json:"verified"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// MAPPERS
// =============================================================================

func userDTO(u rental.User) UserDTO {
	return UserDTO{
		ID:        string(u.ID),
		Name:      u.Name,
		Email:     u.Email,
		Balance:   u.Balance.String(),
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}

func carDTO(c rental.Car) CarDTO {
	return CarDTO{
		ID:        string(c.ID),
		OwnerID:   string(c.OwnerID),
		Make:      c.Make,
		Model:     c.Model,
		Year:      c.Year,
		Mileage:   c.Mileage,
		Color:     c.Color,
		Price:     c.Price.String(),
		Location:  c.Location,
		Retired:   c.Retired,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
	}
}

func holdDTO(h rental.Hold) HoldDTO {
	return HoldDTO{
		ID:        string(h.ID),
		CarID:     string(h.CarID),
		RenterID:  string(h.RenterID),
		OwnerID:   string(h.OwnerID),
		Start:     h.Range.Start.String(),
		End:       h.Range.End.String(),
		TotalCost: h.TotalCost.String(),
		CreatedAt: h.CreatedAt.Format(time.RFC3339),
	}
}

func bookingDTO(b rental.Booking) BookingDTO {
	return BookingDTO{
		ID:        string(b.ID),
		CarID:     string(b.CarID),
		RenterID:  string(b.RenterID),
		OwnerID:   string(b.OwnerID),
		Start:     b.Range.Start.String(),
		End:       b.Range.End.String(),
		Status:    string(b.Status),
		TotalCost: b.TotalCost.String(),
		CreatedAt: b.CreatedAt.Format(time.RFC3339),
	}
}

func bookingDTOs(bs []rental.Booking) []BookingDTO {
	out := make([]BookingDTO, len(bs))
	for i, b := range bs {
		out[i] = bookingDTO(b)
	}
	return out
}

func reviewDTO(rv rental.Review) ReviewDTO {
	return ReviewDTO{
		ID:         rv.ID,
		BookingID:  string(rv.BookingID),
		ReviewerID: string(rv.ReviewerID),
		RevieweeID: string(rv.RevieweeID),
		Rating:     rv.Rating,
		Comment:    rv.Comment,
		CreatedAt:  rv.CreatedAt.Format(time.RFC3339),
	}
}
