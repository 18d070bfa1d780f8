/*
handlers.go - HTTP API handlers for the rental marketplace engine

PURPOSE:
  Exposes the booking, availability, and settlement engine via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to
  domain logic.

ENDPOINTS:
  Cars:
    GET    /api/cars                       List all listings
    POST   /api/cars                       Create listing (acting user is owner)
    GET    /api/cars/{id}                  Listing detail
    PUT    /api/cars/{id}                  Update listing (owner-only)
    POST   /api/cars/{id}/retire          Soft-disable listing (owner-only)
    GET    /api/cars/{id}/availability     Availability check (?start&end)
    GET    /api/cars/{id}/blocked          List blocked dates
    POST   /api/cars/{id}/blocked         Block dates (owner-only)
    DELETE /api/cars/{id}/blocked         Unblock dates (owner-only)
    GET    /api/cars/{id}/bookings         Bookings for a car

  Users:
    POST   /api/users                      Create account
    GET    /api/users/{id}/balance         Wallet balance + entries
    POST   /api/users/{id}/topup           Add funds
    GET    /api/users/{id}/bookings        ?role=renter|owner (default renter)
    GET    /api/users/{id}/notifications   Settlement outcome feed
    POST   /api/users/{id}/recovery        Set security questions (self-only)
    POST   /api/users/{id}/recovery/verify Check answers

  Settlement:
    POST   /api/bookings/hold              Reserve car + price quote
    POST   /api/bookings/confirm           Settle: debit, book, credit
    POST   /api/bookings/abandon           Discard hold, no side effects
    GET    /api/bookings/{id}              Booking detail

IDENTITY:
  The acting user arrives in the X-User-ID header; middleware maps it into
  the request context. There is no session state anywhere in the process.

ERROR HANDLING:
  Domain errors map to HTTP status via statusFor:
  - 400: Validation errors, invalid input, unavailable dates
  - 402: Insufficient funds
  - 403: Acting user is not the owner
  - 404: Car, user, hold, or booking not found
  - 409: Lost a settlement commit race
  - 500: Store failures, everything else

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - rental/settlement.go: The flow these handlers front
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/driveway/rental-engine/rental"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      rental.TxStore
	Cars       *rental.Cars
	Calendar   *rental.Calendar
	Resolver   *rental.Resolver
	Wallet     *rental.WalletLedger
	Bookings   *rental.Bookings
	Settlement *rental.Settlement
	Reviews    *rental.Reviews
	Recovery   *rental.Recovery
	Sink       *rental.StoreSink
	Holds      *rental.HoldRegistry
}

// NewHandler wires the domain services over the given store.
func NewHandler(store rental.TxStore, holds *rental.HoldRegistry) *Handler {
	sink := rental.NewStoreSink(store)
	return &Handler{
		Store:      store,
		Cars:       rental.NewCars(store),
		Calendar:   rental.NewCalendar(store),
		Resolver:   rental.NewResolver(store),
		Wallet:     rental.NewWalletLedger(store),
		Bookings:   rental.NewBookings(store),
		Settlement: rental.NewSettlement(store, holds, sink),
		Reviews:    rental.NewReviews(store),
		Recovery:   rental.NewRecovery(store),
		Sink:       sink,
		Holds:      holds,
	}
}

// =============================================================================
// CAR HANDLERS
// =============================================================================

// ListCars returns all listings, retired included (clients filter).
func (h *Handler) ListCars(w http.ResponseWriter, r *http.Request) {
	cars, err := h.Cars.List(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to list cars", err)
		return
	}

	dtos := make([]CarDTO, len(cars))
	for i, c := range cars {
		dtos[i] = carDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCar creates a listing owned by the acting user.
func (h *Handler) CreateCar(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req SaveCarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	price, err := rental.ParseMoney(req.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid price", err)
		return
	}

	car, err := h.Cars.Create(r.Context(), rental.Car{
		OwnerID:  actor,
		Make:     req.Make,
		Model:    req.Model,
		Year:     req.Year,
		Mileage:  req.Mileage,
		Color:    req.Color,
		Price:    price,
		Location: req.Location,
	})
	if err != nil {
		writeDomainError(w, "Failed to create car", err)
		return
	}

	writeJSON(w, http.StatusCreated, carDTO(car))
}

// GetCar returns a single listing.
func (h *Handler) GetCar(w http.ResponseWriter, r *http.Request) {
	car, err := h.Cars.Get(r.Context(), rental.CarID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get car", err)
		return
	}
	writeJSON(w, http.StatusOK, carDTO(*car))
}

// UpdateCar replaces listing attributes. Owner-only.
func (h *Handler) UpdateCar(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req SaveCarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	price, err := rental.ParseMoney(req.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid price", err)
		return
	}

	car, err := h.Cars.Update(r.Context(), actor, rental.Car{
		ID:       rental.CarID(chi.URLParam(r, "id")),
		Make:     req.Make,
		Model:    req.Model,
		Year:     req.Year,
		Mileage:  req.Mileage,
		Color:    req.Color,
		Price:    price,
		Location: req.Location,
	})
	if err != nil {
		writeDomainError(w, "Failed to update car", err)
		return
	}

	writeJSON(w, http.StatusOK, carDTO(car))
}

// RetireCar soft-disables a listing. Refused while confirmed future bookings
// exist.
func (h *Handler) RetireCar(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	carID := rental.CarID(chi.URLParam(r, "id"))
	if err := h.Cars.Retire(r.Context(), actor, carID); err != nil {
		writeDomainError(w, "Failed to retire car", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": carID, "retired": true})
}

// CheckAvailability answers whether a car can be rented for ?start..?end.
func (h *Handler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	carID := rental.CarID(chi.URLParam(r, "id"))

	rng, err := rental.ParseDateRange(r.URL.Query().Get("start"), r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range (use YYYY-MM-DD)", err)
		return
	}

	avail, err := h.Resolver.Check(r.Context(), carID, rng)
	if err != nil {
		writeDomainError(w, "Failed to check availability", err)
		return
	}

	writeJSON(w, http.StatusOK, AvailabilityDTO{
		CarID:     string(carID),
		Start:     rng.Start.String(),
		End:       rng.End.String(),
		Available: avail.Available,
		Days:      avail.Days,
		Reason:    avail.Reason,
		Conflicts: rental.FormatDates(avail.Conflicts),
	})
}

// ListBlocked returns the car's blocked dates, ascending.
func (h *Handler) ListBlocked(w http.ResponseWriter, r *http.Request) {
	dates, err := h.Calendar.ListBlocked(r.Context(), rental.CarID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to list blocked dates", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dates": rental.FormatDates(dates)})
}

// BlockDates marks dates unavailable. Owner-only, idempotent.
func (h *Handler) BlockDates(w http.ResponseWriter, r *http.Request) {
	h.setBlocked(w, r, true)
}

// UnblockDates re-enables dates. Owner-only, idempotent.
func (h *Handler) UnblockDates(w http.ResponseWriter, r *http.Request) {
	h.setBlocked(w, r, false)
}

func (h *Handler) setBlocked(w http.ResponseWriter, r *http.Request, blocked bool) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req BlockDatesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	dates := make([]rental.Date, 0, len(req.Dates))
	for _, ds := range req.Dates {
		d, err := rental.ParseDate(ds)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
			return
		}
		dates = append(dates, d)
	}

	carID := rental.CarID(chi.URLParam(r, "id"))
	var err error
	if blocked {
		err = h.Calendar.BlockDates(r.Context(), actor, carID, dates)
	} else {
		err = h.Calendar.UnblockDates(r.Context(), actor, carID, dates)
	}
	if err != nil {
		writeDomainError(w, "Failed to update calendar", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"car_id":  carID,
		"blocked": blocked,
		"dates":   req.Dates,
	})
}

// ListCarBookings returns bookings for a car, newest start first.
func (h *Handler) ListCarBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.Bookings.ListForCar(r.Context(), rental.CarID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to list bookings", err)
		return
	}
	writeJSON(w, http.StatusOK, bookingDTOs(bookings))
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// CreateUser creates an account with a zero wallet balance.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required", nil)
		return
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	user := rental.User{
		ID:      rental.UserID(id),
		Name:    req.Name,
		Email:   req.Email,
		Balance: rental.ZeroMoney(),
	}
	if err := h.Store.SaveUser(r.Context(), user); err != nil {
		writeDomainError(w, "Failed to create user", err)
		return
	}

	writeJSON(w, http.StatusCreated, userDTO(user))
}

// GetBalance returns the wallet balance and entry history.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID := rental.UserID(chi.URLParam(r, "id"))

	balance, err := h.Wallet.Balance(r.Context(), userID)
	if err != nil {
		writeDomainError(w, "Failed to get balance", err)
		return
	}

	entries, err := h.Wallet.Entries(r.Context(), userID)
	if err != nil {
		writeDomainError(w, "Failed to get wallet entries", err)
		return
	}

	dtos := make([]WalletEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = WalletEntryDTO{
			ID:          e.ID,
			Delta:       e.Delta.String(),
			Kind:        string(e.Kind),
			ReferenceID: e.ReferenceID,
			CreatedAt:   e.CreatedAt.Format(time.RFC3339),
		}
	}

	writeJSON(w, http.StatusOK, BalanceDTO{
		UserID:  string(userID),
		Balance: balance.String(),
		Entries: dtos,
	})
}

// TopUp adds funds to the acting user's own wallet.
func (h *Handler) TopUp(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	userID := rental.UserID(chi.URLParam(r, "id"))
	if actor != userID {
		writeError(w, http.StatusForbidden, "Cannot top up another user's wallet", nil)
		return
	}

	var req TopUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := rental.ParseMoney(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	if err := h.Wallet.TopUp(r.Context(), userID, amount); err != nil {
		writeDomainError(w, "Failed to top up", err)
		return
	}

	balance, err := h.Wallet.Balance(r.Context(), userID)
	if err != nil {
		writeDomainError(w, "Failed to read balance", err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceDTO{UserID: string(userID), Balance: balance.String()})
}

// ListUserBookings lists bookings where the user is renter (default) or
// owner (?role=owner).
func (h *Handler) ListUserBookings(w http.ResponseWriter, r *http.Request) {
	userID := rental.UserID(chi.URLParam(r, "id"))

	var (
		bookings []rental.Booking
		err      error
	)
	if r.URL.Query().Get("role") == "owner" {
		bookings, err = h.Bookings.ListForOwner(r.Context(), userID)
	} else {
		bookings, err = h.Bookings.ListForRenter(r.Context(), userID)
	}
	if err != nil {
		writeDomainError(w, "Failed to list bookings", err)
		return
	}
	writeJSON(w, http.StatusOK, bookingDTOs(bookings))
}

// ListNotifications returns the user's settlement-outcome feed, oldest first.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	notes, err := h.Sink.ListForUser(r.Context(), rental.UserID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to list notifications", err)
		return
	}

	dtos := make([]NotificationDTO, len(notes))
	for i, n := range notes {
		dtos[i] = NotificationDTO{
			ID:        n.ID,
			Message:   n.Message,
			CreatedAt: n.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SetRecovery stores the acting user's ordered security questions.
func (h *Handler) SetRecovery(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	userID := rental.UserID(chi.URLParam(r, "id"))
	if actor != userID {
		writeError(w, http.StatusForbidden, "Cannot set another user's recovery questions", nil)
		return
	}

	var req SetRecoveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	qs := make([]rental.RecoveryQuestion, len(req.Questions))
	for i, p := range req.Questions {
		qs[i] = rental.RecoveryQuestion{Question: p.Question, Answer: p.Answer}
	}

	if err := h.Recovery.SetQuestions(r.Context(), userID, qs); err != nil {
		writeDomainError(w, "Failed to set recovery questions", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"count": len(qs)})
}

// GetRecoveryQuestions returns the question texts, answers omitted.
func (h *Handler) GetRecoveryQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.Recovery.Questions(r.Context(), rental.UserID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get recovery questions", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": questions})
}

// VerifyRecovery checks submitted answers against the stored sequence.
func (h *Handler) VerifyRecovery(w http.ResponseWriter, r *http.Request) {
	var req VerifyRecoveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ok, err := h.Recovery.Verify(r.Context(), rental.UserID(chi.URLParam(r, "id")), req.Answers)
	if err != nil {
		writeDomainError(w, "Failed to verify answers", err)
		return
	}
	writeJSON(w, http.StatusOK, VerifyRecoveryResponse{Verified: ok})
}

// =============================================================================
// SETTLEMENT HANDLERS
// =============================================================================

// CreateHold reserves a car for the acting user at current pricing.
func (h *Handler) CreateHold(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req CreateHoldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rng, err := rental.ParseDateRange(req.Start, req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range (use YYYY-MM-DD)", err)
		return
	}

	hold, err := h.Settlement.RequestHold(r.Context(), actor, rental.CarID(req.CarID), rng)
	if err != nil {
		writeDomainError(w, "Failed to create hold", err)
		return
	}

	writeJSON(w, http.StatusCreated, holdDTO(hold))
}

// ConfirmBooking settles the hold: debit renter, insert booking, credit
// owner, all in one transaction.
func (h *Handler) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	booking, err := h.Settlement.ConfirmPayment(r.Context(), actor, rental.HoldID(req.HoldID))
	if err != nil {
		writeDomainError(w, "Failed to confirm booking", err)
		return
	}

	writeJSON(w, http.StatusCreated, bookingDTO(booking))
}

// AbandonHold discards the hold. No wallet or booking effects.
func (h *Handler) AbandonHold(w http.ResponseWriter, r *http.Request) {
	var req AbandonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Settlement.Abandon(rental.HoldID(req.HoldID)); err != nil {
		writeDomainError(w, "Failed to abandon hold", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"hold_id": req.HoldID, "abandoned": true})
}

// GetBooking returns one settled booking.
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := h.Bookings.Get(r.Context(), rental.BookingID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get booking", err)
		return
	}
	if booking == nil {
		writeError(w, http.StatusNotFound, "Booking not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, bookingDTO(*booking))
}

// =============================================================================
// REVIEW HANDLERS
// =============================================================================

// SubmitReview records the actor's rating of the other party on a booking.
func (h *Handler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req SubmitReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	review, err := h.Reviews.Submit(r.Context(), actor,
		rental.BookingID(chi.URLParam(r, "id")), req.Rating, req.Comment)
	if err != nil {
		writeDomainError(w, "Failed to submit review", err)
		return
	}

	writeJSON(w, http.StatusCreated, reviewDTO(review))
}

// ListReviewsReceived returns the reviews a user has been given, newest first.
func (h *Handler) ListReviewsReceived(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.Reviews.Received(r.Context(), rental.UserID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to list reviews", err)
		return
	}

	dtos := make([]ReviewDTO, len(reviews))
	for i, rv := range reviews {
		dtos[i] = reviewDTO(rv)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

// requireActor extracts the acting user from the request context, writing a
// 401 when the X-User-ID header was absent.
func requireActor(w http.ResponseWriter, r *http.Request) (rental.UserID, bool) {
	actor := ActorID(r.Context())
	if actor == "" {
		writeError(w, http.StatusUnauthorized, "Missing X-User-ID header", nil)
		return "", false
	}
	return actor, true
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, rental.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, rental.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, rental.ErrConcurrencyConflict),
		errors.Is(err, rental.ErrCarHasBookings):
		return http.StatusConflict
	case rental.IsNotFound(err):
		return http.StatusNotFound
	case rental.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(w http.ResponseWriter, message string, err error) {
	writeError(w, statusFor(err), message, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
