package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveway/rental-engine/api"
	"github.com/driveway/rental-engine/rental"
	"github.com/driveway/rental-engine/rental/store"
)

// =============================================================================
// TEST HARNESS
// =============================================================================

type harness struct {
	t      *testing.T
	server *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	m := store.NewMemory()
	handler := api.NewHandler(m, rental.NewHoldRegistry(0))
	srv := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(srv.Close)
	return &harness{t: t, server: srv}
}

// do sends a JSON request as the given user and decodes the response into out.
func (h *harness) do(method, path, asUser string, body any, out any) int {
	h.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, h.server.URL+path, &buf)
	require.NoError(h.t, err)
	req.Header.Set("Content-Type", "application/json")
	if asUser != "" {
		req.Header.Set("X-User-ID", asUser)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(h.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (h *harness) createUser(id, name string) {
	h.t.Helper()
	status := h.do(http.MethodPost, "/api/users", "", map[string]string{"id": id, "name": name}, nil)
	require.Equal(h.t, http.StatusCreated, status)
}

func (h *harness) topUp(userID, amount string) {
	h.t.Helper()
	status := h.do(http.MethodPost, "/api/users/"+userID+"/topup", userID,
		map[string]string{"amount": amount}, nil)
	require.Equal(h.t, http.StatusOK, status)
}

func (h *harness) createCar(ownerID, price string) string {
	h.t.Helper()
	var car api.CarDTO
	status := h.do(http.MethodPost, "/api/cars", ownerID, api.SaveCarRequest{
		Make: "Toyota", Model: "Corolla", Year: 2021, Mileage: 20000,
		Price: price, Location: "Lisbon",
	}, &car)
	require.Equal(h.t, http.StatusCreated, status)
	return car.ID
}

func futureDay(offset int) string {
	return rental.Today().AddDays(offset).String()
}

// =============================================================================
// END-TO-END FLOW
// =============================================================================

func TestAPI_FullBookingFlow(t *testing.T) {
	// GIVEN: An owner with a car and a funded renter
	// WHEN: check -> hold -> confirm
	// THEN: Booking confirmed, wallets settled, notifications delivered

	h := newHarness(t)
	h.createUser("owner-1", "Ana")
	h.createUser("renter-1", "Bo")
	h.topUp("renter-1", "500.00")
	carID := h.createCar("owner-1", "50.00")

	// Availability check
	var avail api.AvailabilityDTO
	status := h.do(http.MethodGet,
		fmt.Sprintf("/api/cars/%s/availability?start=%s&end=%s", carID, futureDay(10), futureDay(12)),
		"", nil, &avail)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, avail.Available)
	assert.Equal(t, 3, avail.Days)

	// Hold
	var hold api.HoldDTO
	status = h.do(http.MethodPost, "/api/bookings/hold", "renter-1", api.CreateHoldRequest{
		CarID: carID, Start: futureDay(10), End: futureDay(12),
	}, &hold)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "150.00", hold.TotalCost)

	// Confirm
	var booking api.BookingDTO
	status = h.do(http.MethodPost, "/api/bookings/confirm", "renter-1",
		api.ConfirmRequest{HoldID: hold.ID}, &booking)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "confirmed", booking.Status)

	// Wallets settled
	var renterBal, ownerBal api.BalanceDTO
	h.do(http.MethodGet, "/api/users/renter-1/balance", "", nil, &renterBal)
	h.do(http.MethodGet, "/api/users/owner-1/balance", "", nil, &ownerBal)
	assert.Equal(t, "350.00", renterBal.Balance)
	assert.Equal(t, "150.00", ownerBal.Balance)

	// Both parties notified
	var notes []api.NotificationDTO
	h.do(http.MethodGet, "/api/users/owner-1/notifications", "", nil, &notes)
	assert.Len(t, notes, 1)

	// The dates are now taken
	status = h.do(http.MethodGet,
		fmt.Sprintf("/api/cars/%s/availability?start=%s&end=%s", carID, futureDay(11), futureDay(13)),
		"", nil, &avail)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, avail.Available)
	assert.Equal(t, rental.ReasonBooked, avail.Reason)
}

func TestAPI_ConfirmWithoutFunds_402_ThenRetry(t *testing.T) {
	h := newHarness(t)
	h.createUser("owner-1", "Ana")
	h.createUser("renter-1", "Bo")
	h.topUp("renter-1", "100.00")
	carID := h.createCar("owner-1", "50.00")

	var hold api.HoldDTO
	status := h.do(http.MethodPost, "/api/bookings/hold", "renter-1", api.CreateHoldRequest{
		CarID: carID, Start: futureDay(10), End: futureDay(12),
	}, &hold)
	require.Equal(t, http.StatusCreated, status)

	var errResp api.ErrorResponse
	status = h.do(http.MethodPost, "/api/bookings/confirm", "renter-1",
		api.ConfirmRequest{HoldID: hold.ID}, &errResp)
	assert.Equal(t, http.StatusPaymentRequired, status)

	// Top up and retry the same hold.
	h.topUp("renter-1", "100.00")
	var booking api.BookingDTO
	status = h.do(http.MethodPost, "/api/bookings/confirm", "renter-1",
		api.ConfirmRequest{HoldID: hold.ID}, &booking)
	assert.Equal(t, http.StatusCreated, status)
}

func TestAPI_HoldOnBlockedDates_400WithDates(t *testing.T) {
	h := newHarness(t)
	h.createUser("owner-1", "Ana")
	h.createUser("renter-1", "Bo")
	carID := h.createCar("owner-1", "50.00")

	blocked := futureDay(11)
	status := h.do(http.MethodPost, "/api/cars/"+carID+"/blocked", "owner-1",
		api.BlockDatesRequest{Dates: []string{blocked}}, nil)
	require.Equal(t, http.StatusOK, status)

	var errResp api.ErrorResponse
	status = h.do(http.MethodPost, "/api/bookings/hold", "renter-1", api.CreateHoldRequest{
		CarID: carID, Start: futureDay(10), End: futureDay(12),
	}, &errResp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, errResp.Details, blocked)
}

func TestAPI_BlockDates_NotOwner_403(t *testing.T) {
	h := newHarness(t)
	h.createUser("owner-1", "Ana")
	h.createUser("renter-1", "Bo")
	carID := h.createCar("owner-1", "50.00")

	status := h.do(http.MethodPost, "/api/cars/"+carID+"/blocked", "renter-1",
		api.BlockDatesRequest{Dates: []string{futureDay(5)}}, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestAPI_HoldWithoutIdentity_401(t *testing.T) {
	h := newHarness(t)
	h.createUser("owner-1", "Ana")
	carID := h.createCar("owner-1", "50.00")

	status := h.do(http.MethodPost, "/api/bookings/hold", "", api.CreateHoldRequest{
		CarID: carID, Start: futureDay(10), End: futureDay(12),
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAPI_ConfirmSomeoneElsesHold_403(t *testing.T) {
	h := newHarness(t)
	h.createUser("owner-1", "Ana")
	h.createUser("renter-1", "Bo")
	h.createUser("renter-2", "Kim")
	h.topUp("renter-1", "500.00")
	carID := h.createCar("owner-1", "50.00")

	var hold api.HoldDTO
	status := h.do(http.MethodPost, "/api/bookings/hold", "renter-1", api.CreateHoldRequest{
		CarID: carID, Start: futureDay(10), End: futureDay(12),
	}, &hold)
	require.Equal(t, http.StatusCreated, status)

	status = h.do(http.MethodPost, "/api/bookings/confirm", "renter-2",
		api.ConfirmRequest{HoldID: hold.ID}, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestAPI_AbandonHold_NoEffects(t *testing.T) {
	h := newHarness(t)
	h.createUser("owner-1", "Ana")
	h.createUser("renter-1", "Bo")
	h.topUp("renter-1", "500.00")
	carID := h.createCar("owner-1", "50.00")

	var hold api.HoldDTO
	status := h.do(http.MethodPost, "/api/bookings/hold", "renter-1", api.CreateHoldRequest{
		CarID: carID, Start: futureDay(10), End: futureDay(12),
	}, &hold)
	require.Equal(t, http.StatusCreated, status)

	status = h.do(http.MethodPost, "/api/bookings/abandon", "renter-1",
		api.AbandonRequest{HoldID: hold.ID}, nil)
	require.Equal(t, http.StatusOK, status)

	var bal api.BalanceDTO
	h.do(http.MethodGet, "/api/users/renter-1/balance", "", nil, &bal)
	assert.Equal(t, "500.00", bal.Balance)

	status = h.do(http.MethodPost, "/api/bookings/confirm", "renter-1",
		api.ConfirmRequest{HoldID: hold.ID}, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPI_RetireCar_OwnerOnly(t *testing.T) {
	h := newHarness(t)
	h.createUser("owner-1", "Ana")
	h.createUser("renter-1", "Bo")
	carID := h.createCar("owner-1", "50.00")

	status := h.do(http.MethodPost, "/api/cars/"+carID+"/retire", "renter-1", nil, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status = h.do(http.MethodPost, "/api/cars/"+carID+"/retire", "owner-1", nil, nil)
	require.Equal(t, http.StatusOK, status)

	var car api.CarDTO
	h.do(http.MethodGet, "/api/cars/"+carID, "", nil, &car)
	assert.True(t, car.Retired)
}

func TestAPI_Recovery_SetAndVerify(t *testing.T) {
	h := newHarness(t)
	h.createUser("renter-1", "Bo")

	status := h.do(http.MethodPost, "/api/users/renter-1/recovery", "renter-1",
		api.SetRecoveryRequest{Questions: []api.RecoveryPairDTO{
			{Question: "First pet's name?", Answer: "Rex"},
			{Question: "City you were born in?", Answer: "Porto"},
		}}, nil)
	require.Equal(t, http.StatusOK, status)

	var verify api.VerifyRecoveryResponse
	status = h.do(http.MethodPost, "/api/users/renter-1/recovery/verify", "",
		api.VerifyRecoveryRequest{Answers: []string{"Rex", "Porto"}}, &verify)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, verify.Verified)

	status = h.do(http.MethodPost, "/api/users/renter-1/recovery/verify", "",
		api.VerifyRecoveryRequest{Answers: []string{"Rex", "Lisbon"}}, &verify)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, verify.Verified)
}

func TestAPI_UserBookings_ByRole(t *testing.T) {
	h := newHarness(t)
	h.createUser("owner-1", "Ana")
	h.createUser("renter-1", "Bo")
	h.topUp("renter-1", "500.00")
	carID := h.createCar("owner-1", "50.00")

	var hold api.HoldDTO
	h.do(http.MethodPost, "/api/bookings/hold", "renter-1", api.CreateHoldRequest{
		CarID: carID, Start: futureDay(10), End: futureDay(12),
	}, &hold)
	status := h.do(http.MethodPost, "/api/bookings/confirm", "renter-1",
		api.ConfirmRequest{HoldID: hold.ID}, nil)
	require.Equal(t, http.StatusCreated, status)

	var asRenter, asOwner []api.BookingDTO
	h.do(http.MethodGet, "/api/users/renter-1/bookings", "", nil, &asRenter)
	h.do(http.MethodGet, "/api/users/owner-1/bookings?role=owner", "", nil, &asOwner)
	assert.Len(t, asRenter, 1)
	assert.Len(t, asOwner, 1)
	assert.Equal(t, asRenter[0].ID, asOwner[0].ID)
}

func TestAPI_ReviewFlow(t *testing.T) {
	// GIVEN: A settled booking
	// WHEN: The renter reviews it
	// THEN: The review shows up on the owner's received list

	h := newHarness(t)
	h.createUser("owner-1", "Ana")
	h.createUser("renter-1", "Bo")
	h.topUp("renter-1", "500.00")
	carID := h.createCar("owner-1", "50.00")

	var hold api.HoldDTO
	h.do(http.MethodPost, "/api/bookings/hold", "renter-1", api.CreateHoldRequest{
		CarID: carID, Start: futureDay(10), End: futureDay(12),
	}, &hold)
	var booking api.BookingDTO
	status := h.do(http.MethodPost, "/api/bookings/confirm", "renter-1",
		api.ConfirmRequest{HoldID: hold.ID}, &booking)
	require.Equal(t, http.StatusCreated, status)

	// Anonymous review attempts bounce.
	status = h.do(http.MethodPost, "/api/bookings/"+booking.ID+"/review", "",
		api.SubmitReviewRequest{Rating: 5}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	// Out-of-range rating bounces.
	status = h.do(http.MethodPost, "/api/bookings/"+booking.ID+"/review", "renter-1",
		api.SubmitReviewRequest{Rating: 6}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	var review api.ReviewDTO
	status = h.do(http.MethodPost, "/api/bookings/"+booking.ID+"/review", "renter-1",
		api.SubmitReviewRequest{Rating: 5, Comment: "great car"}, &review)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "owner-1", review.RevieweeID)

	var received []api.ReviewDTO
	status = h.do(http.MethodGet, "/api/users/owner-1/reviews", "", nil, &received)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, received, 1)
	assert.Equal(t, 5, received[0].Rating)
	assert.Equal(t, "great car", received[0].Comment)
}
