// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/driveway/rental-engine/rental"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements rental.TxStore with plain maps. WithTx clones the whole
// state, runs the function against the clone, and swaps it in on success:
// rollback is just discarding the clone. A single mutex serializes writers,
// matching the store contract (no lost wallet updates).
type Memory struct {
	mu sync.RWMutex
	st *state
}

type state struct {
	users         map[rental.UserID]rental.User
	cars          map[rental.CarID]rental.Car
	blocks        map[rental.CarID]map[string]bool
	bookings      map[rental.BookingID]rental.Booking
	bookingDays   map[string]rental.BookingID // carID|date -> confirmed booking
	walletEntries map[rental.UserID][]rental.WalletEntry
	notifications map[rental.UserID][]rental.Notification
	reviews       map[string]rental.Review // bookingID|reviewerID
	recovery      map[rental.UserID][]rental.RecoveryQuestion
}

func NewMemory() *Memory {
	return &Memory{st: newState()}
}

func newState() *state {
	return &state{
		users:         make(map[rental.UserID]rental.User),
		cars:          make(map[rental.CarID]rental.Car),
		blocks:        make(map[rental.CarID]map[string]bool),
		bookings:      make(map[rental.BookingID]rental.Booking),
		bookingDays:   make(map[string]rental.BookingID),
		walletEntries: make(map[rental.UserID][]rental.WalletEntry),
		notifications: make(map[rental.UserID][]rental.Notification),
		reviews:       make(map[string]rental.Review),
		recovery:      make(map[rental.UserID][]rental.RecoveryQuestion),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.cars {
		c.cars[k] = v
	}
	for k, v := range s.blocks {
		inner := make(map[string]bool, len(v))
		for d, b := range v {
			inner[d] = b
		}
		c.blocks[k] = inner
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	for k, v := range s.bookingDays {
		c.bookingDays[k] = v
	}
	for k, v := range s.walletEntries {
		c.walletEntries[k] = append([]rental.WalletEntry(nil), v...)
	}
	for k, v := range s.notifications {
		c.notifications[k] = append([]rental.Notification(nil), v...)
	}
	for k, v := range s.reviews {
		c.reviews[k] = v
	}
	for k, v := range s.recovery {
		c.recovery[k] = append([]rental.RecoveryQuestion(nil), v...)
	}
	return c
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx runs fn against a cloned state; the clone replaces the live state
// only if fn succeeds.
func (m *Memory) WithTx(_ context.Context, fn func(rental.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := m.st.clone()
	if err := fn(&txMemory{st: clone}); err != nil {
		return err
	}
	m.st = clone
	return nil
}

// txMemory operates on an unshared clone, so no locking is needed.
type txMemory struct {
	st *state
}

// =============================================================================
// STORE METHODS - Memory locks, txMemory doesn't; both delegate to state.
// =============================================================================

func (m *Memory) SaveUser(_ context.Context, u rental.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.saveUser(u)
}
func (t *txMemory) SaveUser(_ context.Context, u rental.User) error { return t.st.saveUser(u) }

func (m *Memory) GetUser(_ context.Context, id rental.UserID) (*rental.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.getUser(id)
}
func (t *txMemory) GetUser(_ context.Context, id rental.UserID) (*rental.User, error) {
	return t.st.getUser(id)
}

func (m *Memory) SaveCar(_ context.Context, c rental.Car) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.saveCar(c)
}
func (t *txMemory) SaveCar(_ context.Context, c rental.Car) error { return t.st.saveCar(c) }

func (m *Memory) GetCar(_ context.Context, id rental.CarID) (*rental.Car, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.getCar(id)
}
func (t *txMemory) GetCar(_ context.Context, id rental.CarID) (*rental.Car, error) {
	return t.st.getCar(id)
}

func (m *Memory) ListCars(_ context.Context) ([]rental.Car, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.listCars()
}
func (t *txMemory) ListCars(_ context.Context) ([]rental.Car, error) { return t.st.listCars() }

func (m *Memory) SetBlocked(_ context.Context, carID rental.CarID, date rental.Date, blocked bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.setBlocked(carID, date, blocked)
}
func (t *txMemory) SetBlocked(_ context.Context, carID rental.CarID, date rental.Date, blocked bool) error {
	return t.st.setBlocked(carID, date, blocked)
}

func (m *Memory) ListBlocked(_ context.Context, carID rental.CarID) ([]rental.Date, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.listBlocked(carID)
}
func (t *txMemory) ListBlocked(_ context.Context, carID rental.CarID) ([]rental.Date, error) {
	return t.st.listBlocked(carID)
}

func (m *Memory) BlockedWithin(_ context.Context, carID rental.CarID, r rental.DateRange) ([]rental.Date, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.blockedWithin(carID, r)
}
func (t *txMemory) BlockedWithin(_ context.Context, carID rental.CarID, r rental.DateRange) ([]rental.Date, error) {
	return t.st.blockedWithin(carID, r)
}

func (m *Memory) InsertBooking(_ context.Context, b rental.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.insertBooking(b)
}
func (t *txMemory) InsertBooking(_ context.Context, b rental.Booking) error {
	return t.st.insertBooking(b)
}

func (m *Memory) GetBooking(_ context.Context, id rental.BookingID) (*rental.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.getBooking(id)
}
func (t *txMemory) GetBooking(_ context.Context, id rental.BookingID) (*rental.Booking, error) {
	return t.st.getBooking(id)
}

func (m *Memory) ListConfirmedOverlapping(_ context.Context, carID rental.CarID, r rental.DateRange) ([]rental.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.listConfirmedOverlapping(carID, r)
}
func (t *txMemory) ListConfirmedOverlapping(_ context.Context, carID rental.CarID, r rental.DateRange) ([]rental.Booking, error) {
	return t.st.listConfirmedOverlapping(carID, r)
}

func (m *Memory) ListBookingsForCar(_ context.Context, carID rental.CarID) ([]rental.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.listBookings(func(b rental.Booking) bool { return b.CarID == carID })
}
func (t *txMemory) ListBookingsForCar(_ context.Context, carID rental.CarID) ([]rental.Booking, error) {
	return t.st.listBookings(func(b rental.Booking) bool { return b.CarID == carID })
}

func (m *Memory) ListBookingsForRenter(_ context.Context, renterID rental.UserID) ([]rental.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.listBookings(func(b rental.Booking) bool { return b.RenterID == renterID })
}
func (t *txMemory) ListBookingsForRenter(_ context.Context, renterID rental.UserID) ([]rental.Booking, error) {
	return t.st.listBookings(func(b rental.Booking) bool { return b.RenterID == renterID })
}

func (m *Memory) ListBookingsForOwner(_ context.Context, ownerID rental.UserID) ([]rental.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.listBookings(func(b rental.Booking) bool { return b.OwnerID == ownerID })
}
func (t *txMemory) ListBookingsForOwner(_ context.Context, ownerID rental.UserID) ([]rental.Booking, error) {
	return t.st.listBookings(func(b rental.Booking) bool { return b.OwnerID == ownerID })
}

func (m *Memory) HasConfirmedFrom(_ context.Context, carID rental.CarID, from rental.Date) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.hasConfirmedFrom(carID, from)
}
func (t *txMemory) HasConfirmedFrom(_ context.Context, carID rental.CarID, from rental.Date) (bool, error) {
	return t.st.hasConfirmedFrom(carID, from)
}

func (m *Memory) ApplyWalletEntry(_ context.Context, e rental.WalletEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.applyWalletEntry(e)
}
func (t *txMemory) ApplyWalletEntry(_ context.Context, e rental.WalletEntry) error {
	return t.st.applyWalletEntry(e)
}

func (m *Memory) ListWalletEntries(_ context.Context, userID rental.UserID) ([]rental.WalletEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.listWalletEntries(userID)
}
func (t *txMemory) ListWalletEntries(_ context.Context, userID rental.UserID) ([]rental.WalletEntry, error) {
	return t.st.listWalletEntries(userID)
}

func (m *Memory) AppendNotification(_ context.Context, n rental.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.appendNotification(n)
}
func (t *txMemory) AppendNotification(_ context.Context, n rental.Notification) error {
	return t.st.appendNotification(n)
}

func (m *Memory) ListNotifications(_ context.Context, userID rental.UserID) ([]rental.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.listNotifications(userID)
}
func (t *txMemory) ListNotifications(_ context.Context, userID rental.UserID) ([]rental.Notification, error) {
	return t.st.listNotifications(userID)
}

func (m *Memory) SaveReview(_ context.Context, rv rental.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.saveReview(rv)
}
func (t *txMemory) SaveReview(_ context.Context, rv rental.Review) error {
	return t.st.saveReview(rv)
}

func (m *Memory) GetReview(_ context.Context, bookingID rental.BookingID, reviewerID rental.UserID) (*rental.Review, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.getReview(bookingID, reviewerID)
}
func (t *txMemory) GetReview(_ context.Context, bookingID rental.BookingID, reviewerID rental.UserID) (*rental.Review, error) {
	return t.st.getReview(bookingID, reviewerID)
}

func (m *Memory) ListReviewsReceived(_ context.Context, revieweeID rental.UserID) ([]rental.Review, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.listReviewsReceived(revieweeID)
}
func (t *txMemory) ListReviewsReceived(_ context.Context, revieweeID rental.UserID) ([]rental.Review, error) {
	return t.st.listReviewsReceived(revieweeID)
}

func (m *Memory) SaveRecoveryQuestions(_ context.Context, userID rental.UserID, qs []rental.RecoveryQuestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.saveRecoveryQuestions(userID, qs)
}
func (t *txMemory) SaveRecoveryQuestions(_ context.Context, userID rental.UserID, qs []rental.RecoveryQuestion) error {
	return t.st.saveRecoveryQuestions(userID, qs)
}

func (m *Memory) GetRecoveryQuestions(_ context.Context, userID rental.UserID) ([]rental.RecoveryQuestion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.getRecoveryQuestions(userID)
}
func (t *txMemory) GetRecoveryQuestions(_ context.Context, userID rental.UserID) ([]rental.RecoveryQuestion, error) {
	return t.st.getRecoveryQuestions(userID)
}

// =============================================================================
// STATE OPERATIONS
// =============================================================================

func (s *state) saveUser(u rental.User) error {
	s.users[u.ID] = u
	return nil
}

func (s *state) getUser(id rental.UserID) (*rental.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *state) saveCar(c rental.Car) error {
	s.cars[c.ID] = c
	return nil
}

func (s *state) getCar(id rental.CarID) (*rental.Car, error) {
	c, ok := s.cars[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *state) listCars() ([]rental.Car, error) {
	cars := make([]rental.Car, 0, len(s.cars))
	for _, c := range s.cars {
		cars = append(cars, c)
	}
	sort.Slice(cars, func(i, j int) bool { return cars[i].ID < cars[j].ID })
	return cars, nil
}

func (s *state) setBlocked(carID rental.CarID, date rental.Date, blocked bool) error {
	if s.blocks[carID] == nil {
		s.blocks[carID] = make(map[string]bool)
	}
	s.blocks[carID][date.String()] = blocked
	return nil
}

func (s *state) listBlocked(carID rental.CarID) ([]rental.Date, error) {
	var dates []rental.Date
	for ds, blocked := range s.blocks[carID] {
		if !blocked {
			continue
		}
		d, err := rental.ParseDate(ds)
		if err != nil {
			continue
		}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

func (s *state) blockedWithin(carID rental.CarID, r rental.DateRange) ([]rental.Date, error) {
	all, _ := s.listBlocked(carID)
	var within []rental.Date
	for _, d := range all {
		if r.Contains(d) {
			within = append(within, d)
		}
	}
	return within, nil
}

func (s *state) insertBooking(b rental.Booking) error {
	if b.Status == rental.BookingConfirmed {
		for _, d := range b.Range.Dates() {
			if _, taken := s.bookingDays[dayKey(b.CarID, d)]; taken {
				return rental.ErrConcurrencyConflict
			}
		}
		for _, d := range b.Range.Dates() {
			s.bookingDays[dayKey(b.CarID, d)] = b.ID
		}
	}
	s.bookings[b.ID] = b
	return nil
}

func dayKey(carID rental.CarID, d rental.Date) string {
	return string(carID) + "|" + d.String()
}

func (s *state) getBooking(id rental.BookingID) (*rental.Booking, error) {
	b, ok := s.bookings[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (s *state) listConfirmedOverlapping(carID rental.CarID, r rental.DateRange) ([]rental.Booking, error) {
	var out []rental.Booking
	for _, b := range s.bookings {
		if b.CarID == carID && b.Status == rental.BookingConfirmed && b.Range.Overlaps(r) {
			out = append(out, b)
		}
	}
	sortByStartDesc(out)
	return out, nil
}

func (s *state) listBookings(match func(rental.Booking) bool) ([]rental.Booking, error) {
	var out []rental.Booking
	for _, b := range s.bookings {
		if match(b) {
			out = append(out, b)
		}
	}
	sortByStartDesc(out)
	return out, nil
}

func sortByStartDesc(bs []rental.Booking) {
	sort.Slice(bs, func(i, j int) bool { return bs[i].Range.Start.After(bs[j].Range.Start) })
}

func (s *state) hasConfirmedFrom(carID rental.CarID, from rental.Date) (bool, error) {
	for _, b := range s.bookings {
		if b.CarID == carID && b.Status == rental.BookingConfirmed && b.Range.End.AfterOrEqual(from) {
			return true, nil
		}
	}
	return false, nil
}

func (s *state) applyWalletEntry(e rental.WalletEntry) error {
	u, ok := s.users[e.UserID]
	if !ok {
		return rental.ErrUserNotFound
	}
	next := u.Balance.Add(e.Delta)
	if next.IsNegative() {
		return rental.ErrInsufficientFunds
	}
	u.Balance = next
	s.users[e.UserID] = u
	s.walletEntries[e.UserID] = append(s.walletEntries[e.UserID], e)
	return nil
}

func (s *state) listWalletEntries(userID rental.UserID) ([]rental.WalletEntry, error) {
	entries := append([]rental.WalletEntry(nil), s.walletEntries[userID]...)
	// Newest first.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

func (s *state) appendNotification(n rental.Notification) error {
	s.notifications[n.UserID] = append(s.notifications[n.UserID], n)
	return nil
}

func (s *state) listNotifications(userID rental.UserID) ([]rental.Notification, error) {
	return append([]rental.Notification(nil), s.notifications[userID]...), nil
}

func (s *state) saveReview(rv rental.Review) error {
	key := reviewKey(rv.BookingID, rv.ReviewerID)
	if _, dup := s.reviews[key]; dup {
		return rental.ErrConcurrencyConflict
	}
	s.reviews[key] = rv
	return nil
}

func (s *state) getReview(bookingID rental.BookingID, reviewerID rental.UserID) (*rental.Review, error) {
	rv, ok := s.reviews[reviewKey(bookingID, reviewerID)]
	if !ok {
		return nil, nil
	}
	return &rv, nil
}

func (s *state) listReviewsReceived(revieweeID rental.UserID) ([]rental.Review, error) {
	var out []rental.Review
	for _, rv := range s.reviews {
		if rv.RevieweeID == revieweeID {
			out = append(out, rv)
		}
	}
	// Newest first, ID as a deterministic tiebreaker.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func reviewKey(bookingID rental.BookingID, reviewerID rental.UserID) string {
	return string(bookingID) + "|" + string(reviewerID)
}

func (s *state) saveRecoveryQuestions(userID rental.UserID, qs []rental.RecoveryQuestion) error {
	s.recovery[userID] = append([]rental.RecoveryQuestion(nil), qs...)
	return nil
}

func (s *state) getRecoveryQuestions(userID rental.UserID) ([]rental.RecoveryQuestion, error) {
	return append([]rental.RecoveryQuestion(nil), s.recovery[userID]...), nil
}
