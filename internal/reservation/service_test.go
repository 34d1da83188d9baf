package reservation_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ms-inventory/internal/apperror"
	"ms-inventory/internal/models"
	"ms-inventory/internal/reservation"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockTicketDBLayer is a mock implementation of the TicketDBLayer interface
type MockTicketDBLayer struct {
	mock.Mock
}

func (m *MockTicketDBLayer) CreateTicket(ctx context.Context, ticket models.Ticket) error {
	args := m.Called(ctx, ticket)
	return args.Error(0)
}

func (m *MockTicketDBLayer) GetTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ticket), args.Error(1)
}

func (m *MockTicketDBLayer) UpdateTicketStatus(ctx context.Context, id string, status models.TicketStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockTicketDBLayer) TicketsByUser(ctx context.Context, userID string) ([]models.Ticket, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Ticket), args.Error(1)
}

func (m *MockTicketDBLayer) EventByID(ctx context.Context, eventID string) (*models.Event, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func (m *MockTicketDBLayer) UserExists(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockTicketDBLayer) CancelTicketAndRelease(ctx context.Context, ticket *models.Ticket) error {
	args := m.Called(ctx, ticket)
	return args.Error(0)
}

// MockLedger is a mock implementation of the LedgerLayer interface
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Reserve(ctx context.Context, eventID string, qty int) (int, error) {
	args := m.Called(ctx, eventID, qty)
	return args.Int(0), args.Error(1)
}

func (m *MockLedger) Release(ctx context.Context, eventID string, qty int) error {
	args := m.Called(ctx, eventID, qty)
	return args.Error(0)
}

func (m *MockLedger) TicketsLeft(ctx context.Context, eventID string) (int, error) {
	args := m.Called(ctx, eventID)
	return args.Int(0), args.Error(1)
}

// fakeLock grants every lock; lock contention has its own test.
type fakeLock struct {
	mu   sync.Mutex
	held map[string]string
}

func newFakeLock() *fakeLock {
	return &fakeLock{held: make(map[string]string)}
}

func (f *fakeLock) LockTicket(ticketID, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.held[ticketID]; ok {
		return false, nil
	}
	f.held[ticketID] = token
	return true, nil
}

func (f *fakeLock) UnlockTicket(ticketID, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[ticketID] == token {
		delete(f.held, ticketID)
	}
	return nil
}

func testEvent() *models.Event {
	return &models.Event{
		ID:            "event-1",
		OrganizerID:   "org-1",
		Name:          "Test Event",
		CapacityTotal: 100,
		TicketsLeft:   100,
		CreatedAt:     time.Now(),
	}
}

func newTestService(db *MockTicketDBLayer, ledger *MockLedger) *reservation.Service {
	svc := reservation.NewService(db, ledger, newFakeLock(), nil, nil)
	svc.RetryBackoff = time.Millisecond
	return svc
}

func TestBuySuccess(t *testing.T) {
	mockDB := new(MockTicketDBLayer)
	mockLedger := new(MockLedger)
	svc := newTestService(mockDB, mockLedger)

	mockDB.On("EventByID", mock.Anything, "event-1").Return(testEvent(), nil)
	mockDB.On("UserExists", mock.Anything, "user-1").Return(true, nil)
	mockLedger.On("Reserve", mock.Anything, "event-1", 2).Return(98, nil)
	mockDB.On("CreateTicket", mock.Anything, mock.MatchedBy(func(tk models.Ticket) bool {
		return tk.EventID == "event-1" && tk.UserID == "user-1" &&
			tk.Quantity == 2 && tk.Status == models.StatusPending
	})).Return(nil)

	ticketID, err := svc.Buy(context.Background(), reservation.BuyRequest{
		EventID:    "event-1",
		UserID:     "user-1",
		Quantity:   2,
		TotalPrice: 50.0,
		TicketType: "VIP",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, ticketID)
	mockDB.AssertExpectations(t)
	mockLedger.AssertExpectations(t)
}

func TestBuyRejectsBadArguments(t *testing.T) {
	mockDB := new(MockTicketDBLayer)
	mockLedger := new(MockLedger)
	svc := newTestService(mockDB, mockLedger)

	_, err := svc.Buy(context.Background(), reservation.BuyRequest{
		EventID: "event-1", UserID: "user-1", Quantity: 0, TotalPrice: 50,
	})
	require.Error(t, err)
	assert.Equal(t, apperror.InvalidArgument, apperror.KindOf(err))

	_, err = svc.Buy(context.Background(), reservation.BuyRequest{
		EventID: "event-1", UserID: "user-1", Quantity: 1, TotalPrice: 0,
	})
	require.Error(t, err)
	assert.Equal(t, apperror.InvalidArgument, apperror.KindOf(err))

	// Nothing was touched.
	mockLedger.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything, mock.Anything)
	mockDB.AssertNotCalled(t, "CreateTicket", mock.Anything, mock.Anything)
}

func TestBuyUnknownEvent(t *testing.T) {
	mockDB := new(MockTicketDBLayer)
	mockLedger := new(MockLedger)
	svc := newTestService(mockDB, mockLedger)

	mockDB.On("EventByID", mock.Anything, "missing").
		Return(nil, apperror.E(apperror.NotFound, "event missing not found"))

	_, err := svc.Buy(context.Background(), reservation.BuyRequest{
		EventID: "missing", UserID: "user-1", Quantity: 1, TotalPrice: 10,
	})
	require.Error(t, err)
	assert.Equal(t, apperror.NotFound, apperror.KindOf(err))
	mockLedger.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything, mock.Anything)
}

func TestBuyUnknownUser(t *testing.T) {
	mockDB := new(MockTicketDBLayer)
	mockLedger := new(MockLedger)
	svc := newTestService(mockDB, mockLedger)

	mockDB.On("EventByID", mock.Anything, "event-1").Return(testEvent(), nil)
	mockDB.On("UserExists", mock.Anything, "nobody").Return(false, nil)

	_, err := svc.Buy(context.Background(), reservation.BuyRequest{
		EventID: "event-1", UserID: "nobody", Quantity: 1, TotalPrice: 10,
	})
	require.Error(t, err)
	assert.Equal(t, apperror.NotFound, apperror.KindOf(err))
	mockLedger.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything, mock.Anything)
}

func TestBuyInsufficientCapacity(t *testing.T) {
	mockDB := new(MockTicketDBLayer)
	mockLedger := new(MockLedger)
	svc := newTestService(mockDB, mockLedger)

	mockDB.On("EventByID", mock.Anything, "event-1").Return(testEvent(), nil)
	mockDB.On("UserExists", mock.Anything, "user-1").Return(true, nil)
	mockLedger.On("Reserve", mock.Anything, "event-1", 200).
		Return(0, apperror.E(apperror.InsufficientCapacity, "event event-1 has fewer than 200 tickets left"))

	_, err := svc.Buy(context.Background(), reservation.BuyRequest{
		EventID: "event-1", UserID: "user-1", Quantity: 200, TotalPrice: 10,
	})
	require.Error(t, err)
	assert.Equal(t, apperror.InsufficientCapacity, apperror.KindOf(err))

	// Reservation atomicity: no ticket record, no release to compensate.
	mockDB.AssertNotCalled(t, "CreateTicket", mock.Anything, mock.Anything)
	mockLedger.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything)
}

func TestBuyRetriesTicketWrite(t *testing.T) {
	mockDB := new(MockTicketDBLayer)
	mockLedger := new(MockLedger)
	svc := newTestService(mockDB, mockLedger)

	mockDB.On("EventByID", mock.Anything, "event-1").Return(testEvent(), nil)
	mockDB.On("UserExists", mock.Anything, "user-1").Return(true, nil)
	mockLedger.On("Reserve", mock.Anything, "event-1", 1).Return(99, nil)

	// First write fails, second succeeds; no compensating release.
	mockDB.On("CreateTicket", mock.Anything, mock.Anything).
		Return(errors.New("connection reset")).Once()
	mockDB.On("CreateTicket", mock.Anything, mock.Anything).Return(nil).Once()

	ticketID, err := svc.Buy(context.Background(), reservation.BuyRequest{
		EventID: "event-1", UserID: "user-1", Quantity: 1, TotalPrice: 10,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, ticketID)
	mockLedger.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything)
	mockDB.AssertExpectations(t)
}

func TestBuyCompensatesWhenWriteKeepsFailing(t *testing.T) {
	mockDB := new(MockTicketDBLayer)
	mockLedger := new(MockLedger)
	svc := newTestService(mockDB, mockLedger)

	mockDB.On("EventByID", mock.Anything, "event-1").Return(testEvent(), nil)
	mockDB.On("UserExists", mock.Anything, "user-1").Return(true, nil)
	mockLedger.On("Reserve", mock.Anything, "event-1", 3).Return(97, nil)
	mockDB.On("CreateTicket", mock.Anything, mock.Anything).
		Return(errors.New("store down")).Times(3)
	mockLedger.On("Release", mock.Anything, "event-1", 3).Return(nil).Once()

	_, err := svc.Buy(context.Background(), reservation.BuyRequest{
		EventID: "event-1", UserID: "user-1", Quantity: 3, TotalPrice: 30,
	})
	require.Error(t, err)
	mockDB.AssertExpectations(t)
	mockLedger.AssertExpectations(t)
}

func pendingTicket(id string) *models.Ticket {
	return &models.Ticket{
		TicketID:   id,
		EventID:    "event-1",
		UserID:     "user-1",
		Quantity:   2,
		TotalPrice: 50.0,
		Status:     models.StatusPending,
		IssuedAt:   time.Now(),
	}
}

func TestSetStatusConfirm(t *testing.T) {
	mockDB := new(MockTicketDBLayer)
	mockLedger := new(MockLedger)
	svc := newTestService(mockDB, mockLedger)

	ticketID := uuid.NewString()
	mockDB.On("GetTicketByID", mock.Anything, ticketID).Return(pendingTicket(ticketID), nil)
	mockDB.On("UpdateTicketStatus", mock.Anything, ticketID, models.StatusConfirmed).Return(nil)

	err := svc.SetStatus(context.Background(), ticketID, models.StatusConfirmed)
	require.NoError(t, err)

	// Confirmation has no capacity effect.
	mockLedger.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything)
	mockDB.AssertExpectations(t)
}

func TestSetStatusCancelPending(t *testing.T) {
	mockDB := new(MockTicketDBLayer)
	mockLedger := new(MockLedger)
	svc := newTestService(mockDB, mockLedger)

	ticketID := uuid.NewString()
	ticket := pendingTicket(ticketID)
	mockDB.On("GetTicketByID", mock.Anything, ticketID).Return(ticket, nil)
	mockDB.On("CancelTicketAndRelease", mock.Anything, ticket).Return(nil)

	err := svc.SetStatus(context.Background(), ticketID, models.StatusCanceled)
	require.NoError(t, err)
	mockDB.AssertExpectations(t)
}

func TestSetStatusCancelConfirmed(t *testing.T) {
	mockDB := new(MockTicketDBLayer)
	mockLedger := new(MockLedger)
	svc := newTestService(mockDB, mockLedger)

	ticketID := uuid.NewString()
	ticket := pendingTicket(ticketID)
	ticket.Status = models.StatusConfirmed
	mockDB.On("GetTicketByID", mock.Anything, ticketID).Return(ticket, nil)
	mockDB.On("CancelTicketAndRelease", mock.Anything, ticket).Return(nil)

	err := svc.SetStatus(context.Background(), ticketID, models.StatusCanceled)
	require.NoError(t, err)
	mockDB.AssertExpectations(t)
}

func TestSetStatusCanceledTwiceIsNoOp(t *testing.T) {
	mockDB := new(MockTicketDBLayer)
	mockLedger := new(MockLedger)
	svc := newTestService(mockDB, mockLedger)

	ticketID := uuid.NewString()
	ticket := pendingTicket(ticketID)
	ticket.Status = models.StatusCanceled
	mockDB.On("GetTicketByID", mock.Anything, ticketID).Return(ticket, nil)

	err := svc.SetStatus(context.Background(), ticketID, models.StatusCanceled)
	require.NoError(t, err)

	// Capacity was released the first time; never again.
	mockDB.AssertNotCalled(t, "CancelTicketAndRelease", mock.Anything, mock.Anything)
	mockLedger.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything)
}

func TestSetStatusInvalidTransitions(t *testing.T) {
	cases := []struct {
		name string
		from models.TicketStatus
		to   models.TicketStatus
	}{
		{"canceled to pending", models.StatusCanceled, models.StatusPending},
		{"canceled to confirmed", models.StatusCanceled, models.StatusConfirmed},
		{"pending to pending", models.StatusPending, models.StatusPending},
		{"confirmed to confirmed", models.StatusConfirmed, models.StatusConfirmed},
		{"confirmed to pending", models.StatusConfirmed, models.StatusPending},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mockDB := new(MockTicketDBLayer)
			mockLedger := new(MockLedger)
			svc := newTestService(mockDB, mockLedger)

			ticketID := uuid.NewString()
			ticket := pendingTicket(ticketID)
			ticket.Status = tc.from
			mockDB.On("GetTicketByID", mock.Anything, ticketID).Return(ticket, nil)

			err := svc.SetStatus(context.Background(), ticketID, tc.to)
			require.Error(t, err)
			assert.Equal(t, apperror.InvalidTransition, apperror.KindOf(err))
			mockLedger.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestSetStatusConcurrentTransitionRefused(t *testing.T) {
	mockDB := new(MockTicketDBLayer)
	mockLedger := new(MockLedger)
	lock := newFakeLock()
	svc := reservation.NewService(mockDB, mockLedger, lock, nil, nil)

	ticketID := uuid.NewString()

	// Another transition already holds the lock.
	held, err := lock.LockTicket(ticketID, "other-transition")
	require.NoError(t, err)
	require.True(t, held)

	err = svc.SetStatus(context.Background(), ticketID, models.StatusConfirmed)
	require.Error(t, err)
	assert.Equal(t, apperror.Conflict, apperror.KindOf(err))
	mockDB.AssertNotCalled(t, "GetTicketByID", mock.Anything, mock.Anything)
}

// countingLedger reserves against a real counter under a mutex, standing
// in for the store's row-level atomicity.
type countingLedger struct {
	mu       sync.Mutex
	capacity int
	left     int
}

func (c *countingLedger) Reserve(ctx context.Context, eventID string, qty int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if qty > c.left {
		return 0, apperror.E(apperror.InsufficientCapacity, "event %s has fewer than %d tickets left", eventID, qty)
	}
	c.left -= qty
	return c.left, nil
}

func (c *countingLedger) Release(ctx context.Context, eventID string, qty int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.left+qty > c.capacity {
		return apperror.E(apperror.Conflict, "release would exceed capacity")
	}
	c.left += qty
	return nil
}

func (c *countingLedger) TicketsLeft(ctx context.Context, eventID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.left, nil
}

// recordingDB stores created tickets; safe for concurrent use.
type recordingDB struct {
	MockTicketDBLayer
	mu      sync.Mutex
	tickets []models.Ticket
}

func (r *recordingDB) CreateTicket(ctx context.Context, ticket models.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickets = append(r.tickets, ticket)
	return nil
}

func (r *recordingDB) EventByID(ctx context.Context, eventID string) (*models.Event, error) {
	return testEvent(), nil
}

func (r *recordingDB) UserExists(ctx context.Context, userID string) (bool, error) {
	return true, nil
}

func TestConcurrentBuysNeverOversell(t *testing.T) {
	const capacity = 25
	const buyers = 100

	ledger := &countingLedger{capacity: capacity, left: capacity}
	db := &recordingDB{}
	svc := reservation.NewService(db, ledger, newFakeLock(), nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Buy(context.Background(), reservation.BuyRequest{
				EventID: "event-1", UserID: "user-1", Quantity: 1, TotalPrice: 10,
			})
		}()
	}
	wg.Wait()

	sold := 0
	for _, tk := range db.tickets {
		sold += tk.Quantity
	}
	assert.Equal(t, capacity, sold, "exactly the capacity must be sold")

	left, err := ledger.TicketsLeft(context.Background(), "event-1")
	require.NoError(t, err)
	assert.Equal(t, 0, left)
	assert.Equal(t, capacity, sold+left)
}
