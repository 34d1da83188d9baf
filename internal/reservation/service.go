package reservation

import (
	"context"
	"log"
	"time"

	"ms-inventory/internal/apperror"
	"ms-inventory/internal/models"
	"ms-inventory/internal/reservation/qr"

	"github.com/google/uuid"
)

type TicketDBLayer interface {
	CreateTicket(ctx context.Context, ticket models.Ticket) error
	GetTicketByID(ctx context.Context, id string) (*models.Ticket, error)
	UpdateTicketStatus(ctx context.Context, id string, status models.TicketStatus) error
	TicketsByUser(ctx context.Context, userID string) ([]models.Ticket, error)
	EventByID(ctx context.Context, eventID string) (*models.Event, error)
	UserExists(ctx context.Context, userID string) (bool, error)
	CancelTicketAndRelease(ctx context.Context, ticket *models.Ticket) error
}

type LedgerLayer interface {
	Reserve(ctx context.Context, eventID string, qty int) (int, error)
	Release(ctx context.Context, eventID string, qty int) error
	TicketsLeft(ctx context.Context, eventID string) (int, error)
}

type TransitionLock interface {
	LockTicket(ticketID, token string) (bool, error)
	UnlockTicket(ticketID, token string) error
}

type KafkaPublisher interface {
	PublishTicketReserved(ticket models.Ticket) error
	PublishTicketConfirmed(ticket models.Ticket) error
	PublishTicketCanceled(ticket models.Ticket) error
}

// Service is the reservation controller: it owns the ticket lifecycle
// state machine and is the only writer of the event capacity ledger.
type Service struct {
	DB     TicketDBLayer
	Ledger LedgerLayer
	Lock   TransitionLock
	Kafka  KafkaPublisher
	QR     *qr.Generator
	Logger *log.Logger

	// WriteRetries bounds the ticket-write retry after a successful
	// reserve; ReleaseRetries bounds the compensating release.
	WriteRetries   int
	ReleaseRetries int
	RetryBackoff   time.Duration
}

func NewService(db TicketDBLayer, ledger LedgerLayer, lock TransitionLock, kafka KafkaPublisher, qrGen *qr.Generator) *Service {
	return &Service{
		DB:             db,
		Ledger:         ledger,
		Lock:           lock,
		Kafka:          kafka,
		QR:             qrGen,
		Logger:         log.Default(),
		WriteRetries:   3,
		ReleaseRetries: 3,
		RetryBackoff:   50 * time.Millisecond,
	}
}

type BuyRequest struct {
	EventID    string  `json:"event_id"`
	UserID     string  `json:"user_id"`
	Quantity   int     `json:"quantity"`
	TotalPrice float64 `json:"total_price"`

	// Opaque payload, stored as-is.
	TicketType string `json:"ticket_type"`
	Seat       string `json:"seat"`
	Barcode    string `json:"barcode"`
}

// Buy reserves capacity for an event and creates the pending ticket. The
// ledger debit is atomic: if it fails there is no ticket and no capacity
// change. If the ticket write fails after the debit, the write is retried
// and then the capacity is released again (compensating action), so a
// failed purchase never leaks capacity.
func (s *Service) Buy(ctx context.Context, req BuyRequest) (string, error) {
	if req.Quantity <= 0 {
		return "", apperror.E(apperror.InvalidArgument, "quantity must be positive, got %d", req.Quantity)
	}
	if req.TotalPrice <= 0 {
		return "", apperror.E(apperror.InvalidArgument, "total price must be positive, got %g", req.TotalPrice)
	}

	if _, err := s.DB.EventByID(ctx, req.EventID); err != nil {
		return "", err
	}

	exists, err := s.DB.UserExists(ctx, req.UserID)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", apperror.E(apperror.NotFound, "user %s not found", req.UserID)
	}

	left, err := s.Ledger.Reserve(ctx, req.EventID, req.Quantity)
	if err != nil {
		return "", err
	}
	s.Logger.Printf("RESERVE: event %s debited by %d, %d left", req.EventID, req.Quantity, left)

	ticket := models.Ticket{
		TicketID:   uuid.NewString(),
		EventID:    req.EventID,
		UserID:     req.UserID,
		Quantity:   req.Quantity,
		TotalPrice: req.TotalPrice,
		Status:     models.StatusPending,
		TicketType: req.TicketType,
		Seat:       req.Seat,
		Barcode:    req.Barcode,
		IssuedAt:   time.Now(),
		UpdatedAt:  time.Now(),
	}

	if s.QR != nil {
		qrBytes, err := s.QR.Generate(qr.TicketClaim{
			TicketID: ticket.TicketID,
			EventID:  ticket.EventID,
			UserID:   ticket.UserID,
			Quantity: ticket.Quantity,
		})
		if err != nil {
			s.Logger.Printf("QR: generation failed for ticket %s: %v", ticket.TicketID, err)
		} else {
			ticket.QRCode = qrBytes
		}
	}

	if err := s.createWithRetry(ctx, ticket); err != nil {
		s.compensateReserve(ctx, req.EventID, req.Quantity)
		return "", err
	}

	if s.Kafka != nil {
		if err := s.Kafka.PublishTicketReserved(ticket); err != nil {
			s.Logger.Printf("KAFKA: publish error (ticket reserved): %v", err)
		}
	}

	return ticket.TicketID, nil
}

// createWithRetry retries the ticket write a bounded number of times.
// Capacity is already debited at this point, so giving up too early turns
// into a compensating release rather than a leak.
func (s *Service) createWithRetry(ctx context.Context, ticket models.Ticket) error {
	var err error
	for attempt := 0; attempt < s.WriteRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(s.RetryBackoff * time.Duration(1<<(attempt-1)))
		}
		if err = s.DB.CreateTicket(ctx, ticket); err == nil {
			return nil
		}
		s.Logger.Printf("RESERVE: ticket write attempt %d/%d failed for %s: %v",
			attempt+1, s.WriteRetries, ticket.TicketID, err)
	}
	return err
}

// compensateReserve returns debited capacity after a failed ticket write.
// The release itself is retried; if it still fails the capacity leak is
// logged loudly since no automatic repair remains.
func (s *Service) compensateReserve(ctx context.Context, eventID string, qty int) {
	var err error
	for attempt := 0; attempt < s.ReleaseRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(s.RetryBackoff * time.Duration(1<<(attempt-1)))
		}
		if err = s.Ledger.Release(ctx, eventID, qty); err == nil {
			s.Logger.Printf("RESERVE: compensating release of %d for event %s", qty, eventID)
			return
		}
	}
	s.Logger.Printf("WARN: CAPACITY LEAK: failed to release %d tickets for event %s after %d attempts: %v",
		qty, eventID, s.ReleaseRetries, err)
}

// SetStatus moves a ticket through the lifecycle state machine:
//
//	pending   -> confirmed   no capacity change
//	pending   -> canceled    releases capacity
//	confirmed -> canceled    releases capacity (refund)
//	canceled  -> canceled    idempotent no-op
//
// Everything else is an invalid transition. Transitions on one ticket are
// serialized by the redis lock; a concurrent transition is refused rather
// than queued, so capacity can never be released twice.
func (s *Service) SetStatus(ctx context.Context, ticketID string, newStatus models.TicketStatus) error {
	token := uuid.NewString()
	locked, err := s.Lock.LockTicket(ticketID, token)
	if err != nil {
		return apperror.Wrap(apperror.StoreUnavailable, err, "transition lock failed for ticket %s", ticketID)
	}
	if !locked {
		return apperror.E(apperror.Conflict, "another transition is in flight for ticket %s", ticketID)
	}
	defer func() {
		if err := s.Lock.UnlockTicket(ticketID, token); err != nil {
			s.Logger.Printf("REDIS: failed to unlock ticket %s: %v", ticketID, err)
		}
	}()

	ticket, err := s.DB.GetTicketByID(ctx, ticketID)
	if err != nil {
		return err
	}

	switch {
	case ticket.Status == models.StatusCanceled && newStatus == models.StatusCanceled:
		// Cancelling twice is a no-op; capacity was released the first time.
		return nil

	case ticket.Status == models.StatusPending && newStatus == models.StatusConfirmed:
		if err := s.DB.UpdateTicketStatus(ctx, ticketID, models.StatusConfirmed); err != nil {
			return err
		}
		ticket.Status = models.StatusConfirmed
		if s.Kafka != nil {
			if err := s.Kafka.PublishTicketConfirmed(*ticket); err != nil {
				s.Logger.Printf("KAFKA: publish error (ticket confirmed): %v", err)
			}
		}
		return nil

	case (ticket.Status == models.StatusPending || ticket.Status == models.StatusConfirmed) &&
		newStatus == models.StatusCanceled:
		if err := s.DB.CancelTicketAndRelease(ctx, ticket); err != nil {
			return err
		}
		ticket.Status = models.StatusCanceled
		if s.Kafka != nil {
			if err := s.Kafka.PublishTicketCanceled(*ticket); err != nil {
				s.Logger.Printf("KAFKA: publish error (ticket canceled): %v", err)
			}
		}
		return nil

	default:
		return apperror.E(apperror.InvalidTransition,
			"ticket %s cannot move from %s to %s", ticketID, ticket.Status, newStatus)
	}
}

func (s *Service) GetTicket(ctx context.Context, ticketID string) (*models.Ticket, error) {
	return s.DB.GetTicketByID(ctx, ticketID)
}

// TicketsByUser lists a user's tickets; no tickets is an empty answer,
// not an error.
func (s *Service) TicketsByUser(ctx context.Context, userID string) ([]models.Ticket, error) {
	return s.DB.TicketsByUser(ctx, userID)
}
