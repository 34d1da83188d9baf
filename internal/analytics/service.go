package analytics

import (
	"context"

	"ms-inventory/internal/apperror"
	"ms-inventory/internal/models"
)

type AnalyticsDBLayer interface {
	TicketsByEvent(ctx context.Context, eventID string) ([]models.Ticket, error)
	TicketsByEvents(ctx context.Context, eventIDs []string) ([]models.Ticket, error)
	EventIDsByOrganizer(ctx context.Context, organizerID string) ([]string, error)
	EventExists(ctx context.Context, eventID string) (bool, error)
}

// Service folds ticket sets into organizer-facing KPIs. Revenue is gross
// of cancellation: every ticket's total price counts regardless of
// status, while sold counts are confirmed-only. That asymmetry is the
// observable billing behavior and is kept deliberately.
type Service struct {
	DB AnalyticsDBLayer

	// ChunkSize caps the event-id membership queries issued during
	// organizer fan-out. Defaults to the store's bound.
	ChunkSize int
}

func NewService(db AnalyticsDBLayer) *Service {
	return &Service{DB: db, ChunkSize: MaxEventIDsPerQuery}
}

type EventRevenue struct {
	EventID      string  `json:"event_id"`
	TotalRevenue float64 `json:"total_revenue"`
}

type EventStatistics struct {
	EventID         string  `json:"event_id"`
	TotalTickets    int     `json:"total_tickets"`
	TotalRevenue    float64 `json:"total_revenue"`
	SoldTickets     int     `json:"sold_tickets"`
	CanceledTickets int     `json:"canceled_tickets"`
}

type OrganizerRevenue struct {
	OrganizerID  string  `json:"organizer_id"`
	TotalRevenue float64 `json:"total_revenue"`
}

type OrganizerSoldTickets struct {
	OrganizerID      string `json:"organizer_id"`
	TotalSoldTickets int    `json:"total_sold_tickets"`
}

type BestTicketType struct {
	OrganizerID    string `json:"organizer_id"`
	BestTicketType string `json:"best_ticket_type"`
	Quantity       int    `json:"quantity"`
}

// ticketStats is the single-pass fold over a ticket set.
type ticketStats struct {
	total    int
	revenue  float64
	sold     int
	canceled int
}

func foldTickets(tickets []models.Ticket) ticketStats {
	var st ticketStats
	for _, t := range tickets {
		st.total++
		st.revenue += t.TotalPrice
		switch t.Status {
		case models.StatusConfirmed:
			st.sold++
		case models.StatusCanceled:
			st.canceled++
		}
	}
	return st
}

// GetEventRevenue returns the gross revenue for one event. A missing
// event and an event with no tickets yet are both NotFound, with
// distinguishable reasons.
func (s *Service) GetEventRevenue(ctx context.Context, eventID string) (*EventRevenue, error) {
	tickets, err := s.eventTickets(ctx, eventID)
	if err != nil {
		return nil, err
	}
	st := foldTickets(tickets)
	return &EventRevenue{EventID: eventID, TotalRevenue: st.revenue}, nil
}

// GetEventStatistics computes the per-event KPI block in one pass.
func (s *Service) GetEventStatistics(ctx context.Context, eventID string) (*EventStatistics, error) {
	tickets, err := s.eventTickets(ctx, eventID)
	if err != nil {
		return nil, err
	}
	st := foldTickets(tickets)
	return &EventStatistics{
		EventID:         eventID,
		TotalTickets:    st.total,
		TotalRevenue:    st.revenue,
		SoldTickets:     st.sold,
		CanceledTickets: st.canceled,
	}, nil
}

func (s *Service) eventTickets(ctx context.Context, eventID string) ([]models.Ticket, error) {
	exists, err := s.DB.EventExists(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperror.E(apperror.NotFound, "event %s not found", eventID)
	}

	tickets, err := s.DB.TicketsByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return nil, apperror.E(apperror.NotFound, "no tickets sold for event %s", eventID)
	}
	return tickets, nil
}

// GetOrganizerRevenue sums gross revenue over all events of an
// organizer. An organizer with no events is NotFound; events with no
// tickets report zero.
func (s *Service) GetOrganizerRevenue(ctx context.Context, organizerID string) (*OrganizerRevenue, error) {
	tickets, err := s.organizerTickets(ctx, organizerID)
	if err != nil {
		return nil, err
	}
	st := foldTickets(tickets)
	return &OrganizerRevenue{OrganizerID: organizerID, TotalRevenue: st.revenue}, nil
}

// GetOrganizerSoldTickets counts confirmed tickets across an organizer's
// events.
func (s *Service) GetOrganizerSoldTickets(ctx context.Context, organizerID string) (*OrganizerSoldTickets, error) {
	tickets, err := s.organizerTickets(ctx, organizerID)
	if err != nil {
		return nil, err
	}
	st := foldTickets(tickets)
	return &OrganizerSoldTickets{OrganizerID: organizerID, TotalSoldTickets: st.sold}, nil
}

// GetOrganizerBestTicketType groups confirmed tickets by type, sums their
// quantities and returns the biggest group. Ties break to the
// lexicographically smallest type name so the answer is deterministic.
func (s *Service) GetOrganizerBestTicketType(ctx context.Context, organizerID string) (*BestTicketType, error) {
	tickets, err := s.organizerTickets(ctx, organizerID)
	if err != nil {
		return nil, err
	}

	byType := make(map[string]int)
	for _, t := range tickets {
		if t.Status != models.StatusConfirmed {
			continue
		}
		byType[t.TicketType] += t.Quantity
	}
	if len(byType) == 0 {
		return nil, apperror.E(apperror.NotFound, "organizer %s has no confirmed tickets", organizerID)
	}

	best := ""
	bestQty := -1
	for name, qty := range byType {
		if qty > bestQty || (qty == bestQty && name < best) {
			best = name
			bestQty = qty
		}
	}

	return &BestTicketType{
		OrganizerID:    organizerID,
		BestTicketType: best,
		Quantity:       bestQty,
	}, nil
}

// organizerTickets resolves the organizer's event-id set and fans out
// over it in chunks that respect the store's membership-query bound,
// merging partial results.
func (s *Service) organizerTickets(ctx context.Context, organizerID string) ([]models.Ticket, error) {
	eventIDs, err := s.DB.EventIDsByOrganizer(ctx, organizerID)
	if err != nil {
		return nil, err
	}
	if len(eventIDs) == 0 {
		return nil, apperror.E(apperror.NotFound, "organizer %s has no events", organizerID)
	}

	chunkSize := s.ChunkSize
	if chunkSize <= 0 || chunkSize > MaxEventIDsPerQuery {
		chunkSize = MaxEventIDsPerQuery
	}

	var tickets []models.Ticket
	for start := 0; start < len(eventIDs); start += chunkSize {
		end := start + chunkSize
		if end > len(eventIDs) {
			end = len(eventIDs)
		}
		chunk, err := s.DB.TicketsByEvents(ctx, eventIDs[start:end])
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, chunk...)
	}
	return tickets, nil
}
