package analytics

import (
	"context"

	"ms-inventory/internal/apperror"
	"ms-inventory/internal/models"

	"github.com/uptrace/bun"
)

// MaxEventIDsPerQuery bounds the size of an event-id membership query.
// Callers with more events than this must chunk and merge; the store
// enforces the bound rather than silently truncating.
const MaxEventIDsPerQuery = 100

// DB reads ticket and event sets for aggregation. All queries are
// read-only; the reservation controller is the only writer.
type DB struct {
	Bun *bun.DB
}

func (d *DB) TicketsByEvent(ctx context.Context, eventID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("event_id = ?", eventID).
		Scan(ctx)
	if err != nil {
		return nil, apperror.Wrap(apperror.StoreUnavailable, err, "ticket query failed for event %s", eventID)
	}
	return tickets, nil
}

// TicketsByEvents runs one membership query over a finite event-id list.
func (d *DB) TicketsByEvents(ctx context.Context, eventIDs []string) ([]models.Ticket, error) {
	if len(eventIDs) == 0 {
		return nil, nil
	}
	if len(eventIDs) > MaxEventIDsPerQuery {
		return nil, apperror.E(apperror.InvalidArgument,
			"membership query over %d event ids exceeds the limit of %d", len(eventIDs), MaxEventIDsPerQuery)
	}

	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("event_id IN (?)", bun.In(eventIDs)).
		Scan(ctx)
	if err != nil {
		return nil, apperror.Wrap(apperror.StoreUnavailable, err, "ticket query failed for %d events", len(eventIDs))
	}
	return tickets, nil
}

func (d *DB) EventIDsByOrganizer(ctx context.Context, organizerID string) ([]string, error) {
	var ids []string
	err := d.Bun.NewSelect().
		Model((*models.Event)(nil)).
		Column("id").
		Where("organizer_id = ?", organizerID).
		Order("id ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, apperror.Wrap(apperror.StoreUnavailable, err, "event query failed for organizer %s", organizerID)
	}
	return ids, nil
}

func (d *DB) EventExists(ctx context.Context, eventID string) (bool, error) {
	exists, err := d.Bun.NewSelect().
		Model((*models.Event)(nil)).
		Where("id = ?", eventID).
		Exists(ctx)
	if err != nil {
		return false, apperror.Wrap(apperror.StoreUnavailable, err, "event lookup failed for %s", eventID)
	}
	return exists, nil
}
