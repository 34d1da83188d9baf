package ledger

import (
	"context"
	"database/sql"
	"errors"

	"ms-inventory/internal/apperror"
	"ms-inventory/internal/models"

	"github.com/uptrace/bun"
)

// Ledger owns the per-event capacity counters on the events table. All
// mutations are single conditional UPDATEs, so concurrent reservations
// against the same event serialize on the row and can never oversell.
//
// Ledger is bound to a bun.IDB so the same operations run standalone or
// inside a caller-owned transaction (status write + release as one unit).
type Ledger struct {
	db bun.IDB
}

func New(db bun.IDB) *Ledger {
	return &Ledger{db: db}
}

// WithTx returns a Ledger whose operations run on the given transaction.
func (l *Ledger) WithTx(tx bun.Tx) *Ledger {
	return &Ledger{db: tx}
}

// Reserve debits qty from the event's tickets_left if enough capacity
// remains, returning the new counter. The check and the decrement are one
// statement; zero matched rows means the event is missing or would be
// oversold, never a partial write.
func (l *Ledger) Reserve(ctx context.Context, eventID string, qty int) (int, error) {
	if qty <= 0 {
		return 0, apperror.E(apperror.InvalidArgument, "reserve quantity must be positive, got %d", qty)
	}

	var left int
	err := l.db.NewUpdate().
		Model((*models.Event)(nil)).
		Set("tickets_left = tickets_left - ?", qty).
		Where("id = ? AND tickets_left >= ?", eventID, qty).
		Returning("tickets_left").
		Scan(ctx, &left)
	if err == nil {
		return left, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, apperror.Wrap(apperror.StoreUnavailable, err, "reserve failed for event %s", eventID)
	}

	// No row matched: missing event and exhausted capacity look the same
	// to the UPDATE, so look again to tell them apart.
	exists, err := l.eventExists(ctx, eventID)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, apperror.E(apperror.NotFound, "event %s not found", eventID)
	}
	return 0, apperror.E(apperror.InsufficientCapacity, "event %s has fewer than %d tickets left", eventID, qty)
}

// Release credits qty back to the event's counter, e.g. after a
// cancellation or a failed reservation write. The update refuses to push
// tickets_left above capacity_total: a refused release means capacity was
// already returned and signals a double-release bug upstream.
func (l *Ledger) Release(ctx context.Context, eventID string, qty int) error {
	if qty <= 0 {
		return apperror.E(apperror.InvalidArgument, "release quantity must be positive, got %d", qty)
	}

	res, err := l.db.NewUpdate().
		Model((*models.Event)(nil)).
		Set("tickets_left = tickets_left + ?", qty).
		Where("id = ? AND tickets_left + ? <= capacity_total", eventID, qty).
		Exec(ctx)
	if err != nil {
		return apperror.Wrap(apperror.StoreUnavailable, err, "release failed for event %s", eventID)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return apperror.Wrap(apperror.StoreUnavailable, err, "release failed for event %s", eventID)
	}
	if rows == 0 {
		exists, err := l.eventExists(ctx, eventID)
		if err != nil {
			return err
		}
		if !exists {
			return apperror.E(apperror.NotFound, "event %s not found", eventID)
		}
		return apperror.E(apperror.Conflict, "release of %d would exceed capacity for event %s", qty, eventID)
	}
	return nil
}

// TicketsLeft reads the current counter for an event.
func (l *Ledger) TicketsLeft(ctx context.Context, eventID string) (int, error) {
	var left int
	err := l.db.NewSelect().
		Model((*models.Event)(nil)).
		Column("tickets_left").
		Where("id = ?", eventID).
		Scan(ctx, &left)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperror.E(apperror.NotFound, "event %s not found", eventID)
	}
	if err != nil {
		return 0, apperror.Wrap(apperror.StoreUnavailable, err, "tickets_left read failed for event %s", eventID)
	}
	return left, nil
}

func (l *Ledger) eventExists(ctx context.Context, eventID string) (bool, error) {
	exists, err := l.db.NewSelect().
		Model((*models.Event)(nil)).
		Where("id = ?", eventID).
		Exists(ctx)
	if err != nil {
		return false, apperror.Wrap(apperror.StoreUnavailable, err, "event lookup failed for %s", eventID)
	}
	return exists, nil
}
