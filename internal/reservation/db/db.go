package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ms-inventory/internal/apperror"
	"ms-inventory/internal/ledger"
	"ms-inventory/internal/models"

	"github.com/uptrace/bun"
)

// DB is the durable ticket record store. Tickets are append-then-update
// only: cancellation is a status write, never a delete, so aggregation
// and audit always see canceled tickets.
type DB struct {
	Bun *bun.DB
}

func (d *DB) CreateTicket(ctx context.Context, ticket models.Ticket) error {
	_, err := d.Bun.NewInsert().Model(&ticket).Exec(ctx)
	if err != nil {
		return apperror.Wrap(apperror.StoreUnavailable, err, "ticket insert failed for %s", ticket.TicketID)
	}
	return nil
}

func (d *DB) GetTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("ticket_id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.E(apperror.NotFound, "ticket %s not found", id)
	}
	if err != nil {
		return nil, apperror.Wrap(apperror.StoreUnavailable, err, "ticket lookup failed for %s", id)
	}
	return &ticket, nil
}

func (d *DB) UpdateTicketStatus(ctx context.Context, id string, status models.TicketStatus) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now()).
		Where("ticket_id = ?", id).
		Exec(ctx)
	if err != nil {
		return apperror.Wrap(apperror.StoreUnavailable, err, "status update failed for ticket %s", id)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return apperror.Wrap(apperror.StoreUnavailable, err, "status update failed for ticket %s", id)
	}
	if rows == 0 {
		return apperror.E(apperror.NotFound, "ticket %s not found", id)
	}
	return nil
}

func (d *DB) TicketsByUser(ctx context.Context, userID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("user_id = ?", userID).
		Order("issued_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, apperror.Wrap(apperror.StoreUnavailable, err, "ticket query failed for user %s", userID)
	}
	return tickets, nil
}

func (d *DB) EventByID(ctx context.Context, eventID string) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().
		Model(&event).
		Where("id = ?", eventID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.E(apperror.NotFound, "event %s not found", eventID)
	}
	if err != nil {
		return nil, apperror.Wrap(apperror.StoreUnavailable, err, "event lookup failed for %s", eventID)
	}
	return &event, nil
}

func (d *DB) UserExists(ctx context.Context, userID string) (bool, error) {
	exists, err := d.Bun.NewSelect().
		Model((*models.User)(nil)).
		Where("id = ?", userID).
		Exists(ctx)
	if err != nil {
		return false, apperror.Wrap(apperror.StoreUnavailable, err, "user lookup failed for %s", userID)
	}
	return exists, nil
}

// CancelTicketAndRelease writes the canceled status and credits the
// ticket's quantity back to the event ledger as one transaction. Both
// effects land or neither does, so capacity can never be released without
// its status write (or vice versa).
func (d *DB) CancelTicketAndRelease(ctx context.Context, ticket *models.Ticket) error {
	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Ticket)(nil)).
			Set("status = ?", models.StatusCanceled).
			Set("updated_at = ?", time.Now()).
			Where("ticket_id = ? AND status = ?", ticket.TicketID, ticket.Status).
			Exec(ctx)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			// Someone else moved the ticket between our read and this
			// write; releasing now would double-credit capacity.
			return apperror.E(apperror.Conflict, "ticket %s changed status concurrently", ticket.TicketID)
		}

		return ledger.New(tx).Release(ctx, ticket.EventID, ticket.Quantity)
	})
	if err != nil {
		if apperror.KindOf(err) != apperror.Internal {
			return err
		}
		return apperror.Wrap(apperror.StoreUnavailable, err, "cancel of ticket %s failed", ticket.TicketID)
	}
	return nil
}
