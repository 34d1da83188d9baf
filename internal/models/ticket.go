package models

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

type TicketStatus string

const (
	StatusPending   TicketStatus = "pending"
	StatusConfirmed TicketStatus = "confirmed"
	StatusCanceled  TicketStatus = "canceled"
)

// ParseTicketStatus validates a status string coming off the wire.
func ParseTicketStatus(s string) (TicketStatus, error) {
	switch TicketStatus(s) {
	case StatusPending, StatusConfirmed, StatusCanceled:
		return TicketStatus(s), nil
	}
	return "", fmt.Errorf("unknown ticket status %q", s)
}

type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	TicketID   string       `bun:"ticket_id,pk" json:"ticket_id"`
	EventID    string       `bun:"event_id,notnull" json:"event_id"`
	UserID     string       `bun:"user_id,notnull" json:"user_id"`
	Quantity   int          `bun:"quantity,notnull" json:"quantity"`
	TotalPrice float64      `bun:"total_price,notnull" json:"total_price"`
	Status     TicketStatus `bun:"status,notnull" json:"status"`

	// Opaque payload: stored and returned, never interpreted.
	TicketType string `bun:"ticket_type" json:"ticket_type"`
	Seat       string `bun:"seat" json:"seat"`
	Barcode    string `bun:"barcode" json:"barcode"`
	QRCode     []byte `bun:"qr_code" json:"qr_code,omitempty"`

	IssuedAt  time.Time `bun:"issued_at" json:"issued_at"`
	UpdatedAt time.Time `bun:"updated_at" json:"updated_at"`
}
