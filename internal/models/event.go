package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Event carries the per-event capacity ledger. TicketsLeft is the cached
// counter the reservation flow debits and credits; it must stay equal to
// CapacityTotal minus the quantities of all pending and confirmed tickets.
type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID            string    `bun:"id,pk" json:"id"`
	OrganizerID   string    `bun:"organizer_id,notnull" json:"organizer_id"`
	Name          string    `bun:"name,notnull" json:"name"`
	CapacityTotal int       `bun:"capacity_total,notnull" json:"capacity_total"`
	TicketsLeft   int       `bun:"tickets_left,notnull" json:"tickets_left"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
}
