package models

import (
	"time"

	"github.com/uptrace/bun"
)

type TicketState string

const (
	TicketStateActive TicketState = "active"
	TicketStateUsed   TicketState = "used"
	TicketStateVoided TicketState = "voided"
)

type Ticket struct {
	bun.BaseModel `bun:"table:tickets,alias:t"`

	ID             string      `bun:"id,pk" json:"id"`
	PurchaseID     string      `bun:"purchase_id,notnull" json:"purchaseId"`
	PurchaseLineID string      `bun:"purchase_line_id,notnull" json:"purchaseLineId"`
	TicketTypeID   string      `bun:"ticket_type_id,notnull" json:"ticketTypeId"`
	Code           string      `bun:"code,unique,notnull" json:"code"`
	State          TicketState `bun:"state,notnull" json:"state"`
	IssuedAt       time.Time   `bun:"issued_at,notnull" json:"issuedAt"`
	UsedAt         *time.Time  `bun:"used_at" json:"usedAt,omitempty"`

	// Attendee data is optional and may be changed while the ticket is active.
	AttendeeName     *string `bun:"attendee_name" json:"attendeeName,omitempty"`
	AttendeeEmail    *string `bun:"attendee_email" json:"attendeeEmail,omitempty"`
	AttendeeDocument *string `bun:"attendee_document" json:"attendeeDocument,omitempty"`
}

// Attendee names the person who will use a ticket.
type Attendee struct {
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Document string `json:"document,omitempty"`
}
