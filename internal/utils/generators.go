package utils

import (
	"strings"

	"github.com/google/uuid"
)

// IDGenerator produces collision resistant identifiers. It is injected so
// tests can force collisions and predictable references.
type IDGenerator interface {
	NewID() string
	TransactionRef() string
	TicketCode() string
}

type UUIDGenerator struct{}

func NewUUIDGenerator() UUIDGenerator {
	return UUIDGenerator{}
}

func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}

// TransactionRef looks like TX-9F1C2B7E4D5A4C0B8E3F6A1D2C3B4A59.
func (UUIDGenerator) TransactionRef() string {
	return "TX-" + compact(uuid.New())
}

func (UUIDGenerator) TicketCode() string {
	return "QR-" + compact(uuid.New())
}

func compact(id uuid.UUID) string {
	return strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))
}
