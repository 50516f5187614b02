package enums

import "fmt"

// TicketStatus tracks the asynchronous ticket materialization of an order.
// It is a separate machine from OrderStatus.
type TicketStatus string

const (
	TicketStatusNotGenerated TicketStatus = "not_generated"
	TicketStatusGenerate     TicketStatus = "generate"
	TicketStatusInProcess    TicketStatus = "in_process"
	TicketStatusGenerated    TicketStatus = "generated"
)

var validTicketStatuses = []TicketStatus{
	TicketStatusNotGenerated,
	TicketStatusGenerate,
	TicketStatusInProcess,
	TicketStatusGenerated,
}

// PendingTicketStatuses lists the values the generation worker may claim from.
// Legacy rows carry an empty value and are treated as not generated.
func PendingTicketStatuses() []TicketStatus {
	return []TicketStatus{TicketStatusNotGenerated, TicketStatusGenerate, TicketStatus("")}
}

// String implements fmt.Stringer.
func (t TicketStatus) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TicketStatus.
func (t TicketStatus) IsValid() bool {
	for _, candidate := range validTicketStatuses {
		if candidate == t {
			return true
		}
	}
	return false
}

// IsPending reports whether the order is still waiting for ticket generation.
func (t TicketStatus) IsPending() bool {
	switch t {
	case TicketStatusNotGenerated, TicketStatusGenerate, TicketStatus(""):
		return true
	default:
		return false
	}
}

// ParseTicketStatus converts raw input into a TicketStatus.
func ParseTicketStatus(value string) (TicketStatus, error) {
	for _, candidate := range validTicketStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ticket status %q", value)
}
