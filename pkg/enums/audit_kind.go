package enums

import "fmt"

// AuditKind classifies entries written to the error/audit sink.
type AuditKind string

const (
	AuditKindStorage AuditKind = "storage"
	AuditKindPayment AuditKind = "payment"
)

var validAuditKinds = []AuditKind{
	AuditKindStorage,
	AuditKindPayment,
}

// String implements fmt.Stringer.
func (a AuditKind) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AuditKind.
func (a AuditKind) IsValid() bool {
	for _, candidate := range validAuditKinds {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAuditKind converts raw input into an AuditKind.
func ParseAuditKind(value string) (AuditKind, error) {
	for _, candidate := range validAuditKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid audit kind %q", value)
}
