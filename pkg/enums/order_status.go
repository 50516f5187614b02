package enums

import "fmt"

// OrderStatus tracks the lifecycle of a raffle order.
type OrderStatus string

const (
	OrderStatusStarted   OrderStatus = "started"
	OrderStatusInProcess OrderStatus = "in_process"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusAbandoned OrderStatus = "abandoned"
	OrderStatusRefunded  OrderStatus = "refunded"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusStarted,
	OrderStatusInProcess,
	OrderStatusFailed,
	OrderStatusCompleted,
	OrderStatusAbandoned,
	OrderStatusRefunded,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no customer-driven transition can leave the state.
func (o OrderStatus) IsTerminal() bool {
	switch o {
	case OrderStatusAbandoned, OrderStatusRefunded:
		return true
	default:
		return false
	}
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
