package orders

import "github.com/acecharity/raffle-backend/pkg/enums"

// allowedTransitions is the single source of truth for order status moves.
// Abandoned and refunded are terminal; a failed order may retry payment.
var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusStarted:   {enums.OrderStatusInProcess, enums.OrderStatusAbandoned},
	enums.OrderStatusInProcess: {enums.OrderStatusCompleted, enums.OrderStatusFailed},
	enums.OrderStatusFailed:    {enums.OrderStatusStarted, enums.OrderStatusInProcess},
	enums.OrderStatusCompleted: {enums.OrderStatusRefunded},
	enums.OrderStatusAbandoned: {},
	enums.OrderStatusRefunded:  {},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}
