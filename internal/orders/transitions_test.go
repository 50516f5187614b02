package orders

import (
	"testing"

	"github.com/acecharity/raffle-backend/pkg/enums"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from    enums.OrderStatus
		to      enums.OrderStatus
		allowed bool
	}{
		{enums.OrderStatusStarted, enums.OrderStatusInProcess, true},
		{enums.OrderStatusStarted, enums.OrderStatusAbandoned, true},
		{enums.OrderStatusStarted, enums.OrderStatusCompleted, false},
		{enums.OrderStatusStarted, enums.OrderStatusRefunded, false},
		{enums.OrderStatusInProcess, enums.OrderStatusCompleted, true},
		{enums.OrderStatusInProcess, enums.OrderStatusFailed, true},
		{enums.OrderStatusInProcess, enums.OrderStatusAbandoned, false},
		{enums.OrderStatusFailed, enums.OrderStatusStarted, true},
		{enums.OrderStatusFailed, enums.OrderStatusInProcess, true},
		{enums.OrderStatusFailed, enums.OrderStatusCompleted, false},
		{enums.OrderStatusCompleted, enums.OrderStatusRefunded, true},
		{enums.OrderStatusCompleted, enums.OrderStatusStarted, false},
		{enums.OrderStatusAbandoned, enums.OrderStatusStarted, false},
		{enums.OrderStatusRefunded, enums.OrderStatusCompleted, false},
	}

	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.allowed {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for _, terminal := range []enums.OrderStatus{enums.OrderStatusAbandoned, enums.OrderStatusRefunded} {
		if len(allowedTransitions[terminal]) != 0 {
			t.Errorf("expected %s to have no outgoing transitions", terminal)
		}
	}
}
