package orders

import "github.com/angelmondragon/orderflow/pkg/enums"

var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:    {enums.OrderStatusProcessing, enums.OrderStatusCancelled, enums.OrderStatusFailed},
	enums.OrderStatusProcessing: {enums.OrderStatusCompleted, enums.OrderStatusCancelled, enums.OrderStatusFailed},
	enums.OrderStatusCompleted:  {enums.OrderStatusRefunded},
	enums.OrderStatusFailed:     {enums.OrderStatusPending},
	enums.OrderStatusCancelled:  {},
	enums.OrderStatusRefunded:   {},
}

// CanTransition reports whether from -> to is an edge of the order lifecycle.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// AllowedTransitions lists the statuses reachable in one step from from.
func AllowedTransitions(from enums.OrderStatus) []enums.OrderStatus {
	next := transitions[from]
	out := make([]enums.OrderStatus, len(next))
	copy(out, next)
	return out
}

func cancellable(status enums.OrderStatus) bool {
	return status == enums.OrderStatusPending || status == enums.OrderStatusProcessing
}

func refundable(status enums.OrderStatus) bool {
	return status == enums.OrderStatusCompleted || status == enums.OrderStatusProcessing
}

// ValidWalk reports whether history rows, oldest first, start at from=null
// and only follow legal edges.
func ValidWalk(steps []Step) bool {
	if len(steps) == 0 {
		return false
	}
	if steps[0].From != nil {
		return false
	}
	current := steps[0].To
	for _, step := range steps[1:] {
		if step.From == nil || *step.From != current || !CanTransition(current, step.To) {
			return false
		}
		current = step.To
	}
	return true
}

// Step is one audited edge.
type Step struct {
	From *enums.OrderStatus
	To   enums.OrderStatus
}
