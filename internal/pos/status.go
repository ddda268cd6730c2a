package pos

// Status is the lifecycle state of a Transaction.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
	StatusRefunded  Status = "refunded"
)

// Event drives a status transition.
type Event string

const (
	EventPay    Event = "pay"
	EventCancel Event = "cancel"
	EventRefund Event = "refund"
)

// transitions is the complete lifecycle table. Anything absent is illegal.
//
// pending+cancel does not restore stock; only paid+refund does. Stock taken
// by a BON sale stays reserved when the sale is cancelled.
var transitions = map[Status]map[Event]Status{
	StatusPending: {
		EventPay:    StatusPaid,
		EventCancel: StatusCancelled,
	},
	StatusPaid: {
		EventCancel: StatusCancelled,
		EventRefund: StatusRefunded,
	},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusRefunded
}

// Next returns the status reached by applying e to s.
// Returns an INVALID_TRANSITION error if the table has no such edge.
func (s Status) Next(e Event) (Status, error) {
	if to, ok := transitions[s][e]; ok {
		return to, nil
	}
	return s, NewTransitionError(s, e)
}

// RestoresStock reports whether applying e to s returns sold quantities
// to stock. Only a refund of a paid sale does; cancelling a pending sale
// leaves its stock deducted.
func (s Status) RestoresStock(e Event) bool {
	return s == StatusPaid && e == EventRefund
}

// EventTo returns the event that leads to the target status.
func EventTo(target Status) (Event, error) {
	switch target {
	case StatusPaid:
		return EventPay, nil
	case StatusCancelled:
		return EventCancel, nil
	case StatusRefunded:
		return EventRefund, nil
	}
	return "", NewValidationError("status %q cannot be reached by a transition", target)
}

// InitialStatus returns the status a new sale is created with.
func InitialStatus(m PaymentMethod) Status {
	if m == PaymentCredit {
		return StatusPending
	}
	return StatusPaid
}
