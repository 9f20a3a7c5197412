package orders

import "errors"

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

var ErrIllegalTransition = errors.New("illegal status transition")

var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing: {StatusCompleted: true, StatusCancelled: true},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

var validPaymentNext = map[PaymentStatus]map[PaymentStatus]bool{
	PaymentPending: {PaymentPaid: true, PaymentFailed: true},
	PaymentPaid:    {},
	PaymentFailed:  {PaymentPending: true}, // retry
}

func CanTransition(from, to Status) bool { return validNext[from][to] }

func CanPaymentTransition(from, to PaymentStatus) bool { return validPaymentNext[from][to] }

// StatusChange is a requested lifecycle step. Nil fields are untouched.
type StatusChange struct {
	OrderStatus   *Status
	PaymentStatus *PaymentStatus
}

// Transition is the single entry point every status mutation goes through:
// checkout, payment confirmation, the fulfillment worker and seller-side
// updates all call it before persisting. It validates the step against the
// current statuses and returns the order with the change applied.
func Transition(o Order, ch StatusChange) (Order, error) {
	if ch.OrderStatus != nil {
		if !CanTransition(o.OrderStatus, *ch.OrderStatus) {
			return o, ErrIllegalTransition
		}
		o.OrderStatus = *ch.OrderStatus
	}
	if ch.PaymentStatus != nil {
		if !CanPaymentTransition(o.PaymentStatus, *ch.PaymentStatus) {
			return o, ErrIllegalTransition
		}
		o.PaymentStatus = *ch.PaymentStatus
	}
	return o, nil
}
