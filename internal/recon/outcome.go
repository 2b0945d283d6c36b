package recon

import "fmt"

type OutcomeKind string

const (
	KindSettled        OutcomeKind = "settled"
	KindAlreadySettled OutcomeKind = "already_settled"
	KindNoMatch        OutcomeKind = "no_match"
	KindDropped        OutcomeKind = "dropped"
	KindFailed         OutcomeKind = "failed"
)

// Outcome is the terminal state of one reconcile invocation. Every branch of
// the engine ends in exactly one of these values; nothing is signalled by
// panics or bare early returns.
type Outcome struct {
	Kind        OutcomeKind
	PaymentID   string
	OrderNumber int64
	Reason      string
	Err         error
}

func Settled(paymentID string, orderNumber int64) Outcome {
	return Outcome{Kind: KindSettled, PaymentID: paymentID, OrderNumber: orderNumber}
}

func AlreadySettled(paymentID string, orderNumber int64) Outcome {
	return Outcome{Kind: KindAlreadySettled, PaymentID: paymentID, OrderNumber: orderNumber}
}

func NoMatch(paymentID, reason string) Outcome {
	return Outcome{Kind: KindNoMatch, PaymentID: paymentID, Reason: reason}
}

func Dropped(paymentID, reason string) Outcome {
	return Outcome{Kind: KindDropped, PaymentID: paymentID, Reason: reason}
}

func Failed(paymentID string, err error) Outcome {
	return Outcome{Kind: KindFailed, PaymentID: paymentID, Err: err}
}

func (o Outcome) String() string {
	switch o.Kind {
	case KindSettled:
		return fmt.Sprintf("settled order %d with payment %s", o.OrderNumber, o.PaymentID)
	case KindAlreadySettled:
		return fmt.Sprintf("payment %s already settled", o.PaymentID)
	case KindNoMatch:
		return fmt.Sprintf("no match for payment %s: %s", o.PaymentID, o.Reason)
	case KindDropped:
		return fmt.Sprintf("dropped: %s", o.Reason)
	case KindFailed:
		return fmt.Sprintf("failed: %v", o.Err)
	}
	return string(o.Kind)
}
