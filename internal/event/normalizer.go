package event

import (
	"encoding/json"
	"fmt"
	"time"

	"reconcile-service/internal/model"
	"reconcile-service/internal/payload"
)

// MalformedError reports a webhook body whose required fields are absent or
// of the wrong shape. It is terminal for the delivery; no retry state is
// kept locally.
type MalformedError struct {
	Field string
	Err   error
}

func (e *MalformedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed credit event: %v", e.Err)
	}
	return fmt.Sprintf("malformed credit event: missing %s", e.Field)
}

func (e *MalformedError) Unwrap() error {
	return e.Err
}

// DecodeEnvelope parses a raw webhook body into the gateway envelope shape.
func DecodeEnvelope(raw []byte) (*payload.Envelope, error) {
	var env payload.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &MalformedError{Err: err}
	}
	return &env, nil
}

// Normalize merges the webhook envelope with the gateway's bank-transfer
// detail into a CreditEvent. The gateway timestamp is epoch seconds and is
// pinned to loc so that date comparisons downstream all happen in the one
// operational time zone.
func Normalize(env *payload.Envelope, detail *payload.BankTransferDetail, loc *time.Location) (model.CreditEvent, error) {
	p := env.Payload.Payment.Entity

	if p.ID == "" {
		return model.CreditEvent{}, &MalformedError{Field: "payment.entity.id"}
	}
	if p.Amount == nil {
		return model.CreditEvent{}, &MalformedError{Field: "payment.entity.amount"}
	}
	if p.CreatedAt == nil {
		return model.CreditEvent{}, &MalformedError{Field: "payment.entity.created_at"}
	}

	vaID := detail.VirtualAccount.ID
	if vaID == "" {
		vaID = env.Payload.VirtualAccount.Entity.ID
	}
	if vaID == "" {
		return model.CreditEvent{}, &MalformedError{Field: "virtual_account.entity.id"}
	}

	notes := detail.VirtualAccount.Notes
	if len(notes) == 0 {
		notes = env.Payload.VirtualAccount.Entity.Notes
	}

	return model.CreditEvent{
		PaymentID:        p.ID,
		VirtualAccountID: vaID,
		AmountMinor:      *p.Amount,
		CreatedAt:        time.Unix(*p.CreatedAt, 0).In(loc),
		Description:      p.Description,
		BankReference:    detail.BankReference,
		PayerNotes:       notes,
	}, nil
}
