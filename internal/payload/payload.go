package payload

import "encoding/json"

// Known gateway event types.
const (
	EventVirtualAccountCredited = "virtual_account.credited"
	EventPaymentAuthorized      = "payment.authorized"
	EventPaymentFailed          = "payment.failed"
	EventSubscriptionCancelled  = "subscription.cancelled"
)

// Envelope is the outer shape of a gateway webhook body. Signature
// verification happens upstream; by the time a body reaches this service it
// is trusted but not yet validated for shape.
type Envelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity PaymentEntity `json:"entity"`
		} `json:"payment"`
		VirtualAccount struct {
			Entity VirtualAccountEntity `json:"entity"`
		} `json:"virtual_account"`
	} `json:"payload"`
}

// PaymentEntity is the gateway's payment record as embedded in the webhook.
// Amount is in the smallest currency unit, CreatedAt is epoch seconds on the
// gateway clock.
type PaymentEntity struct {
	ID          string `json:"id"`
	Amount      *int64 `json:"amount"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
	Description string `json:"description"`
	CreatedAt   *int64 `json:"created_at"`
}

type VirtualAccountEntity struct {
	ID    string            `json:"id"`
	Notes map[string]string `json:"notes"`
}

// BankTransferDetail is the gateway's bank-transfer record fetched by
// payment id, carrying the fields the webhook body omits.
type BankTransferDetail struct {
	ID               string               `json:"id"`
	PaymentID        string               `json:"payment_id"`
	Mode             string               `json:"mode"`
	BankReference    string               `json:"bank_reference"`
	PayerBankAccount json.RawMessage      `json:"payer_bank_account"`
	VirtualAccount   VirtualAccountEntity `json:"virtual_account"`
}

// OutcomeMessage is the record published to the reconcile-outcomes topic for
// every terminal decision.
type OutcomeMessage struct {
	DeliveryID  string `json:"deliveryId"`
	PaymentID   string `json:"paymentId,omitempty"`
	Outcome     string `json:"outcome"`
	OrderNumber int64  `json:"orderNumber,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Error       string `json:"error,omitempty"`
	At          string `json:"at"`
}
