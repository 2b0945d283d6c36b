package model

import (
	"fmt"
	"time"
)

// CreditEvent is one normalized "virtual account credited" notification.
// PaymentID is the idempotency key: two events sharing it describe the same
// real-world transfer.
type CreditEvent struct {
	PaymentID        string
	VirtualAccountID string
	AmountMinor      int64
	CreatedAt        time.Time
	Description      string
	BankReference    string
	PayerNotes       map[string]string
}

// Account is a resolved local identity. The zero value is the unresolved
// sentinel returned when the directory has no matching login.
type Account struct {
	ID         int64
	Login      string
	ExternalID string
}

func (a Account) Missing() bool {
	return a.ID == 0
}

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderOnHold     OrderStatus = "on-hold"
	OrderProcessing OrderStatus = "processing"
	OrderCompleted  OrderStatus = "completed"
)

// Order is the slice of the externally owned order entity this service
// reads. Only the on-hold → completed transition is ever written back.
type Order struct {
	Number        int64
	OwnerID       int64
	Status        OrderStatus
	PaymentMethod string
	TotalMinor    int64
	CreatedAt     time.Time
}

// Settlement records which payment satisfied an order.
type Settlement struct {
	PaymentID        string
	VirtualAccountID string
	AmountMinor      int64
	BankReference    string
	PayerNote        string
	SettledAt        time.Time
}

// AmountMajor renders the minor-unit amount in the major currency unit
// without going through floats.
func (s Settlement) AmountMajor() string {
	return fmt.Sprintf("%d.%02d", s.AmountMinor/100, s.AmountMinor%100)
}

// AuditNote is the operator-facing summary appended to the settled order.
func (s Settlement) AuditNote() string {
	return fmt.Sprintf(
		"Payment received by virtual account ID: %s Payment ID: %s on: %s Payment description: %s bank reference: %s",
		s.VirtualAccountID, s.PaymentID, s.SettledAt.Format("2006-01-02 15:04:05"), s.PayerNote, s.BankReference)
}
