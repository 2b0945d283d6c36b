package recon

import (
	"context"

	"reconcile-service/internal/model"
	"reconcile-service/internal/payload"
)

// OrderStore is the engine's view of the external order store, the single
// source of truth and the only shared mutable resource. ApplySettlement must
// be atomic with respect to other writers on the same order.
type OrderStore interface {
	FindSettledOrder(ctx context.Context, accountID int64, paymentID string) (*model.Order, error)
	ListOpenOrders(ctx context.Context, accountID int64) ([]model.Order, error)
	GetOrderByNumber(ctx context.Context, number int64) (*model.Order, error)
	ApplySettlement(ctx context.Context, orderNumber int64, s model.Settlement) error
}

// Directory resolves a payer login to a local account. An unknown login
// yields the zero Account, not an error.
type Directory interface {
	ResolveAccountByLogin(ctx context.Context, login string) (model.Account, error)
}

// GatewayClient fetches the bank-transfer detail behind a payment.
type GatewayClient interface {
	FetchBankTransferDetail(ctx context.Context, paymentID string) (*payload.BankTransferDetail, error)
}
