package db

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"reconcile-service/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// ErrSettlementConflict means the order was no longer open when the
// settlement write ran: another delivery completed it first, or it left
// on-hold through some other path. Callers treat it as a no-op, not a
// failure.
var ErrSettlementConflict = errors.New("order is no longer open for settlement")

// SettlementError reports a failed settlement write. It is surfaced to the
// transport, which governs redelivery; nothing is retried here.
type SettlementError struct {
	OrderNumber int64
	Err         error
}

func (e *SettlementError) Error() string {
	return fmt.Sprintf("settlement write for order %d failed: %v", e.OrderNumber, e.Err)
}

func (e *SettlementError) Unwrap() error {
	return e.Err
}

const orderColumns = `number, owner_id, status, payment_method, total_minor, created_at`

// OrderRepository is the engine's view of the order store. Orders are owned
// by the surrounding shop system; this repository only reads them and
// performs the single on-hold → completed transition.
type OrderRepository struct {
	pool          *pgxpool.Pool
	paymentMethod string
	logger        *slog.Logger
}

func NewOrderRepository(pool *pgxpool.Pool, paymentMethod string, logger *slog.Logger) *OrderRepository {
	return &OrderRepository{pool: pool, paymentMethod: paymentMethod, logger: logger}
}

// FindSettledOrder returns the account's order already settled by the given
// payment, if any.
func (r *OrderRepository) FindSettledOrder(ctx context.Context, accountID int64, paymentID string) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
	          WHERE owner_id = $1 AND settlement_payment_id = $2
	            AND status IN ('processing', 'completed') AND payment_method = $3`
	order, err := r.scanOne(r.pool.QueryRow(ctx, query, accountID, paymentID, r.paymentMethod))
	if err != nil {
		return nil, errors.Wrap(err, "finding settled order")
	}
	return order, nil
}

// ListOpenOrders returns the account's on-hold bank-transfer orders, oldest
// first. The enumeration order is part of the contract: the matcher's
// first-match fallback depends on it being deterministic.
func (r *OrderRepository) ListOpenOrders(ctx context.Context, accountID int64) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
	          WHERE owner_id = $1 AND status = 'on-hold' AND payment_method = $2
	          ORDER BY created_at, number`
	rows, err := r.pool.Query(ctx, query, accountID, r.paymentMethod)
	if err != nil {
		return nil, errors.Wrap(err, "listing open orders")
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var o model.Order
		if err := rows.Scan(&o.Number, &o.OwnerID, &o.Status, &o.PaymentMethod, &o.TotalMinor, &o.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scanning open order")
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// GetOrderByNumber fetches one order regardless of owner or status. Used by
// the description-hint match, which cross-checks outside the resolved
// account's candidate set.
func (r *OrderRepository) GetOrderByNumber(ctx context.Context, number int64) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE number = $1 AND payment_method = $2`
	order, err := r.scanOne(r.pool.QueryRow(ctx, query, number, r.paymentMethod))
	if err != nil {
		return nil, errors.Wrap(err, "getting order by number")
	}
	return order, nil
}

// ApplySettlement completes an order with payment provenance as one
// transaction. The row lock plus the on-hold re-check make the transition
// safe against concurrent deliveries: the loser of a race sees a
// non-on-hold row and gets ErrSettlementConflict.
func (r *OrderRepository) ApplySettlement(ctx context.Context, orderNumber int64, s model.Settlement) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return &SettlementError{OrderNumber: orderNumber, Err: err}
	}
	defer tx.Rollback(ctx)

	var status model.OrderStatus
	var settledPaymentID *string
	row := tx.QueryRow(ctx, `SELECT status, settlement_payment_id FROM orders WHERE number = $1 FOR UPDATE`, orderNumber)
	if err := row.Scan(&status, &settledPaymentID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &SettlementError{OrderNumber: orderNumber, Err: errors.New("order not found")}
		}
		return &SettlementError{OrderNumber: orderNumber, Err: err}
	}

	if status != model.OrderOnHold || settledPaymentID != nil {
		r.logger.InfoContext(ctx, "Order no longer open, skipping settlement",
			"orderNumber", orderNumber, "status", string(status))
		return ErrSettlementConflict
	}

	_, err = tx.Exec(ctx, `INSERT INTO order_note (order_number, note) VALUES ($1, $2)`,
		orderNumber, s.AuditNote())
	if err != nil {
		return &SettlementError{OrderNumber: orderNumber, Err: errors.Wrap(err, "appending order note")}
	}

	txnMarker, err := json.Marshal(struct {
		PaymentID        string `json:"paymentId"`
		SettledAt        string `json:"settledAt"`
		VirtualAccountID string `json:"virtualAccountId"`
		BankReference    string `json:"bankReference"`
	}{s.PaymentID, s.SettledAt.Format("2006-01-02 15:04:05"), s.VirtualAccountID, s.BankReference})
	if err != nil {
		return &SettlementError{OrderNumber: orderNumber, Err: err}
	}

	_, err = tx.Exec(ctx, `UPDATE orders
	          SET status = 'completed',
	              settlement_payment_id = $2,
	              settlement_amount = $3,
	              settlement_bank_reference = $4,
	              settlement_payer_note = $5,
	              settlement_txn = $6,
	              settled_at = $7
	          WHERE number = $1`,
		orderNumber, s.PaymentID, s.AmountMajor(), s.BankReference, s.PayerNote, string(txnMarker), s.SettledAt)
	if err != nil {
		return &SettlementError{OrderNumber: orderNumber, Err: errors.Wrap(err, "completing order")}
	}

	if err := tx.Commit(ctx); err != nil {
		return &SettlementError{OrderNumber: orderNumber, Err: errors.Wrap(err, "committing settlement")}
	}

	r.logger.InfoContext(ctx, "Order completed", "orderNumber", orderNumber, "paymentId", s.PaymentID)
	return nil
}

func (r *OrderRepository) scanOne(row pgx.Row) (*model.Order, error) {
	var o model.Order
	err := row.Scan(&o.Number, &o.OwnerID, &o.Status, &o.PaymentMethod, &o.TotalMinor, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}
