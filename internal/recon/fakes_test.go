package recon

import (
	"context"
	"sync"

	"reconcile-service/internal/db"
	"reconcile-service/internal/model"
	"reconcile-service/internal/payload"
)

// fakeStore is an in-memory OrderStore with the same atomicity contract as
// the real repository: settlement re-checks the order status under a lock.
type fakeStore struct {
	mu        sync.Mutex
	orders    map[int64]*model.Order
	settledBy map[int64]model.Settlement
	failWith  error
	applied   int
}

func newFakeStore(orders ...model.Order) *fakeStore {
	s := &fakeStore{
		orders:    make(map[int64]*model.Order),
		settledBy: make(map[int64]model.Settlement),
	}
	for i := range orders {
		o := orders[i]
		s.orders[o.Number] = &o
	}
	return s
}

func (s *fakeStore) FindSettledOrder(_ context.Context, accountID int64, paymentID string) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for number, settlement := range s.settledBy {
		o := s.orders[number]
		if o.OwnerID == accountID && settlement.PaymentID == paymentID &&
			(o.Status == model.OrderProcessing || o.Status == model.OrderCompleted) {
			c := *o
			return &c, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) ListOpenOrders(_ context.Context, accountID int64) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var open []model.Order
	for _, o := range s.orders {
		if o.OwnerID == accountID && o.Status == model.OrderOnHold {
			open = append(open, *o)
		}
	}
	// deterministic enumeration, oldest first, like the repository query
	for i := 0; i < len(open); i++ {
		for j := i + 1; j < len(open); j++ {
			if open[j].CreatedAt.Before(open[i].CreatedAt) ||
				(open[j].CreatedAt.Equal(open[i].CreatedAt) && open[j].Number < open[i].Number) {
				open[i], open[j] = open[j], open[i]
			}
		}
	}
	return open, nil
}

func (s *fakeStore) GetOrderByNumber(_ context.Context, number int64) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[number]
	if !ok {
		return nil, nil
	}
	c := *o
	return &c, nil
}

func (s *fakeStore) ApplySettlement(_ context.Context, orderNumber int64, settlement model.Settlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	o, ok := s.orders[orderNumber]
	if !ok {
		return &db.SettlementError{OrderNumber: orderNumber}
	}
	if o.Status != model.OrderOnHold {
		return db.ErrSettlementConflict
	}
	o.Status = model.OrderCompleted
	s.settledBy[orderNumber] = settlement
	s.applied++
	return nil
}

type fakeDirectory struct {
	accounts map[string]model.Account
	err      error
}

func (d *fakeDirectory) ResolveAccountByLogin(_ context.Context, login string) (model.Account, error) {
	if d.err != nil {
		return model.Account{}, d.err
	}
	return d.accounts[login], nil
}

type fakeGateway struct {
	detail *payload.BankTransferDetail
	err    error
	calls  int
}

func (g *fakeGateway) FetchBankTransferDetail(_ context.Context, _ string) (*payload.BankTransferDetail, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return g.detail, nil
}
