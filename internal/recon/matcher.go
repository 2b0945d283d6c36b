package recon

import (
	"context"
	"strconv"
	"strings"

	"reconcile-service/internal/model"
)

// orderRefHint extracts a candidate order number from payer-entered text:
// strip +/- first, then take the first run of digits as an unsigned integer.
// Returns 0 when the text carries no digits.
func orderRefHint(description string) int64 {
	s := strings.NewReplacer("+", "", "-", "").Replace(description)

	start := -1
	end := len(s)
	for i, r := range s {
		if r >= '0' && r <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			end = i
			break
		}
	}
	if start < 0 {
		return 0
	}

	n, err := strconv.ParseInt(s[start:end], 10, 64)
	if err != nil {
		// digit run too long to be an order number
		return 0
	}
	return n
}

// accepts applies the two reconciliation conditions shared by both phases:
// exact amount equality and payment strictly after order placement.
func accepts(ev model.CreditEvent, order *model.Order) bool {
	if order.TotalMinor != ev.AmountMinor {
		return false
	}
	return ev.CreatedAt.After(order.CreatedAt)
}

// match picks at most one order for the event. Phase A follows the payer's
// description hint straight to an order, bypassing the candidate set so a
// cooperative payer can rescue a stale identity resolution. Phase B scans
// the candidates in enumeration order and takes the first acceptable one;
// when several orders share the amount that first-match is the explicit
// ambiguity policy, not an accident.
func (e *Engine) match(ctx context.Context, ev model.CreditEvent, candidates []model.Order) (*model.Order, error) {
	if hint := orderRefHint(ev.Description); hint > 0 {
		order, err := e.store.GetOrderByNumber(ctx, hint)
		if err != nil {
			return nil, err
		}
		if order != nil && accepts(ev, order) {
			e.logger.InfoContext(ctx, "Matched order via description hint",
				"orderNumber", order.Number, "description", ev.Description)
			return order, nil
		}
		// an unreliable hint is expected, fall through to the scan
		e.logger.InfoContext(ctx, "Description hint did not yield a match", "hint", hint)
	}

	for i := range candidates {
		if accepts(ev, &candidates[i]) {
			e.logger.InfoContext(ctx, "Matched order via candidate scan",
				"orderNumber", candidates[i].Number)
			return &candidates[i], nil
		}
	}

	return nil, nil
}
