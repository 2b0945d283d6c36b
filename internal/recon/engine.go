package recon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"reconcile-service/internal/db"
	"reconcile-service/internal/event"
	"reconcile-service/internal/logcontext"
	"reconcile-service/internal/model"
	"reconcile-service/internal/payload"

	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	settledCounter        = metrics.GetOrCreateCounter(`reconcile_total{outcome="settled"}`)
	alreadySettledCounter = metrics.GetOrCreateCounter(`reconcile_total{outcome="already_settled"}`)
	noMatchCounter        = metrics.GetOrCreateCounter(`reconcile_total{outcome="no_match"}`)
	droppedCounter        = metrics.GetOrCreateCounter(`reconcile_total{outcome="dropped"}`)
	failedCounter         = metrics.GetOrCreateCounter(`reconcile_total{outcome="failed"}`)

	reconcileDurationHistogram = metrics.GetOrCreateHistogram(`reconcile_duration_milliseconds`)
)

// Engine decides which pending order a virtual-account credit settles. Each
// Reconcile call is independent: the engine keeps no state between
// invocations, so concurrent webhook deliveries only meet each other at the
// order store's row lock.
type Engine struct {
	gateway   GatewayClient
	directory Directory
	store     OrderStore
	loc       *time.Location
	logger    *slog.Logger
}

func NewEngine(gateway GatewayClient, directory Directory, store OrderStore, loc *time.Location, logger *slog.Logger) *Engine {
	return &Engine{
		gateway:   gateway,
		directory: directory,
		store:     store,
		loc:       loc,
		logger:    logger,
	}
}

// Reconcile processes one verified webhook body to a terminal outcome. It
// never panics across the boundary and never retries: redelivery is the
// transport's concern.
func (e *Engine) Reconcile(ctx context.Context, rawBody []byte) Outcome {
	startTime := time.Now()
	ctx = logcontext.AppendCtx(ctx, slog.String("deliveryId", uuid.New().String()))

	outcome := e.reconcile(ctx, rawBody)

	e.record(ctx, outcome)
	reconcileDurationHistogram.Update(float64(time.Since(startTime).Milliseconds()))
	return outcome
}

func (e *Engine) reconcile(ctx context.Context, rawBody []byte) Outcome {
	env, err := event.DecodeEnvelope(rawBody)
	if err != nil {
		return Dropped("", err.Error())
	}

	if env.Event != payload.EventVirtualAccountCredited {
		// authorized/failed/cancelled flows are handled elsewhere
		return Dropped("", fmt.Sprintf("unhandled event %q", env.Event))
	}

	paymentID := env.Payload.Payment.Entity.ID
	if paymentID == "" {
		return Dropped("", "missing payment id")
	}
	ctx = logcontext.AppendCtx(ctx, slog.String("paymentId", paymentID))

	detail, err := e.gateway.FetchBankTransferDetail(ctx, paymentID)
	if err != nil {
		return Failed(paymentID, err)
	}

	ev, err := event.Normalize(env, detail, e.loc)
	if err != nil {
		e.logger.WarnContext(ctx, "Dropping malformed credit event", "error", err)
		return Dropped(paymentID, err.Error())
	}

	e.logEvent(ctx, ev)

	account, err := e.directory.ResolveAccountByLogin(ctx, ev.PayerNotes["id"])
	if err != nil {
		return Failed(paymentID, errors.Wrap(err, "resolving payer identity"))
	}
	if account.Missing() {
		return Dropped(paymentID, "unresolved payer identity")
	}
	ctx = logcontext.AppendCtx(ctx, slog.Int64("accountId", account.ID))

	settled, err := e.store.FindSettledOrder(ctx, account.ID, ev.PaymentID)
	if err != nil {
		return Failed(paymentID, errors.Wrap(err, "checking for settled orders"))
	}
	if settled != nil {
		e.logger.InfoContext(ctx, "Payment already settled, ignoring redelivery",
			"orderNumber", settled.Number)
		return AlreadySettled(paymentID, settled.Number)
	}

	candidates, err := e.store.ListOpenOrders(ctx, account.ID)
	if err != nil {
		return Failed(paymentID, errors.Wrap(err, "listing open orders"))
	}

	order, err := e.match(ctx, ev, candidates)
	if err != nil {
		return Failed(paymentID, errors.Wrap(err, "matching order"))
	}
	if order == nil {
		if len(candidates) == 0 {
			return NoMatch(paymentID, "no open orders for account")
		}
		return NoMatch(paymentID, "no open order satisfies amount and date conditions")
	}

	settlement := model.Settlement{
		PaymentID:        ev.PaymentID,
		VirtualAccountID: ev.VirtualAccountID,
		AmountMinor:      ev.AmountMinor,
		BankReference:    ev.BankReference,
		PayerNote:        ev.Description,
		SettledAt:        ev.CreatedAt,
	}

	if err := e.store.ApplySettlement(ctx, order.Number, settlement); err != nil {
		if errors.Is(err, db.ErrSettlementConflict) {
			return e.afterLostRace(ctx, account.ID, ev.PaymentID, order.Number)
		}
		return Failed(paymentID, err)
	}

	return Settled(paymentID, order.Number)
}

// afterLostRace resolves a settlement conflict to a terminal no-op. A
// concurrent delivery of the same payment means this payment is settled; an
// order taken by a different payment leaves this one unreconciled for
// manual follow-up. Either way nothing is mutated and nothing errors.
func (e *Engine) afterLostRace(ctx context.Context, accountID int64, paymentID string, orderNumber int64) Outcome {
	settled, err := e.store.FindSettledOrder(ctx, accountID, paymentID)
	if err != nil {
		return Failed(paymentID, errors.Wrap(err, "re-checking settled orders after lost race"))
	}
	if settled != nil {
		return AlreadySettled(paymentID, settled.Number)
	}
	return NoMatch(paymentID, fmt.Sprintf("order %d was settled by another payment", orderNumber))
}

func (e *Engine) logEvent(ctx context.Context, ev model.CreditEvent) {
	e.logger.DebugContext(ctx, "Normalized credit event",
		"virtualAccountId", ev.VirtualAccountID,
		"amountMinor", ev.AmountMinor,
		"createdAt", ev.CreatedAt.Format("2006-01-02 15:04:05"),
		"description", ev.Description,
		"bankReference", ev.BankReference,
		"payerLogin", ev.PayerNotes["id"],
		"payerExternalId", ev.PayerNotes["idnumber"],
	)
}

func (e *Engine) record(ctx context.Context, outcome Outcome) {
	switch outcome.Kind {
	case KindSettled:
		settledCounter.Inc()
		e.logger.InfoContext(ctx, "Reconciliation settled order",
			"orderNumber", outcome.OrderNumber)
	case KindAlreadySettled:
		alreadySettledCounter.Inc()
		e.logger.InfoContext(ctx, "Reconciliation found payment already settled",
			"orderNumber", outcome.OrderNumber)
	case KindNoMatch:
		noMatchCounter.Inc()
		e.logger.InfoContext(ctx, "Reconciliation found no matching order, leaving payment for manual follow-up",
			"reason", outcome.Reason)
	case KindDropped:
		droppedCounter.Inc()
		e.logger.InfoContext(ctx, "Reconciliation dropped delivery", "reason", outcome.Reason)
	case KindFailed:
		failedCounter.Inc()
		e.logger.ErrorContext(ctx, "Reconciliation failed", "error", outcome.Err)
	}
}
