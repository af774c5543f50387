package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/linemk/shop-payments/internal/domain/models"
	"github.com/linemk/shop-payments/internal/storage"
)

// Result - итог применения события провайдера к заказу
type Result string

const (
	ResultApplied         Result = "applied"
	ResultUnchanged       Result = "unchanged"
	ResultStale           Result = "stale"
	ResultCorrelationMiss Result = "correlation_miss"
	ResultAmountMismatch  Result = "amount_mismatch"
	ResultIgnored         Result = "ignored"
)

// Reconciler переводит заказ по проверенному событию провайдера
type Reconciler interface {
	Apply(ctx context.Context, ev models.PaymentEvent) (Result, error)
	// Ignore журналирует проверенное событие, которое не влияет на заказ
	Ignore(ctx context.Context, ev models.PaymentEvent) Result
}

// ReconcilerOptions - режимы сверки
type ReconcilerOptions struct {
	// Strict - таблица переходов; false включает безусловную перезапись статуса
	Strict bool
	// AmountGuard - отклонять успешные события, сумма которых (в минимальных единицах)
	// не совпадает с total_amount заказа
	AmountGuard bool
}

type reconciler struct {
	log    *slog.Logger
	orders storage.OrderStorage
	events storage.PaymentEventStorage
	opts   ReconcilerOptions
	now    func() time.Time
}

// NewReconciler создаёт сверку. events может быть nil, тогда журнал не ведётся.
func NewReconciler(log *slog.Logger, orders storage.OrderStorage, events storage.PaymentEventStorage, opts ReconcilerOptions) Reconciler {
	return &reconciler{
		log:    log,
		orders: orders,
		events: events,
		opts:   opts,
		now:    time.Now,
	}
}

func (r *reconciler) Apply(ctx context.Context, ev models.PaymentEvent) (Result, error) {
	const op = "service.Reconciler.Apply"
	logger := r.log.With(
		slog.String("op", op),
		slog.String("provider", ev.Provider),
		slog.String("merchant_transaction_id", ev.MerchantTransactionID),
		slog.String("code", ev.Code),
		slog.String("event_id", ev.EventID),
	)

	order, err := r.orders.FindByTransactionID(ctx, ev.MerchantTransactionID)
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			logger.Warn("payment event references unknown order", slog.String("anomaly", string(ResultCorrelationMiss)))
			r.journal(ctx, ev, ResultCorrelationMiss)
			return ResultCorrelationMiss, nil
		}
		logger.Error("failed to load order", slog.Any("error", err))
		return "", fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
	}

	if r.opts.AmountGuard && ev.Outcome == models.OutcomeSuccess && ev.Amount != 0 {
		total, ok := order.TotalMinorUnits()
		if !ok || total != ev.Amount {
			logger.Error("charged amount does not match order total",
				slog.String("anomaly", string(ResultAmountMismatch)),
				slog.Int64("charged", ev.Amount),
				slog.String("order_total", order.TotalAmount.String()),
			)
			r.journal(ctx, ev, ResultAmountMismatch)
			return ResultAmountMismatch, nil
		}
	}

	next, ok := models.NextStatus(order.Status, ev.Outcome, r.opts.Strict)
	if !ok {
		logger.Warn("stale payment event refused",
			slog.String("status", string(order.Status)),
			slog.String("outcome", string(ev.Outcome)),
			occurredAttr(ev),
		)
		r.journal(ctx, ev, ResultStale)
		return ResultStale, nil
	}

	upd := storage.StatusUpdate{
		Status:      next,
		Provider:    ev.Provider,
		AllowedFrom: models.AllowedSources(ev.Outcome, r.opts.Strict),
	}
	if ev.Outcome == models.OutcomeSuccess {
		if ev.PaymentID != "" {
			paymentID := ev.PaymentID
			upd.PaymentID = &paymentID
		}
		confirmedAt := r.now().UTC()
		upd.ConfirmedAt = &confirmedAt
	}

	affected, err := r.orders.UpdateStatusByTransactionID(ctx, ev.MerchantTransactionID, upd)
	if err != nil {
		logger.Error("failed to update order status", slog.Any("error", err))
		return "", fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
	}
	if affected == 0 {
		// статус сменился между чтением и обновлением
		logger.Warn("payment event lost the race, refused by status guard",
			slog.String("status", string(order.Status)),
			slog.String("target", string(next)),
			occurredAttr(ev),
		)
		r.journal(ctx, ev, ResultStale)
		return ResultStale, nil
	}

	result := ResultApplied
	if order.Status == next {
		result = ResultUnchanged
	}
	logger.Info("payment event reconciled",
		slog.String("from", string(order.Status)),
		slog.String("to", string(next)),
		slog.String("result", string(result)),
	)
	r.journal(ctx, ev, result)
	return result, nil
}

func (r *reconciler) Ignore(ctx context.Context, ev models.PaymentEvent) Result {
	r.log.Info("payment event ignored",
		slog.String("op", "service.Reconciler.Ignore"),
		slog.String("provider", ev.Provider),
		slog.String("code", ev.Code),
		slog.String("event_id", ev.EventID),
	)
	r.journal(ctx, ev, ResultIgnored)
	return ResultIgnored
}

// journal пишет событие в журнал; ошибка записи не влияет на результат сверки
func (r *reconciler) journal(ctx context.Context, ev models.PaymentEvent, result Result) {
	const op = "service.Reconciler.journal"
	if r.events == nil {
		return
	}

	rec := models.PaymentEventRecord{
		Provider:              ev.Provider,
		EventID:               ev.EventID,
		MerchantTransactionID: ev.MerchantTransactionID,
		Code:                  ev.Code,
		Result:                string(result),
		Payload:               ev.Payload,
		OccurredAt:            ev.OccurredAt,
		ReceivedAt:            r.now().UTC(),
	}
	if err := r.events.Record(ctx, rec); err != nil {
		r.log.Warn("failed to journal payment event",
			slog.String("op", op),
			slog.String("event_id", ev.EventID),
			slog.Any("error", err),
		)
	}
}

// occurredAttr - время события у провайдера; у уведомлений без времени пустая строка
func occurredAttr(ev models.PaymentEvent) slog.Attr {
	if ev.OccurredAt.IsZero() {
		return slog.String("occurred_at", "")
	}
	return slog.Time("occurred_at", ev.OccurredAt.UTC())
}
