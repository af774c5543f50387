package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/linemk/shop-payments/internal/domain/models"
	"github.com/linemk/shop-payments/internal/service"
	"github.com/linemk/shop-payments/internal/storage/storagetest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var strictOpts = service.ReconcilerOptions{Strict: true}

func putOrder(mem *storagetest.Memory, txID string, status models.Status) {
	mem.Put(&models.Order{
		MerchantTransactionID: txID,
		UserID:                "user-42",
		Status:                status,
		TotalAmount:           decimal.RequireFromString("1000.00"),
		CreatedAt:             time.Now(),
	})
}

func successEvent(txID string) models.PaymentEvent {
	return models.PaymentEvent{
		Provider:              models.ProviderPhonePe,
		EventID:               "T123:PAYMENT_SUCCESS",
		MerchantTransactionID: txID,
		Code:                  "PAYMENT_SUCCESS",
		Outcome:               models.OutcomeSuccess,
		PaymentID:             "T123",
		Amount:                100000,
		Payload:               []byte(`{"code":"PAYMENT_SUCCESS"}`),
	}
}

func findOrder(t *testing.T, mem *storagetest.Memory, txID string) *models.Order {
	t.Helper()
	order, err := mem.FindByTransactionID(context.Background(), txID)
	if err != nil {
		t.Fatalf("order %s not found: %v", txID, err)
	}
	return order
}

func TestReconciler_Apply_Success(t *testing.T) {
	mem := storagetest.NewMemory()
	putOrder(mem, "tx-001", models.StatusPendingPayment)
	rec := service.NewReconciler(newTestLogger(), mem, mem, strictOpts)

	result, err := rec.Apply(context.Background(), successEvent("tx-001"))
	assert.NoError(t, err)
	assert.Equal(t, service.ResultApplied, result)

	order := findOrder(t, mem, "tx-001")
	assert.Equal(t, models.StatusProcessing, order.Status)
	if assert.NotNil(t, order.PaymentID) {
		assert.Equal(t, "T123", *order.PaymentID)
	}
	assert.NotNil(t, order.PaymentConfirmedAt)

	events := mem.Events()
	if assert.Len(t, events, 1) {
		assert.Equal(t, string(service.ResultApplied), events[0].Result)
		assert.Equal(t, "tx-001", events[0].MerchantTransactionID)
	}
}

func TestReconciler_Apply_Idempotent(t *testing.T) {
	mem := storagetest.NewMemory()
	putOrder(mem, "tx-001", models.StatusPendingPayment)
	rec := service.NewReconciler(newTestLogger(), mem, mem, strictOpts)

	_, err := rec.Apply(context.Background(), successEvent("tx-001"))
	assert.NoError(t, err)
	first := findOrder(t, mem, "tx-001")

	for i := 0; i < 5; i++ {
		result, err := rec.Apply(context.Background(), successEvent("tx-001"))
		assert.NoError(t, err)
		assert.Equal(t, service.ResultUnchanged, result)
	}

	again := findOrder(t, mem, "tx-001")
	assert.Equal(t, first.Status, again.Status)
	assert.Equal(t, *first.PaymentID, *again.PaymentID)
	assert.True(t, first.PaymentConfirmedAt.Equal(*again.PaymentConfirmedAt), "Confirmation time must be set once")
	assert.Equal(t, 1, mem.Orders())
}

func TestReconciler_Apply_CorrelationMiss(t *testing.T) {
	mem := storagetest.NewMemory()
	rec := service.NewReconciler(newTestLogger(), mem, mem, strictOpts)

	result, err := rec.Apply(context.Background(), successEvent("tx-unknown"))
	assert.NoError(t, err, "Unknown order is acknowledged, not an error")
	assert.Equal(t, service.ResultCorrelationMiss, result)
	assert.Equal(t, 0, mem.Orders(), "Orders are never created from callbacks")
	assert.Equal(t, 0, mem.UpdateCalls)
}

func TestReconciler_Apply_AmountMismatch(t *testing.T) {
	mem := storagetest.NewMemory()
	putOrder(mem, "tx-001", models.StatusPendingPayment)
	rec := service.NewReconciler(newTestLogger(), mem, mem, service.ReconcilerOptions{Strict: true, AmountGuard: true})

	ev := successEvent("tx-001")
	ev.Amount = 100
	result, err := rec.Apply(context.Background(), ev)
	assert.NoError(t, err)
	assert.Equal(t, service.ResultAmountMismatch, result)
	assert.Equal(t, models.StatusPendingPayment, findOrder(t, mem, "tx-001").Status)
	assert.Equal(t, 0, mem.UpdateCalls)
}

func TestReconciler_Apply_AmountGuardOff(t *testing.T) {
	mem := storagetest.NewMemory()
	putOrder(mem, "tx-001", models.StatusPendingPayment)
	rec := service.NewReconciler(newTestLogger(), mem, mem, strictOpts)

	// сумма провайдера 1000 при total_amount 1000.00: без сверки сумм событие применяется
	ev := successEvent("tx-001")
	ev.Amount = 1000
	result, err := rec.Apply(context.Background(), ev)
	assert.NoError(t, err)
	assert.Equal(t, service.ResultApplied, result)
	assert.Equal(t, models.StatusProcessing, findOrder(t, mem, "tx-001").Status)
}

func TestReconciler_Apply_ConcurrentDuplicates(t *testing.T) {
	mem := storagetest.NewMemory()
	putOrder(mem, "tx-001", models.StatusPendingPayment)
	rec := service.NewReconciler(newTestLogger(), mem, mem, strictOpts)

	const deliveries = 20
	results := make([]service.Result, deliveries)
	errs := make([]error, deliveries)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = rec.Apply(context.Background(), successEvent("tx-001"))
		}(i)
	}
	close(start)
	wg.Wait()

	applied := 0
	for i := 0; i < deliveries; i++ {
		assert.NoError(t, errs[i])
		switch results[i] {
		case service.ResultApplied:
			applied++
		case service.ResultUnchanged:
		default:
			t.Errorf("delivery %d: unexpected result %q", i, results[i])
		}
	}
	assert.GreaterOrEqual(t, applied, 1)

	order := findOrder(t, mem, "tx-001")
	assert.Equal(t, models.StatusProcessing, order.Status)
	if assert.NotNil(t, order.PaymentID) {
		assert.Equal(t, "T123", *order.PaymentID)
	}
	assert.Equal(t, 1, mem.Orders())
	assert.Len(t, mem.Events(), deliveries)
}

func TestReconciler_Apply_JournalsOccurredAt(t *testing.T) {
	mem := storagetest.NewMemory()
	putOrder(mem, "tx-001", models.StatusProcessing)
	rec := service.NewReconciler(newTestLogger(), mem, mem, strictOpts)

	occurred := time.Unix(1567674606, 0)
	ev := successEvent("tx-001")
	ev.Outcome = models.OutcomeFailure
	ev.Code = "PAYMENT_ERROR"
	ev.OccurredAt = occurred

	result, err := rec.Apply(context.Background(), ev)
	assert.NoError(t, err)
	assert.Equal(t, service.ResultStale, result)

	events := mem.Events()
	if assert.Len(t, events, 1) {
		assert.True(t, occurred.Equal(events[0].OccurredAt))
		assert.Equal(t, string(service.ResultStale), events[0].Result)
	}
}

func TestReconciler_Apply_FailureThenSuccess(t *testing.T) {
	mem := storagetest.NewMemory()
	putOrder(mem, "tx-001", models.StatusPendingPayment)
	rec := service.NewReconciler(newTestLogger(), mem, mem, strictOpts)

	failure := models.PaymentEvent{
		Provider:              models.ProviderRazorpay,
		EventID:               "evt_1",
		MerchantTransactionID: "tx-001",
		Code:                  "payment.failed",
		Outcome:               models.OutcomeFailure,
	}
	result, err := rec.Apply(context.Background(), failure)
	assert.NoError(t, err)
	assert.Equal(t, service.ResultApplied, result)
	assert.Equal(t, models.StatusPaymentFailed, findOrder(t, mem, "tx-001").Status)

	// повторная попытка оплаты после отказа
	result, err = rec.Apply(context.Background(), successEvent("tx-001"))
	assert.NoError(t, err)
	assert.Equal(t, service.ResultApplied, result)
	assert.Equal(t, models.StatusProcessing, findOrder(t, mem, "tx-001").Status)
}

func TestReconciler_Apply_StalePending_Strict(t *testing.T) {
	mem := storagetest.NewMemory()
	putOrder(mem, "tx-001", models.StatusPendingPayment)
	rec := service.NewReconciler(newTestLogger(), mem, mem, strictOpts)

	_, err := rec.Apply(context.Background(), successEvent("tx-001"))
	assert.NoError(t, err)

	pending := successEvent("tx-001")
	pending.Code = "PAYMENT_PENDING"
	pending.Outcome = models.OutcomePending
	result, err := rec.Apply(context.Background(), pending)
	assert.NoError(t, err)
	assert.Equal(t, service.ResultStale, result)
	assert.Equal(t, models.StatusProcessing, findOrder(t, mem, "tx-001").Status, "Late pending must not regress the order")
}

func TestReconciler_Apply_StalePending_Legacy(t *testing.T) {
	mem := storagetest.NewMemory()
	putOrder(mem, "tx-001", models.StatusPendingPayment)
	rec := service.NewReconciler(newTestLogger(), mem, mem, service.ReconcilerOptions{})

	_, err := rec.Apply(context.Background(), successEvent("tx-001"))
	assert.NoError(t, err)

	pending := successEvent("tx-001")
	pending.Code = "PAYMENT_PENDING"
	pending.Outcome = models.OutcomePending
	result, err := rec.Apply(context.Background(), pending)
	assert.NoError(t, err)
	assert.Equal(t, service.ResultApplied, result)
	assert.Equal(t, models.StatusPendingPayment, findOrder(t, mem, "tx-001").Status, "Legacy mode overwrites unconditionally")
}

func TestReconciler_Apply_DeliveredIsTerminal(t *testing.T) {
	mem := storagetest.NewMemory()
	putOrder(mem, "tx-001", models.StatusDelivered)
	rec := service.NewReconciler(newTestLogger(), mem, mem, strictOpts)

	result, err := rec.Apply(context.Background(), successEvent("tx-001"))
	assert.NoError(t, err)
	assert.Equal(t, service.ResultStale, result)
	assert.Equal(t, models.StatusDelivered, findOrder(t, mem, "tx-001").Status)
	assert.Equal(t, 0, mem.UpdateCalls)
}

func TestReconciler_Apply_StoreErrors(t *testing.T) {
	mem := storagetest.NewMemory()
	putOrder(mem, "tx-001", models.StatusPendingPayment)
	rec := service.NewReconciler(newTestLogger(), mem, mem, strictOpts)

	mem.FindErrs = []error{errors.New("connection reset")}
	_, err := rec.Apply(context.Background(), successEvent("tx-001"))
	assert.ErrorIs(t, err, service.ErrStoreUnavailable)

	mem.UpdateErrs = []error{errors.New("connection reset")}
	_, err = rec.Apply(context.Background(), successEvent("tx-001"))
	assert.ErrorIs(t, err, service.ErrStoreUnavailable)
	assert.Equal(t, models.StatusPendingPayment, findOrder(t, mem, "tx-001").Status)
}

func TestReconciler_Ignore(t *testing.T) {
	mem := storagetest.NewMemory()
	rec := service.NewReconciler(newTestLogger(), mem, mem, strictOpts)

	result := rec.Ignore(context.Background(), models.PaymentEvent{
		Provider: models.ProviderRazorpay,
		EventID:  "evt_9",
		Code:     "refund.created",
	})
	assert.Equal(t, service.ResultIgnored, result)
	if events := mem.Events(); assert.Len(t, events, 1) {
		assert.Equal(t, "ignored", events[0].Result)
	}
}
