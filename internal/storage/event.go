package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/linemk/shop-payments/internal/domain/models"
)

// PaymentEventStorage - журнал проверенных уведомлений провайдеров
type PaymentEventStorage interface {
	Record(ctx context.Context, rec models.PaymentEventRecord) error
}

type paymentEventRepository struct {
	db *sql.DB
}

func NewPaymentEventRepository(db *sql.DB) PaymentEventStorage {
	return &paymentEventRepository{db: db}
}

func (r *paymentEventRepository) Record(ctx context.Context, rec models.PaymentEventRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	var payload *string
	if len(rec.Payload) > 0 {
		p := string(rec.Payload)
		payload = &p
	}
	var occurredAt *time.Time
	if !rec.OccurredAt.IsZero() {
		occurredAt = &rec.OccurredAt
	}

	query := `INSERT INTO payment_events (id, provider, event_id, merchant_transaction_id, code, result, payload, occurred_at, received_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.Provider, rec.EventID, rec.MerchantTransactionID, rec.Code, rec.Result, payload, occurredAt, rec.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record payment event: %w", err)
	}
	return nil
}
