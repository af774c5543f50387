package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/linemk/shop-payments/internal/domain/models"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrOrderExists   = errors.New("order with this merchant transaction id already exists")
)

// код postgres для нарушения уникальности
const uniqueViolation = "23505"

// StatusUpdate описывает присваивание статуса при сверке.
// AllowedFrom ограничивает исходные статусы; nil - обновление без условия.
type StatusUpdate struct {
	Status      models.Status
	PaymentID   *string
	Provider    string
	ConfirmedAt *time.Time
	AllowedFrom []models.Status
}

// OrderStorage описывает методы для работы с заказами.
type OrderStorage interface {
	// Insert вставляет новый заказ; повтор merchant_transaction_id возвращает ErrOrderExists.
	Insert(ctx context.Context, order *models.Order) (*models.Order, error)
	// FindByTransactionID ищет заказ по ключу корреляции.
	FindByTransactionID(ctx context.Context, merchantTransactionID string) (*models.Order, error)
	// UpdateStatusByTransactionID применяет обновление по ключу и возвращает число затронутых строк.
	UpdateStatusByTransactionID(ctx context.Context, merchantTransactionID string, upd StatusUpdate) (int64, error)
}

// orderRepository - конкретная реализация OrderStorage.
type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт новый репозиторий заказов.
func NewOrderRepository(db *sql.DB) OrderStorage {
	return &orderRepository{db: db}
}

func (r *orderRepository) Insert(ctx context.Context, order *models.Order) (*models.Order, error) {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal items: %w", err)
	}

	query := `INSERT INTO orders (merchant_transaction_id, user_id, items, status, shipping_address, shipping_method,
	          shipping_cost, subtotal, total_amount, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10) RETURNING id`
	var id int64
	err = r.db.QueryRowContext(ctx, query,
		order.MerchantTransactionID, order.UserID, string(items), string(order.Status),
		order.ShippingAddress, order.ShippingMethod,
		order.ShippingCost, order.Subtotal, order.TotalAmount, order.CreatedAt,
	).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, ErrOrderExists
		}
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}

	order.ID = id
	order.UpdatedAt = order.CreatedAt
	return order, nil
}

func (r *orderRepository) FindByTransactionID(ctx context.Context, merchantTransactionID string) (*models.Order, error) {
	query := `SELECT id, merchant_transaction_id, user_id, items, status, shipping_address, shipping_method,
	          shipping_cost, subtotal, total_amount, payment_id, payment_provider, created_at, payment_confirmed_at, updated_at
	          FROM orders WHERE merchant_transaction_id = $1`

	var (
		order       models.Order
		items       []byte
		status      string
		paymentID   sql.NullString
		provider    sql.NullString
		confirmedAt sql.NullTime
	)
	row := r.db.QueryRowContext(ctx, query, merchantTransactionID)
	if err := row.Scan(&order.ID, &order.MerchantTransactionID, &order.UserID, &items, &status,
		&order.ShippingAddress, &order.ShippingMethod, &order.ShippingCost, &order.Subtotal, &order.TotalAmount,
		&paymentID, &provider, &order.CreatedAt, &confirmedAt, &order.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order: %w", err)
	}

	if err := json.Unmarshal(items, &order.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal items: %w", err)
	}
	st, err := models.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("failed to find order: %w", err)
	}
	order.Status = st
	if paymentID.Valid {
		order.PaymentID = &paymentID.String
	}
	if provider.Valid {
		order.PaymentProvider = &provider.String
	}
	if confirmedAt.Valid {
		order.PaymentConfirmedAt = &confirmedAt.Time
	}
	return &order, nil
}

// UpdateStatusByTransactionID - ключевое обновление без чтения-изменения-записи: только присваивания,
// поэтому повторная доставка одного события даёт то же состояние.
// payment_id перезаписывается только если он пуст или пришёл от того же провайдера.
func (r *orderRepository) UpdateStatusByTransactionID(ctx context.Context, merchantTransactionID string, upd StatusUpdate) (int64, error) {
	query := `UPDATE orders SET
	          status = $1,
	          payment_id = CASE WHEN $2::text IS NOT NULL AND (payment_id IS NULL OR payment_provider = $3) THEN $2 ELSE payment_id END,
	          payment_provider = CASE WHEN $2::text IS NOT NULL AND (payment_id IS NULL OR payment_provider = $3) THEN $3 ELSE payment_provider END,
	          payment_confirmed_at = COALESCE(payment_confirmed_at, $4),
	          updated_at = NOW()
	          WHERE merchant_transaction_id = $5 AND ($6::text[] IS NULL OR status = ANY($6))`

	res, err := r.db.ExecContext(ctx, query,
		string(upd.Status), upd.PaymentID, upd.Provider, upd.ConfirmedAt, merchantTransactionID, statusArray(upd.AllowedFrom),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update order status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected, nil
}

func statusArray(statuses []models.Status) pq.StringArray {
	if statuses == nil {
		return nil
	}
	arr := make(pq.StringArray, 0, len(statuses))
	for _, st := range statuses {
		arr = append(arr, string(st))
	}
	return arr
}
