package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/linemk/shop-payments/internal/domain/models"
	"github.com/linemk/shop-payments/internal/storage"
	"github.com/shopspring/decimal"
)

// CreateOrderInput - кандидат в заказ от внешнего checkout
type CreateOrderInput struct {
	UserID                string          `json:"user_id" validate:"required"`
	Items                 []models.Item   `json:"items" validate:"required,min=1,dive"`
	ShippingAddress       string          `json:"shipping_address"`
	ShippingMethod        string          `json:"shipping_method"`
	ShippingCost          decimal.Decimal `json:"shipping_cost"`
	Subtotal              decimal.Decimal `json:"subtotal"`
	TotalAmount           decimal.Decimal `json:"total_amount"`
	MerchantTransactionID string          `json:"merchant_transaction_id" validate:"required,max=64"`
	Status                string          `json:"status,omitempty"`
}

// RetryPolicy - ограниченный повтор вставки при временной недоступности хранилища
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
}

// DefaultRetryPolicy: 3 попытки, паузы 1s и 2s
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, BaseDelay: time.Second}

type OrderService interface {
	CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error)
	GetOrder(ctx context.Context, merchantTransactionID string) (*models.Order, error)
}

type orderService struct {
	log    *slog.Logger
	orders storage.OrderStorage
	retry  RetryPolicy
	now    func() time.Time
}

func NewOrderService(log *slog.Logger, orders storage.OrderStorage, retry RetryPolicy) OrderService {
	if retry.Attempts <= 0 {
		retry.Attempts = DefaultRetryPolicy.Attempts
	}
	return &orderService{
		log:    log,
		orders: orders,
		retry:  retry,
		now:    time.Now,
	}
}

var validate = newValidator()

// newValidator возвращает валидатор, который называет поля по json-тегам
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// validationFields превращает ошибки валидатора в список полей вида items[0].quantity
func validationFields(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		ns := fe.Namespace()
		if i := strings.IndexByte(ns, '.'); i >= 0 {
			ns = ns[i+1:]
		}
		fields = append(fields, ns)
	}
	return fields
}

func (in CreateOrderInput) validate() error {
	var fields []string
	if err := validate.Struct(in); err != nil {
		fields = validationFields(err)
		if fields == nil {
			return newValidationError(err.Error())
		}
	}

	money := []struct {
		name  string
		value decimal.Decimal
	}{
		{"shipping_cost", in.ShippingCost},
		{"subtotal", in.Subtotal},
		{"total_amount", in.TotalAmount},
	}
	for _, m := range money {
		if _, ok := models.ToMinorUnits(m.value); m.value.IsNegative() || !ok {
			fields = append(fields, m.name)
		}
	}

	// подтверждённые статусы выставляет только сверка с провайдером
	if in.Status != "" && in.Status != string(models.StatusPendingPayment) {
		fields = append(fields, "status")
	}

	if len(fields) > 0 {
		return newValidationError("invalid or missing fields", fields...)
	}
	return nil
}

// CreateOrder проверяет ввод и сохраняет заказ в статусе Pending Payment.
// Вставка повторяется с экспоненциальной паузой; дубликат ключа не повторяется.
func (s *orderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	const op = "service.OrderService.CreateOrder"
	logger := s.log.With(
		slog.String("op", op),
		slog.String("merchant_transaction_id", in.MerchantTransactionID),
		slog.String("user_id", in.UserID),
	)

	if err := in.validate(); err != nil {
		logger.Warn("invalid order", slog.Any("error", err))
		return nil, err
	}

	order := &models.Order{
		MerchantTransactionID: in.MerchantTransactionID,
		UserID:                in.UserID,
		Items:                 in.Items,
		Status:                models.StatusPendingPayment,
		ShippingAddress:       in.ShippingAddress,
		ShippingMethod:        in.ShippingMethod,
		ShippingCost:          in.ShippingCost,
		Subtotal:              in.Subtotal,
		TotalAmount:           in.TotalAmount,
		CreatedAt:             s.now().UTC(),
	}

	var lastErr error
	for attempt := 0; attempt < s.retry.Attempts; attempt++ {
		if attempt > 0 {
			// 1s, 2s, 4s ...
			delay := s.retry.BaseDelay << (attempt - 1)
			logger.Warn("retrying order insert",
				slog.Int("attempt", attempt+1),
				slog.Duration("delay", delay),
				slog.Any("error", lastErr),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, ctx.Err())
			}
		}

		created, err := s.orders.Insert(ctx, order)
		if err == nil {
			logger.Info("order created", slog.Int64("id", created.ID), slog.Int("attempts", attempt+1))
			return created, nil
		}
		if errors.Is(err, storage.ErrOrderExists) {
			// предыдущая попытка могла записать строку, но не вернуть ответ
			if attempt > 0 {
				if existing, ok := s.sameOrder(ctx, order); ok {
					logger.Info("order was stored by an earlier attempt", slog.Int64("id", existing.ID))
					return existing, nil
				}
			}
			logger.Warn("duplicate merchant transaction id")
			return nil, fmt.Errorf("%s: %w", op, ErrDuplicateOrder)
		}
		lastErr = err
	}

	logger.Error("failed to create order", slog.Int("attempts", s.retry.Attempts), slog.Any("error", lastErr))
	return nil, fmt.Errorf("%s: %w after %d attempts: %w", op, ErrStoreUnavailable, s.retry.Attempts, lastErr)
}

// sameOrder ищет уже сохранённый заказ с тем же ключом, владельцем и суммой
func (s *orderService) sameOrder(ctx context.Context, order *models.Order) (*models.Order, bool) {
	existing, err := s.orders.FindByTransactionID(ctx, order.MerchantTransactionID)
	if err != nil {
		return nil, false
	}
	if existing.UserID != order.UserID || !existing.TotalAmount.Equal(order.TotalAmount) {
		return nil, false
	}
	return existing, true
}

// GetOrder возвращает текущее состояние заказа
func (s *orderService) GetOrder(ctx context.Context, merchantTransactionID string) (*models.Order, error) {
	const op = "service.OrderService.GetOrder"

	order, err := s.orders.FindByTransactionID(ctx, merchantTransactionID)
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrOrderNotFound)
		}
		s.log.Error("failed to get order", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
	}
	return order, nil
}
