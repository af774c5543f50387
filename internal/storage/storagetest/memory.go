// Package storagetest предоставляет хранилище в памяти с той же семантикой ключевых обновлений,
// что и postgres-репозиторий. Используется в тестах сервисов и роутера.
package storagetest

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/linemk/shop-payments/internal/domain/models"
	"github.com/linemk/shop-payments/internal/storage"
)

// Memory реализует storage.OrderStorage и storage.PaymentEventStorage
type Memory struct {
	mu     sync.Mutex
	orders map[string]*models.Order
	events []models.PaymentEventRecord
	nextID int64

	// ошибки, которые вернут очередные вызовы Insert / Find / Update (по одной на вызов)
	InsertErrs []error
	FindErrs   []error
	UpdateErrs []error

	InsertCalls int
	UpdateCalls int
}

var (
	_ storage.OrderStorage        = (*Memory)(nil)
	_ storage.PaymentEventStorage = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{orders: make(map[string]*models.Order)}
}

func pop(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func (m *Memory) Insert(ctx context.Context, order *models.Order) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.InsertCalls++
	if err := pop(&m.InsertErrs); err != nil {
		return nil, err
	}
	if _, ok := m.orders[order.MerchantTransactionID]; ok {
		return nil, storage.ErrOrderExists
	}
	m.nextID++
	stored := clone(order)
	stored.ID = m.nextID
	stored.UpdatedAt = stored.CreatedAt
	m.orders[order.MerchantTransactionID] = stored

	order.ID = stored.ID
	order.UpdatedAt = stored.UpdatedAt
	return order, nil
}

func (m *Memory) FindByTransactionID(ctx context.Context, merchantTransactionID string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := pop(&m.FindErrs); err != nil {
		return nil, err
	}
	order, ok := m.orders[merchantTransactionID]
	if !ok {
		return nil, storage.ErrOrderNotFound
	}
	return clone(order), nil
}

func (m *Memory) UpdateStatusByTransactionID(ctx context.Context, merchantTransactionID string, upd storage.StatusUpdate) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UpdateCalls++
	if err := pop(&m.UpdateErrs); err != nil {
		return 0, err
	}
	order, ok := m.orders[merchantTransactionID]
	if !ok {
		return 0, nil
	}
	if upd.AllowedFrom != nil && !slices.Contains(upd.AllowedFrom, order.Status) {
		return 0, nil
	}

	order.Status = upd.Status
	if upd.PaymentID != nil && (order.PaymentID == nil || (order.PaymentProvider != nil && *order.PaymentProvider == upd.Provider)) {
		id, provider := *upd.PaymentID, upd.Provider
		order.PaymentID = &id
		order.PaymentProvider = &provider
	}
	if order.PaymentConfirmedAt == nil && upd.ConfirmedAt != nil {
		at := *upd.ConfirmedAt
		order.PaymentConfirmedAt = &at
	}
	order.UpdatedAt = time.Now()
	return 1, nil
}

func (m *Memory) Record(ctx context.Context, rec models.PaymentEventRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, rec)
	return nil
}

// Orders возвращает число сохранённых заказов
func (m *Memory) Orders() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

// Put кладёт заказ напрямую, минуя сервис (подготовка состояния в тестах)
func (m *Memory) Put(order *models.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	stored := clone(order)
	stored.ID = m.nextID
	m.orders[order.MerchantTransactionID] = stored
}

// Events возвращает копию журнала событий
func (m *Memory) Events() []models.PaymentEventRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.events)
}

func clone(o *models.Order) *models.Order {
	c := *o
	c.Items = slices.Clone(o.Items)
	if o.PaymentID != nil {
		id := *o.PaymentID
		c.PaymentID = &id
	}
	if o.PaymentProvider != nil {
		p := *o.PaymentProvider
		c.PaymentProvider = &p
	}
	if o.PaymentConfirmedAt != nil {
		at := *o.PaymentConfirmedAt
		c.PaymentConfirmedAt = &at
	}
	return &c
}
