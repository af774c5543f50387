package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item - снимок позиции заказа на момент оформления (цена и название копируются, а не джойнятся)
type Item struct {
	ProductReference string          `json:"product_reference" validate:"required"`
	Quantity         int             `json:"quantity" validate:"required,gt=0"`
	Name             string          `json:"name"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
}

// Order представляет заказ покупателя
type Order struct {
	ID                    int64           `json:"id"`
	MerchantTransactionID string          `json:"merchant_transaction_id"` // ключ корреляции с провайдерами
	UserID                string          `json:"user_id"`
	Items                 []Item          `json:"items"`
	Status                Status          `json:"status"`
	ShippingAddress       string          `json:"shipping_address"`
	ShippingMethod        string          `json:"shipping_method"`
	ShippingCost          decimal.Decimal `json:"shipping_cost"`
	Subtotal              decimal.Decimal `json:"subtotal"`
	TotalAmount           decimal.Decimal `json:"total_amount"`
	PaymentID             *string         `json:"payment_id,omitempty"`
	PaymentProvider       *string         `json:"payment_provider,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	PaymentConfirmedAt    *time.Time      `json:"payment_confirmed_at,omitempty"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// TotalMinorUnits возвращает итоговую сумму в минимальных единицах валюты (пайсы, копейки).
// false, если сумма не делится на минимальную единицу без остатка.
func (o *Order) TotalMinorUnits() (int64, bool) {
	return ToMinorUnits(o.TotalAmount)
}

// ToMinorUnits переводит сумму в минимальные единицы валюты
func ToMinorUnits(amount decimal.Decimal) (int64, bool) {
	minor := amount.Shift(2)
	if !minor.IsInteger() {
		return 0, false
	}
	return minor.IntPart(), true
}
