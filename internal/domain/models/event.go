package models

import "time"

// Провайдеры платежей
const (
	ProviderPhonePe  = "phonepe"
	ProviderRazorpay = "razorpay"
)

// PaymentEvent - проверенное и разобранное уведомление провайдера,
// общее представление для сверки заказа
type PaymentEvent struct {
	Provider              string
	EventID               string
	MerchantTransactionID string
	Code                  string // исходный код/тип события провайдера
	Outcome               Outcome
	PaymentID             string    // ссылка на платёж у провайдера, может быть пустой
	Amount                int64     // в минимальных единицах валюты, 0 если неизвестно
	OccurredAt            time.Time // время события у провайдера, нулевое если неизвестно
	Payload               []byte
}

// PaymentEventRecord - запись журнала входящих событий
type PaymentEventRecord struct {
	ID                    string
	Provider              string
	EventID               string
	MerchantTransactionID string
	Code                  string
	Result                string
	Payload               []byte
	OccurredAt            time.Time
	ReceivedAt            time.Time
}
