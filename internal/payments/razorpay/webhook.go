// Package razorpay содержит разбор вебхуков с HMAC-подписью и клиент API заказов провайдера.
package razorpay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/linemk/shop-payments/internal/domain/models"
	"github.com/linemk/shop-payments/internal/lib/signature"
)

// Заголовки вебхука
const (
	HeaderSignature = "X-Razorpay-Signature"
	HeaderEventID   = "X-Razorpay-Event-Id"
)

// Поддерживаемые типы событий
const (
	EventPaymentCaptured   = "payment.captured"
	EventPaymentFailed     = "payment.failed"
	EventPaymentAuthorized = "payment.authorized"
)

// NoteMerchantTransactionID - ключ в notes, через который событие связывается с заказом
const NoteMerchantTransactionID = "merchant_transaction_id"

var (
	// ErrMalformedPayload - подпись верна, но тело не соответствует ожидаемой форме
	ErrMalformedPayload = errors.New("malformed razorpay payload")
	// ErrUnsupportedEvent - событие не относится к оплате заказа, его подтверждаем и пропускаем
	ErrUnsupportedEvent = errors.New("unsupported razorpay event")
)

// Notes - произвольные метаданные. Пустые notes провайдер присылает как [], а не {}.
type Notes map[string]string

func (n *Notes) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("[]")) || bytes.Equal(trimmed, []byte("null")) {
		*n = Notes{}
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return err
	}
	*n = m
	return nil
}

// Payment - сущность платежа внутри события
type Payment struct {
	ID       string `json:"id" validate:"required"`
	Amount   int64  `json:"amount" validate:"gte=0"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	OrderID  string `json:"order_id"`
	Method   string `json:"method"`
	Notes    Notes  `json:"notes"`
}

// Event - вебхук провайдера
type Event struct {
	Entity    string   `json:"entity"`
	AccountID string   `json:"account_id"`
	Event     string   `json:"event" validate:"required"`
	Contains  []string `json:"contains"`
	Payload   struct {
		Payment *struct {
			Entity *Payment `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
	CreatedAt int64 `json:"created_at"`

	id  string
	raw []byte
}

var validate = validator.New()

// Verifier проверяет подпись и разбирает тело вебхука
type Verifier struct {
	secret string
}

func NewVerifier(webhookSecret string) *Verifier {
	return &Verifier{secret: webhookSecret}
}

// Configured сообщает, задан ли секрет вебхука на сервере
func (v *Verifier) Configured() bool {
	return v.secret != ""
}

// VerifyAndParse проверяет HMAC над сырым телом и только затем разбирает JSON
func (v *Verifier) VerifyAndParse(body []byte, sig, eventID string) (*Event, error) {
	if err := signature.VerifyHMAC(body, sig, v.secret); err != nil {
		return nil, err
	}
	return parse(body, eventID)
}

func parse(body []byte, eventID string) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if err := validate.Struct(ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	switch ev.Event {
	case EventPaymentCaptured, EventPaymentFailed, EventPaymentAuthorized:
	default:
		return &ev, fmt.Errorf("%w: %s", ErrUnsupportedEvent, ev.Event)
	}

	p := ev.payment()
	if p == nil {
		return nil, fmt.Errorf("%w: payload.payment.entity is missing", ErrMalformedPayload)
	}
	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if p.Notes[NoteMerchantTransactionID] == "" {
		return nil, fmt.Errorf("%w: notes.%s is missing", ErrMalformedPayload, NoteMerchantTransactionID)
	}

	ev.id = eventID
	ev.raw = body
	return &ev, nil
}

func (e *Event) payment() *Payment {
	if e.Payload.Payment == nil {
		return nil
	}
	return e.Payload.Payment.Entity
}

// Outcome отображает тип события на исход платежа
func (e *Event) Outcome() models.Outcome {
	switch e.Event {
	case EventPaymentCaptured:
		return models.OutcomeSuccess
	case EventPaymentAuthorized:
		return models.OutcomePending
	default:
		return models.OutcomeFailure
	}
}

// PaymentEvent приводит вебхук к общему виду для сверки
func (e *Event) PaymentEvent() models.PaymentEvent {
	p := e.payment()
	id := e.id
	if id == "" {
		id = p.ID + ":" + e.Event
	}
	var occurred time.Time
	if e.CreatedAt > 0 {
		occurred = time.Unix(e.CreatedAt, 0)
	}
	return models.PaymentEvent{
		Provider:              models.ProviderRazorpay,
		EventID:               id,
		MerchantTransactionID: p.Notes[NoteMerchantTransactionID],
		Code:                  e.Event,
		Outcome:               e.Outcome(),
		PaymentID:             p.ID,
		Amount:                p.Amount,
		OccurredAt:            occurred,
		Payload:               e.raw,
	}
}
