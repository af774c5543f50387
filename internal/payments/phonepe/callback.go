// Package phonepe разбирает уведомления провайдера с контрольной суммой X-VERIFY.
package phonepe

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/linemk/shop-payments/internal/domain/models"
	"github.com/linemk/shop-payments/internal/lib/signature"
)

// Коды результата платежа
const (
	CodePaymentSuccess = "PAYMENT_SUCCESS"
	CodePaymentPending = "PAYMENT_PENDING"
)

// HeaderVerify - заголовок с контрольной суммой
const HeaderVerify = "X-VERIFY"

// ErrMalformedPayload - подпись верна, но содержимое не соответствует ожидаемой форме
var ErrMalformedPayload = errors.New("malformed phonepe payload")

// Callback - декодированное уведомление о платеже
type Callback struct {
	Success bool         `json:"success"`
	Code    string       `json:"code" validate:"required"`
	Message string       `json:"message"`
	Data    CallbackData `json:"data"`

	raw []byte
}

type CallbackData struct {
	MerchantID            string `json:"merchantId"`
	MerchantTransactionID string `json:"merchantTransactionId" validate:"required"`
	TransactionID         string `json:"transactionId"`
	Amount                int64  `json:"amount" validate:"gte=0"`
	State                 string `json:"state"`
	ResponseCode          string `json:"responseCode"`
}

var validate = validator.New()

// Verifier проверяет и разбирает уведомления
type Verifier struct {
	saltKey   string
	saltIndex string
}

func NewVerifier(saltKey, saltIndex string) *Verifier {
	return &Verifier{saltKey: saltKey, saltIndex: saltIndex}
}

// Configured сообщает, задан ли ключ соли на сервере
func (v *Verifier) Configured() bool {
	return v.saltKey != ""
}

// VerifyAndParse сначала проверяет контрольную сумму и только после этого декодирует base64 → JSON
func (v *Verifier) VerifyAndParse(response, xVerify string) (*Callback, error) {
	if err := signature.VerifyChecksum(response, xVerify, v.saltKey, v.saltIndex); err != nil {
		return nil, err
	}
	return parse(response)
}

func parse(response string) (*Callback, error) {
	decoded, err := base64.StdEncoding.DecodeString(response)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrMalformedPayload, err)
	}

	var cb Callback
	if err := json.Unmarshal(decoded, &cb); err != nil {
		return nil, fmt.Errorf("%w: json: %v", ErrMalformedPayload, err)
	}
	if err := validate.Struct(cb); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	cb.raw = decoded
	return &cb, nil
}

// Outcome отображает код провайдера на исход платежа
func (c *Callback) Outcome() models.Outcome {
	switch c.Code {
	case CodePaymentSuccess:
		return models.OutcomeSuccess
	case CodePaymentPending:
		return models.OutcomePending
	default:
		return models.OutcomeFailure
	}
}

// PaymentEvent приводит уведомление к общему виду для сверки
func (c *Callback) PaymentEvent() models.PaymentEvent {
	ref := c.Data.TransactionID
	if ref == "" {
		ref = c.Data.MerchantTransactionID
	}
	return models.PaymentEvent{
		Provider:              models.ProviderPhonePe,
		EventID:               ref + ":" + c.Code,
		MerchantTransactionID: c.Data.MerchantTransactionID,
		Code:                  c.Code,
		Outcome:               c.Outcome(),
		PaymentID:             c.Data.TransactionID,
		Amount:                c.Data.Amount,
		Payload:               c.raw,
	}
}

// Encode собирает пару (response, X-VERIFY) - нужна для тестов и утилиты mockcallback
func Encode(cb Callback, saltKey, saltIndex string) (string, string, error) {
	body, err := json.Marshal(cb)
	if err != nil {
		return "", "", err
	}
	response := base64.StdEncoding.EncodeToString(body)
	return response, signature.ComputeChecksum(response, saltKey, saltIndex), nil
}
