package razorpay_test

import (
	"testing"

	"github.com/linemk/shop-payments/internal/domain/models"
	"github.com/linemk/shop-payments/internal/lib/signature"
	"github.com/linemk/shop-payments/internal/payments/razorpay"
	"github.com/stretchr/testify/assert"
)

const secret = "whsec_test"

const capturedBody = `{
  "entity": "event",
  "account_id": "acc_BFQ7uQEaa7j2z7",
  "event": "payment.captured",
  "contains": ["payment"],
  "payload": {
    "payment": {
      "entity": {
        "id": "pay_DESlfW9H8K9uqM",
        "entity": "payment",
        "amount": 100000,
        "currency": "INR",
        "status": "captured",
        "order_id": "order_DESlLckIVRkHWj",
        "method": "upi",
        "notes": {"merchant_transaction_id": "tx-001"}
      }
    }
  },
  "created_at": 1567674606
}`

func TestVerifyAndParse_Captured(t *testing.T) {
	body := []byte(capturedBody)
	v := razorpay.NewVerifier(secret)

	ev, err := v.VerifyAndParse(body, signature.ComputeHMAC(body, secret), "evt_1")
	assert.NoError(t, err)

	pe := ev.PaymentEvent()
	assert.Equal(t, models.ProviderRazorpay, pe.Provider)
	assert.Equal(t, "evt_1", pe.EventID)
	assert.Equal(t, "tx-001", pe.MerchantTransactionID)
	assert.Equal(t, models.OutcomeSuccess, pe.Outcome)
	assert.Equal(t, "pay_DESlfW9H8K9uqM", pe.PaymentID)
	assert.Equal(t, int64(100000), pe.Amount)
	assert.Equal(t, int64(1567674606), pe.OccurredAt.Unix())
	assert.Equal(t, body, pe.Payload)
}

func TestVerifyAndParse_EventIDFallback(t *testing.T) {
	body := []byte(capturedBody)
	v := razorpay.NewVerifier(secret)

	ev, err := v.VerifyAndParse(body, signature.ComputeHMAC(body, secret), "")
	assert.NoError(t, err)
	assert.Equal(t, "pay_DESlfW9H8K9uqM:payment.captured", ev.PaymentEvent().EventID)
}

func TestVerifyAndParse_InvalidSignature(t *testing.T) {
	body := []byte(capturedBody)
	v := razorpay.NewVerifier(secret)

	_, err := v.VerifyAndParse(body, signature.ComputeHMAC(body, "other"), "evt_1")
	assert.ErrorIs(t, err, signature.ErrInvalidSignature)

	_, err = v.VerifyAndParse(body, "", "evt_1")
	assert.ErrorIs(t, err, signature.ErrInvalidSignature)

	_, err = razorpay.NewVerifier("").VerifyAndParse(body, "sig", "evt_1")
	assert.ErrorIs(t, err, signature.ErrMissingSecret)
}

func TestVerifyAndParse_Outcomes(t *testing.T) {
	cases := map[string]models.Outcome{
		razorpay.EventPaymentCaptured:   models.OutcomeSuccess,
		razorpay.EventPaymentAuthorized: models.OutcomePending,
		razorpay.EventPaymentFailed:     models.OutcomeFailure,
	}
	v := razorpay.NewVerifier(secret)
	for event, want := range cases {
		body := []byte(`{"event":"` + event + `","payload":{"payment":{"entity":{"id":"pay_1","amount":500,"notes":{"merchant_transaction_id":"tx-9"}}}}}`)
		ev, err := v.VerifyAndParse(body, signature.ComputeHMAC(body, secret), "")
		assert.NoError(t, err, event)
		assert.Equal(t, want, ev.Outcome(), event)
	}
}

func TestVerifyAndParse_UnsupportedEvent(t *testing.T) {
	body := []byte(`{"event":"refund.processed","payload":{}}`)
	v := razorpay.NewVerifier(secret)

	_, err := v.VerifyAndParse(body, signature.ComputeHMAC(body, secret), "")
	assert.ErrorIs(t, err, razorpay.ErrUnsupportedEvent)
}

func TestVerifyAndParse_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":        `{"event":`,
		"no event":        `{"payload":{}}`,
		"no payment":      `{"event":"payment.captured","payload":{}}`,
		"no payment id":   `{"event":"payment.captured","payload":{"payment":{"entity":{"amount":1,"notes":{"merchant_transaction_id":"tx"}}}}}`,
		"empty notes":     `{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","notes":[]}}}}`,
		"no tx id in map": `{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_1","notes":{"other":"x"}}}}}`,
	}
	v := razorpay.NewVerifier(secret)
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			body := []byte(raw)
			_, err := v.VerifyAndParse(body, signature.ComputeHMAC(body, secret), "")
			assert.ErrorIs(t, err, razorpay.ErrMalformedPayload)
		})
	}
}
