package main

import (
	"io"
	"testing"

	"github.com/linemk/shop-payments/internal/lib/signature"
	"github.com/linemk/shop-payments/internal/payments/phonepe"
	"github.com/linemk/shop-payments/internal/payments/razorpay"
	"github.com/stretchr/testify/assert"
)

func TestBuildRequest_PhonePe(t *testing.T) {
	opts := options{
		baseURL:   "http://localhost:8080",
		provider:  "phonepe",
		txID:      "tx-001",
		amount:    100000,
		code:      phonepe.CodePaymentSuccess,
		paymentID: "T1",
		saltKey:   "salt",
		saltIndex: "1",
	}
	req, err := buildRequest(opts)
	assert.NoError(t, err)
	assert.Equal(t, "/gateway/callback", req.URL.Path)

	assert.NoError(t, req.ParseForm())
	cb, err := phonepe.NewVerifier("salt", "1").VerifyAndParse(req.PostForm.Get("response"), req.Header.Get(phonepe.HeaderVerify))
	assert.NoError(t, err, "Generated callback must pass verification")
	assert.Equal(t, "tx-001", cb.Data.MerchantTransactionID)
	assert.Equal(t, int64(100000), cb.Data.Amount)

	opts.tamper = true
	req, err = buildRequest(opts)
	assert.NoError(t, err)
	assert.NoError(t, req.ParseForm())
	_, err = phonepe.NewVerifier("salt", "1").VerifyAndParse(req.PostForm.Get("response"), req.Header.Get(phonepe.HeaderVerify))
	assert.ErrorIs(t, err, signature.ErrInvalidSignature)
}

func TestBuildRequest_Razorpay(t *testing.T) {
	req, err := buildRequest(options{
		baseURL:   "http://localhost:8080",
		provider:  "razorpay",
		txID:      "tx-002",
		amount:    5000,
		event:     razorpay.EventPaymentFailed,
		paymentID: "pay_1",
		secret:    "whsec",
	})
	assert.NoError(t, err)

	body, err := io.ReadAll(req.Body)
	assert.NoError(t, err)
	ev, err := razorpay.NewVerifier("whsec").VerifyAndParse(body, req.Header.Get(razorpay.HeaderSignature), req.Header.Get(razorpay.HeaderEventID))
	assert.NoError(t, err)
	pe := ev.PaymentEvent()
	assert.Equal(t, "tx-002", pe.MerchantTransactionID)
	assert.Equal(t, "pay_1", pe.PaymentID)
}

func TestBuildRequest_Errors(t *testing.T) {
	_, err := buildRequest(options{provider: "phonepe"})
	assert.Error(t, err, "Salt key is required")

	_, err = buildRequest(options{provider: "razorpay"})
	assert.Error(t, err, "Webhook secret is required")

	_, err = buildRequest(options{provider: "stripe"})
	assert.Error(t, err)
}
