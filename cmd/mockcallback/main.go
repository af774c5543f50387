// mockcallback отправляет подписанное уведомление провайдера на локальный сервер.
//
//	PHONEPE_SALT_KEY=... go run ./cmd/mockcallback -provider phonepe -tx tx-001 -amount 100000
//	RAZORPAY_WEBHOOK_SECRET=... go run ./cmd/mockcallback -provider razorpay -event payment.captured -tx tx-001
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/linemk/shop-payments/internal/lib/logger"
	"github.com/linemk/shop-payments/internal/lib/signature"
	"github.com/linemk/shop-payments/internal/payments/phonepe"
	"github.com/linemk/shop-payments/internal/payments/razorpay"
	"github.com/pkg/errors"
)

type options struct {
	baseURL   string
	provider  string
	txID      string
	amount    int64
	code      string
	event     string
	paymentID string
	saltKey   string
	saltIndex string
	secret    string
	tamper    bool
}

func main() {
	var opts options
	flag.StringVar(&opts.baseURL, "url", "http://localhost:8080", "server base url")
	flag.StringVar(&opts.provider, "provider", "phonepe", "phonepe | razorpay")
	flag.StringVar(&opts.txID, "tx", "", "merchant transaction id (random uuid if empty)")
	flag.Int64Var(&opts.amount, "amount", 100000, "amount in minor units")
	flag.StringVar(&opts.code, "code", phonepe.CodePaymentSuccess, "phonepe callback code")
	flag.StringVar(&opts.event, "event", razorpay.EventPaymentCaptured, "razorpay event type")
	flag.StringVar(&opts.paymentID, "payment-id", "", "provider payment id (random if empty)")
	flag.StringVar(&opts.saltIndex, "salt-index", "1", "phonepe salt index")
	flag.BoolVar(&opts.tamper, "tamper", false, "corrupt the signature")
	flag.Parse()

	opts.saltKey = os.Getenv("PHONEPE_SALT_KEY")
	opts.secret = os.Getenv("RAZORPAY_WEBHOOK_SECRET")
	if opts.txID == "" {
		opts.txID = uuid.NewString()
	}
	if opts.paymentID == "" {
		opts.paymentID = "pay_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
	}

	log := logger.SetupLogger(logger.EnvLocal)

	req, err := buildRequest(opts)
	if err != nil {
		log.Error("failed to build notification", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	status, body, err := send(ctx, req)
	if err != nil {
		log.Error("failed to send notification", slog.Any("error", err))
		os.Exit(1)
	}
	log.Info("notification delivered",
		slog.String("provider", opts.provider),
		slog.String("merchant_transaction_id", opts.txID),
		slog.Int("status", status),
		slog.String("body", strings.TrimSpace(string(body))),
	)
}

func buildRequest(opts options) (*http.Request, error) {
	switch opts.provider {
	case "phonepe":
		if opts.saltKey == "" {
			return nil, errors.New("PHONEPE_SALT_KEY is not set")
		}
		response, xVerify, err := phonepe.Encode(phonepe.Callback{
			Success: opts.code == phonepe.CodePaymentSuccess,
			Code:    opts.code,
			Message: "mock callback",
			Data: phonepe.CallbackData{
				MerchantID:            "MOCKMERCHANT",
				MerchantTransactionID: opts.txID,
				TransactionID:         opts.paymentID,
				Amount:                opts.amount,
				State:                 strings.TrimPrefix(opts.code, "PAYMENT_"),
			},
		}, opts.saltKey, opts.saltIndex)
		if err != nil {
			return nil, errors.Wrap(err, "encode callback")
		}
		if opts.tamper {
			xVerify = corrupt(xVerify)
		}
		form := url.Values{"response": {response}}
		req, err := http.NewRequest(http.MethodPost, opts.baseURL+"/gateway/callback", strings.NewReader(form.Encode()))
		if err != nil {
			return nil, errors.Wrap(err, "new request")
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set(phonepe.HeaderVerify, xVerify)
		return req, nil

	case "razorpay":
		if opts.secret == "" {
			return nil, errors.New("RAZORPAY_WEBHOOK_SECRET is not set")
		}
		body, err := json.Marshal(map[string]any{
			"entity":     "event",
			"event":      opts.event,
			"contains":   []string{"payment"},
			"created_at": time.Now().Unix(),
			"payload": map[string]any{
				"payment": map[string]any{
					"entity": map[string]any{
						"id":       opts.paymentID,
						"amount":   opts.amount,
						"currency": "INR",
						"status":   strings.TrimPrefix(opts.event, "payment."),
						"notes":    map[string]string{razorpay.NoteMerchantTransactionID: opts.txID},
					},
				},
			},
		})
		if err != nil {
			return nil, errors.Wrap(err, "marshal webhook")
		}
		sig := signature.ComputeHMAC(body, opts.secret)
		if opts.tamper {
			sig = corrupt(sig)
		}
		req, err := http.NewRequest(http.MethodPost, opts.baseURL+"/gateway/webhook", bytes.NewReader(body))
		if err != nil {
			return nil, errors.Wrap(err, "new request")
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(razorpay.HeaderSignature, sig)
		req.Header.Set(razorpay.HeaderEventID, "evt_"+uuid.NewString())
		return req, nil
	}
	return nil, fmt.Errorf("unknown provider %q", opts.provider)
}

func send(ctx context.Context, req *http.Request) (int, []byte, error) {
	resp, err := http.DefaultClient.Do(req.WithContext(ctx))
	if err != nil {
		return 0, nil, errors.Wrap(err, "post notification")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, errors.Wrap(err, "read response")
	}
	return resp.StatusCode, body, nil
}

// corrupt меняет первый символ подписи
func corrupt(sig string) string {
	if sig == "" {
		return "0"
	}
	b := []byte(sig)
	if b[0] == '0' {
		b[0] = '1'
	} else {
		b[0] = '0'
	}
	return string(b)
}
