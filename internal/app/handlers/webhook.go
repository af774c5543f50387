package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/linemk/shop-payments/internal/domain/models"
	"github.com/linemk/shop-payments/internal/lib/signature"
	"github.com/linemk/shop-payments/internal/payments/razorpay"
	"github.com/linemk/shop-payments/internal/service"
)

// RazorpayWebhookHandler обрабатывает POST /gateway/webhook.
// Подпись считается по сырому телу, поэтому тело читается целиком до разбора.
func RazorpayWebhookHandler(log *slog.Logger, verifier *razorpay.Verifier, reconciler service.Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.RazorpayWebhookHandler"
		eventID := r.Header.Get(razorpay.HeaderEventID)
		logger := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("event_id", eventID),
		)

		if !verifier.Configured() {
			logger.Error("webhook secret is not configured")
			writeError(w, r, service.ErrGatewayMisconfigured)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCallbackBody))
		if err != nil || len(body) == 0 {
			logger.Warn("empty or unreadable webhook body", slog.Any("error", err))
			writeError(w, r, &service.ValidationError{Reason: "request body is required"})
			return
		}

		ev, err := verifier.VerifyAndParse(body, r.Header.Get(razorpay.HeaderSignature), eventID)
		switch {
		case errors.Is(err, signature.ErrInvalidSignature):
			logger.Warn("webhook signature rejected", slog.Any("error", err))
			writeError(w, r, err)
			return
		case errors.Is(err, razorpay.ErrUnsupportedEvent):
			result := reconciler.Ignore(r.Context(), models.PaymentEvent{
				Provider: models.ProviderRazorpay,
				EventID:  eventID,
				Code:     ev.Event,
				Payload:  body,
			})
			ack(w, r, string(result))
			return
		case errors.Is(err, razorpay.ErrMalformedPayload):
			logger.Error("verified webhook could not be parsed", slog.Any("error", err))
			ack(w, r, resultMalformed)
			return
		case err != nil:
			logger.Error("failed to verify webhook", slog.Any("error", err))
			writeError(w, r, err)
			return
		}

		result, err := reconciler.Apply(r.Context(), ev.PaymentEvent())
		if err != nil {
			logger.Error("failed to reconcile webhook", slog.Any("error", err))
			ack(w, r, resultError)
			return
		}
		ack(w, r, string(result))
	}
}
