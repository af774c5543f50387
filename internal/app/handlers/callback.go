package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/linemk/shop-payments/internal/lib/signature"
	"github.com/linemk/shop-payments/internal/payments/phonepe"
	"github.com/linemk/shop-payments/internal/service"
)

const maxCallbackBody = 1 << 20

// результаты, которые появляются до сверки
const (
	resultMalformed = "malformed"
	resultError     = "error"
)

// AckResponse - подтверждение получения уведомления провайдера
type AckResponse struct {
	Acknowledged bool   `json:"acknowledged"`
	Result       string `json:"result"`
}

func ack(w http.ResponseWriter, r *http.Request, result string) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, AckResponse{Acknowledged: true, Result: result})
}

// PhonePeCallbackHandler обрабатывает POST /gateway/callback.
// После успешной проверки подписи ответ всегда 200, чтобы провайдер не повторял доставку бесконечно.
func PhonePeCallbackHandler(log *slog.Logger, verifier *phonepe.Verifier, reconciler service.Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.PhonePeCallbackHandler"
		logger := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if !verifier.Configured() {
			logger.Error("salt key is not configured")
			writeError(w, r, service.ErrGatewayMisconfigured)
			return
		}

		response, err := callbackResponse(w, r)
		if err != nil || response == "" {
			logger.Warn("callback without response field", slog.Any("error", err))
			writeError(w, r, &service.ValidationError{Reason: "response is required", Fields: []string{"response"}})
			return
		}

		cb, err := verifier.VerifyAndParse(response, r.Header.Get(phonepe.HeaderVerify))
		switch {
		case errors.Is(err, signature.ErrInvalidSignature):
			logger.Warn("callback signature rejected", slog.Any("error", err))
			writeError(w, r, err)
			return
		case errors.Is(err, phonepe.ErrMalformedPayload):
			logger.Error("verified callback could not be parsed", slog.Any("error", err))
			ack(w, r, resultMalformed)
			return
		case err != nil:
			logger.Error("failed to verify callback", slog.Any("error", err))
			writeError(w, r, err)
			return
		}

		result, err := reconciler.Apply(r.Context(), cb.PaymentEvent())
		if err != nil {
			logger.Error("failed to reconcile callback",
				slog.String("merchant_transaction_id", cb.Data.MerchantTransactionID),
				slog.Any("error", err),
			)
			ack(w, r, resultError)
			return
		}
		ack(w, r, string(result))
	}
}

// callbackResponse достаёт поле response из формы или из JSON-тела
func callbackResponse(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCallbackBody)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var body struct {
			Response string `json:"response"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return body.Response, nil
	}

	if err := r.ParseForm(); err != nil {
		return "", err
	}
	return r.PostForm.Get("response"), nil
}
