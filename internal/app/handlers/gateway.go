package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/linemk/shop-payments/internal/service"
)

// GatewayOrderRequest - запрос на создание заказа у провайдера, сумма в минимальных единицах
type GatewayOrderRequest struct {
	Amount                int64  `json:"amount"`
	MerchantTransactionID string `json:"merchant_transaction_id"`
}

// GatewayOrderHandler обрабатывает запрос POST /gateway/order и отдаёт ответ провайдера как есть
func GatewayOrderHandler(log *slog.Logger, gatewayService service.GatewayService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GatewayOrderHandler"
		logger := log.With(slog.String("op", op))

		var req GatewayOrderRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			writeError(w, r, &service.ValidationError{Reason: "invalid request body"})
			return
		}

		resp, err := gatewayService.InitiateOrder(r.Context(), req.Amount, req.MerchantTransactionID)
		if err != nil {
			logger.Error("failed to initiate gateway order", slog.Any("error", err))
			writeError(w, r, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(resp); err != nil {
			logger.Error("failed to write response", slog.Any("error", err))
		}
	}
}
