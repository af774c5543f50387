package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/linemk/shop-payments/internal/auth/jwtmiddleware"
	"github.com/linemk/shop-payments/internal/service"
)

// CreateOrderHandler обрабатывает запрос POST /orders
func CreateOrderHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreateOrderHandler"
		logger := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req service.CreateOrderInput
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			writeError(w, r, &service.ValidationError{Reason: "invalid request body"})
			return
		}

		// при включённом JWT владелец заказа берётся из токена
		if sub, ok := jwtmiddleware.FromContext(r.Context()); ok {
			switch req.UserID {
			case "":
				req.UserID = sub
			case sub:
			default:
				logger.Warn("user_id does not match token subject")
				writeError(w, r, &service.ValidationError{Reason: "user_id does not match token", Fields: []string{"user_id"}})
				return
			}
		}

		order, err := orderService.CreateOrder(r.Context(), req)
		if err != nil {
			logger.Error("failed to create order", slog.Any("error", err))
			writeError(w, r, err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, order)
	}
}

// GetOrderHandler обрабатывает запрос GET /orders/{merchant_transaction_id}
func GetOrderHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetOrderHandler"
		logger := log.With(slog.String("op", op))

		txID := chi.URLParam(r, "merchant_transaction_id")
		if txID == "" {
			writeError(w, r, &service.ValidationError{Reason: "missing path parameter", Fields: []string{"merchant_transaction_id"}})
			return
		}

		order, err := orderService.GetOrder(r.Context(), txID)
		if err != nil {
			logger.Warn("failed to get order", slog.String("merchant_transaction_id", txID), slog.Any("error", err))
			writeError(w, r, err)
			return
		}

		// без JWT заказ доступен любому вызывающему, с JWT только владельцу
		if sub, ok := jwtmiddleware.FromContext(r.Context()); ok && sub != order.UserID {
			writeError(w, r, service.ErrOrderNotFound)
			return
		}

		render.JSON(w, r, order)
	}
}
