package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/linemk/shop-payments/internal/payments/razorpay"
)

// GatewayClient - создание заказа на стороне провайдера
type GatewayClient interface {
	CreateOrder(ctx context.Context, amount int64, merchantTransactionID string) (json.RawMessage, error)
}

type GatewayService interface {
	InitiateOrder(ctx context.Context, amount int64, merchantTransactionID string) (json.RawMessage, error)
}

type gatewayService struct {
	log    *slog.Logger
	client GatewayClient
}

func NewGatewayService(log *slog.Logger, client GatewayClient) GatewayService {
	return &gatewayService{
		log:    log,
		client: client,
	}
}

// InitiateOrder создаёт заказ у провайдера на amount в минимальных единицах валюты.
// merchantTransactionID уходит в notes и возвращается в вебхуке. Ответ провайдера возвращается как есть.
func (s *gatewayService) InitiateOrder(ctx context.Context, amount int64, merchantTransactionID string) (json.RawMessage, error) {
	const op = "service.GatewayService.InitiateOrder"
	logger := s.log.With(
		slog.String("op", op),
		slog.String("merchant_transaction_id", merchantTransactionID),
		slog.Int64("amount", amount),
	)

	var fields []string
	if amount <= 0 {
		fields = append(fields, "amount")
	}
	if merchantTransactionID == "" {
		fields = append(fields, "merchant_transaction_id")
	}
	if len(fields) > 0 {
		return nil, newValidationError("invalid or missing fields", fields...)
	}

	resp, err := s.client.CreateOrder(ctx, amount, merchantTransactionID)
	if err != nil {
		if errors.Is(err, razorpay.ErrNotConfigured) {
			logger.Error("gateway credentials are missing")
			return nil, fmt.Errorf("%s: %w", op, ErrGatewayMisconfigured)
		}
		logger.Error("gateway order failed", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w: %w", op, ErrGateway, err)
	}

	logger.Info("gateway order created")
	return resp, nil
}
