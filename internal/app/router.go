package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/linemk/shop-payments/internal/app/handlers"
	"github.com/linemk/shop-payments/internal/auth/jwtmiddleware"
	"github.com/linemk/shop-payments/internal/config"
	"github.com/linemk/shop-payments/internal/lib/logger/handlers/urllog"
	"github.com/linemk/shop-payments/internal/lib/ratelimit"
	"github.com/linemk/shop-payments/internal/payments/phonepe"
	"github.com/linemk/shop-payments/internal/payments/razorpay"
	"github.com/linemk/shop-payments/internal/service"
	"github.com/linemk/shop-payments/internal/storage"
)

// NewHandler собирает сервисы и роутер. ctx ограничивает жизнь фоновой очистки rate limiter.
func NewHandler(
	ctx context.Context,
	log *slog.Logger,
	cfg *config.Config,
	orders storage.OrderStorage,
	events storage.PaymentEventStorage,
) http.Handler {
	orderService := service.NewOrderService(log, orders, service.RetryPolicy{
		Attempts:  cfg.Orders.RetryAttempts,
		BaseDelay: cfg.Orders.RetryBaseDelay,
	})
	gatewayClient := razorpay.NewClient(razorpay.ClientConfig{
		BaseURL:   cfg.Razorpay.BaseURL,
		KeyID:     cfg.Razorpay.KeyID,
		KeySecret: cfg.Razorpay.KeySecret,
		Currency:  cfg.Razorpay.Currency,
		Timeout:   cfg.Razorpay.Timeout,
	})
	gatewayService := service.NewGatewayService(log, gatewayClient)
	reconciler := service.NewReconciler(log, orders, events, service.ReconcilerOptions{
		Strict:      cfg.Reconcile.Strict(),
		AmountGuard: cfg.Reconcile.AmountGuard,
	})

	phonepeVerifier := phonepe.NewVerifier(cfg.PhonePe.SaltKey, cfg.PhonePe.SaltIndex)
	razorpayVerifier := razorpay.NewVerifier(cfg.Razorpay.WebhookSecret)

	router := chi.NewRouter()
	// настройка middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(urllog.CustomLoggerMiddleware(log))
	router.Use(middleware.Recoverer)
	router.Use(render.SetContentType(render.ContentTypeJSON))

	router.Get("/healthz", handlers.HealthHandler())

	// маршруты покупателя
	router.Group(func(r chi.Router) {
		if cfg.RateLimit.RPS > 0 {
			r.Use(ratelimit.New(ctx, cfg.RateLimit.RPS, cfg.RateLimit.Burst).Middleware(log))
		}
		if cfg.Auth.JWTSecret != "" {
			r.Use(jwtmiddleware.NewJWTMiddleware(cfg.Auth.JWTSecret))
		}
		r.Post("/orders", handlers.CreateOrderHandler(log, orderService))
		r.Get("/orders/{merchant_transaction_id}", handlers.GetOrderHandler(log, orderService))
		r.Post("/gateway/order", handlers.GatewayOrderHandler(log, gatewayService))
	})

	// уведомления провайдеров, аутентифицируются только подписью
	router.Post("/gateway/callback", handlers.PhonePeCallbackHandler(log, phonepeVerifier, reconciler))
	router.Post("/gateway/webhook", handlers.RazorpayWebhookHandler(log, razorpayVerifier, reconciler))

	return router
}
