package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/linemk/shop-payments/internal/app"
	"github.com/linemk/shop-payments/internal/config"
	"github.com/linemk/shop-payments/internal/lib/logger"
	pkgerrors "github.com/pkg/errors"
)

func main() {
	// загрузка конфигурации
	cfg := config.MustLoad()

	// инициализация логгера, зависит от настройки окружения
	log := logger.SetupLogger(cfg.Env)
	log.Info("starting app",
		slog.String("env", cfg.Env),
		slog.Bool("strict_ordering", cfg.Reconcile.Strict()),
		slog.Bool("jwt_enabled", cfg.Auth.JWTSecret != ""),
	)
	warnMissingSecrets(log, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// загружаем объект приложения, конфигом и подключением к БД
	application, err := app.NewApp(ctx, log, cfg)
	if err != nil {
		log.Error("failed to initialize app", slog.Any("error", err))
		panic(pkgerrors.Wrap(err, "failed to initialize app"))
	}
	defer application.DB.Close()

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      application.Handler(ctx),
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", slog.Any("error", err))
			cancel()
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case stopSign := <-stop:
		log.Info("received shutdown signal", slog.String("signal", stopSign.String()))
	case <-ctx.Done():
	}

	shutdownTimeout := cfg.HTTPServer.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", slog.Any("error", err))
	}
	log.Info("server gracefully stopped")
}

// warnMissingSecrets предупреждает о секретах, без которых соответствующие эндпоинты отвечают 500
func warnMissingSecrets(log *slog.Logger, cfg *config.Config) {
	if cfg.PhonePe.SaltKey == "" {
		log.Warn("PHONEPE_SALT_KEY is not set, /gateway/callback will fail")
	}
	if cfg.Razorpay.WebhookSecret == "" {
		log.Warn("RAZORPAY_WEBHOOK_SECRET is not set, /gateway/webhook will fail")
	}
	if cfg.Razorpay.KeyID == "" || cfg.Razorpay.KeySecret == "" {
		log.Warn("razorpay api credentials are not set, /gateway/order will fail")
	}
}
