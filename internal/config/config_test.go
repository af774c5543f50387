package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/linemk/shop-payments/internal/config"
	"github.com/stretchr/testify/assert"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp("", "config_test_*.yaml")
	assert.NoError(t, err)
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	_, err = tmpFile.WriteString(content)
	assert.NoError(t, err)
	assert.NoError(t, tmpFile.Close())
	return tmpFile.Name()
}

func TestMustLoadByPath_Success(t *testing.T) {
	// Устанавливаем обязательные переменные окружения
	t.Setenv("DB_PASSWORD", "mypassword")
	t.Setenv("JWT_SECRET", "mysecret")
	t.Setenv("PHONEPE_SALT_KEY", "salt")
	t.Setenv("RAZORPAY_KEY_SECRET", "rzp-secret")
	t.Setenv("RAZORPAY_WEBHOOK_SECRET", "whsec")

	path := writeConfig(t, `
env: "local"
http_server:
  address: "localhost:8080"
  timeout: "4s"
  idle_timeout: "60s"
database:
  host: "localhost"
  port: 5432
  user: "postgres"
  name: "shop"
migrations:
  path: "./migrations"
orders:
  retry_attempts: 5
  retry_base_delay: "200ms"
reconcile:
  strict_ordering: false
  amount_guard: true
phonepe:
  salt_index: "2"
razorpay:
  base_url: "http://localhost:9999"
  key_id: "rzp_test_1"
  timeout: "5s"
rate_limit:
  rps: 2.5
  burst: 4
`)

	cfg := config.MustLoadByPath(path)

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "localhost:8080", cfg.HTTPServer.Address)
	assert.Equal(t, 4*time.Second, cfg.HTTPServer.Timeout)
	assert.Equal(t, 60*time.Second, cfg.HTTPServer.IdleTimeout)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "postgres", cfg.Database.User)
	assert.Equal(t, "mypassword", cfg.Database.Password)
	assert.Equal(t, "shop", cfg.Database.Name)
	assert.Equal(t, "./migrations", cfg.Migrations.Path)
	assert.Equal(t, "mysecret", cfg.Auth.JWTSecret)
	assert.Equal(t, 5, cfg.Orders.RetryAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.Orders.RetryBaseDelay)
	assert.False(t, cfg.Reconcile.Strict())
	assert.True(t, cfg.Reconcile.AmountGuard)
	assert.Equal(t, "salt", cfg.PhonePe.SaltKey)
	assert.Equal(t, "2", cfg.PhonePe.SaltIndex)
	assert.Equal(t, "http://localhost:9999", cfg.Razorpay.BaseURL)
	assert.Equal(t, "rzp_test_1", cfg.Razorpay.KeyID)
	assert.Equal(t, "rzp-secret", cfg.Razorpay.KeySecret)
	assert.Equal(t, "whsec", cfg.Razorpay.WebhookSecret)
	assert.Equal(t, 5*time.Second, cfg.Razorpay.Timeout)
	assert.Equal(t, 2.5, cfg.RateLimit.RPS)
	assert.Equal(t, 4, cfg.RateLimit.Burst)
}

func TestMustLoadByPath_Defaults(t *testing.T) {
	t.Setenv("DB_PASSWORD", "mypassword")

	path := writeConfig(t, `
database:
  user: "postgres"
  name: "shop"
`)

	cfg := config.MustLoadByPath(path)

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, 3, cfg.Orders.RetryAttempts)
	assert.Equal(t, time.Second, cfg.Orders.RetryBaseDelay)
	assert.True(t, cfg.Reconcile.Strict(), "Strict ordering is on by default")
	assert.False(t, cfg.Reconcile.AmountGuard, "Amount guard is off by default")
	assert.Equal(t, "1", cfg.PhonePe.SaltIndex)
	assert.Equal(t, "https://api.razorpay.com", cfg.Razorpay.BaseURL)
	assert.Equal(t, "INR", cfg.Razorpay.Currency)
	assert.Equal(t, 15*time.Second, cfg.Razorpay.Timeout)
	assert.Empty(t, cfg.Auth.JWTSecret)
	assert.Equal(t, "migrations", cfg.Migrations.Table)
}

func TestMustLoadByPath_FileNotFound(t *testing.T) {
	// Ожидаем панику, если файла не существует
	assert.Panics(t, func() {
		config.MustLoadByPath("non_existent_config.yaml")
	})
}
