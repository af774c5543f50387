package config

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string           `yaml:"env" env-default:"local"` // environment
	HTTPServer HTTPServerConfig `yaml:"http_server"`
	Database   DatabaseConfig   `yaml:"database"`
	Migrations MigrationsConfig `yaml:"migrations"`
	Auth       AuthConfig       `yaml:"auth"`
	Orders     OrdersConfig     `yaml:"orders"`
	Reconcile  ReconcileConfig  `yaml:"reconcile"`
	PhonePe    PhonePeConfig    `yaml:"phonepe"`
	Razorpay   RazorpayConfig   `yaml:"razorpay"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
}

// HTTPServerConfig структура http сервера
type HTTPServerConfig struct {
	Address         string        `yaml:"address" env-default:"localhost:8080"`
	Timeout         time.Duration `yaml:"timeout" env-default:"20s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"10s"`
}

// DatabaseConfig структура по работе с БД
type DatabaseConfig struct {
	Host     string `yaml:"host" env-default:"localhost"`
	Port     int    `yaml:"port" env-default:"5432"`
	User     string `yaml:"user" env-required:"true"`
	Password string `yaml:"-" env:"DB_PASSWORD" env-required:"true"`
	Name     string `yaml:"name" env-required:"true"`
	SSLMode  string `yaml:"sslmode" env-default:"disable"`
}

type MigrationsConfig struct {
	Path  string `yaml:"path" env-default:"./migrations"`
	Table string `yaml:"table" env-default:"migrations"`
}

// AuthConfig - проверка токенов покупателей; пустой секрет отключает проверку
type AuthConfig struct {
	JWTSecret string `yaml:"-" env:"JWT_SECRET"`
}

// OrdersConfig - повтор вставки заказа при недоступности БД
type OrdersConfig struct {
	RetryAttempts  int           `yaml:"retry_attempts" env-default:"3"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay" env-default:"1s"`
}

type ReconcileConfig struct {
	// false - безусловная перезапись статуса (старое поведение).
	// nil означает значение по умолчанию (true)
	StrictOrdering *bool `yaml:"strict_ordering"`
	// сверка суммы успешного платежа с total_amount заказа в минимальных единицах
	AmountGuard bool `yaml:"amount_guard"`
}

// Strict - строгий порядок переходов, включён если не выключен явно
func (c ReconcileConfig) Strict() bool {
	return c.StrictOrdering == nil || *c.StrictOrdering
}

// PhonePeConfig - провайдер A, уведомления с checksum-подписью
type PhonePeConfig struct {
	SaltKey   string `yaml:"-" env:"PHONEPE_SALT_KEY"`
	SaltIndex string `yaml:"salt_index" env-default:"1"`
}

// RazorpayConfig - провайдер B, API заказов и вебхуки с HMAC-подписью
type RazorpayConfig struct {
	BaseURL       string        `yaml:"base_url" env-default:"https://api.razorpay.com"`
	KeyID         string        `yaml:"key_id" env:"RAZORPAY_KEY_ID"`
	KeySecret     string        `yaml:"-" env:"RAZORPAY_KEY_SECRET"`
	WebhookSecret string        `yaml:"-" env:"RAZORPAY_WEBHOOK_SECRET"`
	Currency      string        `yaml:"currency" env-default:"INR"`
	Timeout       time.Duration `yaml:"timeout" env-default:"15s"`
}

// RateLimitConfig - лимит запросов покупателей на IP; отрицательный rps отключает лимит
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps" env-default:"10"`
	Burst int     `yaml:"burst" env-default:"20"`
}

// MustLoad - если не загружаем - паникуем
func MustLoad() *Config {
	configPath := fetchConfigPath()
	if configPath == "" {
		log.Fatal("CONFIG_PATH not exists")
	}
	return MustLoadByPath(configPath)
}

func fetchConfigPath() string {
	var path string

	flag.StringVar(&path, "config", "", "path to config file")
	flag.Parse()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	return path
}

func MustLoadByPath(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file not found: " + configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("can't read config file %s: %v", configPath, err)
	}

	return &cfg
}
