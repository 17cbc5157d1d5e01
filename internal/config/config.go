// Package config содержит логику чтения конфигурации сервиса ресторана.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
)

const defaultDeliveryFee = "5.00"

// Config содержит параметры конфигурации сервиса ресторана.
type Config struct {
	RunAddress           string `env:"RUN_ADDRESS"`
	DatabaseURI          string `env:"DATABASE_URI"`
	PaymentSystemAddress string `env:"PAYMENT_SYSTEM_ADDRESS"`
	AuthSecret           string `env:"AUTH_SECRET"`
	DeliveryFeeRaw       string `env:"DELIVERY_FEE"`
	ManagerEmail         string `env:"MANAGER_EMAIL"`
	ManagerPassword      string `env:"MANAGER_PASSWORD"`

	// DeliveryFee заполняется из DeliveryFeeRaw после разбора.
	DeliveryFee decimal.Decimal `env:"-"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envPaymentAddress := cfg.PaymentSystemAddress
	envAuthSecret := cfg.AuthSecret
	envDeliveryFee := cfg.DeliveryFeeRaw
	envManagerEmail := cfg.ManagerEmail

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.PaymentSystemAddress, "p", "", "payment system address")
	flag.StringVar(&cfg.AuthSecret, "s", "", "secret key for signing auth tokens")
	flag.StringVar(&cfg.DeliveryFeeRaw, "f", defaultDeliveryFee, "delivery fee per order")
	flag.StringVar(&cfg.ManagerEmail, "m", "", "email of the bootstrap manager account")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envPaymentAddress != "" {
		cfg.PaymentSystemAddress = envPaymentAddress
	}
	if envAuthSecret != "" {
		cfg.AuthSecret = envAuthSecret
	}
	if envDeliveryFee != "" {
		cfg.DeliveryFeeRaw = envDeliveryFee
	}
	if envManagerEmail != "" {
		cfg.ManagerEmail = envManagerEmail
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.DeliveryFeeRaw == "" {
		cfg.DeliveryFeeRaw = defaultDeliveryFee
	}

	fee, err := decimal.NewFromString(cfg.DeliveryFeeRaw)
	if err != nil {
		return nil, fmt.Errorf("parse delivery fee %q: %w", cfg.DeliveryFeeRaw, err)
	}
	if fee.IsNegative() {
		return nil, fmt.Errorf("delivery fee must not be negative: %s", fee)
	}
	cfg.DeliveryFee = fee

	return cfg, nil
}
