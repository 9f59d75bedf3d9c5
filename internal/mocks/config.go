package mocks

import (
	"time"

	"github.com/cradoe/vestra/internal/config"
)

// NewConfig returns a configuration suitable for handler and middleware tests.
func NewConfig() *config.Config {
	cfg := &config.Config{
		BaseURL:      "http://localhost",
		HttpPort:     8080,
		KafkaServers: "localhost:9092",
	}

	cfg.Db.Dsn = "mock_dsn"
	cfg.Jwt.SecretKey = "test_secret"
	cfg.Notifications.Email = ""
	cfg.Smtp.Host = "smtp.example.com"
	cfg.Smtp.Port = 587
	cfg.Smtp.From = "no-reply@example.com"
	cfg.Redis.Addr = "localhost:6379"
	cfg.Withdrawals.Enabled = true
	cfg.Withdrawals.PinTTL = 10 * time.Minute
	cfg.Market.CacheTTL = time.Minute

	return cfg
}
