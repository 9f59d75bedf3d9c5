package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cradoe/vestra/internal/cache"
	"github.com/cradoe/vestra/internal/config"
	"github.com/cradoe/vestra/internal/env"
	"github.com/cradoe/vestra/internal/errHandler"
	"github.com/cradoe/vestra/internal/file"
	"github.com/cradoe/vestra/internal/helper"
	"github.com/cradoe/vestra/internal/market"
	"github.com/cradoe/vestra/internal/repository"
	"github.com/cradoe/vestra/internal/smtp"
	"github.com/cradoe/vestra/internal/stream"
	"github.com/joho/godotenv"
)

const (
	StorageDriverCloudinary = "cloudinary"
	StorageDriverMinio      = "minio"
)

// Essential services and resources are exposed to the application
// this makes it possible for methods to have access to these items and when they need them
type Application struct {
	Config       config.Config
	DB           repository.Database
	Cache        *cache.Cache
	Logger       *slog.Logger
	Mailer       *smtp.Mailer
	WG           sync.WaitGroup
	errorHandler *errHandler.ErrorRepository
	helper       *helper.HelperRepository
	Kafka        *stream.KafkaStream
	FileUploader file.Uploader
	Market       *market.Client
}

// LoadConfig reads the configuration from the environment, and from a .env
// file when present.
func LoadConfig(logger *slog.Logger) config.Config {
	if err := godotenv.Load(); err != nil {
		logger.Warn("no .env file loaded", "error", err.Error())
	}

	var cfg config.Config

	// Default values are provided for these items and these should strictly be values for development mode only
	// make sure no production-level value is exposed as default value here
	cfg.BaseURL = env.GetString("BASE_URL", "http://localhost:4444")
	cfg.HttpPort = env.GetInt("HTTP_PORT", 4444)

	cfg.Db.Dsn = env.GetString("DB_DSN", "user:pass@localhost:5432/db?sslmode=disable")
	cfg.Db.Automigrate = env.GetBool("DB_AUTOMIGRATE", true)

	cfg.Jwt.SecretKey = env.GetString("JWT_SECRET_KEY", "ajf5nx3qmp6zquevllxocxqvyz42ypuo")

	// server errors won't be sent via email if the NOTIFICATIONS_EMAIL wasn't set
	cfg.Notifications.Email = env.GetString("NOTIFICATIONS_EMAIL", "")

	cfg.Smtp.Host = env.GetString("SMTP_HOST", "example.smtp.host")
	cfg.Smtp.Port = env.GetInt("SMTP_PORT", 25)
	cfg.Smtp.Username = env.GetString("SMTP_USERNAME", "")
	cfg.Smtp.Password = env.GetString("SMTP_PASSWORD", "")
	cfg.Smtp.From = env.GetString("SMTP_FROM", "Vestra <no_reply@example.org>")

	cfg.KafkaServers = env.GetString("KAFKA_SERVERS", "localhost:9092")

	cfg.Redis.Addr = env.GetString("REDIS_ADDR", "localhost:6379")
	cfg.Redis.DB = env.GetInt("REDIS_DB", 0)

	cfg.Storage.Driver = env.GetString("STORAGE_DRIVER", StorageDriverCloudinary)
	cfg.Storage.Bucket = env.GetString("STORAGE_BUCKET", "kyc-documents")

	cfg.FileUploader.CloudName = env.GetString("CLOUDINARY_CLOUD_NAME", "")
	cfg.FileUploader.ApiKey = env.GetString("CLOUDINARY_API_KEY", "")
	cfg.FileUploader.ApiSecret = env.GetString("CLOUDINARY_API_SECRET", "")

	cfg.Minio.Endpoint = env.GetString("MINIO_ENDPOINT", "localhost:9000")
	cfg.Minio.AccessKey = env.GetString("MINIO_ACCESS_KEY", "")
	cfg.Minio.SecretKey = env.GetString("MINIO_SECRET_KEY", "")
	cfg.Minio.Secure = env.GetBool("MINIO_SECURE", false)
	cfg.Minio.PublicURL = env.GetString("MINIO_PUBLIC_URL", "")

	cfg.Market.CoinMarketCapKey = env.GetString("COINMARKETCAP_API_KEY", "")
	cfg.Market.CoinGeckoBase = env.GetString("COINGECKO_BASE", market.DefaultCoinGecko)
	cfg.Market.CoinGeckoKey = env.GetString("COINGECKO_API_KEY", "")
	cfg.Market.CacheTTL = env.GetDuration("MARKET_CACHE_TTL", time.Minute)

	cfg.Withdrawals.Enabled = env.GetBool("WITHDRAWALS_ENABLED", false)
	cfg.Withdrawals.PinTTL = env.GetDuration("PIN_GATE_TTL", 10*time.Minute)

	return cfg
}

func NewApplication(cfg config.Config, logger *slog.Logger) (*Application, error) {
	db, err := repository.New(cfg.Db.Dsn, cfg.Db.Automigrate)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	redisCache := cache.New(cfg.Redis.Addr, cfg.Redis.DB)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisCache.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}

	mailer, err := smtp.NewMailer(cfg.Smtp.Host, cfg.Smtp.Port, cfg.Smtp.Username, cfg.Smtp.Password, cfg.Smtp.From)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize mailer: %w", err)
	}

	uploader, err := newUploader(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize file storage: %w", err)
	}

	errorHandler := errHandler.New(cfg.Notifications.Email, cfg.BaseURL, mailer, logger)

	app := &Application{
		Config:       cfg,
		DB:           db,
		Cache:        redisCache,
		Logger:       logger,
		Mailer:       mailer,
		errorHandler: errorHandler,
		Kafka:        stream.New(cfg.KafkaServers, logger),
		FileUploader: uploader,
	}

	app.helper = helper.New(cfg.BaseURL, &app.WG, errorHandler)

	app.Market = market.New(market.Options{
		CoinMarketCapKey: cfg.Market.CoinMarketCapKey,
		CoinGeckoBase:    cfg.Market.CoinGeckoBase,
		CoinGeckoKey:     cfg.Market.CoinGeckoKey,
		CacheTTL:         cfg.Market.CacheTTL,
	}, redisCache, logger)

	return app, nil
}

func newUploader(cfg config.Config) (file.Uploader, error) {
	switch cfg.Storage.Driver {
	case StorageDriverCloudinary:
		return file.New(cfg.FileUploader.CloudName, cfg.FileUploader.ApiKey, cfg.FileUploader.ApiSecret, cfg.Storage.Bucket)
	case StorageDriverMinio:
		return file.NewMinio(cfg.Minio.Endpoint, cfg.Minio.AccessKey, cfg.Minio.SecretKey, cfg.Storage.Bucket, cfg.Minio.PublicURL, cfg.Minio.Secure)
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

// Close releases the connections opened by NewApplication.
func (app *Application) Close() {
	if err := app.DB.Close(); err != nil {
		app.Logger.Error("closing database", "error", err.Error())
	}
	if err := app.Cache.Close(); err != nil {
		app.Logger.Error("closing redis", "error", err.Error())
	}
}

func (app *Application) Helper() *helper.HelperRepository {
	return app.helper
}
