package config

import "time"

type Config struct {
	BaseURL  string
	HttpPort int
	Db       struct {
		Dsn         string
		Automigrate bool
	}
	Jwt struct {
		SecretKey string
	}
	Notifications struct {
		Email string
	}
	Smtp struct {
		Host     string
		Port     int
		Username string
		Password string
		From     string
	}
	Redis struct {
		Addr string
		DB   int
	}
	Storage struct {
		// Driver is either "cloudinary" or "minio"
		Driver string
		Bucket string
	}
	FileUploader struct {
		CloudName string
		ApiKey    string
		ApiSecret string
	}
	Minio struct {
		Endpoint  string
		AccessKey string
		SecretKey string
		Secure    bool
		PublicURL string
	}
	Market struct {
		CoinMarketCapKey string
		CoinGeckoBase    string
		CoinGeckoKey     string
		CacheTTL         time.Duration
	}
	Withdrawals struct {
		Enabled bool
		PinTTL  time.Duration
	}
	KafkaServers string
}
