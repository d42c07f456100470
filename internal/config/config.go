package config

import (
	"log/slog"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env      string `env:"ENV" env-default:"local"`
	HTTP     HTTPConfig
	Database DBConfig
	Redis    RedisConfig
	Market   MarketConfig
	Token    TokenConfig
	Demo     DemoConfig
	Billing  BillingConfig
}

type HTTPConfig struct {
	Port    uint16        `env:"HTTP_PORT" env-default:"8080"`
	Timeout time.Duration `env:"HTTP_TIMEOUT" env-default:"30s"`
}

type DBConfig struct {
	Host     string `env:"POSTGRES_HOST" env-default:"localhost"`
	Port     uint16 `env:"POSTGRES_PORT" env-default:"5432"`
	User     string `env:"POSTGRES_USER" env-default:"postgres"`
	Password string `env:"POSTGRES_PASSWORD" env-default:"postgres"`
	DBName   string `env:"POSTGRES_DB" env-default:"mockfolio_db"`
}

type RedisConfig struct {
	Addr        string        `env:"REDIS_ADDR" env-default:"localhost:6379"`
	SnapshotTTL time.Duration `env:"REDIS_SNAPSHOT_TTL" env-default:"10m"`
}

type MarketConfig struct {
	BaseURL    string        `env:"MARKET_BASE_URL" env-default:"https://api.coingecko.com/api/v3"`
	VsCurrency string        `env:"MARKET_VS_CURRENCY" env-default:"usd"`
	PerPage    int           `env:"MARKET_PER_PAGE" env-default:"10"`
	Timeout    time.Duration `env:"MARKET_TIMEOUT" env-default:"10s"`
}

type TokenConfig struct {
	Secret      string        `env:"JWT_SECRET" env-required:"true"`
	AccessToken time.Duration `env:"ACCESS_TOKEN_TTL" env-default:"24h"`
}

// DemoConfig is the single mock account the credential verifier accepts.
// The password is hashed with bcrypt when the verifier is constructed.
type DemoConfig struct {
	Email    string `env:"DEMO_EMAIL" env-default:"admin@demo.com"`
	Name     string `env:"DEMO_NAME" env-default:"Admin User"`
	Password string `env:"DEMO_PASSWORD" env-default:"pwd@123"`
}

type BillingConfig struct {
	FreeTierLimit     int   `env:"FREE_TIER_LIMIT" env-default:"3"`
	MonthlyPriceCents int64 `env:"MONTHLY_PRICE_CENTS" env-default:"199"`
	YearlyPriceCents  int64 `env:"YEARLY_PRICE_CENTS" env-default:"1999"`
}

func MustLoad() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, reading from environment variables")
	}

	var cfg Config

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("failed to read environment variables", "error", err)
		os.Exit(1)
	}

	return &cfg
}
