package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "TALLYCRM"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Stripe        StripeConfig
	Resend        ResendConfig
	LLM           LLMConfig
	Cron          CronConfig
	Webhook       WebhookConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TALLYCRM_APP_ENV" required:"true"`
	Port         string `envconfig:"TALLYCRM_APP_PORT" required:"true"`
	BaseURL      string `envconfig:"TALLYCRM_APP_BASE_URL" default:"http://localhost:8080"`
	LogLevel     string `envconfig:"TALLYCRM_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TALLYCRM_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"TALLYCRM_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"TALLYCRM_DB_DSN"`
	Driver string `envconfig:"TALLYCRM_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TALLYCRM_DB_HOST"`
	LegacyPort     int    `envconfig:"TALLYCRM_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TALLYCRM_DB_USER"`
	LegacyPassword string `envconfig:"TALLYCRM_DB_PASSWORD"`
	LegacyName     string `envconfig:"TALLYCRM_DB_NAME"`
	LegacySSLMode  string `envconfig:"TALLYCRM_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TALLYCRM_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TALLYCRM_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TALLYCRM_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TALLYCRM_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.LegacyHost == "" || d.LegacyUser == "" || d.LegacyName == "" {
		return fmt.Errorf("either TALLYCRM_DB_DSN or host/user/name parts are required")
	}
	userInfo := url.User(d.LegacyUser)
	if d.LegacyPassword != "" {
		userInfo = url.UserPassword(d.LegacyUser, d.LegacyPassword)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     userInfo,
		Host:     fmt.Sprintf("%s:%d", d.LegacyHost, d.LegacyPort),
		Path:     d.LegacyName,
		RawQuery: "sslmode=" + d.LegacySSLMode,
	}
	d.DSN = u.String()
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"TALLYCRM_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TALLYCRM_REDIS_ADDR"`
	Password     string        `envconfig:"TALLYCRM_REDIS_PASSWORD"`
	DB           int           `envconfig:"TALLYCRM_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TALLYCRM_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TALLYCRM_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TALLYCRM_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TALLYCRM_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TALLYCRM_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"TALLYCRM_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TALLYCRM_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"TALLYCRM_JWT_EXPIRATION_MINUTES" default:"60"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"TALLYCRM_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"TALLYCRM_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"TALLYCRM_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"TALLYCRM_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"TALLYCRM_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"TALLYCRM_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"TALLYCRM_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"TALLYCRM_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"TALLYCRM_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"TALLYCRM_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"TALLYCRM_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"TALLYCRM_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	APIKey          string `envconfig:"TALLYCRM_STRIPE_API_KEY"`
	Secret          string `envconfig:"TALLYCRM_STRIPE_WEBHOOK_SECRET"`
	Env             string `envconfig:"TALLYCRM_STRIPE_ENV" default:"test"`
	PriceBasic      string `envconfig:"TALLYCRM_STRIPE_PRICE_BASIC"`
	PricePro        string `envconfig:"TALLYCRM_STRIPE_PRICE_PRO"`
	PriceEnterprise string `envconfig:"TALLYCRM_STRIPE_PRICE_ENTERPRISE"`
}

func (s StripeConfig) Environment() string {
	return s.Env
}

type ResendConfig struct {
	APIKey    string `envconfig:"TALLYCRM_RESEND_API_KEY"`
	FromEmail string `envconfig:"TALLYCRM_RESEND_FROM_EMAIL"`
	FromName  string `envconfig:"TALLYCRM_RESEND_FROM_NAME"`
}

type LLMConfig struct {
	APIKey      string        `envconfig:"TALLYCRM_LLM_API_KEY"`
	BaseURL     string        `envconfig:"TALLYCRM_LLM_BASE_URL" default:"https://generativelanguage.googleapis.com/v1beta"`
	Model       string        `envconfig:"TALLYCRM_LLM_MODEL" default:"gemini-2.5-flash-lite"`
	Timeout     time.Duration `envconfig:"TALLYCRM_LLM_TIMEOUT" default:"30s"`
	MaxAttempts int           `envconfig:"TALLYCRM_LLM_MAX_ATTEMPTS" default:"3"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"TALLYCRM_CRON_INTERVAL" default:"24h"`
}

type WebhookConfig struct {
	IdempotencyTTL time.Duration `envconfig:"TALLYCRM_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}
