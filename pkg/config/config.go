package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "VANTAGE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Stripe       StripeConfig
	SMTP         SMTPConfig
	Licensing    LicensingConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"VANTAGE_APP_ENV" required:"true"`
	Port         string `envconfig:"VANTAGE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"VANTAGE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VANTAGE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"VANTAGE_DB_DSN"`

	Host     string `envconfig:"VANTAGE_DB_HOST"`
	Port     int    `envconfig:"VANTAGE_DB_PORT" default:"5432"`
	User     string `envconfig:"VANTAGE_DB_USER"`
	Password string `envconfig:"VANTAGE_DB_PASSWORD"`
	Name     string `envconfig:"VANTAGE_DB_NAME"`
	SSLMode  string `envconfig:"VANTAGE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VANTAGE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VANTAGE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VANTAGE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VANTAGE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("either VANTAGE_DB_DSN or VANTAGE_DB_HOST/USER/NAME must be set")
	}
	userInfo := url.User(d.User)
	if d.Password != "" {
		userInfo = url.UserPassword(d.User, d.Password)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     userInfo,
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.Name,
		RawQuery: url.Values{"sslmode": []string{d.SSLMode}}.Encode(),
	}
	d.DSN = u.String()
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"VANTAGE_REDIS_URL"`
	Address      string        `envconfig:"VANTAGE_REDIS_ADDR"`
	Password     string        `envconfig:"VANTAGE_REDIS_PASSWORD"`
	DB           int           `envconfig:"VANTAGE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VANTAGE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VANTAGE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VANTAGE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VANTAGE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VANTAGE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"VANTAGE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"VANTAGE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"VANTAGE_JWT_EXPIRATION_MINUTES" default:"60"`
}

type StripeConfig struct {
	APIKey string `envconfig:"VANTAGE_STRIPE_API_KEY"`
	Env    string `envconfig:"VANTAGE_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type SMTPConfig struct {
	Host     string `envconfig:"VANTAGE_SMTP_HOST"`
	Port     string `envconfig:"VANTAGE_SMTP_PORT" default:"587"`
	Username string `envconfig:"VANTAGE_SMTP_USER"`
	Password string `envconfig:"VANTAGE_SMTP_PASS"`
	From     string `envconfig:"VANTAGE_SMTP_FROM"`
}

// Enabled reports whether the notifier has enough configuration to send mail.
func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.Username != "" && s.Password != ""
}

type LicensingConfig struct {
	CodeAttempts      int `envconfig:"VANTAGE_LICENSE_CODE_ATTEMPTS" default:"10"`
	NumberingRetries  int `envconfig:"VANTAGE_CONTRACT_NUMBERING_RETRIES" default:"3"`
	DefaultExpireDays int `envconfig:"VANTAGE_CONTRACT_DEFAULT_EXPIRE_DAYS" default:"365"`
	InvoicePageSize   int `envconfig:"VANTAGE_RECONCILE_INVOICE_PAGE_SIZE" default:"100"`
}

type RateLimitConfig struct {
	ActivationWindow    time.Duration `envconfig:"VANTAGE_RL_ACTIVATION_WINDOW" default:"1m"`
	ActivationIPLimit   int           `envconfig:"VANTAGE_RL_ACTIVATION_IP_LIMIT" default:"30"`
	ActivationCodeLimit int           `envconfig:"VANTAGE_RL_ACTIVATION_CODE_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"VANTAGE_FEATURE_AUTO_MIGRATE" default:"false"`
}
