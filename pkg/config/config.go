package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "ACE_DB_DSN"
	EnvDBHost = "ACE_DB_HOST"
	EnvDBUser = "ACE_DB_USER"
	EnvDBName = "ACE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Checkout     CheckoutConfig
	Payments     PaymentsConfig
	Stripe       StripeConfig
	Worker       WorkerConfig
	Sweeper      SweeperConfig
	PubSub       PubSubConfig
	GCP          GCPConfig
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
	Env          string `envconfig:"ACE_APP_ENV" required:"true"`
	Port         string `envconfig:"ACE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"ACE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ACE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ACE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ACE_DB_DSN"`
	Driver string `envconfig:"ACE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ACE_DB_HOST"`
	LegacyPort     int    `envconfig:"ACE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ACE_DB_USER"`
	LegacyPassword string `envconfig:"ACE_DB_PASSWORD"`
	LegacyName     string `envconfig:"ACE_DB_NAME"`
	LegacySSLMode  string `envconfig:"ACE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ACE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ACE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ACE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ACE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ACE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ACE_REDIS_ADDR"`
	Password     string        `envconfig:"ACE_REDIS_PASSWORD"`
	DB           int           `envconfig:"ACE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ACE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ACE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ACE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ACE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ACE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type CheckoutConfig struct {
	LeaseTTL     time.Duration `envconfig:"ACE_CHECKOUT_LEASE_TTL" default:"24h"`
	CartTTL      time.Duration `envconfig:"ACE_CHECKOUT_CART_TTL" default:"24h"`
	TermsURL     string        `envconfig:"ACE_CHECKOUT_TERMS_URL"`
	CookieDomain string        `envconfig:"ACE_CHECKOUT_COOKIE_DOMAIN"`
}

type PaymentsConfig struct {
	Processor string        `envconfig:"ACE_PAYMENTS_PROCESSOR" default:"stripe"`
	Timeout   time.Duration `envconfig:"ACE_PAYMENTS_TIMEOUT" default:"15s"`
}

type StripeConfig struct {
	APIKey string `envconfig:"ACE_STRIPE_API_KEY"`
	Env    string `envconfig:"ACE_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type WorkerConfig struct {
	Interval    time.Duration `envconfig:"ACE_TICKET_WORKER_INTERVAL" default:"3m"`
	BatchSize   int           `envconfig:"ACE_TICKET_WORKER_BATCH_SIZE" default:"25"`
	InsertChunk int           `envconfig:"ACE_TICKET_WORKER_INSERT_CHUNK" default:"250"`
}

type SweeperConfig struct {
	Interval  time.Duration `envconfig:"ACE_SWEEPER_INTERVAL" default:"24h"`
	BatchSize int           `envconfig:"ACE_SWEEPER_BATCH_SIZE" default:"100"`
	MinAge    time.Duration `envconfig:"ACE_SWEEPER_MIN_AGE" default:"1h"`
}

type PubSubConfig struct {
	NotificationTopic string `envconfig:"ACE_PUBSUB_NOTIFICATION_TOPIC"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"ACE_GCP_PROJECT_ID"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ACE_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
