package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Pricing      PricingConfig
	Gateway      GatewayConfig
	Ledger       LedgerConfig
	Cron         CronConfig
	Locks        LockConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	cfg.Pricing.DefaultCurrency = strings.ToUpper(strings.TrimSpace(cfg.Pricing.DefaultCurrency))
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"COMMERCE_APP_ENV" required:"true"`
	Port         string   `envconfig:"COMMERCE_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"COMMERCE_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"COMMERCE_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"COMMERCE_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"COMMERCE_DB_DSN"`
	Driver string `envconfig:"COMMERCE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"COMMERCE_DB_HOST"`
	LegacyPort     int    `envconfig:"COMMERCE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"COMMERCE_DB_USER"`
	LegacyPassword string `envconfig:"COMMERCE_DB_PASSWORD"`
	LegacyName     string `envconfig:"COMMERCE_DB_NAME"`
	LegacySSLMode  string `envconfig:"COMMERCE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"COMMERCE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"COMMERCE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"COMMERCE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"COMMERCE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"COMMERCE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"COMMERCE_REDIS_ADDR"`
	Password     string        `envconfig:"COMMERCE_REDIS_PASSWORD"`
	DB           int           `envconfig:"COMMERCE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"COMMERCE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"COMMERCE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"COMMERCE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"COMMERCE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"COMMERCE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// PricingConfig controls the adjustment pipeline.
type PricingConfig struct {
	DefaultCurrency       string `envconfig:"COMMERCE_PRICING_DEFAULT_CURRENCY" default:"USD"`
	AllowNegativeTotals   bool   `envconfig:"COMMERCE_PRICING_ALLOW_NEGATIVE_TOTALS" default:"false"`
	TaxUsesBillingAddress bool   `envconfig:"COMMERCE_PRICING_TAX_USES_BILLING_ADDRESS" default:"false"`
}

type GatewayConfig struct {
	CallTimeout      time.Duration `envconfig:"COMMERCE_GATEWAY_CALL_TIMEOUT" default:"20s"`
	WebhookSecret    string        `envconfig:"COMMERCE_GATEWAY_WEBHOOK_SECRET"`
	WebhookDedupeTTL time.Duration `envconfig:"COMMERCE_GATEWAY_WEBHOOK_DEDUPE_TTL" default:"720h"`
}

type LedgerConfig struct {
	ReconcileStaleAfter time.Duration `envconfig:"COMMERCE_LEDGER_RECONCILE_STALE_AFTER" default:"15m"`
	ReconcileBatchSize  int           `envconfig:"COMMERCE_LEDGER_RECONCILE_BATCH_SIZE" default:"100"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"COMMERCE_CRON_INTERVAL" default:"5m"`
	LockTTL  time.Duration `envconfig:"COMMERCE_CRON_LOCK_TTL" default:"4m"`
}

// LockConfig tunes the per-order recalculation lease.
type LockConfig struct {
	OrderTTL  time.Duration `envconfig:"COMMERCE_ORDER_LOCK_TTL" default:"30s"`
	OrderWait time.Duration `envconfig:"COMMERCE_ORDER_LOCK_WAIT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"COMMERCE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"COMMERCE_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
		db.Driver = DriverSQLite
		db.DSN = "file:commerce.db?cache=shared"
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
