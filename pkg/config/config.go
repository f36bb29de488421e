package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the process-wide security and runtime policy. It is loaded once at
// startup and passed into constructors; nothing mutates it afterwards.
type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Gateway      GatewayConfig
	Security     SecurityConfig
	RateLimit    RateLimitConfig
	Processor    ProcessorConfig
	Square       SquareConfig
	Stripe       StripeConfig
	Omise        OmiseConfig
	Sweeper      SweeperConfig
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
	if err := cfg.Gateway.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PAYGATE_APP_ENV" required:"true"`
	Port         string `envconfig:"PAYGATE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PAYGATE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PAYGATE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"PAYGATE_DB_DSN"`
	Driver string `envconfig:"PAYGATE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"PAYGATE_DB_HOST"`
	Port     int    `envconfig:"PAYGATE_DB_PORT" default:"5432"`
	User     string `envconfig:"PAYGATE_DB_USER"`
	Password string `envconfig:"PAYGATE_DB_PASSWORD"`
	Name     string `envconfig:"PAYGATE_DB_NAME"`
	SSLMode  string `envconfig:"PAYGATE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PAYGATE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PAYGATE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PAYGATE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PAYGATE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PAYGATE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PAYGATE_REDIS_ADDR"`
	Password     string        `envconfig:"PAYGATE_REDIS_PASSWORD"`
	DB           int           `envconfig:"PAYGATE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PAYGATE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PAYGATE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PAYGATE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PAYGATE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PAYGATE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// GatewayConfig bounds what the intake surface accepts and how long outcomes
// are retained. Retention windows should cover the deployment's dispute window.
type GatewayConfig struct {
	MaxAmountMinorUnits  int64         `envconfig:"PAYGATE_MAX_AMOUNT_MINOR_UNITS" default:"10000000"`
	Currencies           []string      `envconfig:"PAYGATE_CURRENCIES" default:"USD,EUR,GBP"`
	ChargeTimeout        time.Duration `envconfig:"PAYGATE_CHARGE_TIMEOUT" default:"10s"`
	IdempotencyRetention time.Duration `envconfig:"PAYGATE_IDEMPOTENCY_RETENTION" default:"24h"`
	IntentRetention      time.Duration `envconfig:"PAYGATE_INTENT_RETENTION" default:"72h"`
	MaxIdempotencyKeyLen int           `envconfig:"PAYGATE_MAX_IDEMPOTENCY_KEY_LEN" default:"128"`
	MinTokenLen          int           `envconfig:"PAYGATE_MIN_TOKEN_LEN" default:"8"`
	MaxTokenLen          int           `envconfig:"PAYGATE_MAX_TOKEN_LEN" default:"255"`
}

func (g GatewayConfig) validate() error {
	if g.MaxAmountMinorUnits <= 0 {
		return fmt.Errorf("%s must be positive", EnvMaxAmount)
	}
	if g.ChargeTimeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvChargeTimeout)
	}
	if len(g.Currencies) == 0 {
		return fmt.Errorf("%s must list at least one currency", EnvCurrencies)
	}
	return nil
}

// SecurityConfig carries both security-context modes: the session-bound
// anti-forgery token and the signed server-to-server credential. Signing keys
// are supplied as "key_id:secret" pairs.
type SecurityConfig struct {
	AntiforgerySecret string            `envconfig:"PAYGATE_ANTIFORGERY_SECRET" required:"true"`
	AntiforgeryIssuer string            `envconfig:"PAYGATE_ANTIFORGERY_ISSUER" default:"paygate"`
	AntiforgeryTTL    time.Duration     `envconfig:"PAYGATE_ANTIFORGERY_TTL" default:"30m"`
	SigningKeys       map[string]string `envconfig:"PAYGATE_SIGNING_KEYS"`
	SignatureMaxSkew  time.Duration     `envconfig:"PAYGATE_SIGNATURE_MAX_SKEW" default:"5m"`
}

type RateLimitConfig struct {
	Window      time.Duration `envconfig:"PAYGATE_RATE_LIMIT_WINDOW" default:"1m"`
	CallerLimit int           `envconfig:"PAYGATE_RATE_LIMIT_CALLER_LIMIT" default:"60"`
	IPLimit     int           `envconfig:"PAYGATE_RATE_LIMIT_IP_LIMIT" default:"120"`
}

// ProcessorConfig selects the upstream adapter; one concrete adapter per
// processor, never inheritance.
type ProcessorConfig struct {
	Kind string `envconfig:"PAYGATE_PROCESSOR" default:"sandbox"`
}

func (p ProcessorConfig) Normalized() string {
	return strings.ToLower(strings.TrimSpace(p.Kind))
}

type SquareConfig struct {
	AccessToken string `envconfig:"PAYGATE_SQUARE_ACCESS_TOKEN"`
	Environment string `envconfig:"PAYGATE_SQUARE_ENV" default:"sandbox"`
	LocationID  string `envconfig:"PAYGATE_SQUARE_LOCATION_ID"`
}

type StripeConfig struct {
	APIKey string `envconfig:"PAYGATE_STRIPE_API_KEY"`
	Env    string `envconfig:"PAYGATE_STRIPE_ENV" default:"test"`
}

type OmiseConfig struct {
	PublicKey string `envconfig:"PAYGATE_OMISE_PUBLIC_KEY"`
	SecretKey string `envconfig:"PAYGATE_OMISE_SECRET_KEY"`
}

type SweeperConfig struct {
	Interval time.Duration `envconfig:"PAYGATE_SWEEPER_INTERVAL" default:"5m"`
	LockTTL  time.Duration `envconfig:"PAYGATE_SWEEPER_LOCK_TTL" default:"10m"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PAYGATE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PAYGATE_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range requiredDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
