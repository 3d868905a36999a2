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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Stripe       StripeConfig
	Square       SquareConfig
	Availability AvailabilityConfig
	Holds        HoldsConfig
	Payments     PaymentsConfig
	Vouchers     VouchersConfig
	CORS         CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Availability.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BOOKINGS_APP_ENV" required:"true"`
	Port         string `envconfig:"BOOKINGS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BOOKINGS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BOOKINGS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"BOOKINGS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN string `envconfig:"BOOKINGS_DB_DSN"`
	// UseSQLite treats DSN as a SQLite file path for local runs.
	UseSQLite bool `envconfig:"BOOKINGS_USE_SQLITE" default:"false"`

	LegacyHost     string `envconfig:"BOOKINGS_DB_HOST"`
	LegacyPort     int    `envconfig:"BOOKINGS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BOOKINGS_DB_USER"`
	LegacyPassword string `envconfig:"BOOKINGS_DB_PASSWORD"`
	LegacyName     string `envconfig:"BOOKINGS_DB_NAME"`
	LegacySSLMode  string `envconfig:"BOOKINGS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BOOKINGS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BOOKINGS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BOOKINGS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BOOKINGS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQuery is the duration above which a statement is logged as a warning.
	SlowQuery time.Duration `envconfig:"BOOKINGS_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BOOKINGS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BOOKINGS_REDIS_ADDR"`
	Password     string        `envconfig:"BOOKINGS_REDIS_PASSWORD"`
	DB           int           `envconfig:"BOOKINGS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BOOKINGS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BOOKINGS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BOOKINGS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BOOKINGS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BOOKINGS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies bearer tokens minted by the account service.
type JWTConfig struct {
	Secret string `envconfig:"BOOKINGS_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"BOOKINGS_JWT_ISSUER" required:"true"`
	// Leeway absorbs clock skew between this service and the token minter.
	Leeway time.Duration `envconfig:"BOOKINGS_JWT_LEEWAY" default:"30s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"BOOKINGS_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"BOOKINGS_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"BOOKINGS_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"BOOKINGS_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	VoucherTopic        string `envconfig:"BOOKINGS_PUBSUB_VOUCHER_TOPIC" default:"bk-voucher-requests"`
	VoucherSubscription string `envconfig:"BOOKINGS_PUBSUB_VOUCHER_SUBSCRIPTION" default:"bk-voucher-requests-worker"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"BOOKINGS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"BOOKINGS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"BOOKINGS_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// StripeConfig carries the webhook signing secret. An empty secret disables
// signature verification, which is only meant for local and sandbox runs.
type StripeConfig struct {
	WebhookSecret      string        `envconfig:"BOOKINGS_STRIPE_WEBHOOK_SECRET"`
	SignatureTolerance time.Duration `envconfig:"BOOKINGS_STRIPE_SIGNATURE_TOLERANCE" default:"5m"`
}

type SquareConfig struct {
	WebhookSecret string `envconfig:"BOOKINGS_SQUARE_WEBHOOK_SECRET"`
}

type AvailabilityConfig struct {
	DefaultWindowDays int `envconfig:"BOOKINGS_AVAILABILITY_DEFAULT_WINDOW_DAYS" default:"365"`
	MaxWindowDays     int `envconfig:"BOOKINGS_AVAILABILITY_MAX_WINDOW_DAYS" default:"730"`
}

func (a AvailabilityConfig) validate() error {
	if a.DefaultWindowDays <= 0 || a.MaxWindowDays <= 0 {
		return fmt.Errorf("availability window days must be positive")
	}
	if a.DefaultWindowDays > a.MaxWindowDays {
		return fmt.Errorf("%s must not exceed %s", EnvAvailabilityDefaultWindow, EnvAvailabilityMaxWindow)
	}
	return nil
}

type HoldsConfig struct {
	SweepBatchSize int           `envconfig:"BOOKINGS_HOLDS_SWEEP_BATCH_SIZE" default:"100"`
	SweepInterval  time.Duration `envconfig:"BOOKINGS_HOLDS_SWEEP_INTERVAL" default:"5m"`
}

type PaymentsConfig struct {
	RawPayloadMaxBytes int `envconfig:"BOOKINGS_PAYMENTS_RAW_PAYLOAD_MAX_BYTES" default:"8192"`
	UpdateMaxAttempts  int `envconfig:"BOOKINGS_PAYMENTS_UPDATE_MAX_ATTEMPTS" default:"3"`
}

type VouchersConfig struct {
	PublicBaseURL string `envconfig:"BOOKINGS_VOUCHERS_PUBLIC_BASE_URL" default:"http://localhost:8080"`
	// IdempotencyTTL is how long a voucher response is replayed for a
	// repeated Idempotency-Key.
	IdempotencyTTL time.Duration `envconfig:"BOOKINGS_VOUCHERS_IDEMPOTENCY_TTL" default:"24h"`
}

// URLFor builds the public voucher link for a code.
func (v VouchersConfig) URLFor(code string) string {
	base := strings.TrimRight(strings.TrimSpace(v.PublicBaseURL), "/")
	return base + "/vouchers/" + url.PathEscape(code)
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"BOOKINGS_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
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
