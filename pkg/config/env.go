package config

// EnvPrefix is passed to envconfig; every field carries an explicit name so the
// prefix only matters for fields without an envconfig tag.
const EnvPrefix = "BOOKINGS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "BOOKINGS_APP_ENV"
	EnvPort     = "BOOKINGS_APP_PORT"
	EnvLogLevel = "BOOKINGS_LOG_LEVEL"

	EnvDBDSN  = "BOOKINGS_DB_DSN"
	EnvDBHost = "BOOKINGS_DB_HOST"
	EnvDBUser = "BOOKINGS_DB_USER"
	EnvDBName = "BOOKINGS_DB_NAME"

	EnvRedisURL = "BOOKINGS_REDIS_URL"

	EnvJWTSecret = "BOOKINGS_JWT_SECRET"
	EnvJWTIssuer = "BOOKINGS_JWT_ISSUER"

	EnvStripeWebhookSecret = "BOOKINGS_STRIPE_WEBHOOK_SECRET"
	EnvSquareWebhookSecret = "BOOKINGS_SQUARE_WEBHOOK_SECRET"

	EnvAvailabilityDefaultWindow = "BOOKINGS_AVAILABILITY_DEFAULT_WINDOW_DAYS"
	EnvAvailabilityMaxWindow     = "BOOKINGS_AVAILABILITY_MAX_WINDOW_DAYS"

	EnvHoldsSweepBatchSize = "BOOKINGS_HOLDS_SWEEP_BATCH_SIZE"
	EnvVouchersBaseURL     = "BOOKINGS_VOUCHERS_PUBLIC_BASE_URL"

	EnvCORSAllowedOrigins = "BOOKINGS_CORS_ALLOWED_ORIGINS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
