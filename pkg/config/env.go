package config

const (
	EnvPrefix = "ORDERFLOW"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	EnvAppEnv   = "ORDERFLOW_APP_ENV"
	EnvLogLevel = "ORDERFLOW_LOG_LEVEL"

	EnvDBDSN     = "ORDERFLOW_DB_DSN"
	EnvDBHost    = "ORDERFLOW_DB_HOST"
	EnvDBPort    = "ORDERFLOW_DB_PORT"
	EnvDBUser    = "ORDERFLOW_DB_USER"
	EnvDBName    = "ORDERFLOW_DB_NAME"
	EnvUseSQLite = "ORDERFLOW_USE_SQLITE"

	EnvRedisURL = "ORDERFLOW_REDIS_URL"

	EnvSquareAccessToken = "ORDERFLOW_SQUARE_ACCESS_TOKEN"
	EnvSquareEnv         = "ORDERFLOW_SQUARE_ENV"

	EnvCheckoutPaymentTimeout      = "ORDERFLOW_CHECKOUT_PAYMENT_TIMEOUT"
	EnvCheckoutOrderNumberAttempts = "ORDERFLOW_CHECKOUT_ORDER_NUMBER_MAX_ATTEMPTS"
	EnvCheckoutPendingOrderTTL     = "ORDERFLOW_CHECKOUT_PENDING_ORDER_TTL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
