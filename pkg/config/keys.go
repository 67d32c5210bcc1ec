package config

const EnvPrefix = "COMMERCE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	EnvAppEnv   = "COMMERCE_APP_ENV"
	EnvPort     = "COMMERCE_APP_PORT"
	EnvLogLevel = "COMMERCE_LOG_LEVEL"

	EnvDBDSN  = "COMMERCE_DB_DSN"
	EnvDBHost = "COMMERCE_DB_HOST"
	EnvDBUser = "COMMERCE_DB_USER"
	EnvDBName = "COMMERCE_DB_NAME"

	EnvRedisURL = "COMMERCE_REDIS_URL"

	EnvDefaultCurrency     = "COMMERCE_PRICING_DEFAULT_CURRENCY"
	EnvAllowNegativeTotals = "COMMERCE_PRICING_ALLOW_NEGATIVE_TOTALS"
	EnvGatewayTimeout      = "COMMERCE_GATEWAY_CALL_TIMEOUT"
	EnvUseSQLite           = "COMMERCE_USE_SQLITE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
