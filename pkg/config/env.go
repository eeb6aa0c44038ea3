package config

const (
	EnvPrefix = "KEYSTOCK"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	DefaultSQLiteDSN = "file:keystock.db?_foreign_keys=1&_busy_timeout=5000"

	DefaultSeedAdminUsername = "Admin"

	EnvAppEnv     = "KEYSTOCK_APP_ENV"
	EnvPort       = "KEYSTOCK_APP_PORT"
	EnvTimezone   = "KEYSTOCK_TIMEZONE"
	EnvDBDSN      = "KEYSTOCK_DB_DSN"
	EnvDBDriver   = "KEYSTOCK_DB_DRIVER"
	EnvDBHost     = "KEYSTOCK_DB_HOST"
	EnvDBUser     = "KEYSTOCK_DB_USER"
	EnvDBName     = "KEYSTOCK_DB_NAME"
	EnvRedisURL   = "KEYSTOCK_REDIS_URL"
	EnvJWTSecret  = "KEYSTOCK_JWT_SECRET"
	EnvJWTIssuer  = "KEYSTOCK_JWT_ISSUER"
	EnvJWTExpMins = "KEYSTOCK_JWT_EXPIRATION_MINUTES"
	EnvMaxUsage   = "KEYSTOCK_LEDGER_MAX_USAGE_QTY"
	EnvCORS       = "KEYSTOCK_CORS_ALLOWED_ORIGINS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
