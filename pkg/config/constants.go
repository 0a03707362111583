package config

const EnvPrefix = "SURVEYCASH"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Environment variable names referenced outside of struct tags.
const (
	EnvAppEnv   = "SURVEYCASH_APP_ENV"
	EnvPort     = "SURVEYCASH_APP_PORT"
	EnvLogLevel = "SURVEYCASH_LOG_LEVEL"

	EnvDBDSN  = "SURVEYCASH_DB_DSN"
	EnvDBHost = "SURVEYCASH_DB_HOST"
	EnvDBUser = "SURVEYCASH_DB_USER"
	EnvDBName = "SURVEYCASH_DB_NAME"

	EnvRedisURL = "SURVEYCASH_REDIS_URL"

	EnvJWTSecret  = "SURVEYCASH_JWT_SECRET"
	EnvJWTIssuer  = "SURVEYCASH_JWT_ISSUER"
	EnvJWTExpMins = "SURVEYCASH_JWT_EXPIRATION_MINUTES"

	EnvPayPalClientID     = "SURVEYCASH_PAYPAL_CLIENT_ID"
	EnvPayPalClientSecret = "SURVEYCASH_PAYPAL_CLIENT_SECRET"
	EnvPayPalEnv          = "SURVEYCASH_PAYPAL_ENV"

	EnvPayoutDenominations  = "SURVEYCASH_PAYOUT_DENOMINATIONS"
	EnvPayoutReconcileEvery = "SURVEYCASH_PAYOUT_RECONCILE_INTERVAL"

	EnvOfferwallAppID = "SURVEYCASH_CPX_APP_ID"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
