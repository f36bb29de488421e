package config

const (
	EnvPrefix = "PAYGATE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "PAYGATE_DB_DSN"
	EnvDBHost = "PAYGATE_DB_HOST"
	EnvDBUser = "PAYGATE_DB_USER"
	EnvDBName = "PAYGATE_DB_NAME"

	EnvMaxAmount     = "PAYGATE_MAX_AMOUNT_MINOR_UNITS"
	EnvChargeTimeout = "PAYGATE_CHARGE_TIMEOUT"
	EnvCurrencies    = "PAYGATE_CURRENCIES"
)

var requiredDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
