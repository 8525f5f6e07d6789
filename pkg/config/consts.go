package config

// EnvPrefix is the envconfig prefix shared by every binary.
const EnvPrefix = "mushcheck"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "MUSHCHECK_DB_DSN"
	EnvDBHost = "MUSHCHECK_DB_HOST"
	EnvDBUser = "MUSHCHECK_DB_USER"
	EnvDBName = "MUSHCHECK_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
