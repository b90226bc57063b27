package config

// EnvPrefix is applied by envconfig to fields without explicit tags.
const EnvPrefix = "energy"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Environment variable names shared with tests and tooling.
const (
	EnvAppEnv   = "ENERGY_APP_ENV"
	EnvPort     = "ENERGY_APP_PORT"
	EnvDBDSN    = "ENERGY_DB_DSN"
	EnvDBHost   = "ENERGY_DB_HOST"
	EnvDBUser   = "ENERGY_DB_USER"
	EnvDBName   = "ENERGY_DB_NAME"
	EnvRedisURL = "ENERGY_REDIS_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
