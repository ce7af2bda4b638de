// env.go - environment variable configuration and validation
package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by the application.
const EnvPrefix = "APLOSE"

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all explicit environment variable bindings
func getEnvBindings() []envBinding {
	return []envBinding{
		{"webserver.listen", "APLOSE_LISTEN", nil},
		{"webserver.debug", "APLOSE_DEBUG", validateEnvBool},

		{"database.type", "APLOSE_DATABASE_TYPE", validateEnvDatabaseType},
		{"database.sqlite.path", "APLOSE_SQLITE_PATH", nil},
		{"database.mysql.host", "APLOSE_MYSQL_HOST", nil},
		{"database.mysql.port", "APLOSE_MYSQL_PORT", validateEnvPort},
		{"database.mysql.username", "APLOSE_MYSQL_USERNAME", nil},
		{"database.mysql.password", "APLOSE_MYSQL_PASSWORD", nil},
		{"database.mysql.database", "APLOSE_MYSQL_DATABASE", nil},
		{"database.postgres.host", "APLOSE_POSTGRES_HOST", nil},
		{"database.postgres.port", "APLOSE_POSTGRES_PORT", validateEnvPort},
		{"database.postgres.username", "APLOSE_POSTGRES_USERNAME", nil},
		{"database.postgres.password", "APLOSE_POSTGRES_PASSWORD", nil},
		{"database.postgres.database", "APLOSE_POSTGRES_DATABASE", nil},

		{"security.jwtsecret", "APLOSE_JWT_SECRET", nil},
		{"security.tokenttl", "APLOSE_TOKEN_TTL", validateEnvDuration},

		{"datasets.root", "APLOSE_DATASETS_ROOT", nil},

		{"mqtt.enabled", "APLOSE_MQTT_ENABLED", validateEnvBool},
		{"mqtt.broker", "APLOSE_MQTT_BROKER", nil},
		{"sentry.enabled", "APLOSE_SENTRY_ENABLED", validateEnvBool},
		{"sentry.dsn", "APLOSE_SENTRY_DSN", nil},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true or false")
	}
	return nil
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("must be a port number between 1 and 65535")
	}
	return nil
}

func validateEnvDuration(value string) error {
	if _, err := time.ParseDuration(value); err != nil {
		return fmt.Errorf("must be a duration such as 12h: %w", err)
	}
	return nil
}

func validateEnvDatabaseType(value string) error {
	switch value {
	case DatabaseSQLite, DatabaseMySQL, DatabasePostgres:
		return nil
	default:
		return fmt.Errorf("must be one of sqlite, mysql, postgres")
	}
}

// configureEnvironmentVariables sets up environment variable support for Viper
func configureEnvironmentVariables() error {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	return bindEnvVars()
}
