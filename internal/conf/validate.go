// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateWebServerSettings(&settings.WebServer); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateDatabaseSettings(&settings.Database); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateSecuritySettings(&settings.Security); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateMQTTSettings(&settings.MQTT); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if settings.Sentry.Enabled && settings.Sentry.DSN == "" {
		ve.Errors = append(ve.Errors, "sentry.dsn is required when sentry is enabled")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateWebServerSettings(settings *WebServerSettings) error {
	if !settings.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(settings.Listen); err != nil {
		return fmt.Errorf("webserver.listen %q is not a valid host:port: %w", settings.Listen, err)
	}
	return nil
}

func validateDatabaseSettings(settings *DatabaseSettings) error {
	switch settings.Type {
	case DatabaseSQLite:
		if strings.TrimSpace(settings.SQLite.Path) == "" {
			return fmt.Errorf("database.sqlite.path is required")
		}
	case DatabaseMySQL:
		if settings.MySQL.Host == "" || settings.MySQL.Database == "" {
			return fmt.Errorf("database.mysql.host and database.mysql.database are required")
		}
	case DatabasePostgres:
		if settings.Postgres.Host == "" || settings.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.host and database.postgres.database are required")
		}
	default:
		return fmt.Errorf("database.type must be one of sqlite, mysql, postgres, got %q", settings.Type)
	}
	return nil
}

func validateSecuritySettings(settings *SecuritySettings) error {
	const minSecretLength = 16
	if len(settings.JWTSecret) < minSecretLength {
		return fmt.Errorf("security.jwtsecret must be at least %d characters", minSecretLength)
	}
	if settings.TokenTTL <= 0 {
		return fmt.Errorf("security.tokenttl must be positive")
	}
	if settings.LoginRateLimit < 0 {
		return fmt.Errorf("security.loginratelimit must not be negative")
	}
	return nil
}

func validateMQTTSettings(settings *MQTTSettings) error {
	if !settings.Enabled {
		return nil
	}
	if settings.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	if settings.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
	}
	return nil
}
