// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig registers default values for every configuration key.
// These must stay in sync with the embedded config.yaml.
func setDefaultConfig() {
	viper.SetDefault("main.name", "APLOSE")
	viper.SetDefault("main.timezone", "UTC")

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.listen", "0.0.0.0:8000")
	viper.SetDefault("webserver.debug", false)
	viper.SetDefault("webserver.bodylimit", "50M")
	viper.SetDefault("webserver.cors.enabled", false)
	viper.SetDefault("webserver.cors.alloworigins", []string{})

	viper.SetDefault("database.type", DatabaseSQLite)
	viper.SetDefault("database.slowquerythreshold", 200*time.Millisecond)
	viper.SetDefault("database.sqlite.path", "aplose.db")
	viper.SetDefault("database.mysql.host", "localhost")
	viper.SetDefault("database.mysql.port", 3306)
	viper.SetDefault("database.mysql.database", "aplose")
	viper.SetDefault("database.postgres.host", "localhost")
	viper.SetDefault("database.postgres.port", 5432)
	viper.SetDefault("database.postgres.database", "aplose")
	viper.SetDefault("database.postgres.sslmode", "disable")

	viper.SetDefault("security.jwtsecret", "")
	viper.SetDefault("security.tokenttl", 24*time.Hour)
	viper.SetDefault("security.loginratelimit", 5)

	viper.SetDefault("cache.filelistttl", 10*time.Minute)

	viper.SetDefault("datasets.root", "datasets")

	viper.SetDefault("logging.default_level", "info")
	viper.SetDefault("logging.timezone", "UTC")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.file_output.enabled", false)
	viper.SetDefault("logging.file_output.path", "logs/aplose.log")
	viper.SetDefault("logging.file_output.level", "info")

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.clientid", "aplose")
	viper.SetDefault("mqtt.topic", "aplose/events")
	viper.SetDefault("mqtt.qos", 1)
	viper.SetDefault("mqtt.retain", false)

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.environment", "production")

	viper.SetDefault("metrics.enabled", true)
}
