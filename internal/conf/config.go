// config.go: settings struct for the APLOSE backend and functions to load and save it.
package conf

import (
	"crypto/rand"
	"embed"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// Supported database backends
const (
	DatabaseSQLite   = "sqlite"
	DatabaseMySQL    = "mysql"
	DatabasePostgres = "postgres"
)

// MainSettings contains general application settings
type MainSettings struct {
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// CORSSettings controls cross-origin access to the API
type CORSSettings struct {
	Enabled      bool     `yaml:"enabled"`
	AllowOrigins []string `yaml:"alloworigins"`
}

// WebServerSettings contains HTTP server settings
type WebServerSettings struct {
	Enabled   bool         `yaml:"enabled"`
	Listen    string       `yaml:"listen"`
	Debug     bool         `yaml:"debug"`
	BodyLimit string       `yaml:"bodylimit"`
	CORS      CORSSettings `yaml:"cors"`
}

// SQLiteSettings contains SQLite specific settings
type SQLiteSettings struct {
	Path string `yaml:"path"`
}

// MySQLSettings contains MySQL specific settings
type MySQLSettings struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// PostgresSettings contains PostgreSQL specific settings
type PostgresSettings struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// DatabaseSettings selects and configures the database backend
type DatabaseSettings struct {
	Type               string           `yaml:"type"`
	SlowQueryThreshold time.Duration    `yaml:"slowquerythreshold"`
	SQLite             SQLiteSettings   `yaml:"sqlite"`
	MySQL              MySQLSettings    `yaml:"mysql"`
	Postgres           PostgresSettings `yaml:"postgres"`
}

// SecuritySettings contains authentication settings
type SecuritySettings struct {
	JWTSecret      string        `yaml:"jwtsecret"`
	TokenTTL       time.Duration `yaml:"tokenttl"`
	LoginRateLimit int           `yaml:"loginratelimit"`
}

// CacheSettings contains in-process cache settings
type CacheSettings struct {
	FileListTTL time.Duration `yaml:"filelistttl"`
}

// DatasetSettings locates the dataset bootstrap folders
type DatasetSettings struct {
	Root string `yaml:"root"`
}

// MQTTSettings contains settings for domain event publishing
type MQTTSettings struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"clientid"`
	Topic    string `yaml:"topic"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	QoS      byte   `yaml:"qos"`
	Retain   bool   `yaml:"retain"`
}

// SentrySettings contains error telemetry settings
type SentrySettings struct {
	Enabled     bool   `yaml:"enabled"`
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
}

// MetricsSettings controls the Prometheus endpoint
type MetricsSettings struct {
	Enabled bool `yaml:"enabled"`
}

// Settings is the root configuration struct
type Settings struct {
	Main      MainSettings         `yaml:"main"`
	WebServer WebServerSettings    `yaml:"webserver"`
	Database  DatabaseSettings     `yaml:"database"`
	Security  SecuritySettings     `yaml:"security"`
	Cache     CacheSettings        `yaml:"cache"`
	Datasets  DatasetSettings      `yaml:"datasets"`
	Logging   logger.LoggingConfig `yaml:"logging"`
	MQTT      MQTTSettings         `yaml:"mqtt"`
	Sentry    SentrySettings       `yaml:"sentry"`
	Metrics   MetricsSettings      `yaml:"metrics"`
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into the settings instance.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if settings.Security.JWTSecret == "" {
		settings.Security.JWTSecret = GenerateRandomSecret()
		GetLogger().Warn("security.jwtsecret is empty, using an ephemeral secret; tokens will not survive a restart")
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper sets defaults, binds the environment and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	if err := configureEnvironmentVariables(); err != nil {
		GetLogger().Warn("environment configuration issues", logger.Error(err))
	}

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded default config to the first config path
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")

	defaultConfig, err := getDefaultConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, defaultConfig, 0o600); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	GetLogger().Info("created default config file", logger.String("path", configPath))
	return viper.ReadInConfig()
}

// getDefaultConfig reads the embedded config.yaml
func getDefaultConfig() ([]byte, error) {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return nil, fmt.Errorf("error reading embedded config file: %w", err)
	}
	return data, nil
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, loading it on first use
func Setting() *Settings {
	once.Do(func() {
		if GetSettings() == nil {
			if _, err := Load(); err != nil {
				GetLogger().Error("error loading settings", logger.Error(err))
				os.Exit(1)
			}
		}
	})
	return GetSettings()
}

// SaveYAMLConfig writes settings to configPath atomically through a temporary file.
// Comments and ordering of the existing file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}

// GenerateRandomSecret generates a URL-safe base64 encoded random string
// with 256 bits of entropy.
func GenerateRandomSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		GetLogger().Error("failed to generate random secret", logger.Error(err))
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(bytes)
}
