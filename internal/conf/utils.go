// conf/utils.go various util functions for configuration package
package conf

import (
	"os"
	"path/filepath"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/logger"
)

// ConfigDirEnv overrides the configuration search path with a single directory.
const ConfigDirEnv = "APLOSE_CONFIG_DIR"

// GetLogger returns the configuration module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("conf")
}

// GetDefaultConfigPaths returns the directories searched for config.yaml.
// If a config.yaml exists in one of them, only that directory is returned.
func GetDefaultConfigPaths() ([]string, error) {
	if dir := os.Getenv(ConfigDirEnv); dir != "" {
		return []string{dir}, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategorySystem).
			Context("operation", "get-home-directory").
			Build()
	}

	configPaths := []string{
		".",
		filepath.Join(homeDir, ".config", "aplose"),
		"/etc/aplose",
	}

	for _, path := range configPaths {
		if _, err := os.Stat(filepath.Join(path, "config.yaml")); err == nil {
			return []string{path}, nil
		}
	}

	return configPaths, nil
}

// FindConfigFile locates the configuration file.
func FindConfigFile() (string, error) {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return "", errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "find-config-paths").
			Build()
	}

	for _, path := range configPaths {
		configFilePath := filepath.Join(path, "config.yaml")
		if _, err := os.Stat(configFilePath); err == nil {
			return configFilePath, nil
		}
	}

	return "", errors.Newf("config file not found").
		Category(errors.CategoryFileIO).
		Context("operation", "find-config-file").
		Build()
}
