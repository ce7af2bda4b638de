// Package datastore opens the annotation database and owns its schema.
package datastore

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/conf"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/logger"
)

// Manager defines the database lifecycle operations.
type Manager interface {
	// Initialize creates or updates the schema.
	Initialize() error
	// DB returns the underlying GORM database.
	DB() *gorm.DB
	// Path returns the database location (file path for SQLite, host/database otherwise).
	Path() string
	// Dialect returns the configured database type.
	Dialect() string
	// Close closes the database connection.
	Close() error
}

// GetLogger returns the datastore module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("datastore")
}

// AllEntities lists every entity in dependency order.
func AllEntities() []any {
	return []any{
		&entities.User{},
		&entities.Dataset{},
		&entities.AudioMetadata{},
		&entities.SpectrogramConfiguration{},
		&entities.DatasetFile{},
		&entities.Label{},
		&entities.LabelSet{},
		&entities.ConfidenceIndicatorSet{},
		&entities.ConfidenceIndicator{},
		&entities.Detector{},
		&entities.DetectorConfiguration{},
		&entities.Archive{},
		&entities.AnnotationCampaign{},
		&entities.AnnotationCampaignPhase{},
		&entities.AnnotationFileRange{},
		&entities.AnnotationTask{},
		&entities.AnnotationResult{},
		&entities.AnnotationComment{},
		&entities.AnnotationResultValidation{},
	}
}

// Migrate runs GORM auto-migrations for all entities.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllEntities()...); err != nil {
		return errors.New(err).
			Category(errors.CategoryDatabase).
			Context("operation", "auto_migrate").
			Build()
	}
	return nil
}

// NewManager opens the database selected by settings.Type.
func NewManager(settings *conf.DatabaseSettings) (Manager, error) {
	switch settings.Type {
	case conf.DatabaseSQLite, "":
		return NewSQLiteManager(settings)
	case conf.DatabaseMySQL:
		return NewMySQLManager(settings)
	case conf.DatabasePostgres:
		return NewPostgresManager(settings)
	default:
		return nil, errors.Newf("unsupported database type %q", settings.Type).
			Category(errors.CategoryConfiguration).
			Context("database_type", settings.Type).
			Build()
	}
}

// Open opens the configured database and brings its schema up to date.
func Open(settings *conf.DatabaseSettings) (Manager, error) {
	m, err := NewManager(settings)
	if err != nil {
		return nil, err
	}
	if err := m.Initialize(); err != nil {
		_ = m.Close()
		return nil, err
	}
	return m, nil
}

func gormConfig(settings *conf.DatabaseSettings) *gorm.Config {
	return &gorm.Config{
		Logger:         logger.NewGormLoggerAdapter(GetLogger(), settings.SlowQueryThreshold),
		TranslateError: true,
	}
}

// SQLiteManager handles a file backed SQLite database.
type SQLiteManager struct {
	db     *gorm.DB
	dbPath string
}

// NewSQLiteManager opens (and creates if needed) the SQLite database file.
func NewSQLiteManager(settings *conf.DatabaseSettings) (*SQLiteManager, error) {
	dbPath := settings.SQLite.Path
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.New(err).
				Category(errors.CategoryFileIO).
				Context("operation", "create_database_directory").
				Context("path", dir).
				Build()
		}
	}

	// Build DSN with recommended SQLite pragmas
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON", dbPath)

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig(settings))
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryDatabase).
			Context("operation", "open_sqlite").
			Context("path", dbPath).
			Build()
	}

	// SQLite allows a single writer; serializing connections avoids SQLITE_BUSY
	// inside long transactions.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	GetLogger().Info("opened sqlite database", logger.String("path", dbPath))

	return &SQLiteManager{db: db, dbPath: dbPath}, nil
}

// Initialize creates the schema.
func (m *SQLiteManager) Initialize() error {
	return Migrate(m.db)
}

// DB returns the underlying GORM database.
func (m *SQLiteManager) DB() *gorm.DB {
	return m.db
}

// Path returns the database file path.
func (m *SQLiteManager) Path() string {
	return m.dbPath
}

// Dialect returns "sqlite".
func (m *SQLiteManager) Dialect() string {
	return conf.DatabaseSQLite
}

// Close closes the database connection.
func (m *SQLiteManager) Close() error {
	return closeDB(m.db)
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.Close()
}
