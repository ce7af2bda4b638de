package datastore

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/conf"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/logger"
)

// PostgresManager handles a PostgreSQL database.
type PostgresManager struct {
	db       *gorm.DB
	location string
}

// NewPostgresManager connects to PostgreSQL and configures the connection pool.
func NewPostgresManager(settings *conf.DatabaseSettings) (*PostgresManager, error) {
	cfg := settings.Postgres
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database, sslMode)

	db, err := gorm.Open(postgres.Open(dsn), gormConfig(settings))
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryDatabase).
			Context("operation", "open_postgres").
			Context("host", cfg.Host).
			Build()
	}

	if err := configurePool(db); err != nil {
		return nil, err
	}

	location := fmt.Sprintf("%s:%d/%s", cfg.Host, cfg.Port, cfg.Database)
	GetLogger().Info("connected to postgres", logger.String("location", location))

	return &PostgresManager{db: db, location: location}, nil
}

// Initialize creates the schema.
func (m *PostgresManager) Initialize() error {
	return Migrate(m.db)
}

// DB returns the underlying GORM database.
func (m *PostgresManager) DB() *gorm.DB {
	return m.db
}

// Path returns host:port/database.
func (m *PostgresManager) Path() string {
	return m.location
}

// Dialect returns "postgres".
func (m *PostgresManager) Dialect() string {
	return conf.DatabasePostgres
}

// Close closes the database connection.
func (m *PostgresManager) Close() error {
	return closeDB(m.db)
}
