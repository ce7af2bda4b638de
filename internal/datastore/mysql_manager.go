package datastore

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/conf"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/logger"
)

// MySQLManager handles a MySQL database.
type MySQLManager struct {
	db       *gorm.DB
	location string // host:port/database for display
}

// NewMySQLManager connects to MySQL and configures the connection pool.
func NewMySQLManager(settings *conf.DatabaseSettings) (*MySQLManager, error) {
	cfg := settings.MySQL
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	db, err := gorm.Open(mysql.Open(dsn), gormConfig(settings))
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryDatabase).
			Context("operation", "open_mysql").
			Context("host", cfg.Host).
			Build()
	}

	if err := configurePool(db); err != nil {
		return nil, err
	}

	location := fmt.Sprintf("%s:%d/%s", cfg.Host, cfg.Port, cfg.Database)
	GetLogger().Info("connected to mysql", logger.String("location", location))

	return &MySQLManager{db: db, location: location}, nil
}

// configurePool applies the pool limits shared by the networked backends.
func configurePool(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return nil
}

// Initialize creates the schema.
func (m *MySQLManager) Initialize() error {
	return Migrate(m.db)
}

// DB returns the underlying GORM database.
func (m *MySQLManager) DB() *gorm.DB {
	return m.db
}

// Path returns host:port/database.
func (m *MySQLManager) Path() string {
	return m.location
}

// Dialect returns "mysql".
func (m *MySQLManager) Dialect() string {
	return conf.DatabaseMySQL
}

// Close closes the database connection.
func (m *MySQLManager) Close() error {
	return closeDB(m.db)
}
