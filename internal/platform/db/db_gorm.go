// Package db opens the SQL database used for users, sessions and SQL-backed posts.
package db

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const retryInterval = 3 * time.Second

// Config describes how to reach the database.
type Config struct {
	Driver     string // "postgres" or "sqlite"
	Host       string
	Port       string
	User       string
	Password   string
	Name       string
	SSLMode    string
	SQLitePath string
}

// Opener opens a gorm connection for a DSN. Tests substitute it.
type Opener func(dsn string) (*gorm.DB, error)

// BuildDSN returns the connection string for cfg.Driver.
func BuildDSN(cfg Config) string {
	if cfg.Driver == "sqlite" {
		return cfg.SQLitePath
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, sslMode)
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		// Driver errors such as unique violations become gorm.ErrDuplicatedKey.
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	}
}

// NewOpener returns the Opener for driver.
func NewOpener(driver string) (Opener, error) {
	switch driver {
	case "postgres":
		return func(dsn string) (*gorm.DB, error) {
			return gorm.Open(postgres.Open(dsn), gormConfig())
		}, nil
	case "sqlite":
		return func(dsn string) (*gorm.DB, error) {
			db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
			if err != nil {
				return nil, err
			}
			// SQLite allows one writer at a time.
			sqlDB, err := db.DB()
			if err != nil {
				return nil, err
			}
			sqlDB.SetMaxOpenConns(1)
			return db, nil
		}, nil
	default:
		return nil, fmt.Errorf("unsupported DB driver %q", driver)
	}
}

// ConnectWithRetry calls open until it succeeds or timeout elapses.
func ConnectWithRetry(dsn string, timeout time.Duration, open Opener) (*gorm.DB, error) {
	deadline := time.Now().Add(timeout)
	for {
		db, err := open(dsn)
		if err == nil {
			return db, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("DB connect failed after %s: %w", timeout, err)
		}
		slog.Warn("DB connect failed, retrying", "error", err, "retry_in", retryInterval)
		time.Sleep(retryInterval)
	}
}

// Open connects to the database described by cfg, retrying for up to a minute,
// and migrates the given models when models is non-empty.
func Open(cfg Config, models ...any) (*gorm.DB, error) {
	open, err := NewOpener(cfg.Driver)
	if err != nil {
		return nil, err
	}
	db, err := ConnectWithRetry(BuildDSN(cfg), 60*time.Second, open)
	if err != nil {
		return nil, err
	}
	if len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			return nil, fmt.Errorf("failed to migrate: %w", err)
		}
	}
	slog.Info("database connected", "driver", cfg.Driver)
	return db, nil
}

// Close releases the connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
