package database

import (
	"fmt"
	"log/slog"
	"time"

	"chantier-tracker/internal/config"
	"chantier-tracker/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	maxAttempts  = 10
	retryBackoff = 2 * time.Second

	ping = func(db *gorm.DB) error { return db.Exec("SELECT 1").Error }
)

// Models lists every table managed by AutoMigrate, parents first.
var Models = []any{
	&models.User{},
	&models.Client{},
	&models.Chantier{},
	&models.Intervention{},
	&models.AuditLog{},
}

func dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "postgres":
		return postgres.Open(dsn), nil
	case "mysql":
		return mysql.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(dsn), nil
	}
	return nil, fmt.Errorf("unsupported driver %q", driver)
}

// GormConfig is shared by the server and the tests. References between
// tables are plain ids, so no FK constraints are created.
func GormConfig(debug bool) *gorm.Config {
	level := logger.Silent
	if debug {
		level = logger.Info
	}
	return &gorm.Config{
		Logger:                                   logger.Default.LogMode(level),
		DisableForeignKeyConstraintWhenMigrating: true,
	}
}

// Open connects with retries; the database container may still be starting.
func Open(cfg config.DBConfig, log *slog.Logger) (*gorm.DB, error) {
	dial, err := dialector(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	var db *gorm.DB
	for i := 1; i <= maxAttempts; i++ {
		log.Info("connecting to database", "driver", cfg.Driver, "attempt", i, "max", maxAttempts)

		db, err = connect(dial, cfg.Debug)
		if err == nil {
			log.Info("connected to database")
			return db, nil
		}

		log.Warn("database connection failed", "error", err)
		if i < maxAttempts {
			time.Sleep(retryBackoff)
		}
	}
	return nil, fmt.Errorf("connect after %d attempts: %w", maxAttempts, err)
}

// connect opens one pool and checks it answers. A pool that does not is
// closed before the caller retries.
func connect(dial gorm.Dialector, debug bool) (*gorm.DB, error) {
	db, err := gorm.Open(dial, GormConfig(debug))
	if err != nil {
		return nil, err
	}
	if err := ping(db); err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB, cfg config.DBConfig) error {
	if cfg.Migrations == "sql" {
		if cfg.Driver != "postgres" {
			return fmt.Errorf("sql migrations are only shipped for postgres, got %q", cfg.Driver)
		}
		return runSQLMigrations(db)
	}
	for _, m := range Models {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	return nil
}
