/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"
	"time"

	"github.com/friendsincode/worktime/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect establishes a gorm DB connection for the configured backend.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	dialector, err := Dialector(cfg.DBBackend, cfg.DBDSN)
	if err != nil {
		return nil, err
	}

	logLevel := logger.Warn
	if cfg.Environment == "development" {
		logLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.DBBackend, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// SQLite serialises writers; a single connection avoids "database is locked".
	if cfg.DBBackend == config.DatabaseSQLite {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(50)
	}
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := RegisterCallbacks(db); err != nil {
		return nil, fmt.Errorf("register db callbacks: %w", err)
	}

	return db, nil
}

// Dialector returns the gorm dialector for a backend.
func Dialector(backend config.DatabaseBackend, dsn string) (gorm.Dialector, error) {
	switch backend {
	case config.DatabasePostgres:
		return postgres.Open(dsn), nil
	case config.DatabaseMySQL:
		return mysql.Open(dsn), nil
	case config.DatabaseSQLite:
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unknown database backend: %s", backend)
	}
}

// Close releases database resources.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
