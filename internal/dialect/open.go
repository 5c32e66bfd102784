package dialect

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/cargotrail/schemarun/internal/constants"
)

// Open opens a pooled database handle for the configured driver.
func Open(cfg Config) (*sql.DB, error) {
	if !cfg.Driver.Valid() {
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}
	if cfg.DriverConfig == nil {
		return nil, fmt.Errorf("missing driver config for %s", cfg.Driver)
	}

	dsn, err := cfg.DriverConfig.ToDSN()
	if err != nil {
		return nil, err
	}

	switch cfg.Driver {
	case DriverSqlite:
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite connection: %w", err)
		}
		// SQLite allows only one writer; a larger pool just causes lock errors
		db.SetMaxOpenConns(constants.DefaultSQLiteMaxConnections)
		db.SetMaxIdleConns(constants.DefaultSQLiteMaxIdleConns)
		db.SetConnMaxLifetime(constants.DefaultSQLiteLifetime)
		db.SetConnMaxIdleTime(constants.DefaultSQLiteIdleTime)
		if err := db.Ping(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
		}
		return db, nil
	default:
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres connection: %w", err)
		}
		db.SetMaxOpenConns(constants.DefaultPostgresMaxConnections)
		db.SetMaxIdleConns(constants.DefaultPostgresMaxIdleConns)
		db.SetConnMaxLifetime(constants.DefaultMaxConnLifetime)
		db.SetConnMaxIdleTime(constants.DefaultMaxIdleTime)
		if err := db.Ping(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to ping postgres database: %w", err)
		}
		return db, nil
	}
}
