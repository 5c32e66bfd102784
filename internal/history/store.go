package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/cargotrail/schemarun/internal/common"
	"github.com/cargotrail/schemarun/internal/constants"
	"github.com/cargotrail/schemarun/internal/dialect"
	"github.com/cargotrail/schemarun/internal/retry"
)

// Config selects the database the ledger lives in and the table it uses.
type Config struct {
	Driver       dialect.Driver
	DriverConfig dialect.DriverConfig
	TableName    string
}

// Store is the persisted migration ledger. It owns the database pool; the
// same pool is handed to operations so the ledger and the schema being
// migrated live in one database.
type Store struct {
	db     *sql.DB
	driver dialect.Driver
	table  string
	retry  *retry.Config
}

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// safeTableName validates a configured table name, falling back to the
// default for anything that is not a plain identifier.
func safeTableName(name string) string {
	if name == "" {
		return constants.DefaultMigrationsTable
	}
	if !tableNameRe.MatchString(name) {
		common.GetLogger().WithComponent("history").Warn("invalid table name, using default",
			"table", name, "default", constants.DefaultMigrationsTable)
		return constants.DefaultMigrationsTable
	}
	return name
}

// Connect opens the database for the given config and prepares the store.
func (s *Store) Connect(cfg Config) error {
	driver := cfg.Driver
	if driver == "" {
		driver = dialect.DriverSqlite
	}
	if !driver.Valid() {
		return fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := dialect.Open(dialect.Config{Driver: driver, DriverConfig: cfg.DriverConfig})
	if err != nil {
		return fmt.Errorf("failed to connect history store: %w", err)
	}

	s.db = db
	s.driver = driver
	s.table = safeTableName(cfg.TableName)
	s.retry = retry.DefaultRetryConfig()

	common.GetLogger().WithComponent("history").WithStore(driver.String()).
		Info("history store connected", "table", s.table)
	return nil
}

// Close closes the underlying pool. Safe on a zero store.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB exposes the shared pool for operations running against the same database.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Driver returns the connected driver.
func (s *Store) Driver() dialect.Driver {
	return s.driver
}

// Table returns the validated ledger table name.
func (s *Store) Table() string {
	return s.table
}

// Ensure creates the ledger table when missing.
func (s *Store) Ensure(ctx context.Context) error {
	if s.db == nil {
		return errors.New("history store is not connected")
	}

	var ddl string
	if s.driver == dialect.DriverPostgres {
		// #nosec G201 -- table name is validated by safeTableName
		ddl = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			name TEXT NOT NULL,
			version TEXT NOT NULL,
			status TEXT NOT NULL,
			error_message TEXT NULL,
			executed_at TIMESTAMPTZ NULL,
			completed_at TIMESTAMPTZ NULL,
			duration_ms BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (name, version)
		)`, s.table)
	} else {
		// #nosec G201 -- table name is validated by safeTableName
		ddl = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			name TEXT NOT NULL,
			version TEXT NOT NULL,
			status TEXT NOT NULL,
			error_message TEXT NULL,
			executed_at TEXT NULL,
			completed_at TEXT NULL,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (name, version)
		)`, s.table)
	}

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to ensure history table %s: %w", s.table, err)
	}

	common.GetLogger().WithComponent("history").Debug("history table ensured", "table", s.table)
	return nil
}

const recordCols = "name, version, status, error_message, executed_at, completed_at, duration_ms"

// Upsert writes the latest attempt outcome for rec's (name, version) identity.
func (s *Store) Upsert(ctx context.Context, rec Record) error {
	if s.db == nil {
		return errors.New("history store is not connected")
	}

	// #nosec G201 -- table name is validated by safeTableName
	q := s.driver.Rebind(fmt.Sprintf(`INSERT INTO %s (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name, version) DO UPDATE SET
			status = excluded.status,
			error_message = excluded.error_message,
			executed_at = excluded.executed_at,
			completed_at = excluded.completed_at,
			duration_ms = excluded.duration_ms`, s.table, recordCols))

	_, err := retry.WithRetryExec(ctx, s.retry, func() (sql.Result, error) {
		return s.db.ExecContext(ctx, q,
			rec.Name,
			rec.Version,
			string(rec.Status),
			nullString(rec.ErrorMessage),
			s.driver.BindTimePtr(rec.ExecutedAt),
			s.driver.BindTimePtr(rec.CompletedAt),
			rec.DurationMS,
		)
	})
	if err != nil {
		return fmt.Errorf("failed to upsert history for %s@%s: %w", rec.Name, rec.Version, err)
	}
	return nil
}

// Get fetches the record for one (name, version) identity, or nil when the
// migration has never been attempted.
func (s *Store) Get(ctx context.Context, name, version string) (*Record, error) {
	if s.db == nil {
		return nil, errors.New("history store is not connected")
	}

	// #nosec G201 -- table name is validated by safeTableName
	q := s.driver.Rebind(fmt.Sprintf(
		"SELECT %s FROM %s WHERE name = ? AND version = ?", recordCols, s.table))

	rec, err := s.scanRecord(s.db.QueryRowContext(ctx, q, name, version))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load history for %s@%s: %w", name, version, err)
	}
	return rec, nil
}

// List returns every record, most recent attempt first.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	if s.db == nil {
		return nil, errors.New("history store is not connected")
	}

	// #nosec G201 -- table name is validated by safeTableName
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY executed_at DESC, name ASC", recordCols, s.table)

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		rec, err := s.scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history rows: %w", err)
	}
	return out, nil
}

// Delete removes the record for one (name, version) identity. Used by
// rollback so a later run re-applies the migration.
func (s *Store) Delete(ctx context.Context, name, version string) error {
	if s.db == nil {
		return errors.New("history store is not connected")
	}

	// #nosec G201 -- table name is validated by safeTableName
	q := s.driver.Rebind(fmt.Sprintf("DELETE FROM %s WHERE name = ? AND version = ?", s.table))

	_, err := retry.WithRetryExec(ctx, s.retry, func() (sql.Result, error) {
		return s.db.ExecContext(ctx, q, name, version)
	})
	if err != nil {
		return fmt.Errorf("failed to delete history for %s@%s: %w", name, version, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *Store) scanRecord(sc rowScanner) (*Record, error) {
	var rec Record
	var errMsg sql.NullString
	var duration sql.NullInt64

	if s.driver == dialect.DriverPostgres {
		var executed, completed sql.NullTime
		if err := sc.Scan(&rec.Name, &rec.Version, (*string)(&rec.Status), &errMsg,
			&executed, &completed, &duration); err != nil {
			return nil, err
		}
		if executed.Valid {
			t := executed.Time.UTC()
			rec.ExecutedAt = &t
		}
		if completed.Valid {
			t := completed.Time.UTC()
			rec.CompletedAt = &t
		}
	} else {
		var executed, completed sql.NullString
		if err := sc.Scan(&rec.Name, &rec.Version, (*string)(&rec.Status), &errMsg,
			&executed, &completed, &duration); err != nil {
			return nil, err
		}
		var err error
		if rec.ExecutedAt, err = parseTimePtr(executed); err != nil {
			return nil, err
		}
		if rec.CompletedAt, err = parseTimePtr(completed); err != nil {
			return nil, err
		}
	}

	if errMsg.Valid {
		rec.ErrorMessage = errMsg.String
	}
	if duration.Valid {
		rec.DurationMS = duration.Int64
	}
	return &rec, nil
}

func parseTimePtr(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := dialect.ParseTime(v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
