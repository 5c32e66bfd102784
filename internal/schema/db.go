// Package schema provides the database handle migrations run against and the
// guarded schema-change vocabulary they are written in. Every structural
// change probes the catalog before mutating, so re-running an already-applied
// migration is a no-op.
package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/cargotrail/schemarun/internal/common"
	"github.com/cargotrail/schemarun/internal/dialect"
)

// Executor is the subset of database/sql shared by *sql.DB, *sql.Conn and
// *sql.Tx. Changes run against it so the same guarded change works on the
// pool and inside a transaction.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// DB is the handle every operation receives. It wraps the shared pool with
// the driver so queries written with ?-placeholders run on both backends.
type DB struct {
	pool   *sql.DB
	driver dialect.Driver
}

// New wraps an open pool for the given driver.
func New(pool *sql.DB, driver dialect.Driver) *DB {
	return &DB{pool: pool, driver: driver}
}

// Driver returns the backend the handle is bound to.
func (d *DB) Driver() dialect.Driver {
	return d.driver
}

// Pool exposes the underlying pool for operations that need raw access.
func (d *DB) Pool() *sql.DB {
	return d.pool
}

// Exec runs a statement on the shared pool with placeholder rebinding.
func (d *DB) Exec(ctx context.Context, query string, args ...interface{}) error {
	if _, err := d.pool.ExecContext(ctx, d.driver.Rebind(query), args...); err != nil {
		return fmt.Errorf("exec failed: %w", err)
	}
	return nil
}

// Query runs a query on the shared pool with placeholder rebinding.
func (d *DB) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return d.pool.QueryContext(ctx, d.driver.Rebind(query), args...)
}

// QueryRow runs a single-row query on the shared pool with placeholder rebinding.
func (d *DB) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return d.pool.QueryRowContext(ctx, d.driver.Rebind(query), args...)
}

// ObjectKind names a kind of catalog object an existence probe can check.
type ObjectKind string

const (
	ObjectTable ObjectKind = "table"
	// ObjectColumn is qualified as "table.column".
	ObjectColumn ObjectKind = "column"
	ObjectIndex  ObjectKind = "index"
	// ObjectConstraint is qualified as "table.constraint".
	ObjectConstraint ObjectKind = "constraint"
)

// Exists reports whether the named catalog object is present. Column and
// constraint names are qualified with their table: "shipments.carrier_code".
func (d *DB) Exists(ctx context.Context, kind ObjectKind, qualifiedName string) (bool, error) {
	return d.exists(ctx, d.pool, kind, qualifiedName)
}

func (d *DB) exists(ctx context.Context, e Executor, kind ObjectKind, qualifiedName string) (bool, error) {
	switch kind {
	case ObjectTable:
		return d.tableExists(ctx, e, qualifiedName)
	case ObjectColumn:
		table, column, err := splitQualified(qualifiedName)
		if err != nil {
			return false, err
		}
		return d.columnExists(ctx, e, table, column)
	case ObjectIndex:
		return d.indexExists(ctx, e, qualifiedName)
	case ObjectConstraint:
		table, constraint, err := splitQualified(qualifiedName)
		if err != nil {
			return false, err
		}
		return d.constraintExists(ctx, e, table, constraint)
	default:
		return false, fmt.Errorf("unknown object kind: %s", kind)
	}
}

func (d *DB) tableExists(ctx context.Context, e Executor, table string) (bool, error) {
	if d.driver == dialect.DriverPostgres {
		return d.probe(ctx, e,
			`SELECT 1 FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?`, table)
	}
	return d.probe(ctx, e,
		`SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?`, table)
}

func (d *DB) columnExists(ctx context.Context, e Executor, table, column string) (bool, error) {
	if d.driver == dialect.DriverPostgres {
		return d.probe(ctx, e,
			`SELECT 1 FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = ? AND column_name = ?`,
			table, column)
	}
	return d.probe(ctx, e, `SELECT 1 FROM pragma_table_info(?) WHERE name = ?`, table, column)
}

func (d *DB) indexExists(ctx context.Context, e Executor, index string) (bool, error) {
	if d.driver == dialect.DriverPostgres {
		return d.probe(ctx, e,
			`SELECT 1 FROM pg_indexes WHERE schemaname = current_schema() AND indexname = ?`, index)
	}
	return d.probe(ctx, e,
		`SELECT 1 FROM sqlite_master WHERE type = 'index' AND name = ?`, index)
}

// constraintExists checks information_schema on postgres. SQLite has no
// constraint catalog; named constraints only exist inline in the table DDL,
// so the probe searches the recorded CREATE statement.
func (d *DB) constraintExists(ctx context.Context, e Executor, table, constraint string) (bool, error) {
	if d.driver == dialect.DriverPostgres {
		return d.probe(ctx, e,
			`SELECT 1 FROM information_schema.table_constraints WHERE table_schema = current_schema() AND table_name = ? AND constraint_name = ?`,
			table, constraint)
	}
	return d.probe(ctx, e,
		`SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ? AND instr(sql, ?) > 0`,
		table, "CONSTRAINT "+constraint)
}

func (d *DB) probe(ctx context.Context, e Executor, query string, args ...interface{}) (bool, error) {
	var one int
	err := e.QueryRowContext(ctx, d.driver.Rebind(query), args...).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("catalog probe failed: %w", err)
	}
	return true, nil
}

func splitQualified(name string) (string, string, error) {
	parts := strings.SplitN(name, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("qualified name must be table.object, got %q", name)
	}
	return parts[0], parts[1], nil
}

// Apply runs changes sequentially on the shared pool. Each change guards
// itself, so a partially applied batch can be re-run safely.
func (d *DB) Apply(ctx context.Context, changes ...Change) error {
	for _, c := range changes {
		if err := c.Apply(ctx, d, d.pool); err != nil {
			return fmt.Errorf("%s: %w", c.Describe(), err)
		}
	}
	return nil
}

// ApplyInTx runs changes inside a single transaction on a dedicated
// connection. Any sub-step failure rolls the whole transaction back before
// the error propagates, so the batch never leaves the schema half-applied.
func (d *DB) ApplyInTx(ctx context.Context, changes ...Change) error {
	conn, err := d.pool.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for _, c := range changes {
		if err := c.Apply(ctx, d, tx); err != nil {
			_ = tx.Rollback()
			common.GetLogger().WithComponent("schema").Warn("transaction rolled back",
				"change", c.Describe(), "error", err)
			return fmt.Errorf("transaction rolled back at %s: %w", c.Describe(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
