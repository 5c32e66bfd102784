// Package schemarun is the embedding surface of the schema migration engine:
// a registry of named, versioned, dependency-ordered migrations executed
// against a single relational store with a durable history ledger.
package schemarun

import (
	"context"

	"github.com/cargotrail/schemarun/internal/common"
	"github.com/cargotrail/schemarun/internal/dialect"
	"github.com/cargotrail/schemarun/internal/engine"
	"github.com/cargotrail/schemarun/internal/history"
	"github.com/cargotrail/schemarun/internal/registry"
	"github.com/cargotrail/schemarun/internal/schema"
)

// Re-export commonly used types for public API

// Definition is one immutable migration record.
type Definition = registry.Definition

// Operation is the idempotent unit of work a migration runs.
type Operation = registry.Operation

// OperationFunc adapts a function to Operation.
type OperationFunc = registry.OperationFunc

// Registry owns the static set of definitions.
type Registry = registry.Registry

// NewRegistry returns an empty registry.
func NewRegistry() *Registry { return registry.New() }

// Typed resolver errors, matchable with errors.As.
type (
	DuplicateError         = registry.DuplicateError
	UnknownDependencyError = registry.UnknownDependencyError
	CycleError             = registry.CycleError
)

// DB is the database handle operations receive.
type DB = schema.DB

// Guarded schema-change vocabulary.
type (
	Column        = schema.Column
	ForeignKey    = schema.ForeignKey
	CreateTable   = schema.CreateTable
	AddColumn     = schema.AddColumn
	CreateIndex   = schema.CreateIndex
	AddForeignKey = schema.AddForeignKey
	DropTable     = schema.DropTable
	DropColumn    = schema.DropColumn
	DropIndex     = schema.DropIndex
)

// Report is the outcome of one run; Item is one migration within it.
type (
	Report = engine.Report
	Item   = engine.Item
)

// History ledger types.
type (
	Store       = history.Store
	StoreConfig = history.Config
	Record      = history.Record
	Status      = history.Status
)

const (
	StatusPending   = history.StatusPending
	StatusRunning   = history.StatusRunning
	StatusCompleted = history.StatusCompleted
	StatusFailed    = history.StatusFailed
	StatusSkipped   = history.StatusSkipped
)

// Store drivers and their configs.
type (
	Driver         = dialect.Driver
	SqliteConfig   = dialect.SqliteConfig
	PostgresConfig = dialect.PostgresConfig
)

const (
	DriverSqlite   = dialect.DriverSqlite
	DriverPostgres = dialect.DriverPostgres
)

// ParseDriver normalizes a driver name from configuration.
func ParseDriver(s string) (Driver, error) { return dialect.Parse(s) }

// StoreDBFileName is the default sqlite filename for the history ledger.
const StoreDBFileName = "schemarun.db"

// OpenStore connects a history store for the given config. The caller owns
// the returned store and must Close it.
func OpenStore(cfg StoreConfig) (*Store, error) {
	cfg = withStoreDefaults(cfg)
	var st history.Store
	if err := st.Connect(cfg); err != nil {
		return nil, err
	}
	return &st, nil
}

func withStoreDefaults(cfg StoreConfig) StoreConfig {
	if cfg.Driver == "" {
		cfg.Driver = DriverSqlite
	}
	if cfg.DriverConfig == nil && cfg.Driver == DriverSqlite {
		cfg.DriverConfig = &dialect.SqliteConfig{Path: StoreDBFileName}
	}
	return cfg
}

// Migrator binds a registry to a store configuration. The store is connected
// lazily on first use and shared across calls until Close.
type Migrator struct {
	Registry *Registry
	Store    StoreConfig

	st *history.Store
}

func (m *Migrator) store() (*history.Store, error) {
	if m.st != nil {
		return m.st, nil
	}
	st, err := OpenStore(m.Store)
	if err != nil {
		return nil, err
	}
	m.st = st
	return m.st, nil
}

// Close releases the underlying store connection.
func (m *Migrator) Close() error {
	if m.st == nil {
		return nil
	}
	st := m.st
	m.st = nil
	return st.Close()
}

// RunAll executes every pending migration in dependency order and returns the
// run report. See engine.Engine.RunAll for the state-machine semantics.
func (m *Migrator) RunAll(ctx context.Context) (*Report, error) {
	st, err := m.store()
	if err != nil {
		return nil, err
	}
	return engine.New(m.Registry, st).RunAll(ctx)
}

// Rollback explicitly undoes one completed migration by name.
func (m *Migrator) Rollback(ctx context.Context, name string) error {
	st, err := m.store()
	if err != nil {
		return err
	}
	return engine.New(m.Registry, st).Rollback(ctx, name)
}

// History returns the ledger records, most recent attempt first.
func (m *Migrator) History(ctx context.Context) ([]Record, error) {
	st, err := m.store()
	if err != nil {
		return nil, err
	}
	if err := st.Ensure(ctx); err != nil {
		return nil, err
	}
	return st.List(ctx)
}

// Logging re-exports so embedders configure output without importing internals.

type Logger = common.Logger

type LogLevel = common.LogLevel

const (
	LogLevelError = common.LogLevelError
	LogLevelWarn  = common.LogLevelWarn
	LogLevelInfo  = common.LogLevelInfo
	LogLevelDebug = common.LogLevelDebug
)

func NewLogger(level LogLevel) *Logger      { return common.NewLogger(level) }
func NewJSONLogger(level LogLevel) *Logger  { return common.NewJSONLogger(level) }
func NewColorLogger(level LogLevel) *Logger { return common.NewColorLogger(level) }
func SetDefaultLogger(l *Logger)            { common.SetDefaultLogger(l) }
func GetLogger() *Logger                    { return common.GetLogger() }

// EnableMasking toggles masking of sensitive values (DSNs, passwords) in logs.
func EnableMasking(enabled bool) { common.EnableMasking(enabled) }
