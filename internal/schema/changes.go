package schema

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/cargotrail/schemarun/internal/common"
	"github.com/cargotrail/schemarun/internal/dialect"
)

// Change is one guarded structural schema change. Apply must be a no-op when
// the target state is already present.
type Change interface {
	Describe() string
	Apply(ctx context.Context, db *DB, e Executor) error
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func checkIdent(kind, name string) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("invalid %s identifier: %q", kind, name)
	}
	return nil
}

// Column describes one table column.
type Column struct {
	Name string
	Type string
	// Constraints is the inline column suffix, e.g. "NOT NULL DEFAULT 0".
	Constraints string
}

func (c Column) render() (string, error) {
	if err := checkIdent("column", c.Name); err != nil {
		return "", err
	}
	if strings.TrimSpace(c.Type) == "" {
		return "", fmt.Errorf("column %s has no type", c.Name)
	}
	s := c.Name + " " + c.Type
	if c.Constraints != "" {
		s += " " + c.Constraints
	}
	return s, nil
}

// ForeignKey describes a named foreign-key constraint. On SQLite it can only
// be declared inline at table creation.
type ForeignKey struct {
	Name      string
	Column    string
	RefTable  string
	RefColumn string
	// OnDelete is the referential action, e.g. "CASCADE" or "SET NULL".
	OnDelete string
}

func (fk ForeignKey) render() (string, error) {
	for kind, name := range map[string]string{
		"constraint":        fk.Name,
		"column":            fk.Column,
		"referenced table":  fk.RefTable,
		"referenced column": fk.RefColumn,
	} {
		if err := checkIdent(kind, name); err != nil {
			return "", err
		}
	}
	s := fmt.Sprintf("CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		fk.Name, fk.Column, fk.RefTable, fk.RefColumn)
	if fk.OnDelete != "" {
		s += " ON DELETE " + fk.OnDelete
	}
	return s, nil
}

// CreateTable creates a table with its columns and inline named foreign keys
// when it does not already exist.
type CreateTable struct {
	Name        string
	Columns     []Column
	ForeignKeys []ForeignKey
}

func (c CreateTable) Describe() string {
	return "create table " + c.Name
}

func (c CreateTable) Apply(ctx context.Context, db *DB, e Executor) error {
	if err := checkIdent("table", c.Name); err != nil {
		return err
	}
	if len(c.Columns) == 0 {
		return fmt.Errorf("table %s has no columns", c.Name)
	}

	ok, err := db.exists(ctx, e, ObjectTable, c.Name)
	if err != nil {
		return err
	}
	if ok {
		common.GetLogger().WithComponent("schema").Debug("table already exists", "table", c.Name)
		return nil
	}

	parts := make([]string, 0, len(c.Columns)+len(c.ForeignKeys))
	for _, col := range c.Columns {
		s, err := col.render()
		if err != nil {
			return err
		}
		parts = append(parts, s)
	}
	for _, fk := range c.ForeignKeys {
		s, err := fk.render()
		if err != nil {
			return err
		}
		parts = append(parts, s)
	}

	// #nosec G201 -- identifiers are validated by checkIdent above
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", c.Name, strings.Join(parts, ", "))
	if _, err := e.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create table %s: %w", c.Name, err)
	}
	return nil
}

// AddColumn adds a column to an existing table when it is absent.
type AddColumn struct {
	Table  string
	Column Column
}

func (c AddColumn) Describe() string {
	return fmt.Sprintf("add column %s.%s", c.Table, c.Column.Name)
}

func (c AddColumn) Apply(ctx context.Context, db *DB, e Executor) error {
	if err := checkIdent("table", c.Table); err != nil {
		return err
	}
	col, err := c.Column.render()
	if err != nil {
		return err
	}

	ok, err := db.exists(ctx, e, ObjectColumn, c.Table+"."+c.Column.Name)
	if err != nil {
		return err
	}
	if ok {
		common.GetLogger().WithComponent("schema").Debug("column already exists",
			"table", c.Table, "column", c.Column.Name)
		return nil
	}

	// #nosec G201 -- identifiers are validated by checkIdent above
	ddl := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", c.Table, col)
	if _, err := e.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to add column %s.%s: %w", c.Table, c.Column.Name, err)
	}
	return nil
}

// CreateIndex creates an index when it does not already exist.
type CreateIndex struct {
	Name    string
	Table   string
	Columns []string
	Unique  bool
}

func (c CreateIndex) Describe() string {
	return "create index " + c.Name
}

func (c CreateIndex) Apply(ctx context.Context, db *DB, e Executor) error {
	if err := checkIdent("index", c.Name); err != nil {
		return err
	}
	if err := checkIdent("table", c.Table); err != nil {
		return err
	}
	if len(c.Columns) == 0 {
		return fmt.Errorf("index %s has no columns", c.Name)
	}
	for _, col := range c.Columns {
		if err := checkIdent("column", col); err != nil {
			return err
		}
	}

	ok, err := db.exists(ctx, e, ObjectIndex, c.Name)
	if err != nil {
		return err
	}
	if ok {
		common.GetLogger().WithComponent("schema").Debug("index already exists", "index", c.Name)
		return nil
	}

	unique := ""
	if c.Unique {
		unique = "UNIQUE "
	}
	// #nosec G201 -- identifiers are validated by checkIdent above
	ddl := fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s (%s)",
		unique, c.Name, c.Table, strings.Join(c.Columns, ", "))
	if _, err := e.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create index %s: %w", c.Name, err)
	}
	return nil
}

// AddForeignKey adds a named foreign-key constraint to an existing table when
// it is absent. SQLite cannot alter constraints onto an existing table, so
// there the change is a no-op and the key must be declared inline via
// CreateTable.ForeignKeys.
type AddForeignKey struct {
	Table      string
	ForeignKey ForeignKey
}

func (c AddForeignKey) Describe() string {
	return fmt.Sprintf("add foreign key %s.%s", c.Table, c.ForeignKey.Name)
}

func (c AddForeignKey) Apply(ctx context.Context, db *DB, e Executor) error {
	if err := checkIdent("table", c.Table); err != nil {
		return err
	}
	clause, err := c.ForeignKey.render()
	if err != nil {
		return err
	}

	if db.Driver() != dialect.DriverPostgres {
		common.GetLogger().WithComponent("schema").Warn(
			"sqlite cannot add a constraint to an existing table, declare it inline at creation",
			"table", c.Table, "constraint", c.ForeignKey.Name)
		return nil
	}

	ok, err := db.exists(ctx, e, ObjectConstraint, c.Table+"."+c.ForeignKey.Name)
	if err != nil {
		return err
	}
	if ok {
		common.GetLogger().WithComponent("schema").Debug("constraint already exists",
			"table", c.Table, "constraint", c.ForeignKey.Name)
		return nil
	}

	// #nosec G201 -- identifiers are validated by checkIdent above
	ddl := fmt.Sprintf("ALTER TABLE %s ADD %s", c.Table, clause)
	if _, err := e.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to add foreign key %s.%s: %w", c.Table, c.ForeignKey.Name, err)
	}
	return nil
}

// DropTable removes a table when it is present. Used by rollbacks.
type DropTable struct {
	Name string
}

func (c DropTable) Describe() string {
	return "drop table " + c.Name
}

func (c DropTable) Apply(ctx context.Context, db *DB, e Executor) error {
	if err := checkIdent("table", c.Name); err != nil {
		return err
	}
	ok, err := db.exists(ctx, e, ObjectTable, c.Name)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	// #nosec G201 -- identifiers are validated by checkIdent above
	if _, err := e.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", c.Name)); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", c.Name, err)
	}
	return nil
}

// DropColumn removes a column when it is present. Used by rollbacks.
type DropColumn struct {
	Table  string
	Column string
}

func (c DropColumn) Describe() string {
	return fmt.Sprintf("drop column %s.%s", c.Table, c.Column)
}

func (c DropColumn) Apply(ctx context.Context, db *DB, e Executor) error {
	if err := checkIdent("table", c.Table); err != nil {
		return err
	}
	if err := checkIdent("column", c.Column); err != nil {
		return err
	}
	ok, err := db.exists(ctx, e, ObjectColumn, c.Table+"."+c.Column)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	// #nosec G201 -- identifiers are validated by checkIdent above
	ddl := fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", c.Table, c.Column)
	if _, err := e.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to drop column %s.%s: %w", c.Table, c.Column, err)
	}
	return nil
}

// DropIndex removes an index when it is present. Used by rollbacks.
type DropIndex struct {
	Name string
}

func (c DropIndex) Describe() string {
	return "drop index " + c.Name
}

func (c DropIndex) Apply(ctx context.Context, db *DB, e Executor) error {
	if err := checkIdent("index", c.Name); err != nil {
		return err
	}
	ok, err := db.exists(ctx, e, ObjectIndex, c.Name)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	// #nosec G201 -- identifiers are validated by checkIdent above
	if _, err := e.ExecContext(ctx, fmt.Sprintf("DROP INDEX IF EXISTS %s", c.Name)); err != nil {
		return fmt.Errorf("failed to drop index %s: %w", c.Name, err)
	}
	return nil
}
