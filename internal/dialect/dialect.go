// Package dialect abstracts the differences between the supported database
// drivers: placeholder style, time storage format, DSN construction, and
// connection pool tuning.
package dialect

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cargotrail/schemarun/internal/util"
)

// Driver identifies a supported database backend.
type Driver string

const (
	DriverSqlite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Parse normalizes a driver name from configuration.
func Parse(s string) (Driver, error) {
	switch util.TrimAndLower(s) {
	case "", "sqlite", "sqlite3":
		return DriverSqlite, nil
	case "postgres", "postgresql", "pgx":
		return DriverPostgres, nil
	default:
		return "", fmt.Errorf("unsupported driver: %s (valid: sqlite, postgres)", s)
	}
}

// Valid reports whether the driver is one of the supported backends.
func (d Driver) Valid() bool {
	return d == DriverSqlite || d == DriverPostgres
}

func (d Driver) String() string {
	return string(d)
}

// Rebind converts ?-style placeholders into the driver's native form.
// Question marks inside single-quoted SQL literals are left alone.
func (d Driver) Rebind(query string) string {
	if d != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// BindTime converts a time value into the driver's storage representation.
// SQLite stores RFC3339Nano text, PostgreSQL stores native timestamps.
func (d Driver) BindTime(t time.Time) interface{} {
	if d == DriverSqlite {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return t.UTC()
}

// BindTimePtr converts an optional time value, mapping nil to SQL NULL.
func (d Driver) BindTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return d.BindTime(*t)
}

// ParseTime parses a stored RFC3339Nano text timestamp.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err == nil {
		return t, nil
	}
	t, err2 := time.Parse(time.RFC3339, s)
	if err2 == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("failed to parse stored timestamp %q: %w", s, err)
}
