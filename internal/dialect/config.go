package dialect

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/cargotrail/schemarun/internal/constants"
	"github.com/cargotrail/schemarun/internal/util"
)

const (
	busyTimeoutMS    = 5000 // 5 seconds in milliseconds
	foreignKeysParam = "_fk=1"
)

// Config selects a driver and its connection settings.
type Config struct {
	Driver       Driver
	DriverConfig DriverConfig
}

// DriverConfig builds the DSN for its driver.
type DriverConfig interface {
	ToDSN() (string, error)
}

// SqliteConfig holds SQLite connection settings.
type SqliteConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// ToDSN returns the SQLite connection string. An empty path yields an
// in-memory database, which is what the tests use.
func (c *SqliteConfig) ToDSN() (string, error) {
	path := strings.TrimSpace(c.Path)
	if path == "" || path == ":memory:" {
		return ":memory:", nil
	}
	if strings.HasPrefix(path, "file:") {
		return path, nil
	}
	return fmt.Sprintf("file:%s?_busy_timeout=%d&%s", path, busyTimeoutMS, foreignKeysParam), nil
}

// PostgresConfig holds PostgreSQL connection settings. Either a full DSN or
// discrete fields may be supplied; the DSN wins when both are present.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn" yaml:"dsn"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	DBName   string `mapstructure:"dbname" yaml:"dbname"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
}

// ToDSN assembles a postgres:// connection string.
func (c *PostgresConfig) ToDSN() (string, error) {
	if dsn, ok := util.TrimEmptyCheck(c.DSN); ok {
		return dsn, nil
	}

	host, ok := util.TrimEmptyCheck(c.Host)
	if !ok {
		return "", fmt.Errorf("postgres config requires either dsn or host")
	}

	port := c.Port
	if port == 0 {
		port = constants.DefaultPostgresPort
	}
	sslMode := util.TrimWithDefault(c.SSLMode, constants.DefaultPostgresSSLMode)
	dbName := strings.TrimSpace(c.DBName)
	if dbName == "" {
		return "", fmt.Errorf("postgres config requires dbname")
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", host, port),
		Path:   "/" + dbName,
	}
	user := strings.TrimSpace(c.User)
	if user != "" {
		if c.Password != "" {
			u.User = url.UserPassword(user, c.Password)
		} else {
			u.User = url.User(user)
		}
	}
	q := url.Values{}
	q.Set("sslmode", sslMode)
	u.RawQuery = q.Encode()

	return u.String(), nil
}
