package main

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/cargotrail/schemarun"
)

type StoreConfig struct {
	// Type selects the driver: sqlite (default) or postgres.
	Type string `mapstructure:"type" yaml:"type"`
	// TableName overrides the history ledger table. Invalid identifiers
	// fall back to the default with a warning.
	TableName string `mapstructure:"table_name" yaml:"table_name"`
	// Driver sections are decoded lazily into the selected driver's config.
	Sqlite   map[string]interface{} `mapstructure:"sqlite" yaml:"sqlite"`
	Postgres map[string]interface{} `mapstructure:"postgres" yaml:"postgres"`
}

// ToStoreConfig inspects the store section and returns the history store
// configuration for the requested backend. An empty type means sqlite with
// the default database file.
func (c *StoreConfig) ToStoreConfig() (schemarun.StoreConfig, error) {
	driver, err := schemarun.ParseDriver(c.Type)
	if err != nil {
		return schemarun.StoreConfig{}, err
	}

	out := schemarun.StoreConfig{Driver: driver, TableName: c.TableName}

	switch driver {
	case schemarun.DriverPostgres:
		var pg schemarun.PostgresConfig
		if err := mapstructure.Decode(c.Postgres, &pg); err != nil {
			return schemarun.StoreConfig{}, fmt.Errorf("failed to decode postgres store config: %w", err)
		}
		out.DriverConfig = &pg
	default:
		var lite schemarun.SqliteConfig
		if err := mapstructure.Decode(c.Sqlite, &lite); err != nil {
			return schemarun.StoreConfig{}, fmt.Errorf("failed to decode sqlite store config: %w", err)
		}
		if lite.Path == "" {
			lite.Path = schemarun.StoreDBFileName
		}
		out.DriverConfig = &lite
	}

	return out, nil
}
