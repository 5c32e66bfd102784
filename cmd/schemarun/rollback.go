package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cargotrail/schemarun"
	"github.com/cargotrail/schemarun/internal/migrations"
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Roll back one completed migration by name",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := context.Background()
		v := viper.GetViper()

		name := strings.TrimSpace(v.GetString("name"))
		if name == "" {
			return fmt.Errorf("rollback requires --name")
		}

		_, storeCfg, err := loadConfig(v.GetString("config"))
		if err != nil {
			return err
		}

		m := schemarun.Migrator{Registry: migrations.Default(), Store: storeCfg}
		defer func() { _ = m.Close() }()

		if err := m.Rollback(ctx, name); err != nil {
			return err
		}
		cmd.Printf("rolled back %s\n", name)
		return nil
	},
}
