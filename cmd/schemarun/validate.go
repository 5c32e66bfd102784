package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cargotrail/schemarun/internal/migrations"
)

// validateCmd resolves the compiled-in registry without touching any
// database: it surfaces unknown dependencies and cycles, and prints the
// planned execution order.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the migration registry and print the planned order",
	RunE: func(cmd *cobra.Command, _ []string) error {
		reg := migrations.Default()
		order, err := reg.Resolve()
		if err != nil {
			return fmt.Errorf("registry validation failed: %w", err)
		}

		cmd.Printf("registry valid: %d migrations\n", len(order))
		for i, def := range order {
			line := fmt.Sprintf("%2d. %s@%s", i+1, def.Name, def.Version)
			if len(def.DependsOn) > 0 {
				line += " (depends on: " + strings.Join(def.DependsOn, ", ") + ")"
			}
			cmd.Println(line)
		}
		return nil
	},
}
