package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cargotrail/schemarun"
	"github.com/cargotrail/schemarun/internal/history"
	"github.com/cargotrail/schemarun/internal/migrations"
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE:  runUp,
}

func runUp(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()
	v := viper.GetViper()

	doc, storeCfg, err := loadConfig(v.GetString("config"))
	if err != nil {
		return err
	}

	if err := waitForStore(ctx, storeCfg, doc.Wait); err != nil {
		return err
	}

	m := schemarun.Migrator{Registry: migrations.Default(), Store: storeCfg}
	defer func() { _ = m.Close() }()

	report, err := m.RunAll(ctx)
	if report != nil {
		printReport(cmd, report)
	}
	if err != nil {
		return err
	}

	// The engine only reports; the non-zero exit on unhealthy runs is ours.
	_, failed, skipped := report.Counts()
	if failed > 0 || skipped > 0 {
		return fmt.Errorf("migration run unhealthy: %d failed, %d skipped", failed, skipped)
	}
	return nil
}

func printReport(cmd *cobra.Command, report *schemarun.Report) {
	for _, it := range report.Items {
		line := fmt.Sprintf("%s@%s %s", it.Name, it.Version, it.Status)
		switch {
		case it.Status == history.StatusCompleted && it.AlreadyApplied:
			line += " (already applied)"
		case it.Status == history.StatusCompleted:
			line += fmt.Sprintf(" (%dms)", it.DurationMS)
		case it.Status == history.StatusFailed:
			line += ": " + it.Error
		case it.Status == history.StatusSkipped:
			line += ": " + it.SkipReason
		}
		cmd.Println(line)
	}
	completed, failed, skipped := report.Counts()
	cmd.Printf("run %s: %d completed (%d newly applied), %d failed, %d skipped\n",
		report.RunID, completed, report.Applied(), failed, skipped)
}
