package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "schemarun",
	Short: "Run schema migrations for the cargotrail logistics database",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Bare invocation applies all pending migrations.
		return runUp(cmd, args)
	},
}

func init() {
	// Defaults
	v := viper.GetViper()
	v.SetDefault("config", "")
	v.SetDefault("history_limit", 0)

	// Environment variables support: SCHEMARUN_CONFIG, ...
	v.SetEnvPrefix("SCHEMARUN")
	v.AutomaticEnv()

	rootCmd.PersistentFlags().String("config", v.GetString("config"), "path to a config yaml (see examples/config.yaml)")
	statusCmd.Flags().Bool("history", false, "include the migration history in the output")
	statusCmd.Flags().Bool("history-all", false, "print the entire history instead of the most recent entries")
	statusCmd.Flags().Int("history-limit", v.GetInt("history_limit"), "maximum history entries to print (0 = default)")
	rollbackCmd.Flags().String("name", "", "name of the completed migration to roll back")

	_ = v.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = v.BindPFlag("history", statusCmd.Flags().Lookup("history"))
	_ = v.BindPFlag("history_all", statusCmd.Flags().Lookup("history-all"))
	_ = v.BindPFlag("history_limit", statusCmd.Flags().Lookup("history-limit"))
	_ = v.BindPFlag("name", rollbackCmd.Flags().Lookup("name"))

	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(validateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		exitHandler.LogFatalError(err, "command execution failed")
	}
}
