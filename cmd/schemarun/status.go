package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cargotrail/schemarun/pkg/status"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration ledger status",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := context.Background()
		v := viper.GetViper()

		_, storeCfg, err := loadConfig(v.GetString("config"))
		if err != nil {
			return err
		}

		info, err := status.FromConfig(ctx, storeCfg)
		if err != nil {
			return err
		}

		showHistory := v.GetBool("history") || v.GetBool("history_all")
		cmd.Print(info.FormatHumanWithLimit(showHistory, v.GetInt("history_limit"), v.GetBool("history_all")))
		return nil
	},
}
