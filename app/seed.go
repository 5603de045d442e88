package app

import (
	"github.com/spf13/cobra"

	"github.com/campus-sms/campus-sms/internal/config"
	"github.com/campus-sms/campus-sms/internal/daemon"
	"github.com/campus-sms/campus-sms/internal/logger"
)

func init() { //nolint: gochecknoinits
	rootCmd.AddCommand(seedCmd)
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Migrate the database and apply the canonical permission catalogue",
	Long: `Seed migrates the schema and inserts the canonical permissions, the
system roles and a default admin account when the user table is empty.
Seeding is additive: operator changes are never overwritten or removed.`,
	PreRun: func(_ *cobra.Command, _ []string) {
		if cfg, err = config.ReadConfig(configPath); err != nil {
			panic(err)
		}

		if err = logger.Init(cfg.Log); err != nil {
			panic(err)
		}
	},
	RunE: func(_ *cobra.Command, _ []string) error {
		db, err := daemon.OpenDB(&cfg)
		if err != nil {
			return err
		}

		if err = daemon.Migrate(db); err != nil {
			return err
		}

		return daemon.Seed(db)
	},
}
