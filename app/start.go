package app

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/campus-sms/campus-sms/internal/config"
	"github.com/campus-sms/campus-sms/internal/daemon"
	"github.com/campus-sms/campus-sms/internal/logger"
	"github.com/campus-sms/campus-sms/internal/runtime"
)

func init() { //nolint: gochecknoinits
	startCmd.Flags().BoolVar(&devMode, "dev", false, "Enable dev mode")

	rootCmd.AddCommand(startCmd)
}

var (
	err     error
	devMode bool

	startCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the Campus SMS service",
		PreRun: func(_ *cobra.Command, _ []string) {
			if cfg, err = config.ReadConfig(configPath); err != nil {
				panic(err)
			}

			if devMode {
				cfg.DevMode = true
			}

			if err = logger.Init(cfg.Log); err != nil {
				panic(err)
			}
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			// a production environment outside a container is refused
			if err := runtime.AssertValid(); err != nil {
				return err
			}

			log.Info().
				Str("environment", string(runtime.Current())).
				Str("auth_mode", string(runtime.CurrentAuthMode())).
				Msg("starting")

			d := daemon.New(&cfg)

			go d.WaitShutdown()

			return d.Start()
		},
	}
)
