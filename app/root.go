// Package app implements the main application commands.
package app

import (
	"github.com/spf13/cobra"

	"github.com/campus-sms/campus-sms/internal/config"
)

var (
	cfg        config.Config
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "campus-sms",
	Short: "Campus SMS is the records backend of a student management system",
	Long: `Campus SMS is the records backend of a student management system:
student, course, grade and attendance records with role-based access control,
a uniform soft-delete discipline, an append-only audit trail and encrypted
backups.`,
	Args: cobra.OnlyValidArgs,
}

func init() { //nolint: gochecknoinits
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the configuration directory")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
