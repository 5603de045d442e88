package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/campus-sms/campus-sms/internal/backup"
	"github.com/campus-sms/campus-sms/internal/config"
)

func init() { //nolint: gochecknoinits
	backupCreateCmd.Flags().StringVar(&backupName, "name", "", "Backup name (default backup_<UTC timestamp>)")
	backupCreateCmd.Flags().StringVar(&backupPassword, "password", "", "Derive the key from a password instead of the master key")
	backupRestoreCmd.Flags().StringVar(&backupPassword, "password", "", "Password used at creation, when one was set")
	backupCleanupCmd.Flags().IntVar(&backupKeep, "keep", 10, "Number of newest backups to keep")

	backupCmd.AddCommand(
		backupCreateCmd,
		backupRestoreCmd,
		backupListCmd,
		backupVerifyCmd,
		backupDeleteCmd,
		backupCleanupCmd,
		backupRotateKeyCmd,
	)
	rootCmd.AddCommand(backupCmd)
}

var (
	backupName     string
	backupPassword string
	backupKeep     int

	backupCmd = &cobra.Command{
		Use:   "backup",
		Short: "Manage encrypted backups",
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if cfg, err = config.ReadConfig(configPath); err != nil {
				panic(err)
			}
		},
	}

	backupCreateCmd = &cobra.Command{
		Use:   "create",
		Short: "Encrypt the database file into a new backup",
		RunE: func(_ *cobra.Command, _ []string) error {
			svc, err := backup.NewService(cfg.Backup.Dir)
			if err != nil {
				return err
			}

			result, err := svc.Create(cfg.DB.Path, backupName, backup.CreateOptions{
				Password: backupPassword,
			})
			if err != nil {
				return err
			}

			fmt.Printf("created %s (%d bytes encrypted)\n", result.Name, result.EncryptedSize)

			return nil
		},
	}

	backupRestoreCmd = &cobra.Command{
		Use:   "restore <name> <output-path>",
		Short: "Decrypt a backup to the given output path",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			svc, err := backup.NewService(cfg.Backup.Dir)
			if err != nil {
				return err
			}

			result, err := svc.Restore(args[0], args[1], backup.RestoreOptions{
				Password: backupPassword,
			})
			if err != nil {
				return err
			}

			fmt.Printf("restored to %s (%d bytes)\n", result.RestoredTo, result.RestoredSize)

			return nil
		},
	}

	backupListCmd = &cobra.Command{
		Use:   "list",
		Short: "List stored backups, newest first",
		RunE: func(_ *cobra.Command, _ []string) error {
			svc, err := backup.NewService(cfg.Backup.Dir)
			if err != nil {
				return err
			}

			infos, err := svc.List()
			if err != nil {
				return err
			}

			for _, info := range infos {
				fmt.Printf("%s\t%d bytes\t%s\n", info.Name, info.Size, info.ModifiedAt.Format("2006-01-02 15:04:05"))
			}

			return nil
		},
	}

	backupVerifyCmd = &cobra.Command{
		Use:   "verify <name>",
		Short: "Check the structural integrity of a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			svc, err := backup.NewService(cfg.Backup.Dir)
			if err != nil {
				return err
			}

			result, err := svc.Verify(args[0])
			if err != nil {
				return err
			}

			if !result.Valid {
				return fmt.Errorf("backup %s is invalid: %s", args[0], result.Reason)
			}

			fmt.Printf("%s is structurally valid\n", args[0])

			return nil
		},
	}

	backupDeleteCmd = &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a backup and its sidecar metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			svc, err := backup.NewService(cfg.Backup.Dir)
			if err != nil {
				return err
			}

			return svc.Delete(args[0])
		},
	}

	backupCleanupCmd = &cobra.Command{
		Use:   "cleanup",
		Short: "Delete the oldest backups beyond the keep count",
		RunE: func(_ *cobra.Command, _ []string) error {
			svc, err := backup.NewService(cfg.Backup.Dir)
			if err != nil {
				return err
			}

			removed, err := svc.Cleanup(backupKeep)
			if err != nil {
				return err
			}

			fmt.Printf("removed %d backups\n", removed)

			return nil
		},
	}

	backupRotateKeyCmd = &cobra.Command{
		Use:   "rotate-key",
		Short: "Replace the master key, keeping a timestamped copy of the old one",
		Long: `Rotate-key generates a fresh master key. The previous key is kept next
to it with a timestamped .bak suffix; existing backups are not re-encrypted
and still need the old key or their password.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			svc, err := backup.NewService(cfg.Backup.Dir)
			if err != nil {
				return err
			}

			return svc.RotateMasterKey()
		},
	}
)
