package cli

import (
	"fmt"

	"realtyhub/internal/database"

	"github.com/spf13/cobra"
)

func newBackupCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the SQLite database and prune old snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, db, err := opts.openDB(cmd)
			if err != nil {
				return err
			}
			defer closeDB(cmd, db)

			svc := database.NewBackupService(db, cfg.Backup, opts.logger(cmd))
			path, err := svc.PerformBackup(cmd.Context())
			if err != nil {
				return fmt.Errorf("backup: %w", err)
			}
			removed := svc.CleanupOldBackups()
			fmt.Fprintf(cmd.OutOrStdout(), "Backup written to %s (%d old snapshot(s) removed)\n", path, removed)
			return nil
		},
	}
}
