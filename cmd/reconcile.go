package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/camden-git/photogallery/repository"
	"github.com/camden-git/photogallery/services"
	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Removes orphaned blobs and reports records whose original is missing",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		dryRun, err := cmd.Flags().GetBool("dry-run")
		if err != nil {
			return fmt.Errorf("failed to get dry-run flag: %w", err)
		}
		minAge, err := cmd.Flags().GetDuration("min-age")
		if err != nil {
			return fmt.Errorf("failed to get min-age flag: %w", err)
		}

		st, err := openStores(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := st.Close(); err != nil {
				logger.Error("failed to close stores", "error", err)
			}
		}()

		reconciler := services.NewReconciler(repository.NewPhotoRepository(st.metadata), st.blobs, logger)
		reconciler.MinAge = minAge

		report, err := reconciler.Reconcile(cmd.Context(), dryRun)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().Bool("dry-run", false, "Report what would be removed without deleting anything")
	reconcileCmd.Flags().Duration("min-age", services.DefaultOrphanMinAge, "Only remove orphaned blobs older than this")
}
