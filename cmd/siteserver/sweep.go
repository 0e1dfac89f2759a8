package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tendant/simple-site/pkg/sitecontent"
	"github.com/tendant/simple-site/pkg/sitecontent/scan"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete stored images that no media or carousel item references",
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		prefix, _ := cmd.Flags().GetString("prefix")
		grace, _ := cmd.Flags().GetDuration("grace")

		_, components, logger, err := buildComponents(cmd.Context())
		if err != nil {
			return err
		}
		defer components.Close()

		sweeper, err := scan.NewFromStore(components.Repository, components.BlobStore, logger.Logger)
		if err != nil {
			return err
		}

		report, err := sweeper.Sweep(cmd.Context(), scan.SweepOptions{
			Prefix:      prefix,
			GracePeriod: grace,
			DryRun:      dryRun,
			OnOrphan: func(meta sitecontent.ObjectMeta) {
				fmt.Printf("  orphan %s (%d bytes, %s)\n", meta.Key, meta.Size, meta.UpdatedAt.Format(time.RFC3339))
			},
		})
		if err != nil {
			return fmt.Errorf("sweep failed: %w", err)
		}

		fmt.Printf("Scanned: %d  Orphaned: %d  Deleted: %d  Failed: %d\n",
			report.Scanned, report.Orphaned, report.Deleted, report.Failed)
		for _, key := range report.FailedKeys {
			fmt.Printf("  failed to delete %s\n", key)
		}
		return nil
	},
}
