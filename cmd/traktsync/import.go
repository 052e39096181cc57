package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Import watch state from Trakt for every linked account once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd)
		},
	}
}

func runImport(cmd *cobra.Command) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	last := -1
	report, err := a.syncCtrl.ImportAll(ctx, func(progress float64) {
		if p := int(progress); p != last {
			last = p
			fmt.Fprintf(cmd.OutOrStdout(), "\rImporting... %3d%%", p)
		}
	})
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return fmt.Errorf("import interrupted: %w", err)
	}

	for _, result := range report.Results {
		status := "ok"
		if result.Err != nil {
			status = result.Err.Error()
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d items, %d updated, %d failed writes (%s)\n",
			result.AccountID, result.Items, result.Updated, result.Failed, status)
	}

	if failed := report.Failed(); len(failed) > 0 {
		return fmt.Errorf("import failed for %d of %d accounts", len(failed), len(report.Results))
	}
	return nil
}
