package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ignite/campaign-tracker/internal/config"
)

// NewMergeCommand creates the merge subcommand.
func NewMergeCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge <campaign>",
		Short: "Rebuild the merged tabs from the course and ad tabs",
		Long: `Copy rows from the course and ad tabs into the campaign's merged tabs
without reading the source database. Rows already in a merged tab are
skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg, args[0], config.DefaultEnvironment, false)
			if err != nil {
				return err
			}
			defer a.Close()

			sum, err := a.runner.MergeOnly(ctx)
			if err != nil {
				return runError(err)
			}
			return printJSON(cmd.OutOrStdout(), sum)
		},
	}

	return cmd
}
