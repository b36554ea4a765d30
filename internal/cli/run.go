package cli

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ignite/campaign-tracker/internal/config"
	"github.com/ignite/campaign-tracker/internal/tracker"
)

// NewRunCommand creates the run subcommand.
func NewRunCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <campaign> [environment]",
		Short: "Sync new registrations for a campaign",
		Long: `Append registrations that are not yet in the campaign's sheet, verify
each write by reading the key column back, update the counter ledger and
rebuild the merged tabs.

The environment defaults to "` + config.DefaultEnvironment + `".`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			environment := config.DefaultEnvironment
			if len(args) == 2 {
				environment = args[1]
			}
			return runSync(cmd, opts, args[0], environment)
		},
	}

	return cmd
}

func runSync(cmd *cobra.Command, opts *RootOptions, campaign, environment string) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, campaign, environment, true)
	if err != nil {
		return err
	}
	defer a.Close()

	sum, err := a.runner.Run(ctx)
	if sum != nil {
		if perr := printJSON(cmd.OutOrStdout(), sum); perr != nil && err == nil {
			return perr
		}
	}
	if err != nil {
		return runError(err)
	}
	return nil
}

func runError(err error) error {
	if errors.Is(err, context.Canceled) {
		return &ExitError{Code: ExitFailure, Message: "interrupted", Err: err}
	}
	if errors.Is(err, tracker.ErrDestinationUnavailable) {
		return setupError("destination", err)
	}
	if errors.Is(err, tracker.ErrRunInProgress) {
		return setupError("another run holds the lock", err)
	}
	return setupError("run failed", err)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
