package cli

import (
	"github.com/spf13/cobra"

	"github.com/ignite/campaign-tracker/internal/ledger"
)

// NewLedgerCommand creates the ledger subcommand.
func NewLedgerCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger <campaign>",
		Short: "Print the counter ledger for a campaign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if _, err := cfg.Campaign(args[0]); err != nil {
				return setupError("campaign", err)
			}

			store := ledger.NewStore(cfg.State.Dir, args[0])
			return printJSON(cmd.OutOrStdout(), store.Load())
		},
	}

	return cmd
}
