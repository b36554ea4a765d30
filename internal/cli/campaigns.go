package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewCampaignsCommand creates the campaigns subcommand.
func NewCampaignsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "campaigns",
		Short: "List configured campaigns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CAMPAIGN\tSHEET\tCOURSE\tADS\tMERGE")
			for _, name := range cfg.CampaignNames() {
				camp := cfg.Campaigns[name]
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
					name, camp.SheetID, yesNo(camp.HasCourseRule()), len(camp.LandingPages), yesNo(camp.HasMerge()))
			}
			return w.Flush()
		},
	}

	return cmd
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
