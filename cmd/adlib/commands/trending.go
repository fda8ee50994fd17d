package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/openadlib/adlib/export"
)

func init() {
	rootCmd.AddCommand(trendingCmd)
}

var trendingCmd = &cobra.Command{
	Use:   "trending",
	Short: "Traverse the search results and chart ads by delivery start date.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		batches, err := openBatches()
		if err != nil {
			return err
		}
		defer batches.Close()

		trend, err := export.StartTimeTrend(cmd.Context(), batches)
		if err != nil {
			resumeHint(batches)
			return err
		}
		export.RenderTrend(os.Stdout, trend)
		return nil
	},
}
