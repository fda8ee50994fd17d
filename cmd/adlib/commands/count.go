package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/openadlib/adlib/export"
)

func init() {
	rootCmd.AddCommand(countCmd)
}

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Traverse the search results and count the matching ads per source.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		batches, err := openBatches()
		if err != nil {
			return err
		}
		defer batches.Close()

		tally, err := export.Count(cmd.Context(), batches)
		if err != nil {
			resumeHint(batches)
			return err
		}
		export.RenderTally(os.Stdout, tally)
		return nil
	},
}
