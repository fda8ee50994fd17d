package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/openadlib/adlib/export"
	"github.com/openadlib/adlib/fields"
	"github.com/openadlib/adlib/models"
)

func init() {
	rootCmd.AddCommand(csvCmd)
}

var csvCmd = &cobra.Command{
	Use:   "csv <output-file>",
	Short: "Traverse the search results and save the matching ads to a CSV file.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fieldList, err := fields.NormalizeList(fieldsFlag)
		if err != nil {
			return err
		}
		if len(fieldList) == 0 {
			return models.NewTraversalError(models.ErrCodeInvalidInput,
				"csv needs -f/--fields with a comma-separated list of ad fields", nil)
		}

		batches, err := openBatches()
		if err != nil {
			return err
		}
		defer batches.Close()

		out, err := os.Create(args[0])
		if err != nil {
			return fmt.Errorf("create %s: %w", args[0], err)
		}
		defer out.Close()

		rows, err := export.WriteCSV(cmd.Context(), out, batches, fieldList)
		if err != nil {
			resumeHint(batches)
			return err
		}
		slog.Info("csv export complete", "rows", rows, "file", args[0])
		return nil
	},
}
