package commands

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/openadlib/adlib/export"
	"github.com/openadlib/adlib/fields"
	"github.com/openadlib/adlib/models"
	"github.com/openadlib/adlib/traverse"
)

var afterFlag string

func init() {
	resumeCmd.Flags().StringVar(&afterFlag, "after", "",
		"drop ads whose ad_delivery_start_time is before this date (YYYY-MM-DD)")
	rootCmd.AddCommand(resumeCmd)
}

var resumeCmd = &cobra.Command{
	Use:   "resume <failure-url> <output-file>",
	Short: "Continue an interrupted traversal from its last unfetched page URL.",
	Long: `resume picks a traversal back up from the URL a failed run logged and
streams the remaining ads into a CSV file. It pages through the JSON endpoint
only; search flags are not needed because the URL carries the whole query.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		fieldList, err := fields.NormalizeList(fieldsFlag)
		if err != nil {
			return err
		}
		if len(fieldList) == 0 {
			return models.NewTraversalError(models.ErrCodeInvalidInput,
				"resume needs -f/--fields with a comma-separated list of ad fields", nil)
		}

		resumeURL := args[0]
		if u, err := url.Parse(resumeURL); err != nil || u.Scheme == "" || u.Host == "" {
			return models.NewTraversalError(models.ErrCodeInvalidInput,
				fmt.Sprintf("resume URL %q is not an absolute http(s) URL", resumeURL), nil)
		}

		var after time.Time
		if afterFlag != "" {
			after, err = time.Parse("2006-01-02", afterFlag)
			if err != nil {
				return models.NewTraversalError(models.ErrCodeInvalidInput,
					fmt.Sprintf("--after %q is not a YYYY-MM-DD date", afterFlag), nil)
			}
		}

		headers, err := parseHeaders(headerFlags)
		if err != nil {
			return err
		}

		pages := traverse.Resume(cfg.HTTP, retryLimit, headers, resumeURL, after)
		defer pages.Close()

		out, err := os.Create(args[1])
		if err != nil {
			return fmt.Errorf("create %s: %w", args[1], err)
		}
		defer out.Close()

		rows, err := export.WriteCSV(cmd.Context(), out, pages, fieldList)
		if err != nil {
			resumeHint(pages)
			return err
		}
		slog.Info("csv export complete", "rows", rows, "file", args[1])
		return nil
	},
}
