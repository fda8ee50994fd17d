package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openadlib/adlib/config"
	"github.com/openadlib/adlib/countries"
	"github.com/openadlib/adlib/models"
	"github.com/openadlib/adlib/traverse"
)

var (
	cfg *config.Config

	searchTerm  string
	countryFlag string
	pageIDsFlag string
	retryLimit  int
	fieldsFlag  string
	headerFlags []string
	useBrowser  bool
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "adlib",
	Short: "adlib searches the Facebook Ad Library and exports the matching ads.",
	Long: `adlib traverses Ad Library search results page by page, either through
the paginated JSON endpoint or through a real browser when the endpoint is
blocked, and feeds the records to a consumer: a CSV file, a count summary,
or a delivery-date trend table.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if verbose {
			cfg.Log.Level = "debug"
		}
		initLogger(cfg.Log)
		return cfg.Validate()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&searchTerm, "search-term", "s", "", "search term to query the Ad Library with")
	pf.StringVarP(&countryFlag, "country", "c", "", "comma-separated ISO 3166-1 alpha-2 codes or country names")
	pf.StringVar(&pageIDsFlag, "search-page-ids", "", "comma-separated Facebook page IDs to restrict the search to")
	pf.IntVar(&retryLimit, "retry-limit", 3, "retry budget per page request")
	pf.StringVarP(&fieldsFlag, "fields", "f", "", "comma-separated ad fields to export")
	pf.StringArrayVar(&headerFlags, "header", nil, "extra request header as key=value (repeatable)")
	pf.BoolVar(&useBrowser, "use-browser", false, "traverse through a headless browser instead of the JSON endpoint")
	pf.BoolVarP(&verbose, "verbose", "v", false, "log each page as it is fetched")
}

// ExecuteContext runs the root command; command errors have already been
// logged by the time it exits.
func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildSearch assembles the SearchConfig shared by every traversal command
// from the persistent flags.
func buildSearch() (models.SearchConfig, error) {
	codes, err := countries.NormalizeList(countryFlag)
	if err != nil {
		return models.SearchConfig{}, err
	}
	headers, err := parseHeaders(headerFlags)
	if err != nil {
		return models.SearchConfig{}, err
	}
	return models.SearchConfig{
		SearchTerm: searchTerm,
		PageIDs:    splitList(pageIDsFlag),
		Countries:  codes,
		RetryLimit: retryLimit,
		Headers:    headers,
		Verbose:    verbose,
	}, nil
}

// openBatches builds the traversal and picks the strategy selected by
// --use-browser. The caller owns Close.
func openBatches() (traverse.Batches, error) {
	search, err := buildSearch()
	if err != nil {
		return nil, err
	}
	t, err := traverse.New(search, cfg.HTTP, cfg.Browser)
	if err != nil {
		return nil, err
	}
	if useBrowser {
		return t.Browser()
	}
	return t.Endpoint(), nil
}

func parseHeaders(kvs []string) (map[string]string, error) {
	if len(kvs) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, models.NewTraversalError(models.ErrCodeInvalidInput,
				fmt.Sprintf("malformed --header %q, want key=value", kv), nil)
		}
		headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return headers, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// resumeHint logs the first unfetched page URL after a mid-traversal
// failure so the run can be continued with the resume command.
func resumeHint(batches traverse.Batches) {
	type failer interface{ FailedURL() string }
	if f, ok := batches.(failer); ok {
		if u := f.FailedURL(); u != "" {
			slog.Error("traversal interrupted; pass this URL to `adlib resume` to continue", "url", u)
		}
	}
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	// Stderr keeps stdout clean for tables and piped URLs.
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}
