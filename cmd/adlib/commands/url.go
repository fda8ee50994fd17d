package commands

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/openadlib/adlib/traverse"
)

var openInBrowser bool

func init() {
	urlCmd.Flags().BoolVar(&openInBrowser, "open", false, "open the URL in the default browser")
	rootCmd.AddCommand(urlCmd)
}

var urlCmd = &cobra.Command{
	Use:   "url",
	Short: "Print the public Ad Library search URL for the given parameters.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		search, err := buildSearch()
		if err != nil {
			return err
		}
		t, err := traverse.New(search, cfg.HTTP, cfg.Browser)
		if err != nil {
			return err
		}

		u := t.PublicSearchURL()
		fmt.Fprintln(cmd.OutOrStdout(), u)
		if openInBrowser {
			return browse(u)
		}
		return nil
	},
}

func browse(u string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", u).Run()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", u).Run()
	default:
		return exec.Command("xdg-open", u).Run()
	}
}
