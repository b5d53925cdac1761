// ttr syncs a local flat-file ticket store to GitHub Issues and Projects.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ttr",
	Short: "Sync local tickets to GitHub Issues and Projects",
	Long: `ttr pushes markdown tickets from a .tickets/ directory to GitHub.

Tickets are markdown files with YAML frontmatter. Each push creates or
updates the matching GitHub issue, records the issue number back into the
ticket file, and optionally places new issues on a Projects v2 board.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
