// Command lookupctl is the CLI front-end for the caching DNS lookup
// engine: a one-shot "resolve" subcommand for scripting and a long-running
// "serve" subcommand that bootstraps persistence and the hosts watcher,
// the same two-tier start/service split as mosdns-x's own cobra root.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lookupctl",
	Short: "Caching DNS lookup engine CLI.",
}

func init() {
	rootCmd.AddCommand(newResolveCmd())
	rootCmd.AddCommand(newServeCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
