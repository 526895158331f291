// Command vulcan is a DHCPv4 client, server and diagnostic toolkit.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "v0.1.0"
	commit  = "dev"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:     "vulcan",
	Short:   "DHCPv4 client, server, and diagnostic toolkit",
	Version: version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("vulcan %s (commit: %s, built: %s)\n", version, commit, date))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
