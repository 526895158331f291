package main

import (
	"github.com/spf13/cobra"
)

var leaseCmd = &cobra.Command{
	Use:   "lease",
	Short: "Watch a running client or server with the interactive TUI",
	Long: `lease is shorthand for "client --interactive" / "server --interactive":
it runs the same DHCP role but attaches the live lease status TUI instead of
plain log lines.`,
}

var leaseClientCmd = &cobra.Command{
	Use:   "client <config-file>",
	Short: "Watch a DHCPv4 client acquire and hold a lease",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		clientOpts.interactive = true
		return runClient(cmd, args)
	},
}

var leaseServerCmd = &cobra.Command{
	Use:   "server <config-file>",
	Short: "Watch a DHCPv4 server's committed leases",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		serverOpts.interactive = true
		return runServer(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(leaseCmd)
	leaseCmd.AddCommand(leaseClientCmd, leaseServerCmd)

	leaseClientCmd.Flags().StringVar(&clientOpts.listen, "listen", "", "control API listen address (disabled if empty)")
	leaseClientCmd.Flags().StringVar(&clientOpts.token, "token", "", "control API bearer token")
	leaseClientCmd.Flags().StringVar(&clientOpts.storagePath, "storage", "~/.vulcan/vulcan.db", "lease history database path (use 'disabled' to disable)")

	leaseServerCmd.Flags().StringVar(&serverOpts.listen, "listen", "", "control API listen address (disabled if empty)")
	leaseServerCmd.Flags().StringVar(&serverOpts.token, "token", "", "control API bearer token")
	leaseServerCmd.Flags().StringVar(&serverOpts.storagePath, "storage", "~/.vulcan/vulcan.db", "lease history database path (use 'disabled' to disable)")
	leaseServerCmd.Flags().StringVar(&serverOpts.leaseDBPath, "lease-db", "~/.vulcan/leases.json", "committed-lease store path")
}
