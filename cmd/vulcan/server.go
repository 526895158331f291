package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vulcan-rs/vulcan/pkg/config"
	"github.com/vulcan-rs/vulcan/pkg/daemon"
	"github.com/vulcan-rs/vulcan/pkg/ifaceutil"
	"github.com/vulcan-rs/vulcan/pkg/interactive"
	"github.com/vulcan-rs/vulcan/pkg/logging"
	"github.com/vulcan-rs/vulcan/pkg/server"
)

var serverCmd = &cobra.Command{
	Use:   "server <config-file>",
	Short: "Run a DHCPv4 server",
	Long: `Run a DHCPv4 server: answer DISCOVER/REQUEST/DECLINE/RELEASE/INFORM
over one or more address pools, persisting committed leases to disk.`,
	Args: cobra.ExactArgs(1),
	RunE: runServer,
}

var serverOpts struct {
	interactive bool
	listen      string
	token       string
	storagePath string
	leaseDBPath string
	debugLevel  int
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().BoolVarP(&serverOpts.interactive, "interactive", "i", false, "show a live leases TUI")
	serverCmd.Flags().StringVar(&serverOpts.listen, "listen", "", "control API listen address (disabled if empty)")
	serverCmd.Flags().StringVar(&serverOpts.token, "token", "", "control API bearer token")
	serverCmd.Flags().StringVar(&serverOpts.storagePath, "storage", "~/.vulcan/vulcan.db", "lease history database path (use 'disabled' to disable)")
	serverCmd.Flags().StringVar(&serverOpts.leaseDBPath, "lease-db", "~/.vulcan/leases.json", "committed-lease store path")
	serverCmd.Flags().IntVarP(&serverOpts.debugLevel, "debug", "d", 0, "debug verbosity (0-3)")
}

func runServer(cmd *cobra.Command, args []string) error {
	logging.InitColors(true)
	debugCfg.SetGlobal(serverOpts.debugLevel)
	debugCfg.SetProtocolLevel(logging.ProtocolDHCPServer, serverOpts.debugLevel)
	logDebugConfig(logging.ProtocolDHCPServer)

	cfg, err := config.Load(args[0])
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	iface, err := ifaceutil.Select(cfg.Client.Interface, cfg.Client.InterfaceFallback)
	if err != nil {
		return fmt.Errorf("select interface: %w", err)
	}
	serverIdentifier, err := firstIPv4(iface)
	if err != nil {
		return fmt.Errorf("determine server identifier: %w", err)
	}

	dispatcherCfg, err := cfg.Server.DispatcherConfig(serverIdentifier)
	if err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	dispatcherCfg.Logf = protocolLogf(logging.ProtocolDHCPServer, 1)

	flushInterval, err := cfg.Server.Storage.FlushIntervalDuration()
	if err != nil {
		return err
	}
	leaseDBPath := serverOpts.leaseDBPath
	if cfg.Server.Storage.Path != "" && !cmd.Flags().Changed("lease-db") {
		leaseDBPath = cfg.Server.Storage.Path
	}
	store, err := server.NewLeaseStore(expandHome(leaseDBPath), flushInterval)
	if err != nil {
		return fmt.Errorf("open lease store: %w", err)
	}

	sock, err := server.NewUDPSocket(iface.Name)
	if err != nil {
		return fmt.Errorf("bind server socket: %w", err)
	}
	defer sock.Close()

	dispatcher, err := server.NewDispatcher(dispatcherCfg, store, sock)
	if err != nil {
		return fmt.Errorf("build dispatcher: %w", err)
	}

	d, err := daemon.New(daemon.Config{
		ListenAddr:  serverOpts.listen,
		Token:       serverOpts.token,
		StoragePath: serverOpts.storagePath,
		Version:     version,
		Interface:   iface.Name,
	}, "server")
	if err != nil {
		return fmt.Errorf("build daemon: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		d.Shutdown(ctx)
	}()

	stop := make(chan struct{})
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		close(stop)
	}()
	go store.RunFlush(stop, logging.Error)

	if serverOpts.interactive {
		go func() {
			if err := d.RunServer(dispatcher, stop); err != nil {
				logging.Error("dhcp-server: %v", err)
			}
		}()
		return interactive.Run(iface.Name, nil, dispatcher)
	}

	logging.Info("vulcan server: serving %d pool(s) on %s", len(dispatcherCfg.Pools), iface.Name)
	return d.RunServer(dispatcher, stop)
}
