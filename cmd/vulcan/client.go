package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vulcan-rs/vulcan/pkg/client"
	"github.com/vulcan-rs/vulcan/pkg/config"
	"github.com/vulcan-rs/vulcan/pkg/daemon"
	"github.com/vulcan-rs/vulcan/pkg/dhcp"
	"github.com/vulcan-rs/vulcan/pkg/ifaceutil"
	"github.com/vulcan-rs/vulcan/pkg/interactive"
	"github.com/vulcan-rs/vulcan/pkg/leasehistory"
	"github.com/vulcan-rs/vulcan/pkg/logging"
)

var clientCmd = &cobra.Command{
	Use:   "client <config-file>",
	Short: "Acquire and maintain a DHCPv4 lease",
	Long: `Run a DHCPv4 client: DISCOVER/OFFER/REQUEST/ACK, then hold the
lease through renewal and rebinding until the process is stopped.`,
	Args: cobra.ExactArgs(1),
	RunE: runClient,
}

var clientOpts struct {
	interactive bool
	listen      string
	token       string
	storagePath string
	debugLevel  int
}

func init() {
	rootCmd.AddCommand(clientCmd)
	clientCmd.Flags().BoolVarP(&clientOpts.interactive, "interactive", "i", false, "show a live lease status TUI")
	clientCmd.Flags().StringVar(&clientOpts.listen, "listen", "", "control API listen address (disabled if empty)")
	clientCmd.Flags().StringVar(&clientOpts.token, "token", "", "control API bearer token")
	clientCmd.Flags().StringVar(&clientOpts.storagePath, "storage", "~/.vulcan/vulcan.db", "lease history database path (use 'disabled' to disable)")
	clientCmd.Flags().IntVarP(&clientOpts.debugLevel, "debug", "d", 0, "debug verbosity (0-3)")
}

func runClient(cmd *cobra.Command, args []string) error {
	logging.InitColors(true)
	debugCfg.SetGlobal(clientOpts.debugLevel)
	debugCfg.SetProtocolLevel(logging.ProtocolDHCPClient, clientOpts.debugLevel)
	logDebugConfig(logging.ProtocolDHCPClient)

	cfg, err := config.Load(args[0])
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	iface, err := ifaceutil.Select(cfg.Client.Interface, cfg.Client.InterfaceFallback)
	if err != nil {
		return fmt.Errorf("select interface: %w", err)
	}
	hw, err := dhcp.ParseHardwareAddr(iface.HardwareAddr.String())
	if err != nil {
		return fmt.Errorf("parse hardware address: %w", err)
	}

	readTimeout, err := cfg.Client.ReadTimeoutDuration()
	if err != nil {
		return err
	}
	clientID, err := cfg.Client.ClientIdentifierBytes()
	if err != nil {
		return err
	}

	d, err := daemon.New(daemon.Config{
		ListenAddr:  clientOpts.listen,
		Token:       clientOpts.token,
		StoragePath: clientOpts.storagePath,
		Version:     version,
		Interface:   iface.Name,
	}, "client")
	if err != nil {
		return fmt.Errorf("build daemon: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		d.Shutdown(ctx)
	}()

	sock, err := client.NewUDPSocket(iface.Name)
	if err != nil {
		return fmt.Errorf("bind client socket: %w", err)
	}
	defer sock.Close()

	engine := client.NewEngine(sock, client.Config{
		HWAddr:             hw,
		ClientIdentifier:   clientID,
		MaxDhcpMessageSize: cfg.Client.MaxDhcpMessageSize,
		ReadTimeout:        readTimeout,
		PriorLease:         priorLease(d.History(), iface.Name),
		AssignAddress: func(ip net.IP, leaseSeconds uint32) error {
			return ifaceutil.Apply(iface.Name, ip)
		},
		Logf: protocolLogf(logging.ProtocolDHCPClient, 1),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go waitForSignal(cancel)

	if clientOpts.interactive {
		go func() {
			if err := d.RunClient(ctx, iface.Name, engine); err != nil && err != context.Canceled {
				logging.Error("dhcp-client: %v", err)
			}
		}()
		return interactive.Run(iface.Name, engine, nil)
	}

	logging.Info("vulcan client: acquiring a lease on %s", iface.Name)
	if err := d.RunClient(ctx, iface.Name, engine); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func priorLease(history *leasehistory.Store, iface string) *client.PriorLease {
	if history == nil {
		return nil
	}
	rec, ok, err := history.LastClientLease(iface)
	if err != nil || !ok {
		return nil
	}
	ip := net.ParseIP(rec.Addr)
	if ip == nil {
		return nil
	}
	return &client.PriorLease{
		IP:        ip,
		ExpiresAt: rec.Timestamp.Add(time.Duration(rec.LeaseSeconds) * time.Second),
	}
}

func waitForSignal(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	cancel()
}
