package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vulcan-rs/vulcan/pkg/dhcp"
	"github.com/vulcan-rs/vulcan/pkg/logging"
	"github.com/vulcan-rs/vulcan/pkg/sniffer"
)

var sniffCmd = &cobra.Command{
	Use:   "sniff <interface>",
	Short: "Passively observe DHCP traffic on an interface",
	Long: `Open interface in promiscuous mode and print every DHCP datagram
seen on the wire. This never sends a packet; it is a read-only observer.`,
	Args: cobra.ExactArgs(1),
	RunE: runSniff,
}

var sniffOpts struct {
	debugLevel int
}

func init() {
	rootCmd.AddCommand(sniffCmd)
	sniffCmd.Flags().IntVarP(&sniffOpts.debugLevel, "debug", "d", 1, "debug verbosity (0-3)")
}

func runSniff(cmd *cobra.Command, args []string) error {
	logging.InitColors(true)
	debugCfg.SetGlobal(sniffOpts.debugLevel)
	debugCfg.SetProtocolLevel(logging.ProtocolSniffer, sniffOpts.debugLevel)
	logDebugConfig(logging.ProtocolSniffer)
	iface := args[0]

	eng, err := sniffer.New(iface, debugCfg.GetProtocolLevel(logging.ProtocolSniffer), logging.Info)
	if err != nil {
		return fmt.Errorf("open sniffer: %w", err)
	}
	defer eng.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		eng.Close()
		os.Exit(0)
	}()

	logging.Info("vulcan sniff: watching %s for DHCP traffic (Ctrl+C to stop)", iface)
	return eng.Run(func(obs sniffer.Observation) {
		printObservation(obs)
	})
}

func printObservation(obs sniffer.Observation) {
	msgType := "unknown"
	if opt, ok := obs.Message.GetOption(dhcp.OptDhcpMessageType); ok {
		msgType = dhcpMessageTypeName(opt.Uint8())
	}
	fmt.Printf("[%s -> %s] %s xid=%#x chaddr=%s yiaddr=%s\n",
		obs.SrcIP, obs.DstIP, msgType, obs.Message.Xid, obs.Message.CHAddr, obs.Message.YIAddr)
}

func dhcpMessageTypeName(t uint8) string {
	switch t {
	case dhcp.MsgTypeDiscover:
		return "DISCOVER"
	case dhcp.MsgTypeOffer:
		return "OFFER"
	case dhcp.MsgTypeRequest:
		return "REQUEST"
	case dhcp.MsgTypeDecline:
		return "DECLINE"
	case dhcp.MsgTypeAck:
		return "ACK"
	case dhcp.MsgTypeNak:
		return "NAK"
	case dhcp.MsgTypeRelease:
		return "RELEASE"
	case dhcp.MsgTypeInform:
		return "INFORM"
	default:
		return fmt.Sprintf("type-%d", t)
	}
}
