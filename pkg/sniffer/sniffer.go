// Package sniffer passively observes DHCP traffic on an interface and
// decodes it with pkg/dhcp, for diagnosing interop problems. It never
// calls Encode and never feeds decoded messages back into a ClientEngine
// or ServerDispatcher — it only watches (SPEC_FULL §9).
package sniffer

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/vulcan-rs/vulcan/pkg/dhcp"
)

const dhcpBPFFilter = "udp and (port 67 or port 68)"

// Observation is one decoded datagram seen on the wire.
type Observation struct {
	Message *dhcp.Message
	SrcIP   string
	DstIP   string
}

// Engine opens an interface in promiscuous mode and hands each decoded
// DHCP datagram to a handler.
type Engine struct {
	interfaceName string
	handle        *pcap.Handle
	debugLevel    int
	logf          func(format string, args ...interface{})
}

// New opens interfaceName for live capture with the DHCP BPF filter
// applied. logf, if non-nil, receives a diagnostic line for every
// datagram dropped because it failed to decode (gated by debugLevel).
func New(interfaceName string, debugLevel int, logf func(format string, args ...interface{})) (*Engine, error) {
	handle, err := pcap.OpenLive(interfaceName, 1600, true, pcap.BlockForever)
	if err != nil {
		return nil, fmt.Errorf("sniffer: open interface %s: %w", interfaceName, err)
	}
	if err := handle.SetBPFFilter(dhcpBPFFilter); err != nil {
		handle.Close()
		return nil, fmt.Errorf("sniffer: set filter on %s: %w", interfaceName, err)
	}
	return &Engine{interfaceName: interfaceName, handle: handle, debugLevel: debugLevel, logf: logf}, nil
}

// Close releases the capture handle.
func (e *Engine) Close() {
	if e.handle != nil {
		e.handle.Close()
	}
}

// Run decodes packets until the packet source closes, calling handler
// for every UDP/67/68 datagram that
// decodes as a valid DHCP message. Malformed datagrams are skipped, not
// surfaced as errors — the sniffer is a diagnostic aid, not a protocol
// participant.
func (e *Engine) Run(handler func(Observation)) error {
	src := gopacket.NewPacketSource(e.handle, e.handle.LinkType())
	for packet := range src.Packets() {
		obs, ok := decode(packet)
		if !ok {
			if e.debugLevel >= 2 && e.logf != nil {
				e.logf("sniffer: dropped non-DHCP or malformed datagram on %s", e.interfaceName)
			}
			continue
		}
		handler(obs)
	}
	return nil
}

func decode(packet gopacket.Packet) (Observation, bool) {
	udpLayer := packet.Layer(layers.LayerTypeUDP)
	if udpLayer == nil {
		return Observation{}, false
	}
	udp, ok := udpLayer.(*layers.UDP)
	if !ok || len(udp.Payload) == 0 {
		return Observation{}, false
	}

	m, err := dhcp.Decode(udp.Payload)
	if err != nil {
		return Observation{}, false
	}

	obs := Observation{Message: m}
	if ip4 := packet.Layer(layers.LayerTypeIPv4); ip4 != nil {
		if v, ok := ip4.(*layers.IPv4); ok {
			obs.SrcIP = v.SrcIP.String()
			obs.DstIP = v.DstIP.String()
		}
	}
	return obs, true
}
