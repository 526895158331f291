// Package ifaceutil selects a network interface for the DHCP client and
// shells out to `ip` to apply the leased configuration (§6).
package ifaceutil

import (
	"fmt"
	"net"
	"os/exec"
	"strings"
)

// NoInterfaceFound reports that no interface satisfied selection (§7).
type NoInterfaceFound struct {
	Name string
}

func (e *NoInterfaceFound) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("ifaceutil: interface %q not found", e.Name)
	}
	return "ifaceutil: no suitable interface found"
}

// NoHardwareAddress reports that iface has no MAC address (§7).
type NoHardwareAddress struct {
	Iface string
}

func (e *NoHardwareAddress) Error() string {
	return fmt.Sprintf("ifaceutil: interface %q has no hardware address", e.Iface)
}

// UnexpectedExitStatus wraps a failed `ip` invocation (§7).
type UnexpectedExitStatus struct {
	Cmd    string
	Args   []string
	Output string
	Err    error
}

func (e *UnexpectedExitStatus) Error() string {
	return fmt.Sprintf("ifaceutil: %s %s: %v: %s", e.Cmd, strings.Join(e.Args, " "), e.Err, e.Output)
}

func (e *UnexpectedExitStatus) Unwrap() error { return e.Err }

// listInterfaces is overridden by tests.
var listInterfaces = net.Interfaces

func isEligible(name string) bool {
	return !strings.HasPrefix(name, "lo") && !strings.HasPrefix(name, "wg")
}

func hasIPv4(iface net.Interface) bool {
	addrs, err := iface.Addrs()
	if err != nil {
		return false
	}
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip != nil && ip.To4() != nil {
			return true
		}
	}
	return false
}

// Select picks name if it exists; otherwise, when fallback is true, the
// first interface that is not loopback/WireGuard, has a MAC address and
// an IPv4 address bound (§6).
func Select(name string, fallback bool) (net.Interface, error) {
	ifaces, err := listInterfaces()
	if err != nil {
		return net.Interface{}, err
	}

	if name != "" {
		for _, iface := range ifaces {
			if iface.Name == name {
				if len(iface.HardwareAddr) == 0 {
					return net.Interface{}, &NoHardwareAddress{Iface: name}
				}
				return iface, nil
			}
		}
		if !fallback {
			return net.Interface{}, &NoInterfaceFound{Name: name}
		}
	}

	for _, iface := range ifaces {
		if !isEligible(iface.Name) {
			continue
		}
		if len(iface.HardwareAddr) == 0 {
			continue
		}
		if !hasIPv4(iface) {
			continue
		}
		return iface, nil
	}
	return net.Interface{}, &NoInterfaceFound{}
}

// runCmd is overridden by tests.
var runCmd = func(name string, args ...string) error {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return &UnexpectedExitStatus{Cmd: name, Args: args, Output: string(out), Err: err}
	}
	return nil
}

// Up runs `ip link set dev <iface> up` (§6).
func Up(iface string) error {
	return runCmd("ip", "link", "set", "dev", iface, "up")
}

// FlushAddrs runs `ip -4 addr flush dev <iface>` (§6).
func FlushAddrs(iface string) error {
	return runCmd("ip", "-4", "addr", "flush", "dev", iface)
}

// AddAddr runs `ip -4 addr add <ip> dev <iface>` (§6).
func AddAddr(iface string, ip net.IP) error {
	return runCmd("ip", "-4", "addr", "add", ip.String(), "dev", iface)
}

// Apply flushes iface's addresses, brings it up, and assigns ip — the
// sequence the client engine runs after a successful ACK.
func Apply(iface string, ip net.IP) error {
	if err := FlushAddrs(iface); err != nil {
		return err
	}
	if err := Up(iface); err != nil {
		return err
	}
	return AddAddr(iface, ip)
}
