package main

import (
	"errors"
	"net"
	"os"
	"path/filepath"

	"github.com/vulcan-rs/vulcan/pkg/logging"
)

// debugCfg holds the effective per-protocol debug verbosity for the
// process. Each subcommand sets its own protocol's level (and the
// global fallback) from its --debug flag before running.
var debugCfg = logging.NewDebugConfig(0)

// protocolLogf returns a Logf that routes through logging.ProtocolDebug,
// gated against debugCfg's level for protocol at the time of the call
// (so a later SetProtocolLevel/SetGlobal still takes effect).
func protocolLogf(protocol string, minLevel int) func(format string, args ...interface{}) {
	return func(format string, args ...interface{}) {
		logging.ProtocolDebug(protocol, debugCfg.GetProtocolLevel(protocol), minLevel, format, args...)
	}
}

// logDebugConfig reports the effective debug configuration once a
// subcommand has parsed its flags.
func logDebugConfig(protocol string) {
	source := "global"
	if debugCfg.HasProtocolLevel(protocol) {
		source = "override"
	}
	logging.Debug("debug: %s=%d (%s, global=%d, all=%v)",
		protocol, debugCfg.GetProtocolLevel(protocol), source, debugCfg.GetGlobal(), debugCfg.GetAllLevels())
}

// firstIPv4 returns iface's first IPv4 address, which the server uses as
// its DHCP server identifier.
func firstIPv4(iface net.Interface) (net.IP, error) {
	addrs, err := iface.Addrs()
	if err != nil {
		return nil, err
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if v4 := ipNet.IP.To4(); v4 != nil {
			return v4, nil
		}
	}
	return nil, errors.New("interface has no IPv4 address")
}

// expandHome resolves a leading "~" to the current user's home directory.
func expandHome(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
