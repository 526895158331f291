// Package config loads the TOML configuration shared by cmd/vulcan's
// client and server subcommands.
package config

import (
	"encoding/hex"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/vulcan-rs/vulcan/pkg/server"
)

// Error reports an invalid or unreadable config file.
type Error struct {
	Reason string
}

func (e *Error) Error() string { return "config: " + e.Reason }

// Client is the [client] table.
type Client struct {
	Interface         string `toml:"interface"`
	InterfaceFallback bool   `toml:"interface_fallback"`
	BindTimeout       string `toml:"bind_timeout"`
	ReadTimeout       string `toml:"read_timeout"`
	WriteTimeout      string `toml:"write_timeout"`
	MaxDhcpMessageSize uint16 `toml:"max_dhcp_message_size"`
	ClientIdentifier  string `toml:"client_identifier"`
}

// ReadTimeoutDuration parses ReadTimeout, defaulting to 2s when unset.
func (c Client) ReadTimeoutDuration() (time.Duration, error) {
	return parseDurationOrDefault(c.ReadTimeout, 2*time.Second, "client.read_timeout")
}

// WriteTimeoutDuration parses WriteTimeout, defaulting to 2s when unset.
func (c Client) WriteTimeoutDuration() (time.Duration, error) {
	return parseDurationOrDefault(c.WriteTimeout, 2*time.Second, "client.write_timeout")
}

// BindTimeoutDuration parses BindTimeout, defaulting to 5s when unset.
func (c Client) BindTimeoutDuration() (time.Duration, error) {
	return parseDurationOrDefault(c.BindTimeout, 5*time.Second, "client.bind_timeout")
}

// ClientIdentifierBytes decodes the hex-encoded client_identifier field,
// returning nil (meaning "derive from hardware address") when unset.
func (c Client) ClientIdentifierBytes() ([]byte, error) {
	if c.ClientIdentifier == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(c.ClientIdentifier)
	if err != nil {
		return nil, &Error{Reason: fmt.Sprintf("client.client_identifier: %v", err)}
	}
	return b, nil
}

// Pool is one [[server.pools]] entry.
type Pool struct {
	Name  string `toml:"name"`
	Range string `toml:"range"`
}

// Storage is the [server.storage] table.
type Storage struct {
	Type          string `toml:"type"`
	Path          string `toml:"path"`
	FlushInterval string `toml:"flush_interval"`
}

// FlushIntervalDuration parses FlushInterval, defaulting to 30s when unset.
func (s Storage) FlushIntervalDuration() (time.Duration, error) {
	return parseDurationOrDefault(s.FlushInterval, 30*time.Second, "server.storage.flush_interval")
}

// Server is the [server] table.
type Server struct {
	LeaseTime     string  `toml:"lease_time"`
	RenewPercent  float64 `toml:"renew_percent"`
	RebindPercent float64 `toml:"rebind_percent"`
	RenewTime     string  `toml:"renew_time"`
	RebindTime    string  `toml:"rebind_time"`
	Pools         []Pool  `toml:"pools"`
	Storage       Storage `toml:"storage"`
}

func (s Server) leaseTimeDuration() (time.Duration, error) {
	return parseDurationOrDefault(s.LeaseTime, time.Hour, "server.lease_time")
}

// DispatcherConfig builds a server.Config from the parsed TOML,
// validating renew_percent/rebind_percent and the pool ranges before any
// server component is constructed (mirrors ServerDispatcher's own
// precondition so a bad file fails at load time, not at Serve time).
func (s Server) DispatcherConfig(serverIdentifier net.IP) (server.Config, error) {
	leaseTime, err := s.leaseTimeDuration()
	if err != nil {
		return server.Config{}, err
	}

	cfg := server.Config{
		ServerIdentifier: serverIdentifier,
		LeaseTime:        leaseTime,
		RenewPercent:     s.RenewPercent,
		RebindPercent:    s.RebindPercent,
	}

	if (s.RenewTime == "") != (s.RebindTime == "") {
		return server.Config{}, &Error{Reason: "server.renew_time and server.rebind_time must be set together"}
	}
	if s.RenewTime != "" {
		renew, err := time.ParseDuration(s.RenewTime)
		if err != nil {
			return server.Config{}, &Error{Reason: fmt.Sprintf("server.renew_time: %v", err)}
		}
		rebind, err := time.ParseDuration(s.RebindTime)
		if err != nil {
			return server.Config{}, &Error{Reason: fmt.Sprintf("server.rebind_time: %v", err)}
		}
		cfg.RenewTime = &renew
		cfg.RebindTime = &rebind
	} else if cfg.RenewPercent != 0 && cfg.RenewPercent >= cfg.RebindPercent {
		return server.Config{}, &Error{Reason: "server.renew_percent must be < server.rebind_percent"}
	}

	if len(s.Pools) == 0 {
		return server.Config{}, &Error{Reason: "at least one [[server.pools]] entry is required"}
	}
	for _, p := range s.Pools {
		start, end, err := server.ParseRange(p.Range)
		if err != nil {
			return server.Config{}, &Error{Reason: fmt.Sprintf("server.pools[%s].range: %v", p.Name, err)}
		}
		cfg.Pools = append(cfg.Pools, server.PoolConfig{Name: p.Name, Start: start, End: end})
	}
	return cfg, nil
}

// File is the top-level TOML document (§6).
type File struct {
	Client Client `toml:"client"`
	Server Server `toml:"server"`
}

// Load parses the TOML file at path. It does not validate the values;
// Server.DispatcherConfig does that.
func Load(path string) (*File, error) {
	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, &Error{Reason: err.Error()}
	}
	return &f, nil
}

func parseDurationOrDefault(s string, def time.Duration, field string) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, &Error{Reason: fmt.Sprintf("%s: %v", field, err)}
	}
	return d, nil
}
