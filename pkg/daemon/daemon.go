// Package daemon wires a ClientEngine or ServerDispatcher together with
// the ambient stack — leasehistory, stats counters, and the optional
// control API — for cmd/vulcan's long-running subcommands.
package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vulcan-rs/vulcan/pkg/client"
	"github.com/vulcan-rs/vulcan/pkg/controlapi"
	"github.com/vulcan-rs/vulcan/pkg/leasehistory"
	"github.com/vulcan-rs/vulcan/pkg/logging"
	"github.com/vulcan-rs/vulcan/pkg/server"
	"github.com/vulcan-rs/vulcan/pkg/stats"
)

// Config holds the shared daemon options — the control API listen
// address/token and the leasehistory path.
type Config struct {
	ListenAddr  string
	Token       string
	StoragePath string
	Version     string
	Interface   string
}

// Daemon owns the ambient stack around one running DHCP role.
type Daemon struct {
	cfg     Config
	api     *controlapi.Server
	history *leasehistory.Store
	counters *stats.Counters

	mu     sync.Mutex
	cancel context.CancelFunc
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	return filepath.Clean(path)
}

// New opens the leasehistory store (if configured) and prepares the
// counters for role ("client" or "server").
func New(cfg Config, role string) (*Daemon, error) {
	d := &Daemon{cfg: cfg, counters: stats.New(cfg.Interface, role, cfg.Version)}

	if cfg.StoragePath != "" && cfg.StoragePath != "disabled" {
		h, err := leasehistory.Open(expandPath(cfg.StoragePath))
		if err != nil {
			return nil, fmt.Errorf("daemon: open leasehistory: %w", err)
		}
		d.history = h
	}
	return d, nil
}

// Counters returns the daemon's protocol counters.
func (d *Daemon) Counters() *stats.Counters { return d.counters }

// History returns the leasehistory store, or nil if disabled.
func (d *Daemon) History() *leasehistory.Store { return d.history }

// RunServer serves dispatcher until stop is closed. Committed leases are
// persisted only by the dispatcher's LeaseStore; no RunRecord is appended
// to leasehistory for them. The control API exposes GET /v1/status and
// GET /v1/leases for the duration.
func (d *Daemon) RunServer(dispatcher *server.Dispatcher, stop <-chan struct{}) error {
	d.api = controlapi.NewServer(controlapi.Config{
		Addr:    d.cfg.ListenAddr,
		Token:   d.cfg.Token,
		Version: d.cfg.Version,
		Server:  dispatcher,
	})
	if err := d.api.Start(); err != nil {
		return fmt.Errorf("daemon: start control API: %w", err)
	}
	defer d.api.Shutdown()

	return dispatcher.Serve(stop)
}

// clientStatusAdapter satisfies controlapi.ClientStatusProvider without
// pkg/client importing pkg/controlapi.
type clientStatusAdapter struct {
	iface  string
	engine *client.Engine
}

func (a *clientStatusAdapter) Status() controlapi.ClientStatus {
	lease := a.engine.Lease()
	status := controlapi.ClientStatus{
		Interface: a.iface,
		State:     a.engine.State().String(),
	}
	if lease.OfferedIP != nil {
		status.IP = lease.OfferedIP.String()
	}
	if lease.ServerIdentifier != nil {
		status.ServerID = lease.ServerIdentifier.String()
	}
	status.LeaseSecs = lease.OfferedLeaseTime
	return status
}

// RunClient runs engine's state machine until ctx is cancelled, logging
// a RunRecord to leasehistory on exit and exposing GET /v1/status and
// GET /v1/lease via the control API for the duration.
func (d *Daemon) RunClient(ctx context.Context, iface string, engine *client.Engine) error {
	d.api = controlapi.NewServer(controlapi.Config{
		Addr:    d.cfg.ListenAddr,
		Token:   d.cfg.Token,
		Version: d.cfg.Version,
		Client:  &clientStatusAdapter{iface: iface, engine: engine},
	})
	if err := d.api.Start(); err != nil {
		return fmt.Errorf("daemon: start control API: %w", err)
	}
	defer d.api.Shutdown()

	startedAt := time.Now()
	runErr := engine.Run(ctx)

	if d.history != nil {
		lease := engine.Lease()
		outcome := "incomplete"
		addr := ""
		if engine.State() == client.Bound {
			outcome = "bound"
			addr = lease.OfferedIP.String()
		}
		_ = d.history.Append(leasehistory.RunRecord{
			Timestamp:    time.Now(),
			Interface:    iface,
			Role:         "client",
			Outcome:      outcome,
			Addr:         addr,
			LeaseSeconds: lease.OfferedLeaseTime,
			Duration:     time.Since(startedAt),
		})
	}
	return runErr
}

// Shutdown stops the control API and closes the leasehistory store.
func (d *Daemon) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel != nil {
		d.cancel()
	}
	if d.api != nil {
		if err := d.api.Shutdown(); err != nil {
			logging.Error("daemon: shutdown control API: %v", err)
		}
	}
	if d.history != nil {
		if err := d.history.Close(); err != nil {
			logging.Error("daemon: close leasehistory: %v", err)
		}
	}
	return nil
}
