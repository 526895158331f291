// Package stats collects a run's protocol counters and exports them as
// JSON or CSV (SPEC_FULL §2.10, §3).
package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"
)

// Counters holds the running totals for one client or server process.
type Counters struct {
	mu sync.RWMutex

	StartTime time.Time     `json:"start_time"`
	Uptime    time.Duration `json:"uptime_seconds"`
	Interface string        `json:"interface"`
	Role      string        `json:"role"` // "client" or "server"
	Version   string        `json:"version"`

	// MessageTypeCounts indexes by "sent:<type>" / "received:<type>",
	// e.g. "sent:DISCOVER", "received:OFFER".
	MessageTypeCounts map[string]int64 `json:"message_type_counts"`

	// TransitionCounts indexes by "<from>-><to>", e.g. "Selecting->SelectingSent".
	TransitionCounts map[string]int64 `json:"transition_counts"`

	// ErrorKindCounts indexes by dhcp.ErrorKind.String().
	ErrorKindCounts map[string]int64 `json:"error_kind_counts"`

	RetransmitCount int64 `json:"retransmit_count"`
	RenewalCount    int64 `json:"renewal_count"`

	MemoryUsageMB  uint64 `json:"memory_usage_mb"`
	GoroutineCount int    `json:"goroutine_count"`
	CPUCount       int    `json:"cpu_count"`
}

// CountersSnapshot is a mutex-free copy of Counters for export.
type CountersSnapshot struct {
	StartTime         time.Time        `json:"start_time"`
	Uptime            time.Duration    `json:"uptime_seconds"`
	Interface         string           `json:"interface"`
	Role              string           `json:"role"`
	Version           string           `json:"version"`
	MessageTypeCounts map[string]int64 `json:"message_type_counts"`
	TransitionCounts  map[string]int64 `json:"transition_counts"`
	ErrorKindCounts   map[string]int64 `json:"error_kind_counts"`
	RetransmitCount   int64            `json:"retransmit_count"`
	RenewalCount      int64            `json:"renewal_count"`
	MemoryUsageMB     uint64           `json:"memory_usage_mb"`
	GoroutineCount    int              `json:"goroutine_count"`
	CPUCount          int              `json:"cpu_count"`
}

// New creates counters for one run of role ("client" or "server") on
// iface.
func New(iface, role, version string) *Counters {
	return &Counters{
		StartTime:         time.Now(),
		Interface:         iface,
		Role:              role,
		Version:           version,
		MessageTypeCounts: make(map[string]int64),
		TransitionCounts:  make(map[string]int64),
		ErrorKindCounts:   make(map[string]int64),
	}
}

// Update refreshes uptime and the runtime gauges.
func (c *Counters) Update() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Uptime = time.Since(c.StartTime)
	c.GoroutineCount = runtime.NumGoroutine()
	c.CPUCount = runtime.NumCPU()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	c.MemoryUsageMB = m.Alloc / 1024 / 1024
}

// IncrementSent counts one outgoing message of the named type.
func (c *Counters) IncrementSent(msgType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.MessageTypeCounts["sent:"+msgType]++
}

// IncrementReceived counts one incoming message of the named type.
func (c *Counters) IncrementReceived(msgType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.MessageTypeCounts["received:"+msgType]++
}

// IncrementTransition counts one state-machine transition.
func (c *Counters) IncrementTransition(from, to string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TransitionCounts[from+"->"+to]++
}

// IncrementError counts one raised error of the named kind.
func (c *Counters) IncrementError(kind string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ErrorKindCounts[kind]++
}

// IncrementRetransmit counts one retransmission.
func (c *Counters) IncrementRetransmit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.RetransmitCount++
}

// IncrementRenewal counts one renewal attempt entered.
func (c *Counters) IncrementRenewal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.RenewalCount++
}

// ExportJSON writes a snapshot of c to filename as indented JSON.
func (c *Counters) ExportJSON(filename string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := c.snapshot()
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("stats: marshal json: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("stats: write json: %w", err)
	}
	return nil
}

// ExportCSV writes a snapshot of c to filename as a metric/value/category
// table.
func (c *Counters) ExportCSV(filename string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("stats: create csv: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"Metric", "Value", "Category"}); err != nil {
		return fmt.Errorf("stats: write csv header: %w", err)
	}

	row := func(metric, value, category string) {
		writer.Write([]string{metric, value, category})
	}

	row("Start Time", c.StartTime.Format(time.RFC3339), "General")
	row("Uptime (seconds)", fmt.Sprintf("%.0f", c.Uptime.Seconds()), "General")
	row("Interface", c.Interface, "General")
	row("Role", c.Role, "General")
	row("Version", c.Version, "General")

	row("Memory Usage (MB)", fmt.Sprintf("%d", c.MemoryUsageMB), "System")
	row("Goroutine Count", fmt.Sprintf("%d", c.GoroutineCount), "System")
	row("CPU Count", fmt.Sprintf("%d", c.CPUCount), "System")

	row("Retransmit Count", fmt.Sprintf("%d", c.RetransmitCount), "DHCP")
	row("Renewal Count", fmt.Sprintf("%d", c.RenewalCount), "DHCP")

	for k, v := range c.MessageTypeCounts {
		row(fmt.Sprintf("Message Count (%s)", k), fmt.Sprintf("%d", v), "Messages")
	}
	for k, v := range c.TransitionCounts {
		row(fmt.Sprintf("Transition (%s)", k), fmt.Sprintf("%d", v), "Transitions")
	}
	for k, v := range c.ErrorKindCounts {
		row(fmt.Sprintf("Error Count (%s)", k), fmt.Sprintf("%d", v), "Errors")
	}

	return nil
}

// snapshot must be called with at least a read lock held.
func (c *Counters) snapshot() CountersSnapshot {
	snapshot := CountersSnapshot{
		StartTime:       c.StartTime,
		Uptime:          c.Uptime,
		Interface:       c.Interface,
		Role:            c.Role,
		Version:         c.Version,
		RetransmitCount: c.RetransmitCount,
		RenewalCount:    c.RenewalCount,
		MemoryUsageMB:   c.MemoryUsageMB,
		GoroutineCount:  c.GoroutineCount,
		CPUCount:        c.CPUCount,

		MessageTypeCounts: make(map[string]int64, len(c.MessageTypeCounts)),
		TransitionCounts:  make(map[string]int64, len(c.TransitionCounts)),
		ErrorKindCounts:   make(map[string]int64, len(c.ErrorKindCounts)),
	}
	for k, v := range c.MessageTypeCounts {
		snapshot.MessageTypeCounts[k] = v
	}
	for k, v := range c.TransitionCounts {
		snapshot.TransitionCounts[k] = v
	}
	for k, v := range c.ErrorKindCounts {
		snapshot.ErrorKindCounts[k] = v
	}
	return snapshot
}

// Snapshot returns a thread-safe copy of c.
func (c *Counters) Snapshot() CountersSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot()
}

// String returns a human-readable one-line-per-metric summary.
func (c *Counters) String() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return fmt.Sprintf(
		"Counters summary:\n"+
			"  Role: %s\n"+
			"  Uptime: %s\n"+
			"  Memory: %d MB\n"+
			"  Goroutines: %d\n"+
			"  Retransmits: %d\n"+
			"  Renewals: %d\n",
		c.Role,
		c.Uptime.Round(time.Second),
		c.MemoryUsageMB,
		c.GoroutineCount,
		c.RetransmitCount,
		c.RenewalCount,
	)
}
