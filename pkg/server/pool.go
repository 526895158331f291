package server

import (
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"
)

// DefaultQuarantine is how long a DECLINEd address is withheld from
// reallocation before it re-enters the free pool (§4.4).
const DefaultQuarantine = 10 * time.Minute

// Pool is a contiguous IPv4 address range (SPEC_FULL §4.4's allocation
// policy is resolved here; spec.md §9 left this an open question).
type Pool struct {
	Name  string
	start uint32
	end   uint32

	mu          sync.Mutex
	quarantined map[uint32]time.Time
	cooldown    time.Duration
}

func ip4ToUint32(ip net.IP) (uint32, error) {
	v4 := ip.To4()
	if v4 == nil {
		return 0, fmt.Errorf("pool: %v is not an IPv4 address", ip)
	}
	return binary.BigEndian.Uint32(v4), nil
}

func uint32ToIP4(v uint32) net.IP {
	b := make(net.IP, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

// NewPool builds a pool covering [start, end] inclusive.
func NewPool(name string, start, end net.IP) (*Pool, error) {
	s, err := ip4ToUint32(start)
	if err != nil {
		return nil, err
	}
	e, err := ip4ToUint32(end)
	if err != nil {
		return nil, err
	}
	if e < s {
		return nil, fmt.Errorf("pool %q: end %v before start %v", name, end, start)
	}
	return &Pool{
		Name:        name,
		start:       s,
		end:         e,
		quarantined: make(map[uint32]time.Time),
		cooldown:    DefaultQuarantine,
	}, nil
}

// Contains reports whether ip falls within the pool's range.
func (p *Pool) Contains(ip net.IP) bool {
	v, err := ip4ToUint32(ip)
	if err != nil {
		return false
	}
	return v >= p.start && v <= p.end
}

// Quarantine withholds ip from FirstFree/allocation for the cooldown
// window (DECLINE handling, §4.4).
func (p *Pool) Quarantine(ip net.IP) {
	v, err := ip4ToUint32(ip)
	if err != nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quarantined[v] = time.Now().Add(p.cooldown)
}

// IsQuarantined reports whether ip is presently withheld.
func (p *Pool) IsQuarantined(ip net.IP) bool {
	v, err := ip4ToUint32(ip)
	if err != nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	until, ok := p.quarantined[v]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(p.quarantined, v)
		return false
	}
	return true
}

// FirstFree returns the first address in pool order that is not held
// (per isHeld) and not quarantined.
func (p *Pool) FirstFree(isHeld func(net.IP) bool) (net.IP, bool) {
	for v := p.start; v <= p.end; v++ {
		ip := uint32ToIP4(v)
		if p.IsQuarantined(ip) || isHeld(ip) {
			continue
		}
		return ip, true
	}
	return nil, false
}

// ParseRange parses "a.b.c.d-w.x.y.z" into start/end IPv4 addresses.
func ParseRange(s string) (net.IP, net.IP, error) {
	for i := 0; i < len(s); i++ {
		if s[i] == '-' {
			start := net.ParseIP(s[:i])
			end := net.ParseIP(s[i+1:])
			if start == nil || end == nil {
				return nil, nil, fmt.Errorf("pool range %q: invalid IPv4 address", s)
			}
			return start, end, nil
		}
	}
	return nil, nil, fmt.Errorf("pool range %q: expected \"start-end\"", s)
}
