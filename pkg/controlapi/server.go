// Package controlapi exposes an optional, token-authenticated,
// rate-limited HTTP surface for inspecting a running client or server
// daemon (SPEC_FULL §2.11, §6). It is not part of the DHCP wire
// protocol — an operator uses it to check a daemon's state without
// reading its logs.
package controlapi

import (
	"crypto/subtle"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vulcan-rs/vulcan/pkg/server"
)

// DefaultRateLimit and DefaultBurst bound the per-IP request rate.
const (
	DefaultRateLimit = 20
	DefaultBurst     = 40
)

type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a token bucket per source IP.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rateLimiterEntry
	rate     rate.Limit
	burst    int
}

// NewRateLimiter builds a RateLimiter allowing r requests/sec with burst b.
func NewRateLimiter(r rate.Limit, b int) *RateLimiter {
	return &RateLimiter{limiters: make(map[string]*rateLimiterEntry), rate: r, burst: b}
}

func (rl *RateLimiter) get(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	entry, ok := rl.limiters[ip]
	if !ok {
		entry = &rateLimiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[ip] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

// CleanupStale drops limiters unseen for more than an hour, bounding
// memory growth across long-running daemons.
func (rl *RateLimiter) CleanupStale() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := time.Now().Add(-time.Hour)
	for ip, entry := range rl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.limiters, ip)
		}
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ErrorResponse is the JSON body written on any non-2xx response.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: code, Message: message, Timestamp: time.Now(), Path: r.URL.Path})
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

// ClientStatus is what a client daemon reports for GET /v1/lease.
type ClientStatus struct {
	Interface string `json:"interface"`
	State     string `json:"state"`
	IP        string `json:"ip,omitempty"`
	ServerID  string `json:"server_identifier,omitempty"`
	LeaseSecs uint32 `json:"lease_seconds,omitempty"`
}

// ClientStatusProvider is implemented by pkg/daemon's adapter over
// client.Engine.
type ClientStatusProvider interface {
	Status() ClientStatus
}

// ServerLeasesProvider is implemented by server.Dispatcher (via its
// LeaseStore) to list committed leases for GET /v1/leases.
type ServerLeasesProvider interface {
	Leases() map[server.StorageKey]server.Lease
}

// Config configures one Server instance. Exactly one of Client/Server
// should be set, matching whichever role this process runs.
type Config struct {
	Addr    string
	Token   string
	Version string
	Client  ClientStatusProvider
	Server  ServerLeasesProvider
}

// Server is the optional HTTP control surface.
type Server struct {
	cfg         Config
	httpServer  *http.Server
	rateLimiter *RateLimiter
}

// NewServer builds a Server from cfg.
func NewServer(cfg Config) *Server {
	return &Server{cfg: cfg, rateLimiter: NewRateLimiter(DefaultRateLimit, DefaultBurst)}
}

// Start boots the HTTP listener in the background. A Token of "" runs
// the control API without authentication, logged loudly since that
// exposes lease data to anything that can reach the port.
func (s *Server) Start() error {
	if s.cfg.Addr == "" {
		return nil
	}
	if s.cfg.Token == "" {
		log.Println("controlapi: running WITHOUT authentication; set a token to require one")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/status", s.auth(s.handleStatus))
	if s.cfg.Server != nil {
		mux.HandleFunc("/v1/leases", s.auth(s.handleLeases))
	}
	if s.cfg.Client != nil {
		mux.HandleFunc("/v1/lease", s.auth(s.handleLease))
	}

	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("controlapi: server stopped: %v", err)
		}
	}()
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			s.rateLimiter.CleanupStale()
		}
	}()
	return nil
}

// Shutdown stops the HTTP listener.
func (s *Server) Shutdown() error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Close()
}

func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !s.rateLimiter.get(ip).Allow() {
			writeError(w, r, http.StatusTooManyRequests, "rate_limit_exceeded", "rate limit exceeded")
			return
		}
		if s.cfg.Token != "" {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.Token)) != 1 {
				writeError(w, r, http.StatusUnauthorized, "unauthorized", "invalid or missing authentication token")
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"version": s.cfg.Version, "status": "ok"})
}

func (s *Server) handleLeases(w http.ResponseWriter, r *http.Request) {
	leases := s.cfg.Server.Leases()
	out := make([]server.Lease, 0, len(leases))
	for _, l := range leases {
		out = append(out, l)
	}
	writeJSON(w, out)
}

func (s *Server) handleLease(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.cfg.Client.Status())
}
