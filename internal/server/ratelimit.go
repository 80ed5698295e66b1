// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per IP. Zero disables limiting.
	RequestsPerSecond float64
	Burst             int
	// MaxVisitors caps the number of tracked IPs. Default 10000.
	MaxVisitors int
}

// Validate checks c and applies defaults.
func (c *RateLimitConfig) Validate() error {
	if c.RequestsPerSecond < 0 {
		return cgerr.Errorf(cgerr.CodeServerConfigInvalid,
			"rate limit requests per second must not be negative (got %g)", c.RequestsPerSecond)
	}
	if c.RequestsPerSecond > 0 && c.Burst <= 0 {
		return cgerr.Errorf(cgerr.CodeServerConfigInvalid,
			"rate limit burst must be positive when rate is set (got burst=%d)", c.Burst)
	}
	if c.MaxVisitors < 0 {
		return cgerr.Errorf(cgerr.CodeServerConfigInvalid,
			"rate limit max visitors must not be negative (got %d)", c.MaxVisitors)
	}
	if c.MaxVisitors == 0 {
		c.MaxVisitors = 10000
	}
	return nil
}

const staleVisitor = 10 * time.Minute

type visitor struct {
	tokens   float64
	lastSeen time.Time
}

type rateLimiter struct {
	cfg    RateLimitConfig
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor
	done     chan struct{}
}

func newRateLimiter(cfg RateLimitConfig, logger *slog.Logger) *rateLimiter {
	l := &rateLimiter{
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		visitors: map[string]*visitor{},
		done:     make(chan struct{}),
	}
	if cfg.RequestsPerSecond > 0 {
		go l.cleanupLoop()
	}
	return l
}

func (l *rateLimiter) stop() { close(l.done) }

// allow takes one token from ip's bucket.
func (l *rateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{tokens: float64(l.cfg.Burst), lastSeen: now}
		l.visitors[ip] = v
	}
	v.tokens = min(float64(l.cfg.Burst), v.tokens+now.Sub(v.lastSeen).Seconds()*l.cfg.RequestsPerSecond)
	v.lastSeen = now
	if v.tokens < 1 {
		return false
	}
	v.tokens--
	return true
}

func (l *rateLimiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.done:
			return
		}
	}
}

// cleanup drops idle visitors, then the oldest ones beyond MaxVisitors.
func (l *rateLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	ips := make([]string, 0, len(l.visitors))
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > staleVisitor {
			delete(l.visitors, ip)
			continue
		}
		ips = append(ips, ip)
	}
	if len(ips) <= l.cfg.MaxVisitors {
		return
	}
	slices.SortFunc(ips, func(a, b string) int {
		return l.visitors[a].lastSeen.Compare(l.visitors[b].lastSeen)
	})
	evict := len(ips) - l.cfg.MaxVisitors
	for _, ip := range ips[:evict] {
		delete(l.visitors, ip)
	}
	l.logger.Warn("rate limiter visitor cap enforced", "evicted", evict, "max_visitors", l.cfg.MaxVisitors)
}

func (l *rateLimiter) middleware(next http.Handler) http.Handler {
	if l.cfg.RequestsPerSecond <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if !l.allow(ip) {
			l.logger.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"status":429,"code":"server.request.rate_limited","message":"rate limit exceeded"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
