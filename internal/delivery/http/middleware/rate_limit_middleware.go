package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"portfolio-booking/pkg/response"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	// Interval for sweeping idle limiters
	limiterCleanupInterval = 10 * time.Minute

	// Minimum time a limiter must be unused before it is dropped
	limiterIdleThreshold = 10 * time.Minute
)

// RateLimitMiddleware keeps one token bucket per client IP. X-Forwarded-For
// is only read when the direct peer is one of the trusted proxies.
type RateLimitMiddleware struct {
	log      *logrus.Logger
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	trusted  []*net.IPNet
	mu       sync.Mutex
	limiters map[string]*clientLimiter

	// Graceful shutdown
	stopChan chan struct{}
	wg       sync.WaitGroup
	stopped  atomic.Bool
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimitMiddleware starts the background sweep of idle limiters.
// trustedProxies holds IPs or CIDRs; invalid entries are logged and skipped.
// Call Stop() during graceful shutdown.
func NewRateLimitMiddleware(log *logrus.Logger, perMinute, burst int, trustedProxies []string) *RateLimitMiddleware {
	if perMinute <= 0 {
		perMinute = 10
	}
	if burst <= 0 {
		burst = 1
	}

	// A limiter is only dropped once its bucket has refilled
	interval := time.Minute / time.Duration(perMinute)
	idleTTL := limiterIdleThreshold
	if refill := interval * time.Duration(burst); refill > idleTTL {
		idleTTL = refill
	}

	m := &RateLimitMiddleware{
		log:      log,
		limit:    rate.Every(interval),
		burst:    burst,
		idleTTL:  idleTTL,
		trusted:  parseTrustedProxies(log, trustedProxies),
		limiters: make(map[string]*clientLimiter),
		stopChan: make(chan struct{}),
	}

	m.wg.Add(1)
	go m.cleanupLoop()

	return m
}

// Stop gracefully shuts down the sweep.
// Safe to call multiple times.
func (m *RateLimitMiddleware) Stop() {
	if m.stopped.CompareAndSwap(false, true) {
		close(m.stopChan)
		m.wg.Wait()
		m.log.Info("RateLimitMiddleware stopped")
	}
}

func (m *RateLimitMiddleware) getLimiter(ip string, now time.Time) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.limiters[ip]
	if !exists {
		entry = &clientLimiter{limiter: rate.NewLimiter(m.limit, m.burst)}
		m.limiters[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

func (m *RateLimitMiddleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := m.clientIP(r)
		if !m.getLimiter(ip, time.Now()).Allow() {
			m.log.Warnf("Rate limit exceeded: ip=%s, path=%s", ip, r.URL.Path)
			response.TooManyRequests(w, "Rate limit exceeded. Try again later.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) cleanupLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			m.log.Debug("Rate limiter cleanup goroutine stopping")
			return
		case <-ticker.C:
			m.cleanupIdle(time.Now().Add(-m.idleTTL))
		}
	}
}

// cleanupIdle removes limiters not used since cutoff
func (m *RateLimitMiddleware) cleanupIdle(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	var cleaned int
	for ip, entry := range m.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(m.limiters, ip)
			cleaned++
		}
	}

	if cleaned > 0 {
		m.log.Debugf("Cleaned up %d idle rate limiters", cleaned)
	}
	return cleaned
}

// clientIP returns the direct peer unless it is a trusted proxy. Behind a
// trusted proxy the X-Forwarded-For chain is walked from the right and the
// first hop that is not itself a trusted proxy is the client.
func (m *RateLimitMiddleware) clientIP(r *http.Request) string {
	peer := remoteHost(r)
	if !m.isTrusted(peer) {
		return peer
	}

	fwd := r.Header.Values("X-Forwarded-For")
	if len(fwd) == 0 {
		return peer
	}
	hops := strings.Split(strings.Join(fwd, ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !m.isTrusted(hop) {
			return hop
		}
		peer = hop
	}
	return peer
}

func (m *RateLimitMiddleware) isTrusted(host string) bool {
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	for _, n := range m.trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func parseTrustedProxies(log *logrus.Logger, entries []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, raw := range entries {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				log.Warnf("Ignoring invalid trusted proxy %q", entry)
				continue
			}
			bits := 128
			if ip.To4() != nil {
				ip = ip.To4()
				bits = 32
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(entry)
		if err != nil {
			log.Warnf("Ignoring invalid trusted proxy %q: %v", entry, err)
			continue
		}
		nets = append(nets, n)
	}
	return nets
}

// remoteHost is the direct peer address without its port
func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
