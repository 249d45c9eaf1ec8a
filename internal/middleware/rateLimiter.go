package middleware

import (
	"sync"
	"time"

	"github.com/akolanti/GroundedQA/internal/config"
	"golang.org/x/time/rate"
)

var limiterInstance = NewIPRateLimiter(rate.Limit(config.RATE_LIMIT_PER_SECOND), config.BURST_RATE_LIMIT_PER_SECOND, config.RateLimiterIdleTTL)

// InitRateLimit replaces the default limits. Call it before serving.
func InitRateLimit(cfg config.RateLimitConfig) {
	limiterInstance = NewIPRateLimiter(rate.Limit(cfg.PerSecond), cfg.Burst, cfg.IdleTTL)
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter holds one token bucket per client ip. Buckets unused for
// idleTTL are swept at most once per idleTTL, so the map tracks active clients
// only. A zero idleTTL keeps every bucket.
type IPRateLimiter struct {
	ips       map[string]*clientLimiter
	mu        sync.Mutex
	rateLimit rate.Limit
	burstRate int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func NewIPRateLimiter(r rate.Limit, b int, idleTTL time.Duration) *IPRateLimiter {
	return &IPRateLimiter{
		ips:       make(map[string]*clientLimiter),
		rateLimit: r,
		burstRate: b,
		idleTTL:   idleTTL,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	now := i.now()
	if i.idleTTL > 0 && now.Sub(i.lastSweep) >= i.idleTTL {
		i.evictIdle(now)
	}

	c, exists := i.ips[ip]
	if !exists {
		c = &clientLimiter{limiter: rate.NewLimiter(i.rateLimit, i.burstRate)}
		i.ips[ip] = c
	}
	c.lastSeen = now
	return c.limiter
}

// Clients is the number of buckets currently held.
func (i *IPRateLimiter) Clients() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.ips)
}

func (i *IPRateLimiter) evictIdle(now time.Time) {
	for ip, c := range i.ips {
		if now.Sub(c.lastSeen) >= i.idleTTL {
			delete(i.ips, ip)
		}
	}
	i.lastSweep = now
}
