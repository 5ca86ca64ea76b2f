package middleware

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// limiterPool tracks one token bucket per client IP. The table is
// bounded: when it fills, idle entries are evicted, so a scan of
// spoofed source IPs cannot grow server memory without limit.
type limiterPool struct {
	mu         sync.Mutex
	rate       rate.Limit
	burst      int
	maxClients int
	idleAfter  time.Duration
	entries    map[string]*limiterEntry
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newLimiterPool(r rate.Limit, burst int) *limiterPool {
	return &limiterPool{
		rate:       r,
		burst:      burst,
		maxClients: 4096,
		idleAfter:  3 * time.Minute,
		entries:    make(map[string]*limiterEntry),
	}
}

func (p *limiterPool) get(ip string, now time.Time) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[ip]
	if !ok {
		if len(p.entries) >= p.maxClients {
			p.evict(now)
		}
		e = &limiterEntry{limiter: rate.NewLimiter(p.rate, p.burst)}
		p.entries[ip] = e
	}
	e.lastSeen = now
	return e.limiter
}

// evict drops idle entries. If every tracked client is still active the
// table resets wholesale; each client momentarily regains its burst,
// which is cheaper than letting the table grow forever.
func (p *limiterPool) evict(now time.Time) {
	for ip, e := range p.entries {
		if now.Sub(e.lastSeen) > p.idleAfter {
			delete(p.entries, ip)
		}
	}
	if len(p.entries) >= p.maxClients {
		p.entries = make(map[string]*limiterEntry)
	}
}

// RateLimit limits requests per client IP using a token bucket. Bulk
// uploads are heavy, so the upload route gets a low rate.
func RateLimit(r rate.Limit, burst int) gin.HandlerFunc {
	pool := newLimiterPool(r, burst)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if !pool.get(clientIP, time.Now()).Allow() {
			log.Printf("[rate] limit exceeded ip=%s path=%s", clientIP, c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded, try again later",
			})
			return
		}

		c.Next()
	}
}
