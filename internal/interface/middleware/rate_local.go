package middleware

import (
	"math"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type keyLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// LocalLimiter is a per-key token bucket held in process memory: max tokens
// refilled evenly over window. Keys idle for two windows are swept on a
// later call.
type LocalLimiter struct {
	max    int
	window time.Duration
	every  rate.Limit
	now    func() time.Time

	mu        sync.Mutex
	keys      map[string]*keyLimiter
	lastSweep time.Time
}

func NewLocalLimiter(max int, window time.Duration) *LocalLimiter {
	return &LocalLimiter{
		max:       max,
		window:    window,
		every:     rate.Limit(float64(max) / window.Seconds()),
		now:       time.Now,
		keys:      make(map[string]*keyLimiter),
		lastSweep: time.Now(),
	}
}

// Allow takes one token for key. It returns whether the request may proceed,
// the whole tokens left and the seconds until the next token.
func (l *LocalLimiter) Allow(key string) (ok bool, remaining int, resetSec int) {
	now := l.now()

	l.mu.Lock()
	if now.Sub(l.lastSweep) > l.window {
		l.sweep(now)
	}
	kl, found := l.keys[key]
	if !found {
		kl = &keyLimiter{limiter: rate.NewLimiter(l.every, l.max)}
		l.keys[key] = kl
	}
	kl.lastAccess = now
	l.mu.Unlock()

	ok = kl.limiter.AllowN(now, 1)
	tokens := kl.limiter.TokensAt(now)
	if tokens < 1 {
		resetSec = int(math.Ceil((1 - tokens) / float64(l.every)))
	}
	return ok, int(math.Max(0, math.Floor(tokens))), resetSec
}

// Len returns the number of tracked keys.
func (l *LocalLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}

// sweep drops idle keys; l.mu must be held.
func (l *LocalLimiter) sweep(now time.Time) {
	ttl := 2 * l.window
	for k, kl := range l.keys {
		if now.Sub(kl.lastAccess) > ttl {
			delete(l.keys, k)
		}
	}
	l.lastSweep = now
}

// LocalRateLimit limits with an in-process LocalLimiter; used when Redis is
// not configured. Limits are per instance.
func LocalRateLimit(l *LocalLimiter, keyFn KeyFunc, allow AllowFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if skipLimit(c, allow) {
			c.Next()
			return
		}
		ok, remaining, resetSec := l.Allow(keyFn(c))
		if !ok {
			remaining = -1
		}
		if !applyLimit(c, l.max, remaining, resetSec) {
			return
		}
		c.Next()
	}
}
