package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/go-task-manager/pkg/response"
)

// ipFromCtx extracts the client IP from Gin context, falling back to "unknown"
func ipFromCtx(c *gin.Context) string {
	if ip := c.GetString(CtxRealIPKey); ip != "" {
		return ip
	}
	if ip := c.RemoteIP(); ip != "" {
		return ip
	}
	return "unknown"
}

func normalizePath(c *gin.Context) string {
	if fp := c.FullPath(); fp != "" {
		return fp
	}
	return c.Request.URL.Path
}

// KeyFunc builds a rate-limit key from the request
type KeyFunc func(c *gin.Context) string

// KeyByIP limits by client IP only
func KeyByIP() KeyFunc {
	return func(c *gin.Context) string {
		return "rl:ip:" + ipFromCtx(c)
	}
}

// KeyByIPAndPath limits by client IP and route
func KeyByIPAndPath() KeyFunc {
	return func(c *gin.Context) string {
		return "rl:path:" + normalizePath(c) + ":ip:" + ipFromCtx(c)
	}
}

// KeyByUserID limits authenticated callers by user and anonymous ones by IP.
// Place it after Auth.
func KeyByUserID() KeyFunc {
	return func(c *gin.Context) string {
		uid := c.GetString(CtxUserIDKey)
		if uid == "" {
			return "rl:user:anon:ip:" + ipFromCtx(c)
		}
		return "rl:user:" + uid
	}
}

// Lua script: atomic INCR, and set PEXPIRE when the key is new
var incrExpireScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

type AllowFunc func(*gin.Context) bool // return true for bypass limit

// RateLimit allows max requests per window per key using a fixed window
// counter in Redis. With rdb nil it falls back to an in-process token bucket
// (see LocalRateLimit). Redis errors fail open.
func RateLimit(rdb *redis.Client, max int, window time.Duration, keyFn KeyFunc, allow AllowFunc) gin.HandlerFunc {
	if max <= 0 || window <= 0 || keyFn == nil {
		return func(c *gin.Context) { c.Next() }
	}
	if rdb == nil {
		return LocalRateLimit(NewLocalLimiter(max, window), keyFn, allow)
	}
	return func(c *gin.Context) {
		if skipLimit(c, allow) {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := keyFn(c)

		countI, err := incrExpireScript.Run(ctx, rdb, []string{key}, window.Milliseconds()).Result()
		if err != nil {
			c.Next()
			return
		}
		count := toInt(countI)

		ttl, _ := rdb.PTTL(ctx, key).Result()
		resetSec := 0
		if ttl > 0 {
			resetSec = int((ttl + time.Second - 1) / time.Second)
		}

		if !applyLimit(c, max, max-count, resetSec) {
			return
		}
		c.Next()
	}
}

// skipLimit reports whether the request bypasses limiting: allowlisted
// callers and CORS preflights.
func skipLimit(c *gin.Context, allow AllowFunc) bool {
	if allow != nil && allow(c) {
		return true
	}
	return strings.EqualFold(c.Request.Method, http.MethodOptions)
}

// applyLimit writes the standard rate limit headers and, when remaining is
// negative, a 429. It reports whether the request may proceed.
func applyLimit(c *gin.Context, max, remaining, resetSec int) bool {
	c.Header("X-RateLimit-Limit", strconv.Itoa(max))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(clampZero(remaining)))
	c.Header("X-RateLimit-Reset", strconv.Itoa(resetSec))

	if remaining < 0 {
		if resetSec > 0 {
			c.Header("Retry-After", strconv.Itoa(resetSec))
		}
		response.Error[any](c, http.StatusTooManyRequests, "rate limit exceeded", nil)
		return false
	}
	return true
}

func clampZero(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func toInt(v interface{}) int {
	switch x := v.(type) {
	case int64:
		return int(x)
	case int:
		return x
	case string:
		i, _ := strconv.Atoi(x)
		return i
	}
	return 0
}
