package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/go-task-manager/internal/application"
	"github.com/oksasatya/go-task-manager/pkg/metrics"
)

func init() { gin.SetMode(gin.TestMode) }

type stubIdentifier map[string]application.Identity

func (s stubIdentifier) Identify(token string) (*application.Identity, error) {
	id, ok := s[token]
	if !ok {
		return nil, errors.New("bad token")
	}
	return &id, nil
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	r := gin.New()
	r.GET("/me", Auth(stubIdentifier{"good": {UserID: "u1", Email: "u1@test.com"}}), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(CtxUserIDKey)+"|"+c.GetString(CtxUserEmailKey))
	})

	cases := []struct {
		name   string
		header string
		code   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"ok", "Bearer good", http.StatusOK},
		{"lowercase scheme", "bearer good", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := serve(r, req)
			assert.Equal(t, tc.code, w.Code)
			if tc.code == http.StatusOK {
				assert.Equal(t, "u1|u1@test.com", w.Body.String())
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Body.String())
	assert.Equal(t, w.Body.String(), w.Header().Get(HeaderRequestID))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "7d0c5d0e-3b0b-4a4e-8c5e-1f4e2a9b6c11")
	w = serve(r, req)
	assert.Equal(t, "7d0c5d0e-3b0b-4a4e-8c5e-1f4e2a9b6c11", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "not a uuid\r\n")
	w = serve(r, req)
	assert.NotEqual(t, "not a uuid\r\n", w.Body.String())
}

// httptest requests arrive from 192.0.2.1, standing in for the load balancer.
var lbProxies, _ = ParseTrustedProxies([]string{"192.0.2.1"})

func trustedProxies(t *testing.T, entries ...string) []netip.Prefix {
	t.Helper()
	p, err := ParseTrustedProxies(entries)
	require.NoError(t, err)
	return p
}

func realIPEngine(trusted []netip.Prefix) *gin.Engine {
	r := gin.New()
	r.Use(RealIP(trusted))
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(CtxRealIPKey)) })
	return r
}

func TestRealIP_TrustedProxy(t *testing.T) {
	r := realIPEngine(trustedProxies(t, "192.0.2.1", "10.0.0.0/8"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", serve(r, req).Body.String())

	// a client-supplied left-most hop is not believed past an untrusted one
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 203.0.113.7")
	assert.Equal(t, "203.0.113.7", serve(r, req).Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("CF-Connecting-IP", "198.51.100.2")
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	assert.Equal(t, "198.51.100.2", serve(r, req).Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "garbage")
	req.Header.Set("X-Real-IP", "192.0.2.9")
	assert.Equal(t, "192.0.2.9", serve(r, req).Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "192.0.2.1", serve(r, req).Body.String())
}

func TestRealIP_UntrustedPeerIgnoresHeaders(t *testing.T) {
	for _, r := range []*gin.Engine{realIPEngine(nil), realIPEngine(trustedProxies(t, "10.0.0.0/8"))} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", "10.0.0.1")
		req.Header.Set("CF-Connecting-IP", "198.51.100.2")
		req.Header.Set("X-Real-IP", "127.0.0.1")
		assert.Equal(t, "192.0.2.1", serve(r, req).Body.String())
	}
}

func TestParseTrustedProxies(t *testing.T) {
	got, err := ParseTrustedProxies([]string{" 10.1.2.3/8", "", "::ffff:192.0.2.1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "10.0.0.0/8", got[0].String())
	assert.Equal(t, "192.0.2.1/32", got[1].String())

	_, err = ParseTrustedProxies([]string{"proxy.local"})
	assert.Error(t, err)
}

func TestRateLimit_SpoofedHeadersShareOneBucket(t *testing.T) {
	r := gin.New()
	r.Use(RealIP(nil), RateLimit(nil, 1, time.Minute, KeyByIP(), AllowPrivateIP()))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	assert.Equal(t, http.StatusNoContent, serve(r, fromIP("203.0.113.1")).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, fromIP("203.0.113.2")).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, fromIP("10.0.0.1")).Code)
}

func limitedEngine(h gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(RealIP(lbProxies), h)
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

// fromIP sends a request through the trusted load balancer on behalf of ip.
func fromIP(ip string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Forwarded-For", ip)
	return req
}

func TestLocalRateLimit(t *testing.T) {
	l := NewLocalLimiter(3, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	r := limitedEngine(LocalRateLimit(l, KeyByIP(), nil))

	for i := 0; i < 3; i++ {
		w := serve(r, fromIP("203.0.113.1"))
		require.Equal(t, http.StatusNoContent, w.Code, "request %d", i)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, strconv.Itoa(2-i), w.Header().Get("X-RateLimit-Remaining"))
	}

	w := serve(r, fromIP("203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "20", w.Header().Get("Retry-After"))

	// other clients have their own bucket
	assert.Equal(t, http.StatusNoContent, serve(r, fromIP("203.0.113.2")).Code)

	now = now.Add(20 * time.Second)
	assert.Equal(t, http.StatusNoContent, serve(r, fromIP("203.0.113.1")).Code)
}

func TestLocalRateLimit_SweepsIdleKeys(t *testing.T) {
	l := NewLocalLimiter(5, time.Minute)
	now := time.Now()
	l.now = func() time.Time { return now }

	l.Allow("a")
	l.Allow("b")
	require.Equal(t, 2, l.Len())

	now = now.Add(3 * time.Minute)
	l.Allow("c")
	assert.Equal(t, 1, l.Len())
}

func TestRateLimit_BypassAndPreflight(t *testing.T) {
	r := limitedEngine(RateLimit(nil, 1, time.Minute, KeyByIP(), AllowPrivateIP()))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, serve(r, fromIP("10.1.2.3")).Code)
	}
	assert.Equal(t, http.StatusNoContent, serve(r, fromIP("203.0.113.5")).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, fromIP("203.0.113.5")).Code)
}

func TestRateLimit_DisabledWhenMaxIsZero(t *testing.T) {
	r := limitedEngine(RateLimit(nil, 0, time.Minute, KeyByIP(), nil))
	for i := 0; i < 5; i++ {
		w := serve(r, fromIP("203.0.113.5"))
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRateLimit_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	r := limitedEngine(RateLimit(rdb, 2, time.Minute, KeyByIP(), nil))

	assert.Equal(t, http.StatusNoContent, serve(r, fromIP("203.0.113.9")).Code)
	w := serve(r, fromIP("203.0.113.9"))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = serve(r, fromIP("203.0.113.9"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	mr.FastForward(time.Minute + time.Second)
	assert.Equal(t, http.StatusNoContent, serve(r, fromIP("203.0.113.9")).Code)
}

func TestRateLimit_RedisDownFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	r := limitedEngine(RateLimit(rdb, 1, time.Minute, KeyByIP(), nil))
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, serve(r, fromIP("203.0.113.9")).Code)
	}
}

func TestMetrics_UsesRouteTemplate(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewCollector(reg)

	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/api/tasks/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, httptest.NewRequest(http.MethodGet, "/api/tasks/a", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/api/tasks/b", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, 2, testutil.CollectAndCount(reg, "taskapi_http_requests_total"))
}

func TestAccessLog(t *testing.T) {
	logger, hook := test.NewNullLogger()
	r := gin.New()
	r.Use(RequestIDMiddleware(), AccessLog(logger))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	serve(r, httptest.NewRequest(http.MethodGet, "/ok", nil))
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
	assert.Equal(t, "/ok", hook.LastEntry().Data["route"])
	assert.NotEmpty(t, hook.LastEntry().Data["request_id"])

	serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, http.StatusInternalServerError, hook.LastEntry().Data["status"])
}
