package middleware

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/gin-gonic/gin"
)

// CtxRealIPKey holds the resolved client IP used for rate limiting and logs.
const CtxRealIPKey = "real_ip"

// ParseTrustedProxies turns IPs and CIDRs into prefixes. A bare IP becomes
// a single-address prefix.
func ParseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
			}
			out = append(out, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
		}
		a = a.Unmap()
		out = append(out, netip.PrefixFrom(a, a.BitLen()))
	}
	return out, nil
}

// RealIP sets the client IP into the Gin context under CtxRealIPKey.
// Forwarding headers are read only when the TCP peer is one of trusted;
// any other peer is keyed on its own address. From a trusted peer:
// 1) CF-Connecting-IP
// 2) X-Forwarded-For, right-most entry that is not itself a trusted proxy
// 3) X-Real-IP
// 4) the peer address
func RealIP(trusted []netip.Prefix) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(CtxRealIPKey, realIP(c, trusted))
		c.Next()
	}
}

func realIP(c *gin.Context, trusted []netip.Prefix) string {
	peer, ok := parseAddr(c.RemoteIP())
	if !ok {
		return ""
	}
	if !isTrusted(peer, trusted) {
		return peer.String()
	}
	if ip, ok := parseAddr(c.GetHeader("CF-Connecting-IP")); ok {
		return ip.String()
	}
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			ip, ok := parseAddr(hops[i])
			if !ok {
				break
			}
			if !isTrusted(ip, trusted) {
				return ip.String()
			}
		}
	}
	if ip, ok := parseAddr(c.GetHeader("X-Real-IP")); ok {
		return ip.String()
	}
	return peer.String()
}

func isTrusted(ip netip.Addr, trusted []netip.Prefix) bool {
	for _, p := range trusted {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}

func parseAddr(s string) (netip.Addr, bool) {
	a, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}, false
	}
	return a.Unmap(), true
}
