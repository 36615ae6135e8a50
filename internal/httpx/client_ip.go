package httpx

import (
	"fmt"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIPResolver decides which address identifies the caller for lockout
// and throttling. Forwarding headers are read only when the direct peer is
// one of the configured proxies.
type ClientIPResolver struct {
	proxies []netip.Prefix
}

// NewClientIPResolver accepts bare addresses and CIDR ranges.
func NewClientIPResolver(trustedProxies []string) (*ClientIPResolver, error) {
	resolver := &ClientIPResolver{}

	for _, raw := range trustedProxies {
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}

		if addr, err := netip.ParseAddr(value); err == nil {
			addr = addr.Unmap()
			resolver.proxies = append(resolver.proxies, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}

		prefix, err := netip.ParsePrefix(value)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", value, err)
		}
		if prefix.Addr().Is4In6() && prefix.Bits() >= 96 {
			prefix = netip.PrefixFrom(prefix.Addr().Unmap(), prefix.Bits()-96)
		}
		resolver.proxies = append(resolver.proxies, prefix.Masked())
	}

	return resolver, nil
}

// Resolve returns the caller address for r. Behind a trusted proxy the
// X-Forwarded-For chain is walked from the right, skipping proxy hops, so
// entries the client prepended itself are never chosen.
func (c *ClientIPResolver) Resolve(r *http.Request) string {
	peer, ok := hostAddr(r.RemoteAddr)
	if !ok {
		return "unknown"
	}
	if !c.trusts(peer) {
		return peer.String()
	}

	if header := r.Header.Values("X-Forwarded-For"); len(header) > 0 {
		return c.walkForwarded(peer, strings.Join(header, ",")).String()
	}
	if realIP, ok := hostAddr(r.Header.Get("X-Real-IP")); ok {
		return realIP.String()
	}
	return peer.String()
}

// Middleware replaces RemoteAddr with the resolved client address so that
// logging, httprate and the lockout all key on the same value.
func (c *ClientIPResolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.RemoteAddr = c.Resolve(r)
		next.ServeHTTP(w, r)
	})
}

// walkForwarded returns the rightmost hop that is not a trusted proxy. A
// malformed hop ends the walk at the last address that could be verified.
func (c *ClientIPResolver) walkForwarded(peer netip.Addr, header string) netip.Addr {
	hops := strings.Split(header, ",")
	nearest := peer
	for i := len(hops) - 1; i >= 0; i-- {
		addr, ok := hostAddr(hops[i])
		if !ok {
			return nearest
		}
		if !c.trusts(addr) {
			return addr
		}
		nearest = addr
	}
	return nearest
}

func (c *ClientIPResolver) trusts(addr netip.Addr) bool {
	for _, prefix := range c.proxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// hostAddr parses "ip", "ip:port", "[v6]:port" and quoted variants.
func hostAddr(value string) (netip.Addr, bool) {
	value = strings.Trim(strings.TrimSpace(value), `"`)
	if value == "" {
		return netip.Addr{}, false
	}
	if addrPort, err := netip.ParseAddrPort(value); err == nil {
		return addrPort.Addr().Unmap(), true
	}
	if addr, err := netip.ParseAddr(strings.Trim(value, "[]")); err == nil {
		return addr.Unmap(), true
	}
	return netip.Addr{}, false
}
