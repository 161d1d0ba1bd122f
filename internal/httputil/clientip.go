package httputil

import (
	"net"
	"net/http"
	"strings"
)

// GetClientIP resolves the originating client address. Proxy headers win
// over the socket peer: the first X-Forwarded-For hop, then X-Real-IP,
// then RemoteAddr with its port stripped.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
