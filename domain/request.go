package domain

import (
	"net"
	"net/http"
	"strings"
)

// RequestContext is the only surface of an inbound HTTP request the core
// consults: headers, the peer address, and cookies. Nothing else.
type RequestContext struct {
	Headers    http.Header
	RemoteAddr string
	Cookies    map[string]string
}

// ClientIP returns the effective client address: the last hop of the
// X-Forwarded-For chain when present (the hop closest to the trusted edge),
// otherwise the directly observed peer address, otherwise "".
//
// No anonymization happens here. Callers apply the anonymization policy
// themselves so it is evaluated the same way at creation and verification.
func (r RequestContext) ClientIP() string {
	if fwd := r.Headers.Get("X-Forwarded-For"); fwd != "" {
		hops := strings.Split(fwd, ",")
		return strings.TrimSpace(hops[len(hops)-1])
	}
	if r.RemoteAddr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// Cookie returns the named cookie value, or "" when absent.
func (r RequestContext) Cookie(name string) string {
	return r.Cookies[name]
}
