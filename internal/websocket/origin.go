package websocket

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// OriginRejectedFunc is called for every rejected handshake
type OriginRejectedFunc func(origin, remoteAddr string)

// originMatcher holds exact origins plus "scheme://*.domain" patterns,
// which match any subdomain but not the bare domain.
type originMatcher struct {
	exact    map[string]struct{}
	suffixes []string // "scheme://" + "." + domain
}

func newOriginMatcher(origins []string) originMatcher {
	m := originMatcher{exact: make(map[string]struct{}, len(origins))}
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		switch {
		case origin == "" || origin == "*":
		case strings.Contains(origin, "://*."):
			scheme, domain, _ := strings.Cut(origin, "://*.")
			m.suffixes = append(m.suffixes, scheme+"://."+domain)
		default:
			m.exact[origin] = struct{}{}
		}
	}
	if len(m.exact) == 0 && len(m.suffixes) == 0 {
		m.exact["http://localhost:3000"] = struct{}{}
	}
	return m
}

func (m originMatcher) allows(origin string) bool {
	if _, ok := m.exact[origin]; ok {
		return true
	}
	for _, suffix := range m.suffixes {
		scheme, domain, _ := strings.Cut(suffix, "://")
		rest, ok := strings.CutPrefix(origin, scheme+"://")
		if ok && strings.HasSuffix(rest, domain) && len(rest) > len(domain) && !strings.ContainsAny(rest, "/:") {
			return true
		}
	}
	return false
}

// NewSecureUpgrader creates the live feed upgrader. Only the dashboard
// origins are accepted; requests without an Origin header are same-origin.
// A bare "*" is ignored, and an empty list allows http://localhost:3000.
func NewSecureUpgrader(allowedOrigins []string, logger *slog.Logger, onReject OriginRejectedFunc) websocket.Upgrader {
	matcher := newOriginMatcher(allowedOrigins)

	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || matcher.allows(origin) {
				return true
			}
			if logger != nil {
				logger.Warn("rejected websocket connection",
					slog.String("origin", origin),
					slog.String("remote_ip", r.RemoteAddr))
			}
			if onReject != nil {
				onReject(origin, r.RemoteAddr)
			}
			return false
		},
		ReadBufferSize:    1024,
		WriteBufferSize:   4096,
		EnableCompression: true,
	}
}
