package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/rhuss/bruecke/pkg/transport"
)

// DefaultBypassEndpoints lists endpoints that skip authentication.
// Entries ending in "/" match as path prefixes, everything else exactly.
var DefaultBypassEndpoints = []string{"/healthz", "/metrics"}

// Middleware creates HTTP middleware from a Chain. Rejections use the
// {code, errmsg} envelope the API's clients expect for auth failures.
func Middleware(chain *Chain, bypassEndpoints []string) func(http.Handler) http.Handler {
	bypass := make(map[string]bool, len(bypassEndpoints))
	var prefixes []string
	for _, ep := range bypassEndpoints {
		if strings.HasSuffix(ep, "/") {
			prefixes = append(prefixes, ep)
			continue
		}
		bypass[ep] = true
	}

	bypassed := func(path string) bool {
		if bypass[path] {
			return true
		}
		for _, p := range prefixes {
			if strings.HasPrefix(path, p) {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bypassed(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			result := chain.Authenticate(r.Context(), r)
			if result.Decision != Yes {
				slog.Warn("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", result.Err,
				)
				transport.WriteAuthError(w, "authentication required")
				return
			}

			slog.Debug("authentication succeeded",
				"subject", result.Subject,
				"path", r.URL.Path,
			)
			next.ServeHTTP(w, r)
		})
	}
}
