package middleware

import (
	"net/http"
	"strings"
)

const (
	corsAllowHeaders  = "Authorization, Content-Type, " + RequestIDHeader
	corsAllowMethods  = "GET, POST, OPTIONS"
	corsExposeHeaders = RequestIDHeader
	corsMaxAge        = "600"
)

// corsPolicy is the parsed origin allowlist. Origins compare case-insensitively
// and without a trailing slash, matching how browsers serialize them.
type corsPolicy struct {
	any     bool
	origins map[string]struct{}
}

func newCORSPolicy(allowed []string) corsPolicy {
	p := corsPolicy{origins: make(map[string]struct{}, len(allowed))}
	for _, origin := range allowed {
		origin = normalizeOrigin(origin)
		switch origin {
		case "":
		case "*":
			p.any = true
		default:
			p.origins[origin] = struct{}{}
		}
	}
	return p
}

func (p corsPolicy) allows(origin string) bool {
	if p.any {
		return true
	}
	_, ok := p.origins[normalizeOrigin(origin)]
	return ok
}

func normalizeOrigin(origin string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(origin), "/"))
}

// CORS lets the operator dashboard call the status and outbound call endpoints
// from a browser. Salesforce webhook deliveries carry no Origin and pass
// through untouched. Preflights from origins outside the list get 403 so
// misconfigured dashboards fail loudly instead of silently missing headers.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	policy := newCORSPolicy(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowed := policy.allows(origin)
			h := w.Header()
			h.Add("Vary", "Origin")
			if allowed {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Expose-Headers", corsExposeHeaders)
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				if !allowed {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
				h.Set("Access-Control-Allow-Methods", corsAllowMethods)
				h.Set("Access-Control-Max-Age", corsMaxAge)
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
