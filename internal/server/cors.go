package server

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/yevheniidehtiar/locust-love-django/internal/config"
)

var (
	defaultCORSMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	defaultCORSHeaders = []string{"Content-Type", "Authorization"}
)

// corsPolicy holds the precomputed header values for allowed origins.
type corsPolicy struct {
	origins     []string
	anyOrigin   bool
	credentials bool
	static      http.Header
}

func newCORSPolicy(cfg config.Config, exposed []string) *corsPolicy {
	methods := cfg.CORSMethods
	if len(methods) == 0 {
		methods = defaultCORSMethods
	}
	headers := cfg.CORSHeaders
	if len(headers) == 0 {
		headers = defaultCORSHeaders
	}
	p := &corsPolicy{
		origins:     cfg.CORSOrigins,
		anyOrigin:   slices.Contains(cfg.CORSOrigins, "*"),
		credentials: cfg.CORSCredentials,
		static: http.Header{
			"Access-Control-Allow-Methods": {strings.Join(methods, ", ")},
			"Access-Control-Allow-Headers": {strings.Join(headers, ", ")},
		},
	}
	if len(exposed) > 0 {
		p.static.Set("Access-Control-Expose-Headers", strings.Join(exposed, ", "))
	}
	if cfg.CORSCredentials {
		p.static.Set("Access-Control-Allow-Credentials", "true")
	}
	if cfg.CORSMaxAge > 0 {
		p.static.Set("Access-Control-Max-Age", strconv.Itoa(cfg.CORSMaxAge))
	}
	return p
}

// allowOrigin returns the Access-Control-Allow-Origin value, or "" when
// origin is not allowed.
func (p *corsPolicy) allowOrigin(origin string) string {
	switch {
	case origin == "":
		return ""
	case p.anyOrigin && !p.credentials:
		return "*"
	case p.anyOrigin || slices.Contains(p.origins, origin):
		return origin
	default:
		return ""
	}
}

// withCORS answers browsers calling the demo API from another origin. The
// profile headers are exposed so front-end tooling can read them.
func withCORS(cfg config.Config, exposed []string, next http.Handler) http.Handler {
	if len(cfg.CORSOrigins) == 0 {
		return next
	}
	policy := newCORSPolicy(cfg, exposed)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed := policy.allowOrigin(r.Header.Get("Origin"))
		if allowed == "" {
			next.ServeHTTP(w, r)
			return
		}
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", allowed)
		h.Add("Vary", "Origin")
		for k, v := range policy.static {
			h[k] = slices.Clone(v)
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
