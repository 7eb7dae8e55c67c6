// Package proxy routes gateway traffic to the downstream services.
package proxy

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"example.com/fitness/libs/go/auth"
)

// Route forwards every path under Prefix to Target.
type Route struct {
	Prefix string
	Target string
}

type compiledRoute struct {
	prefix string
	proxy  *httputil.ReverseProxy
}

// Router is an http.Handler that proxies by longest matching prefix.
type Router struct {
	routes []compiledRoute
}

// NewRouter validates the route table and builds one reverse proxy per route.
func NewRouter(routes []Route, logger zerolog.Logger) (*Router, error) {
	compiled := make([]compiledRoute, 0, len(routes))
	for _, route := range routes {
		if strings.TrimSpace(route.Target) == "" {
			continue
		}
		target, err := url.Parse(route.Target)
		if err != nil || target.Scheme == "" || target.Host == "" {
			return nil, fmt.Errorf("invalid target for %s: %q", route.Prefix, route.Target)
		}
		compiled = append(compiled, compiledRoute{
			prefix: route.Prefix,
			proxy:  newReverseProxy(target, logger),
		})
	}
	sort.Slice(compiled, func(i, j int) bool {
		return len(compiled[i].prefix) > len(compiled[j].prefix)
	})
	return &Router{routes: compiled}, nil
}

func newReverseProxy(target *url.URL, logger zerolog.Logger) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			// The bearer token is consumed at the gateway; services trust X-User-ID.
			pr.Out.Header.Del(auth.HeaderAuthorization)
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error().Err(err).Str("path", r.URL.Path).Str("target", target.Host).Msg("upstream request failed")
			writeError(w, http.StatusBadGateway, "bad_gateway", "upstream service unavailable")
		},
	}
}

// ServeHTTP implements http.Handler.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	for _, route := range rt.routes {
		if r.URL.Path == route.prefix || strings.HasPrefix(r.URL.Path, route.prefix+"/") {
			route.proxy.ServeHTTP(w, r)
			return
		}
	}
	writeError(w, http.StatusNotFound, "not_found", "no route for "+r.URL.Path)
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"type":   code,
		"detail": detail,
	})
}
