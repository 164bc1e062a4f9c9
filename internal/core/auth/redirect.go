package auth

import (
	"io"
	"log"
	"net/url"
	"strings"

	"github.com/rl1809/invsnap/internal/core/domain"
	"github.com/rl1809/invsnap/internal/core/tracker"
	"github.com/rl1809/invsnap/internal/port"
)

// MaxRedirectHops bounds a redirect chain. The response that arrives on the
// last hop is handled as a terminal response, redirect or not.
const MaxRedirectHops = 8

// ResolveRedirect splits a Location value into the scheme, host and path to
// reissue against. Relative targets stay on the current scheme and host.
func ResolveRedirect(location, scheme, host string) (string, string, string, bool) {
	loc := strings.TrimSpace(location)
	if loc == "" {
		return "", "", "", false
	}

	if strings.Contains(loc, "://") || strings.HasPrefix(loc, "//") {
		if strings.HasPrefix(loc, "//") {
			loc = schemeOrDefault(scheme) + ":" + loc
		}
		u, err := url.Parse(loc)
		if err != nil || u.Host == "" {
			return "", "", "", false
		}
		return u.Scheme, u.Host, u.RequestURI(), true
	}

	if strings.HasPrefix(loc, "/") {
		return scheme, host, loc, true
	}
	return scheme, host, "/" + loc, true
}

func schemeOrDefault(scheme string) string {
	if scheme == "" {
		return "https"
	}
	return scheme
}

// Redirector reissues redirected queries against their target, carrying the
// client identity and the current session token along.
type Redirector struct {
	ClientID string
	Session  *Session
	Logger   *log.Logger
}

// Follow wraps next so that 3xx responses are chased instead of handled.
// Each intermediate hop reports success; the final answer is up to next.
func (r *Redirector) Follow(next tracker.Handler) tracker.Handler {
	logger := r.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	return func(q *tracker.Query, resp *port.Response, err error) domain.ResultCode {
		if err != nil || resp == nil || resp.StatusCode < 300 || resp.StatusCode > 399 {
			return next(q, resp, err)
		}
		if q.Hops >= MaxRedirectHops {
			logger.Printf("WARNING: redirect limit of %d hops reached", MaxRedirectHops)
			return next(q, resp, err)
		}

		scheme, host, path, ok := ResolveRedirect(resp.Header.Get("Location"), q.Request.Scheme, q.Request.Host)
		if !ok {
			return next(q, resp, err)
		}

		req := q.Request.Clone()
		req.Scheme, req.Host, req.Path = scheme, host, path
		if r.ClientID != "" {
			req.Header.Set(HeaderClientID, r.ClientID)
		}
		if r.Session != nil {
			if token := r.Session.Token(); token != "" {
				req.Header.Set(HeaderSessionToken, token)
			}
		}

		logger.Printf("DEBUG: redirect %d -> %s%s", q.Hops+1, host, path)
		q.Tracker().Resubmit(q, req)
		return domain.ResultSuccess
	}
}
