// Package auth obtains the session credential used by the authenticated
// fallback source and follows the redirects that source likes to answer with.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/rl1809/invsnap/internal/core/domain"
	"github.com/rl1809/invsnap/internal/core/tracker"
	"github.com/rl1809/invsnap/internal/port"
)

const (
	SessionPath        = "/api/v1/actions/verify-and-create-session"
	HeaderClientID     = "x-bl-tpa-client-id"
	HeaderSessionToken = "x-bl-session-token"
)

var (
	ErrNoCredential = errors.New("no access token configured")
	ErrNoTransport  = errors.New("no account transport configured")
	ErrAuthFailed   = errors.New("authentication failed")
)

type SessionConfig struct {
	Label       string // prefix for diagnostics, e.g. "BrickLink BrickStore-Auth"
	Scheme      string
	AccountHost string
	ClientID    string
	AccessToken string
	MaxFailures int
}

// Session holds the session token obtained from the account server. The
// token is replaced wholesale on every successful authentication.
type Session struct {
	cfg       SessionConfig
	transport port.Transport
	errors    *tracker.ErrorStore
	logger    *log.Logger

	mu    sync.RWMutex
	token string
}

func NewSession(transport port.Transport, cfg SessionConfig, errs *tracker.ErrorStore, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if cfg.Label == "" {
		cfg.Label = "Session-Auth"
	}
	return &Session{
		cfg:       cfg,
		transport: transport,
		errors:    errs,
		logger:    logger,
	}
}

// Configured reports whether Authenticate could possibly succeed.
func (s *Session) Configured() bool {
	return s.cfg.AccessToken != "" && s.transport != nil
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) setToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// Authenticate logs in with the configured access token. It fails closed,
// without touching the network, when no token or transport is configured.
func (s *Session) Authenticate(ctx context.Context) error {
	if s.cfg.AccessToken == "" {
		return ErrNoCredential
	}
	if s.transport == nil {
		return ErrNoTransport
	}

	body, err := json.Marshal(struct {
		ClientID    string `json:"clientId"`
		ClientToken string `json:"clientToken"`
	}{s.cfg.ClientID, s.cfg.AccessToken})
	if err != nil {
		return fmt.Errorf("marshal auth body: %w", err)
	}

	t := tracker.New(s.transport, tracker.WithMaxFailures(s.cfg.MaxFailures), tracker.WithLogger(s.logger))
	err = tracker.Run(ctx, t, func() {
		s.logger.Printf("DEBUG: %s: requesting session token...", s.cfg.Label)
		req := &port.Request{
			Method: http.MethodPost,
			Scheme: s.cfg.Scheme,
			Host:   s.cfg.AccountHost,
			Path:   SessionPath,
			Header: http.Header{
				"Content-Type": []string{"application/json"},
			},
			Body: body,
		}
		req.Header.Set(HeaderClientID, s.cfg.ClientID)
		t.Submit(ctx, t.Allocate(domain.QueryOther, nil), req, s.handleReply)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}
	if s.Token() == "" {
		return ErrAuthFailed
	}
	return nil
}

func (s *Session) handleReply(q *tracker.Query, resp *port.Response, err error) domain.ResultCode {
	result := tracker.Classify(resp, err)
	switch result {
	case domain.ResultSuccess:
	case domain.ResultRemoteError:
		s.errors.Store(s.cfg.Label+" HTTP Error", resp)
		return result
	default:
		return result
	}

	token, ok := ParseSessionToken(resp.Body)
	if !ok {
		s.errors.Store(s.cfg.Label+" Parse Error", resp)
		return domain.ResultParseError
	}
	s.setToken(token)
	return domain.ResultSuccess
}

// ParseSessionToken finds the "sessionToken" key and returns the quoted
// string that follows its colon. An empty token is not a token.
func ParseSessionToken(body []byte) (string, bool) {
	const key = `"sessionToken"`

	s := string(body)
	i := strings.Index(s, key)
	if i < 0 {
		return "", false
	}
	rest := s[i+len(key):]
	colon := strings.IndexByte(rest, ':')
	if colon < 0 {
		return "", false
	}
	rest = rest[colon+1:]
	for len(rest) > 0 && rest[0] <= ' ' {
		rest = rest[1:]
	}
	if rest == "" || rest[0] != '"' {
		return "", false
	}
	rest = rest[1:]
	end := strings.IndexByte(rest, '"')
	if end <= 0 {
		return "", false
	}
	return rest[:end], true
}
