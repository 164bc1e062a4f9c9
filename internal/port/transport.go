package port

import (
	"context"
	"net/http"
)

// Request is one outbound call. Scheme defaults to https.
type Request struct {
	Method string
	Scheme string
	Host   string
	Path   string // includes the query string
	Header http.Header
	Body   []byte
}

// Clone returns a deep copy so a redirect can be reissued without sharing headers.
func (r *Request) Clone() *Request {
	c := *r
	c.Header = r.Header.Clone()
	if c.Header == nil {
		c.Header = http.Header{}
	}
	if r.Body != nil {
		c.Body = append([]byte(nil), r.Body...)
	}
	return &c
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

type Transport interface {
	// Do performs the request; redirects are returned to the caller, never followed
	Do(ctx context.Context, req *Request) (*Response, error)
}

type Signer interface {
	// Sign adds authentication headers to a primary API request
	Sign(req *Request) error
}
