package transport

import (
	"errors"
	"net/http"

	"github.com/rl1809/invsnap/internal/port"
)

var ErrNoCredential = errors.New("no API credential configured")

// HeaderSigner signs requests with a fixed header, typically a pre-computed
// Authorization value issued by the marketplace.
type HeaderSigner struct {
	Header string
	Value  string
}

func (s HeaderSigner) Sign(req *port.Request) error {
	if s.Value == "" {
		return ErrNoCredential
	}
	name := s.Header
	if name == "" {
		name = "Authorization"
	}
	if req.Header == nil {
		req.Header = http.Header{}
	}
	req.Header.Set(name, s.Value)
	return nil
}
