package tracker

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/rl1809/invsnap/internal/port"
)

const previewSize = 512

// ErrorStore surfaces failed responses with their raw payload. When a
// directory is configured each payload is also written to its own file.
type ErrorStore struct {
	dir    string
	logger *log.Logger

	mu sync.Mutex
}

func NewErrorStore(dir string, logger *log.Logger) *ErrorStore {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &ErrorStore{dir: dir, logger: logger}
}

func (s *ErrorStore) Store(title string, resp *port.Response) {
	if s == nil {
		return
	}
	if resp == nil {
		s.logger.Printf("ERROR: %s, no response", title)
		return
	}

	preview := resp.Body
	if len(preview) > previewSize {
		preview = preview[:previewSize]
	}
	s.logger.Printf("ERROR: %s (HTTP %d, %d bytes): %s", title, resp.StatusCode, len(resp.Body), bytes.TrimSpace(preview))

	if s.dir == "" {
		return
	}
	path, err := s.write(title, resp)
	if err != nil {
		s.logger.Printf("WARNING: could not store error payload: %v", err)
		return
	}
	s.logger.Printf("ERROR: full payload stored in %s", path)
}

func (s *ErrorStore) write(title string, resp *port.Response) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s\nHTTP %d\n", title, resp.StatusCode)
	resp.Header.Write(&buf)
	buf.WriteString("\n")
	buf.Write(resp.Body)

	name := fmt.Sprintf("%s-%s.txt", slug(title), uuid.NewString())
	path := filepath.Join(s.dir, name)
	return path, os.WriteFile(path, buf.Bytes(), 0o644)
}

func slug(title string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r - 'A' + 'a'
		}
		return '-'
	}, title)
}
