// Package tracker drives outbound queries to completion. A Tracker owns one
// generation of queries and the mailbox their replies land in; the caller
// waits for the generation to drain and then asks for a verdict.
package tracker

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/rl1809/invsnap/internal/core/domain"
	"github.com/rl1809/invsnap/internal/port"
)

const DefaultMaxFailures = 4

var ErrNoTransport = errors.New("no transport bound to tracker")

// Handler turns the outcome of one query into a result code. It runs on the
// query's goroutine and may decode the body into the query payload.
type Handler func(q *Query, resp *port.Response, err error) domain.ResultCode

type Query struct {
	Kind       domain.QueryKind
	Generation uuid.UUID
	Payload    any
	Hops       int
	Request    *port.Request

	tracker *Tracker
	ctx     context.Context
	handler Handler
}

func (q *Query) Tracker() *Tracker {
	return q.tracker
}

type Reply struct {
	Query      *Query
	Generation uuid.UUID
	Result     domain.ResultCode
}

type Tracker struct {
	transport   port.Transport
	generation  uuid.UUID
	maxFailures int
	logger      *log.Logger

	wg          sync.WaitGroup
	outstanding atomic.Int32

	mu      sync.Mutex
	mailbox []Reply

	failures    int
	failureFlag bool
}

type Option func(*Tracker)

func WithMaxFailures(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.maxFailures = n
		}
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

func New(transport port.Transport, opts ...Option) *Tracker {
	t := &Tracker{
		transport:   transport,
		generation:  uuid.New(),
		maxFailures: DefaultMaxFailures,
		logger:      log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) Generation() uuid.UUID {
	return t.generation
}

// Allocate creates a query belonging to this tracker's generation.
func (t *Tracker) Allocate(kind domain.QueryKind, payload any) *Query {
	return &Query{
		Kind:       kind,
		Generation: t.generation,
		Payload:    payload,
		tracker:    t,
	}
}

// Submit issues q asynchronously; h runs once the transport resolves it.
func (t *Tracker) Submit(ctx context.Context, q *Query, req *port.Request, h Handler) {
	q.ctx = ctx
	q.Request = req
	q.handler = h
	t.launch(q)
}

// Resubmit issues req as the next hop of q, under the same handler and payload.
func (t *Tracker) Resubmit(q *Query, req *port.Request) *Query {
	next := &Query{
		Kind:       q.Kind,
		Generation: q.Generation,
		Payload:    q.Payload,
		Hops:       q.Hops + 1,
		Request:    req,
		tracker:    t,
		ctx:        q.ctx,
		handler:    q.handler,
	}
	t.launch(next)
	return next
}

func (t *Tracker) launch(q *Query) {
	t.wg.Add(1)
	t.outstanding.Add(1)
	go func() {
		defer t.wg.Done()
		defer t.outstanding.Add(-1)

		var (
			resp *port.Response
			err  error
		)
		if t.transport == nil {
			err = ErrNoTransport
		} else {
			resp, err = t.transport.Do(q.ctx, q.Request)
		}
		result := q.handler(q, resp, err)
		t.post(Reply{Query: q, Generation: q.Generation, Result: result})
	}()
}

func (t *Tracker) post(r Reply) {
	t.mu.Lock()
	t.mailbox = append(t.mailbox, r)
	t.mu.Unlock()
}

// Outstanding returns the number of queries still in flight.
func (t *Tracker) Outstanding() int {
	return int(t.outstanding.Load())
}

// Wait blocks until every query of the generation has resolved.
func (t *Tracker) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ProcessReplies drains the mailbox and reports whether every reply of this
// generation succeeded. Replies are always released, whatever their outcome.
// A failed pass counts against the failure budget.
func (t *Tracker) ProcessReplies() bool {
	t.mu.Lock()
	replies := t.mailbox
	t.mailbox = nil
	t.mu.Unlock()

	ok := true
	for _, r := range replies {
		if r.Generation != t.generation {
			continue
		}
		if r.Result != domain.ResultSuccess {
			ok = false
			t.logger.Printf("WARNING: %s query failed: %s", r.Query.Kind, r.Result)
		}
	}
	if !ok {
		t.failures++
		if t.failures >= t.maxFailures {
			t.failureFlag = true
		}
	}
	return ok
}

// Failed reports whether the failure budget is spent.
func (t *Tracker) Failed() bool {
	return t.failureFlag
}

// Run reissues a logical fetch until one pass succeeds or the tracker gives up.
func Run(ctx context.Context, t *Tracker, issue func()) error {
	for {
		issue()
		if err := t.Wait(ctx); err != nil {
			return err
		}
		if t.ProcessReplies() {
			return nil
		}
		if t.Failed() {
			return port.ErrFetchFailed
		}
	}
}

// Classify maps a transport outcome to a result code. Only a 200 is a success.
func Classify(resp *port.Response, err error) domain.ResultCode {
	if err != nil || resp == nil {
		return domain.ResultTransportError
	}
	if resp.StatusCode != http.StatusOK {
		return domain.ResultRemoteError
	}
	return domain.ResultSuccess
}
