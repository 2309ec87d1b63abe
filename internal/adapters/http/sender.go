package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/bft-labs/actlife/pkg/client"
	"github.com/bft-labs/actlife/pkg/log"
)

const lifecycleEndpoint = "/v1/lifecycle"

// ErrQueueFull is returned when a client's outbound queue has no room.
var ErrQueueFull = errors.New("actlife: client queue full")

// errRetryable marks a response worth posting again.
var errRetryable = errors.New("retryable response")

// HTTPClient abstracts HTTP operations for dependency injection.
// The standard *http.Client satisfies this interface.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Sender implements client.Transport over HTTP. The handle of a client is
// the base URL of its endpoint. Messages for one client are posted in
// dispatch order by a dedicated goroutine, so Dispatch never blocks on the
// network.
//
// A client that refuses a connection or answers 410 Gone is marked gone:
// its queue is dropped, later dispatches fail with client.ErrClientGone and
// the OnGone callback fires once.
type Sender struct {
	client    HTTPClient
	logger    log.Logger
	authKey   string
	queueSize int
	onGone    func(client.Handle)

	retryAttempts  int
	backoffInitial time.Duration
	backoffMax     time.Duration

	mu     sync.Mutex
	queues map[client.Handle]chan client.Message
	gone   map[client.Handle]bool
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ client.Transport = (*Sender)(nil)

// Option configures a Sender.
type Option func(*Sender)

// WithHTTPClient sets the client used for posting messages.
func WithHTTPClient(c HTTPClient) Option {
	return func(s *Sender) { s.client = c }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(s *Sender) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithAuthKey sends key as a bearer token with every message.
func WithAuthKey(key string) Option {
	return func(s *Sender) { s.authKey = key }
}

// WithQueueSize bounds the number of undelivered messages per client.
func WithQueueSize(n int) Option {
	return func(s *Sender) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithRetry sets how many times a message answered with a 5xx or 429 is
// posted before it is dropped, and the backoff between attempts.
func WithRetry(attempts int, initial, max time.Duration) Option {
	return func(s *Sender) {
		if attempts > 0 {
			s.retryAttempts = attempts
		}
		if initial > 0 {
			s.backoffInitial = initial
		}
		if max >= s.backoffInitial {
			s.backoffMax = max
		}
	}
}

// WithOnGone registers a callback for clients detected as gone. It runs
// on a sender goroutine.
func WithOnGone(fn func(client.Handle)) Option {
	return func(s *Sender) { s.onGone = fn }
}

// NewSender creates a sender. Close it to stop its goroutines.
func NewSender(opts ...Option) *Sender {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Sender{
		client:    &http.Client{Timeout: 10 * time.Second},
		logger:    log.NewNoopLogger(),
		queueSize: 256,
		queues:    make(map[client.Handle]chan client.Message),
		gone:      make(map[client.Handle]bool),
		ctx:       ctx,
		cancel:    cancel,

		retryAttempts:  DefaultRetryAttempts,
		backoffInitial: DefaultBackoffInitial,
		backoffMax:     DefaultBackoffMax,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dispatch queues msg for the client at h.
func (s *Sender) Dispatch(_ context.Context, h client.Handle, msg client.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.gone[h] {
		return fmt.Errorf("dispatch %s to %s: %w", msg.Kind, h, client.ErrClientGone)
	}
	q, ok := s.queues[h]
	if !ok {
		q = make(chan client.Message, s.queueSize)
		s.queues[h] = q
		s.wg.Add(1)
		go s.run(h, q)
	}
	select {
	case q <- msg:
		return nil
	default:
		return fmt.Errorf("dispatch %s to %s: %w", msg.Kind, h, ErrQueueFull)
	}
}

// Forget clears the gone mark of h, for a client that attached again.
func (s *Sender) Forget(h client.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.gone, h)
}

// Close stops every queue. Undelivered messages are dropped.
func (s *Sender) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for h, q := range s.queues {
		close(q)
		delete(s.queues, h)
	}
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}

func (s *Sender) run(h client.Handle, q chan client.Message) {
	defer s.wg.Done()
	bo := newBackoff(s.backoffInitial, s.backoffMax)
	for msg := range q {
		err := s.deliver(h, msg, bo)
		if err == nil {
			continue
		}
		if s.ctx.Err() != nil {
			return
		}
		if !errors.Is(err, client.ErrClientGone) {
			s.logger.Warn("lifecycle message not delivered",
				log.String("client", string(h)),
				log.Stringer("kind", msg.Kind),
				log.String("token", msg.Token),
				log.Err(err),
			)
			continue
		}
		s.markGone(h, q, err)
		return
	}
}

// deliver posts msg, retrying retryable responses with backoff.
func (s *Sender) deliver(h client.Handle, msg client.Message, bo *backoff) error {
	defer bo.Reset()
	var err error
	for attempt := 1; ; attempt++ {
		err = s.post(s.ctx, h, msg)
		if !errors.Is(err, errRetryable) || attempt >= s.retryAttempts {
			return err
		}
		s.logger.Debug("retrying lifecycle message",
			log.String("client", string(h)),
			log.Stringer("kind", msg.Kind),
			log.Int("attempt", attempt),
			log.Err(err),
		)
		if !bo.Sleep(s.ctx) {
			return s.ctx.Err()
		}
	}
}

func (s *Sender) markGone(h client.Handle, q chan client.Message, cause error) {
	s.mu.Lock()
	if s.queues[h] == q {
		delete(s.queues, h)
	}
	s.gone[h] = true
	s.mu.Unlock()

	s.logger.Warn("client gone", log.String("client", string(h)), log.Err(cause))
	if s.onGone != nil {
		s.onGone(h)
	}
}

func (s *Sender) post(ctx context.Context, h client.Handle, msg client.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, string(h)+lifecycleEndpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actlife-Token", msg.Token)
	req.Header.Set("X-Actlife-OSArch", runtime.GOOS+"/"+runtime.GOARCH)
	if s.authKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.authKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %v: %w", err, client.ErrClientGone)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone:
		return fmt.Errorf("server returned %d: %w", resp.StatusCode, client.ErrClientGone)
	case resp.StatusCode/100 == 5, resp.StatusCode == http.StatusTooManyRequests:
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("server returned %d: %s: %w", resp.StatusCode, string(respBody), errRetryable)
	case resp.StatusCode/100 != 2:
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
