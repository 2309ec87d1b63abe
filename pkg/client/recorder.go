package client

import (
	"context"
	"fmt"
	"sync"
)

// Sent is one message captured by a Recorder.
type Sent struct {
	Handle  Handle
	Message Message
}

// Recorder is an in-memory Transport that records every dispatch. Handles
// marked gone fail with ErrClientGone, as do the next n dispatches after
// FailNext(n).
type Recorder struct {
	mu       sync.Mutex
	sent     []Sent
	gone     map[Handle]bool
	failNext int
	onSend   func(Handle, Message)
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{gone: make(map[Handle]bool)}
}

// Dispatch implements Transport.
func (r *Recorder) Dispatch(_ context.Context, h Handle, msg Message) error {
	r.mu.Lock()
	if r.gone[h] {
		r.mu.Unlock()
		return fmt.Errorf("dispatch %s to %s: %w", msg.Kind, h, ErrClientGone)
	}
	if r.failNext > 0 {
		r.failNext--
		r.mu.Unlock()
		return fmt.Errorf("dispatch %s to %s: %w", msg.Kind, h, ErrClientGone)
	}
	r.sent = append(r.sent, Sent{Handle: h, Message: msg})
	hook := r.onSend
	r.mu.Unlock()

	if hook != nil {
		hook(h, msg)
	}
	return nil
}

// OnSend installs a hook called after every successful dispatch, outside
// the recorder lock. The hook must not call back into the dispatcher
// synchronously if the dispatcher holds a lock while dispatching.
func (r *Recorder) OnSend(fn func(Handle, Message)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onSend = fn
}

// SetGone marks h dead (or alive again).
func (r *Recorder) SetGone(h Handle, gone bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gone[h] = gone
}

// FailNext makes the next n dispatches fail with ErrClientGone.
func (r *Recorder) FailNext(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNext = n
}

// Sent returns a copy of every recorded dispatch.
func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

// For returns the messages recorded for an activity token.
func (r *Recorder) For(token string) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Message
	for _, s := range r.sent {
		if s.Message.Token == token {
			out = append(out, s.Message)
		}
	}
	return out
}

// Kinds returns the kinds of the messages recorded for token, in order.
func (r *Recorder) Kinds(token string) []Kind {
	msgs := r.For(token)
	out := make([]Kind, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Kind)
	}
	return out
}

// Last returns the most recent message for token.
func (r *Recorder) Last(token string) (Message, bool) {
	msgs := r.For(token)
	if len(msgs) == 0 {
		return Message{}, false
	}
	return msgs[len(msgs)-1], true
}

// Count returns the number of recorded messages of kind for token.
func (r *Recorder) Count(token string, kind Kind) int {
	n := 0
	for _, m := range r.For(token) {
		if m.Kind == kind {
			n++
		}
	}
	return n
}

// Reset forgets every recorded message.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}
