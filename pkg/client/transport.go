package client

import (
	"context"
	"errors"
)

// ErrClientGone means the client process is dead or its handle invalid.
// Callers treat it as process death, never as a retryable failure.
var ErrClientGone = errors.New("actlife: client gone")

// Transport delivers lifecycle messages to client processes. Dispatch must
// not wait for the client to act on the message; messages for the same
// client are delivered in dispatch order.
type Transport interface {
	Dispatch(ctx context.Context, h Handle, msg Message) error
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, h Handle, msg Message) error

func (f TransportFunc) Dispatch(ctx context.Context, h Handle, msg Message) error {
	return f(ctx, h, msg)
}
