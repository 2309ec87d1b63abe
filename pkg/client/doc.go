// Package client defines the lifecycle messages sent to the processes that
// host activities, and the Transport port that carries them.
//
// Dispatch is best-effort and one-way. A failed dispatch (ErrClientGone)
// means the client is gone; the engine converts it into a state transition
// instead of retrying. Recorder is an in-memory Transport for tests and
// simulations.
package client
