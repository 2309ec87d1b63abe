// Package http carries lifecycle traffic between the engine and client
// processes. Sender posts lifecycle messages to clients and Handler
// receives their acknowledgements.
package http
