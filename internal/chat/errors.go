package chat

import "errors"

var (
	// ErrServerClosed - returned when a connection is offered to a server
	// which is already under stop condition; close such connection yourself.
	ErrServerClosed = errors.New("chat: server is closed")

	// ErrSessionExists - returned when a session id is registered already.
	// Should be unreachable with generated ids and is fatal to the offered
	// connection only.
	ErrSessionExists = errors.New("chat: session id is registered already")
)
