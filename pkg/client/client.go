// Package client implements the client side of the chat wire protocol:
// it opens the connection, serializes outgoing requests and dispatches
// decoded server events to the consuming application. The UI on top of it
// only ever sees the Events callbacks.
package client

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/grible/chatline/internal/chat/wire"
)

// Events - callbacks fired by the reader loop. Nil callbacks are skipped.
// Callbacks run on the connection's reader goroutine, so they must not block
// for long or the connection stalls.
type Events struct {
	// LoggedIn - the last requested nickname was accepted.
	LoggedIn func(nick string)
	// LoginFailed - the last requested nickname is taken, retry is allowed.
	LoginFailed func()
	// MessageAdded - another participant posted a message.
	MessageAdded func(nick, content string, at time.Time)
	// UserJoined - a participant claimed a nickname.
	UserJoined func(nick string)
	// UserLeft - a participant departed.
	UserLeft func(nick string)
	// Disconnected - the transport failed; fatal to this connection.
	// The application decides whether to dial again. Not fired after an
	// explicit Close.
	Disconnected func(err error)
}

// Client - one connection to the chat server.
type Client struct {
	conn   net.Conn
	events Events

	mu   sync.Mutex // serializes writes, guards nick
	nick string

	once   sync.Once
	closed chan struct{}
}

// Dial - connects to the server and starts the reader loop.
func Dial(addr string, events Events) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("client.Dial: %w", err)
	}
	c := &Client{
		conn:   conn,
		events: events,
		closed: make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Login - requests a nickname; the outcome arrives as a LoggedIn or
// LoginFailed event.
func (c *Client) Login(nick string) error {
	line, err := wire.Encode(wire.Login(nick))
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nick = nick
	return c.write(line)
}

// Post - submits a message for broadcast to the other participants.
func (c *Client) Post(content string) error {
	line, err := wire.Encode(wire.PostMessage(content))
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.write(line)
}

// Close - announces the departure to the server and closes the transport.
// Safe to call more than once.
func (c *Client) Close() error {
	c.once.Do(func() { close(c.closed) })
	c.mu.Lock()
	if line, err := wire.Encode(wire.CloseSession(c.nick)); err == nil {
		// best effort, the transport may be gone already
		c.write(line)
	}
	c.mu.Unlock()
	return c.conn.Close()
}

// write - sends one line; the caller holds c.mu.
func (c *Client) write(line []byte) error {
	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')
	if _, err := c.conn.Write(buf); err != nil {
		return fmt.Errorf("client: send: %w", err)
	}
	return nil
}

func (c *Client) readLoop() {
	scanner := bufio.NewScanner(c.conn)
	for scanner.Scan() {
		m, err := wire.Decode(scanner.Bytes())
		if err != nil {
			// a malformed server line is connection-local noise
			continue
		}
		c.dispatch(m)
	}

	err := scanner.Err()
	select {
	case <-c.closed:
		// voluntary close, not a failure
		return
	default:
	}
	if c.events.Disconnected != nil {
		if err == nil {
			err = io.EOF
		}
		c.events.Disconnected(err)
	}
}

func (c *Client) dispatch(m wire.Message) {
	switch m.Type {
	case wire.TypeLoginSuccess:
		if cb := c.events.LoggedIn; cb != nil {
			c.mu.Lock()
			nick := c.nick
			c.mu.Unlock()
			cb(nick)
		}
	case wire.TypeLoginFailed:
		if cb := c.events.LoginFailed; cb != nil {
			cb()
		}
	case wire.TypeMessage:
		if cb := c.events.MessageAdded; cb != nil {
			at, _ := m.Timestamp()
			cb(m.Nick, m.Content, at)
		}
	case wire.TypeUserJoined:
		if cb := c.events.UserJoined; cb != nil {
			cb(m.Nick)
		}
	case wire.TypeUserLeft:
		if cb := c.events.UserLeft; cb != nil {
			cb(m.Nick)
		}
	}
}
