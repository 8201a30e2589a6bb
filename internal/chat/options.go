package chat

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// ServerOption - configures the server under construction.
type ServerOption func(s *Server) error

func setup(s *Server, options ...ServerOption) error {
	for _, option := range options {
		if option == nil {
			continue
		}
		if err := option(s); err != nil {
			return err
		}
	}
	return nil
}

// WithLogger - overwrites the default (standard logrus) logger.
func WithLogger(log logrus.FieldLogger) ServerOption {
	return func(s *Server) error {
		if log == nil {
			return errors.New("chat.WithLogger: logger is nil")
		}
		s.log = log
		return nil
	}
}

// WithHistory - attaches a history of recent chat lines; the last greets of
// them are replayed to every freshly authenticated session.
func WithHistory(h MessageHistory, greets int) ServerOption {
	return func(s *Server) error {
		if h == nil {
			return errors.New("chat.WithHistory: history is nil")
		}
		if greets < 0 {
			return fmt.Errorf("chat.WithHistory: invalid greets value (%d)", greets)
		}
		s.history = h
		s.greets = greets
		return nil
	}
}

// WithClock - overwrites the source of message timestamps.
// Useful for deterministic tests.
func WithClock(now func() time.Time) ServerOption {
	return func(s *Server) error {
		if now == nil {
			return errors.New("chat.WithClock: clock is nil")
		}
		s.now = now
		return nil
	}
}
