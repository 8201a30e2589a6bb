// Package chat implements the connection manager of a line-oriented TCP chat
// service: the accept loop, per-session protocol loop, the shared registry of
// sessions and claimed nicknames, and the broadcast fan-out.
package chat

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/grible/chatline/internal/chat/wire"
	"github.com/grible/chatline/pkg/background"
)

// Server - chat server over any net.Listener implementation.
// Each session walks through connected -> authenticated -> closed; nickname
// claims are linearized by the registry and every protocol event of one
// session fans out to the send-paths of all other sessions.
type Server struct {
	scope   *background.Scope
	log     logrus.FieldLogger
	now     func() time.Time
	history MessageHistory
	greets  int
	clients *registry
}

// NewServer - builds a chat server with the given options.
func NewServer(options ...ServerOption) (*Server, error) {
	s := &Server{
		scope:   background.NewScope(),
		log:     logrus.StandardLogger(),
		now:     time.Now,
		clients: newRegistry(),
	}
	if err := setup(s, options...); err != nil {
		return nil, err
	}
	return s, nil
}

// Serve - accepts connections from the listener until the listener fails or
// the server is shut down. An error on one connection never stops the loop.
func (s *Server) Serve(listener net.Listener) {
	if listener == nil || s.scope.Context().Err() != nil {
		return
	}
	s.scope.Go(func(ctx context.Context) {
		// close listener to break the Accept call on shutdown
		<-ctx.Done()
		listener.Close()
	})

	s.scope.Add(1)
	defer s.scope.Done()
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.scope.Context().Done():
				return
			default:
			}
			s.log.WithError(err).Warn("accept failed")
			continue
		}
		if err := s.KeepConnection(conn); err != nil {
			s.log.WithError(err).Warn("rejecting connection")
			conn.Close()
		}
	}
}

// KeepConnection - registers the connection as a fresh unauthenticated
// session and starts its IO goroutines in background. Never blocks waiting
// for the session. Used by the accept loop and by alternative access points
// such as the WebSocket gateway.
func (s *Server) KeepConnection(conn net.Conn) error {
	if s.scope.Context().Err() != nil {
		return ErrServerClosed
	}
	sess := newSession(s.scope.Context(), conn)
	if err := s.clients.register(sess); err != nil {
		sess.close()
		return err
	}
	s.scope.Go(func(context.Context) {
		sess.writeLoop(s.log)
	})
	s.scope.Go(func(context.Context) {
		s.readLoop(sess)
	})
	return nil
}

// Shutdown - stops accepting, drops every session transport and waits for
// in-flight session goroutines up to the given timeout.
// Returns the stopping duration.
func (s *Server) Shutdown(timeout time.Duration) time.Duration {
	if s.scope.Context().Err() != nil {
		return 0
	}
	from := time.Now()
	s.scope.Cancel()
	if !s.scope.WaitTimeout(timeout) {
		s.log.Warn("shutdown timeout expired with sessions still draining")
	}
	return time.Since(from)
}

// readLoop - the per-session inbound loop: blocking read, decode, dispatch.
// The session state machine lives here; nick stays empty until the registry
// confirms a claim.
func (s *Server) readLoop(sess *session) {
	log := s.log.WithField("session", sess.id)
	log.WithField("remote", sess.conn.RemoteAddr()).Info("session connected")
	defer func() {
		// transport gone or close requested: free the nickname and announce
		// the departure exactly once
		if nick, had := s.clients.unregister(sess.id); had {
			s.broadcast(sess, wire.UserLeft(nick))
			log.WithField("nick", nick).Info("session left")
		} else {
			log.Info("session closed")
		}
		sess.close()
	}()

	nick := ""
	scanner := bufio.NewScanner(sess.conn)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		msg, err := wire.Decode(line)
		if err != nil {
			log.WithError(err).Warn("skipping malformed line")
			continue
		}

		switch msg.Type {
		case wire.TypeLogin:
			// the nickname is immutable once set, a second login fails
			if nick != "" || !s.clients.tryClaimNickname(sess.id, msg.Nick) {
				s.send(sess, wire.LoginFailed())
				continue
			}
			nick = msg.Nick
			s.send(sess, wire.LoginSuccess())
			for _, greet := range historyTail(s.history, s.greets) {
				sess.enqueue([]byte(greet))
			}
			s.broadcast(sess, wire.UserJoined(nick))
			log.WithFields(logrus.Fields{"nick": nick, "online": s.clients.len()}).Info("nickname claimed")

		case wire.TypePostMessage:
			if nick == "" {
				log.Warn("dropping post message from unauthenticated session")
				continue
			}
			s.broadcast(sess, wire.Chat(nick, msg.Content, s.now()))

		case wire.TypeCloseSession:
			// the registry record, not the client-supplied nick, names the
			// departure; the deferred unregister is then a no-op
			if left, had := s.clients.unregister(sess.id); had {
				s.broadcast(sess, wire.UserLeft(left))
				log.WithField("nick", left).Info("session left")
			}
			return

		default:
			log.WithField("type", msg.Type).Warn("ignoring unexpected message kind")
		}
	}
	if err := scanner.Err(); err != nil {
		log.WithError(err).Info("session read ended")
	}
}

// send - encodes a reply and puts it on the session's own send-path.
func (s *Server) send(sess *session, m wire.Message) {
	line, err := wire.Encode(m)
	if err != nil {
		s.log.WithError(err).Error("reply encode failed")
		return
	}
	sess.enqueue(line)
}

// broadcast - fans the message out to every session except the origin.
// The recipient set is a registry snapshot taken outside any network write;
// each recipient gets an independent send, so one dead or slow recipient
// neither aborts the others nor crashes the origin's loop.
func (s *Server) broadcast(from *session, m wire.Message) {
	line, err := wire.Encode(m)
	if err != nil {
		s.log.WithError(err).Error("broadcast encode failed")
		return
	}
	if m.Type == wire.TypeMessage {
		historyPush(s.history, string(line))
	}
	wg := sync.WaitGroup{}
	for _, peer := range s.clients.snapshotOthers(from.id) {
		peer := peer
		wg.Add(1)
		go func() {
			defer wg.Done()
			peer.enqueue(line)
		}()
	}
	wg.Wait()
}
