package chat

import (
	"context"
	"net"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// session - server-side state of one connected client transport.
// The outbox channel is the only send-path to the transport; it is drained by
// a single writer goroutine, so concurrent broadcast senders never touch the
// connection directly.
type session struct {
	id     string
	conn   net.Conn
	outbox chan []byte
	ctx    context.Context
	cancel context.CancelFunc
}

func newSession(parent context.Context, conn net.Conn) *session {
	ctx, cancel := context.WithCancel(parent)
	return &session{
		id:     uuid.NewString(),
		conn:   conn,
		outbox: make(chan []byte),
		ctx:    ctx,
		cancel: cancel,
	}
}

// enqueue - puts an encoded line on the session send-path.
// Gives up silently when the session is gone, so a recipient which
// disconnected between snapshot and send never blocks the sender.
func (s *session) enqueue(line []byte) {
	select {
	case s.outbox <- line:
	case <-s.ctx.Done():
	}
}

// writeLoop - owns all writes to the transport. Any write failure or a
// cancellation drops the session: closing the transport here also unblocks
// the session's read loop.
func (s *session) writeLoop(log logrus.FieldLogger) {
	defer s.close()
	for {
		select {
		case line := <-s.outbox:
			buf := make([]byte, 0, len(line)+1)
			buf = append(buf, line...)
			buf = append(buf, '\n')
			if _, err := s.conn.Write(buf); err != nil {
				log.WithField("session", s.id).WithError(err).Warn("send failed, dropping session")
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *session) close() {
	s.cancel()
	s.conn.Close()
}
