package chat

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/grible/chatline/internal/chat/history"
	"github.com/grible/chatline/internal/chat/wire"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func startServer(test *testing.T, options ...ServerOption) (*Server, string) {
	test.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		test.Fatal("listen, unexpected error:", err)
	}
	options = append([]ServerOption{WithLogger(testLogger())}, options...)
	server, err := NewServer(options...)
	if err != nil {
		test.Fatal("NewServer, unexpected error:", err)
	}
	go server.Serve(listener)
	test.Cleanup(func() {
		server.Shutdown(2 * time.Second)
	})
	return server, listener.Addr().String()
}

// testClient - raw protocol client driving the server over a real socket.
type testClient struct {
	test   *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

func dialTest(test *testing.T, addr string) *testClient {
	test.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		test.Fatal("dial, unexpected error:", err)
	}
	test.Cleanup(func() { conn.Close() })
	return &testClient{test: test, conn: conn, reader: bufio.NewReader(conn)}
}

func (c *testClient) send(m wire.Message) {
	c.test.Helper()
	line, err := wire.Encode(m)
	if err != nil {
		c.test.Fatal("encode, unexpected error:", err)
	}
	if _, err := c.conn.Write(append(line, '\n')); err != nil {
		c.test.Fatal("send, unexpected error:", err)
	}
}

func (c *testClient) sendRaw(line string) {
	c.test.Helper()
	if _, err := c.conn.Write([]byte(line + "\n")); err != nil {
		c.test.Fatal("send raw, unexpected error:", err)
	}
}

func (c *testClient) read(timeout time.Duration) (wire.Message, error) {
	c.conn.SetReadDeadline(time.Now().Add(timeout))
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return wire.Message{}, err
	}
	return wire.Decode([]byte(strings.TrimSuffix(line, "\n")))
}

func (c *testClient) expect(kind string) wire.Message {
	c.test.Helper()
	m, err := c.read(2 * time.Second)
	if err != nil {
		c.test.Fatalf("expected %q, got read error: %v", kind, err)
	}
	if m.Type != kind {
		c.test.Fatalf("expected %q, received: %+v", kind, m)
	}
	return m
}

func (c *testClient) expectNothing(window time.Duration) {
	c.test.Helper()
	m, err := c.read(window)
	if err == nil {
		c.test.Fatalf("expected silence, received: %+v", m)
	}
	if netErr, ok := err.(net.Error); !ok || !netErr.Timeout() {
		c.test.Fatal("expected read timeout, got:", err)
	}
}

func (c *testClient) login(nick string) {
	c.test.Helper()
	c.send(wire.Login(nick))
	c.expect(wire.TypeLoginSuccess)
}

func TestServer_LoginUniqueness(test *testing.T) {
	_, addr := startServer(test)

	alice := dialTest(test, addr)
	alice.login("alice")

	intruder := dialTest(test, addr)
	intruder.send(wire.Login("alice"))
	intruder.expect(wire.TypeLoginFailed)

	// the rejected session may retry with a free name
	intruder.send(wire.Login("bob"))
	intruder.expect(wire.TypeLoginSuccess)

	// alice is unaffected and sees exactly one join, none about herself
	joined := alice.expect(wire.TypeUserJoined)
	if joined.Nick != "bob" {
		test.Error("unexpected joined nick:", joined.Nick)
	}
	alice.expectNothing(150 * time.Millisecond)
}

func TestServer_SecondLoginRejected(test *testing.T) {
	_, addr := startServer(test)

	alice := dialTest(test, addr)
	alice.login("alice")
	alice.send(wire.Login("alice2"))
	alice.expect(wire.TypeLoginFailed)
}

func TestServer_JoinVisibleToUnauthenticated(test *testing.T) {
	_, addr := startServer(test)

	// a connected but never logged-in socket still receives presence
	watcher := dialTest(test, addr)
	// trip through the server to be sure the watcher is registered
	watcher.send(wire.Login(""))
	watcher.expect(wire.TypeLoginFailed)

	alice := dialTest(test, addr)
	alice.login("alice")

	joined := watcher.expect(wire.TypeUserJoined)
	if joined.Nick != "alice" {
		test.Error("unexpected joined nick:", joined.Nick)
	}
}

func TestServer_MessageFanout(test *testing.T) {
	at := time.Date(2024, 5, 11, 16, 20, 3, 0, time.UTC)
	_, addr := startServer(test, WithClock(func() time.Time { return at }))

	alice := dialTest(test, addr)
	alice.login("alice")
	bob := dialTest(test, addr)
	bob.login("bob")
	alice.expect(wire.TypeUserJoined)

	alice.send(wire.PostMessage("hello"))

	m := bob.expect(wire.TypeMessage)
	if m.Nick != "alice" || m.Content != "hello" {
		test.Errorf("unexpected message: %+v", m)
	}
	stamp, err := m.Timestamp()
	if err != nil {
		test.Fatal("timestamp parse, unexpected error:", err)
	}
	if !stamp.Equal(at) {
		test.Error("expected server clock stamp:", at, "got:", stamp)
	}
	// the sender receives nothing from its own post
	alice.expectNothing(150 * time.Millisecond)
}

func TestServer_ServerStampsTime(test *testing.T) {
	at := time.Date(2024, 5, 11, 16, 20, 3, 0, time.UTC)
	_, addr := startServer(test, WithClock(func() time.Time { return at }))

	alice := dialTest(test, addr)
	alice.login("alice")
	bob := dialTest(test, addr)
	bob.login("bob")
	alice.expect(wire.TypeUserJoined)

	// a client-supplied timestamp is not trusted
	alice.send(wire.Message{Type: wire.TypePostMessage, Content: "hi", Time: "2000-01-01T00:00:00Z"})
	m := bob.expect(wire.TypeMessage)
	stamp, err := m.Timestamp()
	if err != nil {
		test.Fatal("timestamp parse, unexpected error:", err)
	}
	if !stamp.Equal(at) {
		test.Error("expected server clock stamp:", at, "got:", stamp)
	}
}

func TestServer_GracefulClose(test *testing.T) {
	_, addr := startServer(test)

	alice := dialTest(test, addr)
	alice.login("alice")
	bob := dialTest(test, addr)
	bob.login("bob")
	alice.expect(wire.TypeUserJoined)

	bob.send(wire.CloseSession("bob"))

	left := alice.expect(wire.TypeUserLeft)
	if left.Nick != "bob" {
		test.Error("unexpected left nick:", left.Nick)
	}
	alice.expectNothing(150 * time.Millisecond)

	// the nickname is claimable again
	heir := dialTest(test, addr)
	heir.login("bob")
}

func TestServer_AbruptDisconnect(test *testing.T) {
	_, addr := startServer(test)

	alice := dialTest(test, addr)
	alice.login("alice")
	bob := dialTest(test, addr)
	bob.login("bob")
	alice.expect(wire.TypeUserJoined)

	bob.conn.Close()

	left := alice.expect(wire.TypeUserLeft)
	if left.Nick != "bob" {
		test.Error("unexpected left nick:", left.Nick)
	}
	alice.expectNothing(150 * time.Millisecond)

	heir := dialTest(test, addr)
	heir.login("bob")
}

func TestServer_CloseIgnoresClientSuppliedNick(test *testing.T) {
	_, addr := startServer(test)

	alice := dialTest(test, addr)
	alice.login("alice")
	bob := dialTest(test, addr)
	bob.login("bob")
	alice.expect(wire.TypeUserJoined)

	// the departure is announced with the registry record
	bob.send(wire.CloseSession("alice"))
	left := alice.expect(wire.TypeUserLeft)
	if left.Nick != "bob" {
		test.Error("unexpected left nick:", left.Nick)
	}
}

func TestServer_PostBeforeLoginDropped(test *testing.T) {
	_, addr := startServer(test)

	alice := dialTest(test, addr)
	alice.login("alice")

	lurker := dialTest(test, addr)
	lurker.send(wire.PostMessage("anonymous noise"))

	alice.expectNothing(150 * time.Millisecond)

	// the offending session is still able to log in afterwards
	lurker.send(wire.Login("bob"))
	lurker.expect(wire.TypeLoginSuccess)
}

func TestServer_MalformedLineTolerated(test *testing.T) {
	_, addr := startServer(test)

	c := dialTest(test, addr)
	c.sendRaw("this is not a protocol line")
	c.sendRaw(`{"type":"shout","content":"hi"}`)
	c.sendRaw("")

	// the connection survived all of it
	c.send(wire.Login("alice"))
	c.expect(wire.TypeLoginSuccess)
}

func TestServer_ConcurrentLoginClaims(test *testing.T) {
	_, addr := startServer(test)

	const contenders = 8
	clients := make([]*testClient, contenders)
	for i := range clients {
		clients[i] = dialTest(test, addr)
	}

	start := make(chan struct{})
	results := make(chan string, contenders)
	wg := sync.WaitGroup{}
	for _, c := range clients {
		c := c
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			line, err := wire.Encode(wire.Login("highlander"))
			if err != nil {
				results <- err.Error()
				return
			}
			if _, err := c.conn.Write(append(line, '\n')); err != nil {
				results <- err.Error()
				return
			}
			m, err := c.read(2 * time.Second)
			if err != nil {
				results <- err.Error()
				return
			}
			results <- m.Type
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	won, lost := 0, 0
	for outcome := range results {
		switch outcome {
		case wire.TypeLoginSuccess:
			won++
		case wire.TypeLoginFailed:
			lost++
		default:
			test.Error("unexpected login outcome:", outcome)
		}
	}
	if won != 1 || lost != contenders-1 {
		test.Errorf("expected exactly one winner, got %d winners and %d losers", won, lost)
	}
}

func TestServer_HistoryReplayOnLogin(test *testing.T) {
	stack, err := history.NewStack(5)
	if err != nil {
		test.Fatal("NewStack, unexpected error:", err)
	}
	_, addr := startServer(test, WithHistory(stack, 5))

	alice := dialTest(test, addr)
	alice.login("alice")
	alice.send(wire.PostMessage("first"))
	alice.send(wire.PostMessage("second"))

	// chat lines are recorded even without recipients online
	deadline := time.Now().Add(2 * time.Second)
	for stack.Len() < 2 {
		if time.Now().After(deadline) {
			test.Fatal("history was not recorded, len:", stack.Len())
		}
		time.Sleep(10 * time.Millisecond)
	}

	bob := dialTest(test, addr)
	bob.send(wire.Login("bob"))
	bob.expect(wire.TypeLoginSuccess)
	for _, expected := range []string{"first", "second"} {
		m := bob.expect(wire.TypeMessage)
		if m.Nick != "alice" || m.Content != expected {
			test.Errorf("unexpected replayed message: %+v", m)
		}
	}
}

func TestServer_KeepConnectionAfterShutdown(test *testing.T) {
	server, err := NewServer(WithLogger(testLogger()))
	if err != nil {
		test.Fatal("NewServer, unexpected error:", err)
	}
	server.Shutdown(time.Second)

	local, remote := net.Pipe()
	defer local.Close()
	if err := server.KeepConnection(remote); err != ErrServerClosed {
		test.Error("expected error:", ErrServerClosed, "got:", err)
	}
}

func TestServer_ShutdownDropsSessions(test *testing.T) {
	server, addr := startServer(test)

	clients := make([]*testClient, 3)
	for i := range clients {
		clients[i] = dialTest(test, addr)
		clients[i].login(fmt.Sprintf("user-%d", i))
	}

	spent := server.Shutdown(2 * time.Second)
	if spent > 2*time.Second+100*time.Millisecond {
		test.Error("shutdown took too long:", spent)
	}
	for _, c := range clients {
		c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		for {
			if _, err := c.reader.ReadString('\n'); err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					test.Error("client transport still open after shutdown")
				}
				break
			}
		}
	}
}
