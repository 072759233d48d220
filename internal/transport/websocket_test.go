package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// echoServer upgrades each request and echoes every text frame back with a
// prefix, so tests can tell inbound frames apart from what they sent.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, append([]byte("echo:"), data...)); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func nextEvent(t *testing.T, c *Conn) Event {
	t.Helper()
	select {
	case ev := <-c.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for transport event")
		return Event{}
	}
}

func requireState(t *testing.T, c *Conn, want State) {
	t.Helper()
	ev := nextEvent(t, c)
	require.Equal(t, KindStateChange, ev.Kind)
	require.Equal(t, want, ev.State)
}

func TestConnectLifecycle(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	c := New(Config{Endpoint: wsURL(srv)}, nil)
	defer c.Close()

	assert.Equal(t, StateDisconnected, c.State())

	c.Connect(context.Background())
	requireState(t, c, StateConnecting)
	requireState(t, c, StateConnected)
	assert.Equal(t, StateConnected, c.State())
}

func TestSendAndReceivePreservesOrder(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	c := New(Config{Endpoint: wsURL(srv)}, nil)
	defer c.Close()

	c.Connect(context.Background())
	requireState(t, c, StateConnecting)
	requireState(t, c, StateConnected)

	require.NoError(t, c.Send("one"))
	require.NoError(t, c.Send("two"))
	require.NoError(t, c.Send("three"))

	for _, want := range []string{"echo:one", "echo:two", "echo:three"} {
		ev := nextEvent(t, c)
		require.Equal(t, KindMessage, ev.Kind)
		assert.Equal(t, want, ev.Text)
	}
}

func TestSendWhileDisconnected(t *testing.T) {
	c := New(Config{Endpoint: "ws://127.0.0.1:1/ws"}, nil)
	defer c.Close()

	err := c.Send("hello")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestDialFailureLandsInDisconnected(t *testing.T) {
	// Nothing listens on this port; the dial must fail.
	c := New(Config{
		Endpoint:         "ws://127.0.0.1:1/ws",
		HandshakeTimeout: 500 * time.Millisecond,
	}, nil)
	defer c.Close()

	c.Connect(context.Background())
	requireState(t, c, StateConnecting)

	ev := nextEvent(t, c)
	require.Equal(t, KindError, ev.Kind)
	assert.ErrorIs(t, ev.Err, ErrConnectionFailed)

	requireState(t, c, StateDisconnected)
	assert.Equal(t, StateDisconnected, c.State())
}

func TestServerCloseEmitsDisconnect(t *testing.T) {
	closeConn := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		<-closeConn
		ws.Close()
	}))
	defer srv.Close()

	c := New(Config{Endpoint: wsURL(srv)}, nil)
	defer c.Close()

	c.Connect(context.Background())
	requireState(t, c, StateConnecting)
	requireState(t, c, StateConnected)

	close(closeConn)

	ev := nextEvent(t, c)
	require.Equal(t, KindError, ev.Kind)
	assert.ErrorIs(t, ev.Err, ErrConnectionFailed)

	requireState(t, c, StateDisconnected)

	// The dropped connection must not buffer sends.
	assert.ErrorIs(t, c.Send("late"), ErrNotConnected)
}

func TestReconnectAfterDisconnect(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	c := New(Config{Endpoint: wsURL(srv)}, nil)
	defer c.Close()

	c.Connect(context.Background())
	requireState(t, c, StateConnecting)
	requireState(t, c, StateConnected)
	require.NoError(t, c.Close())

	// Connect after Close stays a no-op.
	c.Connect(context.Background())
	assert.Equal(t, StateDisconnected, c.State())
}

func TestCloseIsIdempotent(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	c := New(Config{Endpoint: wsURL(srv)}, nil)

	c.Connect(context.Background())
	requireState(t, c, StateConnecting)
	requireState(t, c, StateConnected)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, StateDisconnected, c.State())
}

func TestStalledPeerDoesNotBlockStateOrClose(t *testing.T) {
	// A server that never reads: once the socket buffers fill, the
	// sender's frame write blocks on the network.
	stall := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		<-stall
	}))
	defer srv.Close()
	defer close(stall)

	c := New(Config{Endpoint: wsURL(srv)}, nil)
	defer c.Close()

	c.Connect(context.Background())
	requireState(t, c, StateConnecting)
	requireState(t, c, StateConnected)

	// Push well past any OS socket buffering so at least one Send is
	// blocked mid-write. Sends after Close fail fast and end the loop.
	payload := strings.Repeat("x", 1<<20)
	go func() {
		for i := 0; i < 64; i++ {
			if c.Send(payload) != nil {
				return
			}
		}
	}()
	time.Sleep(200 * time.Millisecond)

	stateRead := make(chan State, 1)
	go func() { stateRead <- c.State() }()
	select {
	case st := <-stateRead:
		assert.Equal(t, StateConnected, st)
	case <-time.After(2 * time.Second):
		t.Fatal("State blocked behind a stalled write")
	}

	closed := make(chan error, 1)
	go func() { closed <- c.Close() }()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked behind a stalled write")
	}
}

func TestHandshakeHeaderIsSent(t *testing.T) {
	gotAuth := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth <- r.Header.Get("Authorization")
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ws.Close()
	}))
	defer srv.Close()

	header := http.Header{}
	header.Set("Authorization", "Bearer token-123")

	c := New(Config{Endpoint: wsURL(srv), Header: header}, nil)
	defer c.Close()

	c.Connect(context.Background())
	requireState(t, c, StateConnecting)
	requireState(t, c, StateConnected)

	select {
	case auth := <-gotAuth:
		assert.Equal(t, "Bearer token-123", auth)
	case <-time.After(2 * time.Second):
		t.Fatal("handshake never reached the server")
	}
}
