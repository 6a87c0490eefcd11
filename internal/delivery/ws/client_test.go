package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mmuslimabdulj/goban-live/internal/domain"
)

// testServer is a game socket endpoint that hands every accepted connection to the test
type testServer struct {
	*httptest.Server
	conns   chan *websocket.Conn
	queries chan url.Values
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ts := &testServer{
		conns:   make(chan *websocket.Conn, 4),
		queries: make(chan url.Values, 4),
	}
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws" {
			http.NotFound(w, r)
			return
		}
		ts.queries <- r.URL.Query()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ts.conns <- conn
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func (ts *testServer) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-ts.conns:
		t.Cleanup(func() { conn.Close() })
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("Expected client to connect")
		return nil
	}
}

func readEnvelope(t *testing.T, conn *websocket.Conn) domain.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Expected frame from client: %v", err)
	}
	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("Expected JSON envelope, got %s", data)
	}
	return env
}

func waitForState(t *testing.T, c *Connection, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Expected state %s, got %s", want, c.State())
}

func waitForEvent(t *testing.T, c *Connection) domain.Event {
	t.Helper()
	select {
	case ev, ok := <-c.Events():
		if !ok {
			t.Fatal("Expected event, events channel closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("Expected event within timeout")
		return nil
	}
}

func waitForEventsClosed(t *testing.T, c *Connection) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-c.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("Expected events channel to be closed")
		}
	}
}

func newTestConnection(base string) *Connection {
	return NewConnection(Options{BaseURL: base, HandshakeTimeout: 2 * time.Second}, nil)
}

// === URL & STATE TESTS ===

func TestBuildURL(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		token    string
		expected string
	}{
		{"anonymous", "ws://localhost:8080", "", "ws://localhost:8080/ws?game_id=4"},
		{"with token", "ws://localhost:8080", "abc", "ws://localhost:8080/ws?game_id=4&token=abc"},
		{"trailing slash", "wss://go.example.com/", "", "wss://go.example.com/ws?game_id=4"},
		{"path prefix", "wss://go.example.com/live", "", "wss://go.example.com/live/ws?game_id=4"},
		{"token escaped", "ws://localhost", "a b&c", "ws://localhost/ws?game_id=4&token=a+b%26c"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := BuildURL(tc.base, 4, tc.token)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tc.expected {
				t.Errorf("Expected '%s', got '%s'", tc.expected, got)
			}
		})
	}

	if _, err := BuildURL("http://localhost:8080", 4, ""); err == nil {
		t.Error("Expected error for non-websocket scheme")
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		StateConnecting:    "connecting",
		StateOpen:          "open",
		StateAuthenticated: "authenticated",
		StateClosed:        "closed",
		StateErrored:       "errored",
		State(42):          "unknown",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("Expected '%s', got '%s'", want, s.String())
		}
	}

	if !StateOpen.Ready() || !StateAuthenticated.Ready() || StateConnecting.Ready() {
		t.Error("Only open and authenticated should be ready")
	}
	if !StateClosed.Terminal() || !StateErrored.Terminal() || StateOpen.Terminal() {
		t.Error("Only closed and errored should be terminal")
	}
}

// === SEND TESTS ===

func TestNewConnection(t *testing.T) {
	c := newTestConnection("ws://localhost:8080")

	if c.State() != StateConnecting {
		t.Errorf("Expected connecting, got %s", c.State())
	}
	if c.ID == "" {
		t.Error("Expected connection ID to be set")
	}
	if c.send == nil || c.events == nil {
		t.Error("Expected channels to be initialized")
	}
}

func TestConnection_SendWhileConnecting(t *testing.T) {
	c := newTestConnection("ws://localhost:8080")

	env, _ := domain.NewMoveMessage(4, 7, 3, 3)
	c.Send(env)

	if len(c.send) != 0 {
		t.Errorf("Expected no queued frames while connecting, got %d", len(c.send))
	}
}

func TestConnection_SendAfterClose(t *testing.T) {
	c := newTestConnection("ws://localhost:8080")
	c.Close()

	env, _ := domain.NewMoveMessage(4, 7, 3, 3)
	c.Send(env)

	if len(c.send) != 0 {
		t.Errorf("Expected no queued frames after close, got %d", len(c.send))
	}
}

func TestConnection_SendRateLimited(t *testing.T) {
	c := NewConnection(Options{BaseURL: "ws://localhost", SendLimit: 0.001, SendBurst: 1}, nil)
	c.state = StateOpen

	env, _ := domain.NewMoveMessage(4, 7, 3, 3)
	c.Send(env)
	c.Send(env)

	if len(c.send) != 1 {
		t.Errorf("Expected second frame to be throttled, got %d queued", len(c.send))
	}
}

func TestConnection_SendBufferFull(t *testing.T) {
	c := newTestConnection("ws://localhost")
	c.state = StateOpen

	env, _ := domain.NewMoveMessage(4, 7, 3, 3)
	for i := 0; i < domain.SendBufferSize+5; i++ {
		c.Send(env) // must never block
	}

	if len(c.send) != domain.SendBufferSize {
		t.Errorf("Expected buffer to be full at %d, got %d", domain.SendBufferSize, len(c.send))
	}
}

// === LIFECYCLE TESTS ===

func TestConnection_CloseIdempotent(t *testing.T) {
	c := newTestConnection("ws://localhost:8080")

	c.Close()
	c.Close()

	if c.State() != StateClosed {
		t.Errorf("Expected closed, got %s", c.State())
	}
	if c.Err() != nil {
		t.Errorf("Expected no error, got %v", c.Err())
	}
	waitForEventsClosed(t, c)
}

func TestConnection_CloseBeforeOpen(t *testing.T) {
	ts := newTestServer(t)
	c := newTestConnection(ts.wsURL())

	c.Close()
	if err := c.Open(context.Background(), 4, ""); err != nil {
		t.Fatalf("Open after close should be a silent no-op, got %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if c.State() != StateClosed {
		t.Errorf("Expected closed, got %s", c.State())
	}
	select {
	case <-ts.queries:
		t.Error("Expected no dial after close")
	default:
	}
}

func TestConnection_OpenTwice(t *testing.T) {
	ts := newTestServer(t)
	c := newTestConnection(ts.wsURL())
	defer c.Close()

	if err := c.Open(context.Background(), 4, ""); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := c.Open(context.Background(), 4, ""); !errors.Is(err, ErrAlreadyOpened) {
		t.Errorf("Expected ErrAlreadyOpened, got %v", err)
	}
}

func TestConnection_OpenAnonymous(t *testing.T) {
	ts := newTestServer(t)
	c := newTestConnection(ts.wsURL())
	defer c.Close()

	c.Open(context.Background(), 4, "")
	ts.accept(t)

	q := <-ts.queries
	if q.Get("game_id") != "4" {
		t.Errorf("Expected game_id=4, got '%s'", q.Get("game_id"))
	}
	if q.Has("token") {
		t.Error("Expected no token for anonymous viewer")
	}
	waitForState(t, c, StateOpen)
}

func TestConnection_OpenWithToken(t *testing.T) {
	ts := newTestServer(t)
	c := newTestConnection(ts.wsURL())
	defer c.Close()

	c.Open(context.Background(), 4, "abc")
	ts.accept(t)

	if q := <-ts.queries; q.Get("token") != "abc" {
		t.Errorf("Expected token inline, got '%s'", q.Get("token"))
	}
	waitForState(t, c, StateAuthenticated)
}

func TestConnection_DialFailure(t *testing.T) {
	ts := newTestServer(t)
	base := ts.wsURL()
	ts.Close() // nothing is listening any more

	c := newTestConnection(base)
	c.Open(context.Background(), 4, "")

	waitForState(t, c, StateErrored)
	if c.Err() == nil {
		t.Error("Expected dial error to be recorded")
	}
	waitForEventsClosed(t, c)

	// Terminal: close does not change the state
	c.Close()
	if c.State() != StateErrored {
		t.Errorf("Expected errored to stick, got %s", c.State())
	}
}

func TestConnection_ReceiveInOrder(t *testing.T) {
	ts := newTestServer(t)
	c := newTestConnection(ts.wsURL())
	defer c.Close()

	c.Open(context.Background(), 4, "")
	server := ts.accept(t)

	frames := []string{
		`{"type":"move","data":{"x":3,"y":3,"game_id":4,"player_id":7}}`,
		`{"type":"chat","data":{"text":"gg"}}`,
		`not json`,
		`{"type":"game_update","data":{"game_id":4,"status":"active","black_player_id":7,"white_player_id":9}}`,
	}
	for _, f := range frames {
		if err := server.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
			t.Fatalf("Server write failed: %v", err)
		}
	}

	if _, ok := waitForEvent(t, c).(domain.MoveEvent); !ok {
		t.Error("Expected MoveEvent first")
	}
	if ev, ok := waitForEvent(t, c).(domain.UnrecognizedEvent); !ok || ev.Kind != "chat" {
		t.Error("Expected unrecognized chat event second")
	}
	if _, ok := waitForEvent(t, c).(domain.UnrecognizedEvent); !ok {
		t.Error("Expected unrecognized event for garbage frame")
	}
	if _, ok := waitForEvent(t, c).(domain.GameUpdateEvent); !ok {
		t.Error("Expected GameUpdateEvent last")
	}
	if c.State() != StateOpen {
		t.Errorf("Bad frames must not end the connection, got %s", c.State())
	}
}

func TestConnection_SendMove(t *testing.T) {
	ts := newTestServer(t)
	c := newTestConnection(ts.wsURL())
	defer c.Close()

	c.Open(context.Background(), 4, "abc")
	server := ts.accept(t)
	waitForState(t, c, StateAuthenticated)

	env, _ := domain.NewMoveMessage(4, 7, 3, 15)
	c.Send(env)

	got := readEnvelope(t, server)
	if got.Type != domain.MessageTypeMove {
		t.Fatalf("Expected move frame, got %s", got.Type)
	}
	var data domain.MoveData
	json.Unmarshal(got.Data, &data)
	if data != (domain.MoveData{X: 3, Y: 15, GameID: 4, PlayerID: 7}) {
		t.Errorf("Unexpected move payload: %+v", data)
	}
}

func TestConnection_Upgrade(t *testing.T) {
	ts := newTestServer(t)
	c := newTestConnection(ts.wsURL())
	defer c.Close()

	c.Open(context.Background(), 4, "")
	server := ts.accept(t)
	waitForState(t, c, StateOpen)

	if !c.Upgrade("late-token") {
		t.Fatal("Expected upgrade on open connection to be sent")
	}
	if c.State() != StateAuthenticated {
		t.Errorf("Expected authenticated right after upgrade, got %s", c.State())
	}

	got := readEnvelope(t, server)
	if got.Type != domain.MessageTypeAuthenticate {
		t.Fatalf("Expected authenticate frame, got %s", got.Type)
	}
	var payload domain.AuthenticatePayload
	json.Unmarshal(got.Data, &payload)
	if payload.Token != "late-token" {
		t.Errorf("Expected token 'late-token', got '%s'", payload.Token)
	}
}

func TestConnection_UpgradeWhileConnecting(t *testing.T) {
	ts := newTestServer(t)
	c := newTestConnection(ts.wsURL())
	defer c.Close()

	if !c.Upgrade("early-token") {
		t.Fatal("Expected upgrade to be held while connecting")
	}
	c.Open(context.Background(), 4, "")
	server := ts.accept(t)

	got := readEnvelope(t, server)
	if got.Type != domain.MessageTypeAuthenticate {
		t.Fatalf("Expected held authenticate frame after open, got %s", got.Type)
	}
	waitForState(t, c, StateAuthenticated)
}

func TestConnection_UpgradeAfterClose(t *testing.T) {
	c := newTestConnection("ws://localhost")
	c.Close()

	if c.Upgrade("abc") {
		t.Error("Expected upgrade on closed connection to be refused")
	}
	if c.Upgrade("") {
		t.Error("Expected empty credential to be refused")
	}
}

func TestConnection_ServerClosesNormally(t *testing.T) {
	ts := newTestServer(t)
	c := newTestConnection(ts.wsURL())

	c.Open(context.Background(), 4, "")
	server := ts.accept(t)
	waitForState(t, c, StateOpen)

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "game over")
	server.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))

	waitForEventsClosed(t, c)
	waitForState(t, c, StateClosed)
	if c.Err() != nil {
		t.Errorf("Expected no error on normal close, got %v", c.Err())
	}
}

func TestConnection_ServerDrops(t *testing.T) {
	ts := newTestServer(t)
	c := newTestConnection(ts.wsURL())

	c.Open(context.Background(), 4, "")
	server := ts.accept(t)
	waitForState(t, c, StateOpen)

	server.UnderlyingConn().Close()

	waitForEventsClosed(t, c)
	waitForState(t, c, StateErrored)
	if c.Err() == nil {
		t.Error("Expected transport error to be recorded")
	}

	// No reconnect: the instance stays errored
	env, _ := domain.NewMoveMessage(4, 7, 1, 1)
	c.Send(env)
	if len(c.send) != 0 {
		t.Errorf("Expected no queued frames on errored connection, got %d", len(c.send))
	}
}

func TestConnection_CloseSendsCloseFrame(t *testing.T) {
	ts := newTestServer(t)
	c := newTestConnection(ts.wsURL())

	c.Open(context.Background(), 4, "")
	server := ts.accept(t)
	waitForState(t, c, StateOpen)

	c.Close()

	server.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := server.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("Expected normal close frame, got %v", err)
	}
	waitForEventsClosed(t, c)
	if c.State() != StateClosed {
		t.Errorf("Expected closed, got %s", c.State())
	}
}

func TestConnection_InlineTokenNotSentTwice(t *testing.T) {
	ts := newTestServer(t)
	c := newTestConnection(ts.wsURL())
	defer c.Close()

	// Credential arrives while connecting and is also used for the URL
	if !c.Upgrade("abc") {
		t.Fatal("Expected upgrade to be held while connecting")
	}
	c.Open(context.Background(), 4, "abc")
	server := ts.accept(t)

	if q := <-ts.queries; q.Get("token") != "abc" {
		t.Errorf("Expected token inline, got '%s'", q.Get("token"))
	}
	waitForState(t, c, StateAuthenticated)

	env, _ := domain.NewMoveMessage(4, 7, 3, 3)
	c.Send(env)

	if got := readEnvelope(t, server); got.Type != domain.MessageTypeMove {
		t.Fatalf("Expected move frame, got %s", got.Type)
	}

	server.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, data, err := server.ReadMessage(); err == nil {
		t.Errorf("Expected no further frames, got %s", data)
	}
}

// syncBuffer collects log output written from the dial goroutine
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestConnection_CloseDuringDialIsNotAFailure(t *testing.T) {
	// Accepts TCP but never answers the websocket handshake
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer ln.Close()
	go func() {
		var held []net.Conn
		defer func() {
			for _, conn := range held {
				conn.Close()
			}
		}()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			held = append(held, conn)
		}
	}()

	logs := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	c := NewConnection(Options{BaseURL: "ws://" + ln.Addr().String(), HandshakeTimeout: 5 * time.Second}, logger)

	c.Open(context.Background(), 4, "")
	c.Close()

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(logs.String(), "websocket dial cancelled") {
		if time.Now().After(deadline) {
			t.Fatalf("Expected dial to be cancelled, logs: %s", logs.String())
		}
		time.Sleep(5 * time.Millisecond)
	}

	if strings.Contains(logs.String(), "websocket dial failed") {
		t.Errorf("Expected no dial failure after Close, logs: %s", logs.String())
	}
	if c.State() != StateClosed {
		t.Errorf("Expected closed, got %s", c.State())
	}
	if c.Err() != nil {
		t.Errorf("Expected no error after Close, got %v", c.Err())
	}
}
