package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/mmuslimabdulj/goban-live/internal/domain"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10
)

var ErrAlreadyOpened = errors.New("connection already opened")

// Options configures a Connection
type Options struct {
	// BaseURL is the websocket endpoint root, e.g. ws://localhost:8080
	BaseURL string

	// HandshakeTimeout bounds the time spent in StateConnecting; zero means no bound
	HandshakeTimeout time.Duration

	// MaxMessageSize is the largest inbound frame accepted
	MaxMessageSize int64

	// SendLimit and SendBurst throttle outbound frames; rate.Inf disables throttling
	SendLimit rate.Limit
	SendBurst int

	// Dialer overrides the default websocket dialer
	Dialer *websocket.Dialer
}

// Connection is the single persistent socket of one game view
type Connection struct {
	ID string

	opts    Options
	log     *slog.Logger
	dialer  *websocket.Dialer
	limiter *rate.Limiter

	mu            sync.Mutex
	state         State
	err           error
	conn          *websocket.Conn
	opened        bool
	readerStarted bool
	pendingToken  string
	cancelDial    context.CancelFunc

	send       chan []byte
	events     chan domain.Event
	quit       chan struct{}
	quitOnce   sync.Once
	eventsOnce sync.Once
}

// NewConnection creates a Connection in StateConnecting. Nothing is dialed until Open.
func NewConnection(opts Options, logger *slog.Logger) *Connection {
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = domain.MaxMessageSize
	}
	if opts.SendLimit == 0 {
		opts.SendLimit = rate.Inf
	}
	if opts.SendBurst <= 0 {
		opts.SendBurst = 1
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dialer := opts.Dialer
	if dialer == nil {
		d := *websocket.DefaultDialer
		d.HandshakeTimeout = opts.HandshakeTimeout
		dialer = &d
	}

	id := uuid.New().String()
	return &Connection{
		ID:      id,
		opts:    opts,
		log:     logger.With("component", "ws", "conn_id", id),
		dialer:  dialer,
		limiter: rate.NewLimiter(opts.SendLimit, opts.SendBurst),
		state:   StateConnecting,
		send:    make(chan []byte, domain.SendBufferSize),
		events:  make(chan domain.Event, domain.EventBufferSize),
		quit:    make(chan struct{}),
	}
}

// BuildURL returns the socket URL for a game, with the credential inline when known
func BuildURL(base string, gameID int, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse websocket url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("websocket url must use ws or wss, got %q", u.Scheme)
	}

	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	q := u.Query()
	q.Set("game_id", strconv.Itoa(gameID))
	if token != "" {
		q.Set("token", token)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Open starts dialing the game socket in the background and returns immediately.
// A token given here travels in the URL and the connection opens authenticated.
func (c *Connection) Open(ctx context.Context, gameID int, token string) error {
	c.mu.Lock()
	if c.opened {
		c.mu.Unlock()
		return ErrAlreadyOpened
	}
	c.opened = true

	// Closed before it was ever opened
	if c.state != StateConnecting {
		c.mu.Unlock()
		return nil
	}

	target, err := BuildURL(c.opts.BaseURL, gameID, token)
	if err != nil {
		c.state = StateErrored
		c.err = err
		c.mu.Unlock()
		c.shutdown()
		return err
	}

	var dialCtx context.Context
	var cancel context.CancelFunc
	if c.opts.HandshakeTimeout > 0 {
		dialCtx, cancel = context.WithTimeout(ctx, c.opts.HandshakeTimeout)
	} else {
		dialCtx, cancel = context.WithCancel(ctx)
	}
	c.cancelDial = cancel
	c.mu.Unlock()

	go c.dial(dialCtx, cancel, target, token)
	return nil
}

func (c *Connection) dial(ctx context.Context, cancel context.CancelFunc, target, token string) {
	defer cancel()

	conn, _, err := c.dialer.DialContext(ctx, target, nil)

	c.mu.Lock()
	if err != nil {
		// A dial cancelled by Close is not a failure
		failed := c.state == StateConnecting
		if failed {
			c.state = StateErrored
			c.err = fmt.Errorf("dial game socket: %w", err)
		}
		dialErr := c.err
		c.mu.Unlock()
		if failed {
			c.log.Warn("websocket dial failed", "error", dialErr)
		} else {
			c.log.Debug("websocket dial cancelled")
		}
		c.shutdown()
		return
	}

	// Close won the race against the handshake
	if c.state != StateConnecting {
		c.mu.Unlock()
		conn.Close()
		return
	}

	c.conn = conn
	c.state = StateOpen
	if token != "" {
		c.state = StateAuthenticated
	}
	c.readerStarted = true
	pending := c.pendingToken
	c.pendingToken = ""
	// Already sent inline in the URL
	if pending == token {
		pending = ""
	}
	state := c.state
	c.mu.Unlock()

	c.log.Info("websocket connected", "state", state.String())

	go c.writePump(conn)
	go c.readPump(conn)

	if pending != "" {
		c.Upgrade(pending)
	}
}

// Upgrade attaches a credential to the live connection by sending an authenticate
// frame. It does not wait for the server's answer. While still connecting the
// credential is held and sent right after the handshake. Returns false when the
// connection is already finished.
func (c *Connection) Upgrade(token string) bool {
	if token == "" {
		return false
	}

	c.mu.Lock()
	switch c.state {
	case StateConnecting:
		c.pendingToken = token
		c.mu.Unlock()
		return true
	case StateOpen, StateAuthenticated:
		c.state = StateAuthenticated
		c.mu.Unlock()
	default:
		c.mu.Unlock()
		return false
	}

	env, err := domain.NewAuthenticateMessage(token)
	if err != nil {
		c.log.Error("encode authenticate", "error", err)
		return false
	}
	data, err := json.Marshal(env)
	if err != nil {
		c.log.Error("encode authenticate", "error", err)
		return false
	}
	// Credential frames bypass the send limiter
	c.enqueue(data)
	c.log.Info("credential upgrade sent")
	return true
}

// Send queues a frame for the peer. It is a silent no-op unless the connection
// is open, and drops the frame when throttled or when the buffer is full.
func (c *Connection) Send(env domain.Envelope) {
	if st := c.State(); !st.Ready() {
		c.log.Debug("send dropped, connection not ready", "type", env.Type, "state", st.String())
		return
	}

	data, err := json.Marshal(env)
	if err != nil {
		c.log.Error("encode outbound message", "type", env.Type, "error", err)
		return
	}

	if !c.limiter.Allow() {
		c.log.Debug("send dropped, rate limited", "type", env.Type)
		return
	}
	c.enqueue(data)
}

func (c *Connection) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
		// Buffer full
		c.log.Warn("send dropped, buffer full")
	}
}

// Close ends the connection. Safe to call at any time, any number of times.
func (c *Connection) Close() {
	c.mu.Lock()
	if c.state.Terminal() {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	cancel := c.cancelDial
	conn := c.conn
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	}
	c.shutdown()
	c.log.Info("websocket closed")
}

// State returns the current lifecycle state
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the transport failure that moved the connection to StateErrored
func (c *Connection) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Events delivers decoded inbound messages in arrival order.
// The channel is closed once the connection is finished.
func (c *Connection) Events() <-chan domain.Event {
	return c.events
}

// readPump pumps messages from the websocket connection to the events channel
func (c *Connection) readPump(conn *websocket.Conn) {
	defer c.closeEvents()

	conn.SetReadLimit(c.opts.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			c.fail(err)
			return
		}

		ev := domain.DecodeEvent(message)
		select {
		case c.events <- ev:
		case <-c.quit:
			return
		}
	}
}

// writePump pumps queued frames and keepalive pings to the websocket connection
func (c *Connection) writePump(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.fail(err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.fail(err)
				return
			}

		case <-c.quit:
			return
		}
	}
}

// fail records a transport failure on a live connection
func (c *Connection) fail(err error) {
	c.mu.Lock()
	if c.state.Ready() {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			c.state = StateClosed
		} else {
			c.state = StateErrored
			c.err = err
		}
	}
	state := c.state
	c.mu.Unlock()

	if state == StateErrored {
		c.log.Warn("websocket failed", "error", err)
	} else {
		c.log.Info("websocket ended", "state", state.String())
	}
	c.shutdown()
}

func (c *Connection) shutdown() {
	c.quitOnce.Do(func() {
		close(c.quit)

		c.mu.Lock()
		conn := c.conn
		reader := c.readerStarted
		c.mu.Unlock()

		if conn != nil {
			conn.Close()
		}
		// A running reader closes events itself once it stops sending
		if !reader {
			c.closeEvents()
		}
	})
}

func (c *Connection) closeEvents() {
	c.eventsOnce.Do(func() {
		close(c.events)
	})
}
