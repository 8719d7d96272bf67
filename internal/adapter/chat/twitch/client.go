package twitch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/V4T54L/tctk/internal/adapter/metrics"
	"github.com/V4T54L/tctk/internal/domain"
)

const (
	DefaultURL = "wss://irc-ws.chat.twitch.tv:443"

	writeTimeout   = 5 * time.Second
	readTimeout    = 6 * time.Minute
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Options configures a Client.
type Options struct {
	URL     string
	Nick    string
	Token   string
	Channel string
	Buffer  int

	Logger  *slog.Logger
	Metrics *metrics.BotMetrics
	Dialer  *websocket.Dialer
	Now     func() time.Time
}

// Client is an IRC-over-WebSocket chat client. It joins one channel and
// delivers translated events on Events() until Run returns.
type Client struct {
	url     string
	nick    string
	token   string
	channel string
	logger  *slog.Logger
	metrics *metrics.BotMetrics
	dialer  *websocket.Dialer
	tr      *translator

	events chan domain.Event

	mu   sync.Mutex
	conn *websocket.Conn
	wmu  sync.Mutex // serializes websocket writes

	connected atomic.Bool
}

// NewClient creates a client. Nothing is dialed until Run.
func NewClient(opts Options) *Client {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 256
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	nick := strings.ToLower(opts.Nick)
	return &Client{
		url:     opts.URL,
		nick:    nick,
		token:   strings.TrimPrefix(opts.Token, "oauth:"),
		channel: strings.ToLower(strings.TrimPrefix(opts.Channel, "#")),
		logger:  opts.Logger.With("component", "twitch_chat", "channel", opts.Channel),
		metrics: opts.Metrics,
		dialer:  opts.Dialer,
		tr:      newTranslator(nick, opts.Now),
		events:  make(chan domain.Event, opts.Buffer),
	}
}

// Events delivers chat events in emission order. It is closed when Run returns.
func (c *Client) Events() <-chan domain.Event {
	return c.events
}

// Channel is the joined channel name without '#'.
func (c *Client) Channel() string {
	return c.channel
}

// IsConnected reports whether a session is currently established.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Run connects and keeps the session alive, reconnecting with exponential
// backoff, until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.events)

	stop := context.AfterFunc(ctx, c.closeConn)
	defer stop()

	backoff := initialBackoff
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, errSessionHealthy) {
			backoff = initialBackoff
		}
		c.logger.Warn("chat connection lost, reconnecting", "error", err, "backoff", backoff)
		if c.metrics != nil {
			c.metrics.ChatReconnects.Inc()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// errSessionHealthy marks a session that received traffic before dropping.
var errSessionHealthy = errors.New("chat session ended after receiving traffic")

func (c *Client) session(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", c.url, err)
	}
	conn.SetReadLimit(1 << 20)

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer c.closeConn()

	if err := c.handshake(); err != nil {
		return err
	}
	c.connected.Store(true)
	if c.metrics != nil {
		c.metrics.ChatConnected.Set(1)
	}
	c.logger.Info("connected to chat", "url", c.url)

	received := false
	for {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if received {
				return fmt.Errorf("%w: %v", errSessionHealthy, err)
			}
			return fmt.Errorf("failed to read from chat: %w", err)
		}
		received = true

		for _, line := range strings.Split(string(data), "\r\n") {
			if line == "" {
				continue
			}
			msg, err := ParseMessage(line)
			if err != nil {
				c.logger.Debug("skipping malformed IRC line", "error", err, "line", line)
				continue
			}
			if err := c.handle(ctx, msg); err != nil {
				return err
			}
		}
	}
}

func (c *Client) handshake() error {
	lines := []string{
		"CAP REQ :twitch.tv/tags twitch.tv/commands twitch.tv/membership",
		"PASS oauth:" + c.token,
		"NICK " + c.nick,
		"JOIN #" + c.channel,
	}
	for _, line := range lines {
		if err := c.writeLine(line); err != nil {
			return fmt.Errorf("chat handshake failed: %w", err)
		}
	}
	return nil
}

func (c *Client) handle(ctx context.Context, msg *Message) error {
	switch msg.Command {
	case "PING":
		return c.writeLine("PONG :" + msg.Trailing())
	case "RECONNECT":
		return errors.New("server requested reconnect")
	case "NOTICE":
		if strings.Contains(strings.ToLower(msg.Trailing()), "login authentication failed") {
			c.logger.Error("chat login failed, check access_token and bot_nick")
		}
	}

	for _, evt := range c.tr.translate(msg) {
		if c.metrics != nil {
			c.metrics.EventsTotal.WithLabelValues(string(evt.Kind)).Inc()
		}
		select {
		case c.events <- evt:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// SendMessage writes a PRIVMSG to channel.
func (c *Client) SendMessage(ctx context.Context, channel, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.connected.Load() {
		return domain.ErrNotConnected
	}
	text = strings.NewReplacer("\r", " ", "\n", " ").Replace(text)
	return c.writeLine(fmt.Sprintf("PRIVMSG #%s :%s", strings.TrimPrefix(channel, "#"), text))
}

func (c *Client) writeLine(line string) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return domain.ErrNotConnected
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, []byte(line+"\r\n"))
}

func (c *Client) closeConn() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if c.connected.Swap(false) && c.metrics != nil {
		c.metrics.ChatConnected.Set(0)
	}
	if conn == nil {
		return
	}
	c.wmu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closing"),
		time.Now().Add(500*time.Millisecond))
	c.wmu.Unlock()
	_ = conn.Close()
}
