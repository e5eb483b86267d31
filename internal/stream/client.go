// internal/stream/client.go
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/mirror-bot/internal/events"
)

// Config configures the ingest connector.
type Config struct {
	Endpoint string
	// Wallets are the monitored addresses, base58 encoded, sent as the
	// server-side accountInclude filter.
	Wallets []string

	QueueSize         int
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	PingInterval      time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
}

// DefaultConfig returns the default connector configuration.
func DefaultConfig() Config {
	return Config{
		QueueSize:         256,
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// Client maintains a transaction subscription over WebSocket and feeds
// parsed events into a bounded queue. It reconnects with exponential
// backoff and resubscribes after every reconnect.
type Client struct {
	cfg    Config
	logger *zap.Logger
	bus    *events.Bus
	queue  *Queue

	conn      *websocket.Conn
	connMu    sync.Mutex
	requestID atomic.Uint64
	malformed atomic.Uint64
	closed    atomic.Bool
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewClient creates a connector. The bus may be nil when lag notifications
// are not wanted.
func NewClient(cfg Config, bus *events.Bus, logger *zap.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("stream endpoint is required")
	}
	if len(cfg.Wallets) == 0 {
		return nil, fmt.Errorf("monitored wallet list is empty")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	def := DefaultConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = def.ReconnectDelay
	}
	if cfg.MaxReconnectDelay <= 0 {
		cfg.MaxReconnectDelay = def.MaxReconnectDelay
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}

	return &Client{
		cfg:    cfg,
		logger: logger.Named("stream"),
		bus:    bus,
		queue:  NewQueue(cfg.QueueSize),
		done:   make(chan struct{}),
	}, nil
}

// Start connects, subscribes and begins reading. It returns once the
// connection is established; reading continues in the background.
func (c *Client) Start(ctx context.Context) error {
	if err := c.connect(ctx); err != nil {
		return err
	}
	if err := c.subscribe(); err != nil {
		return err
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	c.logger.Info("Stream connected",
		zap.String("endpoint", c.cfg.Endpoint),
		zap.Int("wallets", len(c.cfg.Wallets)))
	return nil
}

// Events returns the queue of parsed transaction events.
func (c *Client) Events() *Queue {
	return c.queue
}

// Malformed returns the count of frames that failed to parse.
func (c *Client) Malformed() uint64 {
	return c.malformed.Load()
}

// Close shuts the connector down.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()
	return nil
}

func (c *Client) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.cfg.Endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	c.conn = conn
	return nil
}

// subscribe sends the transaction subscription request. The confirmation
// arrives asynchronously and is handled in the read loop.
func (c *Client) subscribe() error {
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  "transactionSubscribe",
		Params: []interface{}{
			map[string]interface{}{
				"accountInclude": c.cfg.Wallets,
				"failed":         false,
				"vote":           false,
			},
			map[string]interface{}{
				"commitment":                     "confirmed",
				"encoding":                       "json",
				"transactionDetails":             "full",
				"maxSupportedTransactionVersion": 0,
			},
		},
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}
	return nil
}

func (c *Client) readLoop() {
	defer c.wg.Done()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.ReconnectDelay
	bo.MaxInterval = c.cfg.MaxReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			if !c.reconnect(bo.NextBackOff()) {
				return
			}
			continue
		}

		_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.logger.Warn("Stream read error, reconnecting", zap.Error(err))
			c.connMu.Lock()
			if c.conn != nil {
				_ = c.conn.Close()
				c.conn = nil
			}
			c.connMu.Unlock()
			continue
		}

		bo.Reset()
		c.handleMessage(message)
	}
}

// reconnect waits the given delay, reconnects and resubscribes. It returns
// false when the client is shutting down.
func (c *Client) reconnect(delay time.Duration) bool {
	select {
	case <-c.done:
		return false
	case <-time.After(delay):
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		c.logger.Warn("Stream reconnect failed", zap.Error(err))
		return true
	}
	if err := c.subscribe(); err != nil {
		c.logger.Warn("Stream resubscribe failed", zap.Error(err))
		c.connMu.Lock()
		if c.conn != nil {
			_ = c.conn.Close()
			c.conn = nil
		}
		c.connMu.Unlock()
		return true
	}

	c.logger.Info("Stream reconnected")
	return true
}

func (c *Client) handleMessage(message []byte) {
	var notif wsNotification
	if err := json.Unmarshal(message, &notif); err == nil &&
		notif.Method == "transactionNotification" && notif.Params != nil {
		ev, err := parseTransactionNotification(notif.Params.Result)
		if err != nil {
			c.malformed.Add(1)
			c.logger.Warn("Malformed transaction notification", zap.Error(err))
			return
		}
		// Failed transactions carry no actionable trade.
		if ev.Err != nil {
			return
		}
		if c.queue.Push(ev) {
			c.logger.Warn("Ingest queue full, dropped oldest event",
				zap.Uint64("total_dropped", c.queue.Dropped()))
			if c.bus != nil {
				_ = c.bus.Publish(&events.StreamLaggingEvent{
					BaseEvent: events.NewBase(events.StreamLagging),
					Dropped:   c.queue.Dropped(),
				})
			}
		}
		return
	}

	var resp wsSubscribeResponse
	if err := json.Unmarshal(message, &resp); err == nil {
		if resp.Error != nil {
			c.logger.Error("Subscription error",
				zap.Int("code", resp.Error.Code),
				zap.String("message", resp.Error.Message))
			return
		}
		if resp.Result > 0 {
			c.logger.Info("Subscription confirmed", zap.Int64("subscription_id", resp.Result))
			return
		}
	}

	c.malformed.Add(1)
	c.logger.Debug("Unrecognized stream frame", zap.ByteString("frame", message))
}

func (c *Client) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
				// A dead connection surfaces in the read loop.
				_ = c.conn.WriteMessage(websocket.PingMessage, nil)
			}
			c.connMu.Unlock()
		}
	}
}
