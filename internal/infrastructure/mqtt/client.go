package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/meterdetect/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	ackTimeout     = 5 * time.Second
	keepAlive      = 60 * time.Second

	// Paho retries the first connect and later reconnects with a doubling
	// delay between these bounds.
	retryInterval     = 2 * time.Second
	maxReconnectDelay = 2 * time.Minute

	disconnectQuiesceMS = 500
)

// Logger receives handler failures. logging.Logger satisfies it.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler handles one inbound message. It runs on a paho goroutine
// and should return quickly; a returned error is logged and otherwise ignored.
type MessageHandler func(topic string, payload []byte) error

// Client is a paho connection that remembers its subscriptions across
// reconnects and announces the service on meterdetect/system/status.
//
// All methods are safe for concurrent use.
type Client struct {
	paho      pahomqtt.Client
	clientID  string
	qos       byte
	connected atomic.Bool

	mu           sync.RWMutex
	subs         map[string]subscription
	logger       Logger
	onConnect    func()
	onDisconnect func(error)
}

type subscription struct {
	qos     byte
	handler MessageHandler
}

// statusMessage is the retained payload on the system status topic.
type statusMessage struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func (c *Client) status(state, reason string) []byte {
	b, _ := json.Marshal(statusMessage{ //nolint:errcheck // plain strings always encode
		Status:    state,
		ClientID:  c.clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return b
}

// Connect dials the broker and waits for the first CONNACK.
//
// Parameters:
//   - ctx: Cancels the wait for the broker
//   - cfg: Broker address, credentials and default QoS
//
// Returns:
//   - *Client: Connected client
//   - error: ErrConnectionFailed (wrapped) when the broker is not reached in time
func Connect(ctx context.Context, cfg config.MQTTConfig) (*Client, error) {
	c := newClient(cfg)
	c.paho = pahomqtt.NewClient(c.options(cfg))

	if err := awaitToken(ctx, c.paho.Connect(), connectTimeout); err != nil {
		c.paho.Disconnect(0)
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	// OnConnect runs asynchronously; report connected as soon as Connect returns.
	c.connected.Store(true)
	return c, nil
}

func newClient(cfg config.MQTTConfig) *Client {
	return &Client{
		clientID: cfg.ClientID,
		qos:      byte(cfg.QoS),
		subs:     make(map[string]subscription),
	}
}

func brokerURL(cfg config.MQTTConfig) string {
	return fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)
}

// options builds the paho configuration: clean session, automatic
// reconnect, and a retained "offline" will on the status topic.
func (c *Client) options(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions().
		AddBroker(brokerURL(cfg)).
		SetClientID(cfg.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(retryInterval).
		SetMaxReconnectInterval(maxReconnectDelay).
		SetConnectTimeout(connectTimeout).
		SetKeepAlive(keepAlive).
		SetWill(Topics{}.SystemStatus(), string(c.status("offline", "unexpected_disconnect")), 1, true).
		SetOnConnectHandler(func(pahomqtt.Client) { c.onConnected() }).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.onConnectionLost(err) })

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	return opts
}

func (c *Client) onConnected() {
	c.connected.Store(true)

	c.mu.RLock()
	for topic, sub := range c.subs {
		c.paho.Subscribe(topic, sub.qos, c.wrapHandler(sub.handler))
	}
	callback := c.onConnect
	c.mu.RUnlock()

	c.paho.Publish(Topics{}.SystemStatus(), c.qos, true, c.status("online", ""))
	if callback != nil {
		callback()
	}
}

func (c *Client) onConnectionLost(err error) {
	c.connected.Store(false)

	c.mu.RLock()
	logger, callback := c.logger, c.onDisconnect
	c.mu.RUnlock()

	if logger != nil {
		logger.Warn("MQTT connection lost", "error", err)
	}
	if callback != nil {
		callback(err)
	}
}

// Close announces a graceful shutdown and disconnects. Closing a client
// that never connected is a no-op.
func (c *Client) Close() error {
	if c.paho == nil {
		return nil
	}
	if c.IsConnected() {
		c.paho.Publish(Topics{}.SystemStatus(), c.qos, true, c.status("offline", "graceful_shutdown")).
			WaitTimeout(ackTimeout)
	}
	c.paho.Disconnect(disconnectQuiesceMS)
	c.connected.Store(false)
	return nil
}

// HealthCheck reports ErrNotConnected while the broker connection is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the last known connection state.
func (c *Client) IsConnected() bool {
	return c.paho != nil && c.connected.Load() && c.paho.IsConnected()
}

// SetOnConnect registers a callback for every reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.mu.Lock()
	c.onConnect = callback
	c.mu.Unlock()
}

// SetOnDisconnect registers a callback for a lost connection.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.mu.Lock()
	c.onDisconnect = callback
	c.mu.Unlock()
}

// SetLogger enables logging of handler errors and panics.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

// awaitToken waits for token, the timeout or ctx, whichever comes first.
func awaitToken(ctx context.Context, token pahomqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return fmt.Errorf("%w after %v", ErrTimeout, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
