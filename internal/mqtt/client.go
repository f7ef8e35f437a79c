package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"

	"agrosense/pkg/logger"
)

// Client manages the MQTT connection (low-level connection management only)
// For reading and writing the store tree, use Subscriber and Publisher respectively
type Client struct {
	client mqtt.Client
	config ClientConfig

	mu        sync.Mutex
	onConnect []func()
}

// ClientConfig holds MQTT client configuration
type ClientConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string

	// Initial connection retry; paho reconnects on its own afterwards.
	// ConnectMaxAttempts of 0 retries until ctx ends.
	ConnectMaxAttempts int
	ConnectMinInterval time.Duration // defaults to 500ms
	ConnectMaxInterval time.Duration // defaults to 30s
}

// NewClient creates a new MQTT client connection, retrying until the broker
// answers, the retry policy gives up or ctx ends
func NewClient(ctx context.Context, config ClientConfig) (*Client, error) {
	c := &Client{config: config}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	opts.SetUsername(config.Username)
	opts.SetPassword(config.Password)
	opts.SetDefaultPublishHandler(messagePubHandler)
	opts.SetOnConnectHandler(c.handleConnect)
	opts.SetConnectionLostHandler(connectLostHandler)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOrderMatters(false)

	c.client = mqtt.NewClient(opts)

	attempts := 0
	connect := func() error {
		attempts++
		token := c.client.Connect()
		select {
		case <-token.Done():
		case <-ctx.Done():
			return backoff.Permanent(ctx.Err())
		}
		return token.Error()
	}
	notify := func(err error, next time.Duration) {
		logger.Warnf("MQTT Client: Connect attempt %d failed (%v), retrying in %s", attempts, err, next)
	}
	if err := backoff.RetryNotify(connect, connectBackOff(ctx, config), notify); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker after %d attempts: %w", attempts, err)
	}

	logger.Printf("MQTT Client: Connected to broker: %s", config.Broker)
	return c, nil
}

// connectBackOff builds the retry schedule for the initial connection
func connectBackOff(ctx context.Context, config ClientConfig) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	if config.ConnectMinInterval > 0 {
		b.InitialInterval = config.ConnectMinInterval
	}
	b.MaxInterval = 30 * time.Second
	if config.ConnectMaxInterval > 0 {
		b.MaxInterval = config.ConnectMaxInterval
	}
	b.MaxElapsedTime = 0
	b.Reset()

	var policy backoff.BackOff = b
	if config.ConnectMaxAttempts > 0 {
		policy = backoff.WithMaxRetries(b, uint64(config.ConnectMaxAttempts-1))
	}
	return backoff.WithContext(policy, ctx)
}

// OnConnect registers fn to run after every (re)connection
func (c *Client) OnConnect(fn func()) {
	c.mu.Lock()
	c.onConnect = append(c.onConnect, fn)
	c.mu.Unlock()
}

func (c *Client) handleConnect(mqtt.Client) {
	logger.Printf("MQTT: Connection established")
	c.mu.Lock()
	hooks := append([]func(){}, c.onConnect...)
	c.mu.Unlock()
	for _, fn := range hooks {
		go fn()
	}
}

// GetNativeClient returns the underlying paho MQTT client
// This is used by Subscriber and Publisher
func (c *Client) GetNativeClient() mqtt.Client {
	return c.client
}

// IsConnected returns whether the client is currently connected
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// Close closes the MQTT client connection
func (c *Client) Close() {
	c.client.Disconnect(250)
	logger.Printf("MQTT Client: Disconnected")
}

// Connection event handlers
var messagePubHandler mqtt.MessageHandler = func(client mqtt.Client, msg mqtt.Message) {
	logger.Debugf("MQTT: Unrouted message on topic: %s", msg.Topic())
}

var connectLostHandler mqtt.ConnectionLostHandler = func(client mqtt.Client, err error) {
	logger.Warnf("MQTT: Connection lost: %v", err)
}
