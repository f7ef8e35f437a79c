package mqtt

import (
	"context"
	"time"

	"agrosense/internal/realtime"
)

// Store is a realtime.Store over retained MQTT topics. A value at path
// "a/b" is the retained message on topic "a/b"; objects may be published
// whole or as one topic per leaf.
type Store struct {
	sub    *Subscriber
	pub    *Publisher
	settle time.Duration
}

// StoreConfig holds configuration for the MQTT store
type StoreConfig struct {
	QoS byte
	// GetSettle is how long a one-off read collects retained messages
	GetSettle time.Duration
}

// DefaultStoreConfig returns QoS 1 with a 250ms settle window
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{QoS: 1, GetSettle: 250 * time.Millisecond}
}

// NewStore builds a store on a connected client. Filters are
// re-established whenever the client reconnects.
func NewStore(client *Client, config StoreConfig) *Store {
	s := newStore(client.GetNativeClient(), config)
	client.OnConnect(s.sub.Resubscribe)
	return s
}

func newStore(client broker, config StoreConfig) *Store {
	return &Store{
		sub:    NewSubscriber(client, SubscriberConfig{QoS: config.QoS}),
		pub:    NewPublisher(client, PublisherConfig{QoS: config.QoS}),
		settle: config.GetSettle,
	}
}

func (s *Store) Subscribe(path string, fn realtime.Handler) (realtime.Subscription, error) {
	return s.sub.Subscribe(path, fn)
}

func (s *Store) Get(ctx context.Context, path string) (realtime.Snapshot, error) {
	return s.sub.Get(ctx, path, s.settle)
}

// Set publishes value. The local cache is updated when the broker echoes
// the message back to an active filter.
func (s *Store) Set(ctx context.Context, path string, value any) error {
	norm, err := realtime.Normalize(value)
	if err != nil {
		return err
	}
	return s.pub.Publish(ctx, path, norm)
}

// Close drops local watchers; the client is closed separately
func (s *Store) Close() {
	s.sub.Close()
}

var _ realtime.Store = (*Store)(nil)
