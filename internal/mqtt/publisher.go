package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	"agrosense/internal/realtime"
	"agrosense/pkg/logger"
)

// Publisher writes tree values as retained messages
type Publisher struct {
	client broker
	qos    byte
}

// PublisherConfig holds configuration for the publisher
type PublisherConfig struct {
	QoS byte
}

// NewPublisher creates a publisher on client
func NewPublisher(client broker, config PublisherConfig) *Publisher {
	return &Publisher{client: client, qos: config.QoS}
}

// Publish retains value on the topic for path. A nil value publishes an
// empty retained payload, which clears the topic.
func (p *Publisher) Publish(ctx context.Context, path string, value any) error {
	payload, err := encodePayload(value)
	if err != nil {
		return err
	}

	topic := formatTopic(path)
	token := p.client.Publish(topic, p.qos, true, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	logger.Debugf("MQTT Publisher: Published %d bytes to topic: %s", len(payload), topic)
	return nil
}

func encodePayload(value any) ([]byte, error) {
	if value == nil {
		return []byte{}, nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}
	return payload, nil
}

// formatTopic normalizes a store path into a topic name
func formatTopic(path string) string {
	return realtime.JoinPath(realtime.SplitPath(path)...)
}
