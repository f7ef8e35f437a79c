package mqtt

import (
	"context"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectBackOffHonoursMaxAttempts(t *testing.T) {
	b := connectBackOff(context.Background(), ClientConfig{
		ConnectMaxAttempts: 3,
		ConnectMinInterval: time.Millisecond,
		ConnectMaxInterval: 4 * time.Millisecond,
	})

	var waits []time.Duration
	for next := b.NextBackOff(); next != backoff.Stop; next = b.NextBackOff() {
		waits = append(waits, next)
		require.Less(t, len(waits), 10)
	}
	assert.Len(t, waits, 2, "three attempts means two waits")
	for _, w := range waits {
		assert.LessOrEqual(t, w, 6*time.Millisecond)
	}
}

func TestConnectBackOffUnlimitedUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := connectBackOff(ctx, ClientConfig{ConnectMinInterval: time.Millisecond})

	for i := 0; i < 50; i++ {
		assert.NotEqual(t, backoff.Stop, b.NextBackOff())
	}
	cancel()
	assert.Equal(t, backoff.Stop, b.NextBackOff())
}

func TestNewClientGivesUp(t *testing.T) {
	_, err := NewClient(context.Background(), ClientConfig{
		Broker:             "tcp://127.0.0.1:1",
		ClientID:           "agrosense-test",
		ConnectMaxAttempts: 2,
		ConnectMinInterval: time.Millisecond,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
}
