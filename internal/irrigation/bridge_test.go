package irrigation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrosense/internal/irrigation"
	"agrosense/internal/realtime"
)

func TestPath(t *testing.T) {
	b := irrigation.NewBridge(realtime.NewMemoryStore(), "DHARA", "")
	assert.Equal(t, "DHARA/M1/Slave(A)/Control/Irrigation", b.Path("M1", "Slave(A)"))

	shared := irrigation.NewBridge(realtime.NewMemoryStore(), "DHARA", "{root}/{master}/Control/Irrigation")
	assert.Equal(t, "DHARA/M1/Control/Irrigation", shared.Path("M1", "Slave(A)"))
}

func TestReadAndToggle(t *testing.T) {
	ctx := context.Background()
	store := realtime.NewMemoryStore()
	b := irrigation.NewBridge(store, "DHARA", "")

	on, err := b.Read(ctx, "M1", "Slave(A)")
	require.NoError(t, err)
	assert.False(t, on, "missing flag reads as off")

	require.NoError(t, b.Toggle(ctx, "M1", "Slave(A)", on))
	snap, err := store.Get(ctx, "DHARA/M1/Slave(A)/Control/Irrigation")
	require.NoError(t, err)
	assert.Equal(t, 1.0, snap.Value)

	on, err = b.Read(ctx, "M1", "Slave(A)")
	require.NoError(t, err)
	assert.True(t, on)

	require.NoError(t, b.Toggle(ctx, "M1", "Slave(A)", on))
	on, err = b.Read(ctx, "M1", "Slave(A)")
	require.NoError(t, err)
	assert.False(t, on)
}

func TestToggleClosedStore(t *testing.T) {
	store := realtime.NewMemoryStore()
	store.Close()
	b := irrigation.NewBridge(store, "DHARA", "")
	assert.ErrorIs(t, b.Toggle(context.Background(), "M1", "Slave(A)", false), realtime.ErrClosed)
}

func TestIsOn(t *testing.T) {
	assert.True(t, irrigation.IsOn(1.0))
	assert.True(t, irrigation.IsOn(true))
	assert.True(t, irrigation.IsOn("1"))
	assert.False(t, irrigation.IsOn(0.0))
	assert.False(t, irrigation.IsOn(2.0))
	assert.False(t, irrigation.IsOn(nil))
	assert.False(t, irrigation.IsOn(map[string]any{}))
}
