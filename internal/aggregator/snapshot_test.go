package aggregator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrosense/internal/aggregator"
)

func TestFleetSnapshot(t *testing.T) {
	master := decode(t, `{
		"Slave(A1)": {"1700000000": {"temperature": 20}, "1700000600": {"temperature": 24}},
		"Slave(B2)": {},
		"Control": {"Irrigation": 0}
	}`)
	ids := aggregator.DeviceIDs(master, "Slave(")
	assert.Equal(t, []string{"Slave(A1)", "Slave(B2)"}, ids)

	ids = append(ids, "Slave(C3)")
	snap := newAggregator(aggregator.SignalSentinel).FleetSnapshot(ids, master.(map[string]any))

	require.Len(t, snap, 3)
	require.NotNil(t, snap[0].Latest)
	assert.True(t, snap[0].Online())
	assert.Equal(t, int64(1700000600000), snap[0].Latest.Timestamp)
	v, _ := snap[0].Latest.Number("temperature")
	assert.Equal(t, 24.0, v)

	assert.Equal(t, "Slave(B2)", snap[1].ID)
	assert.Nil(t, snap[1].Latest)
	assert.False(t, snap[2].Online())
}

func TestLatestSkipsNullNewestRecord(t *testing.T) {
	latest := newAggregator(aggregator.SignalAbsent).Latest(decode(t, `{"1700000000": {"tilt": 2}, "1700000060": null}`))
	require.NotNil(t, latest)
	assert.Equal(t, int64(1700000000000), latest.Timestamp)
}

func TestDeviceLabel(t *testing.T) {
	assert.Equal(t, "AA:BB", aggregator.DeviceLabel("Slave(AA:BB)"))
	assert.Equal(t, "Node7", aggregator.DeviceLabel("Node7"))
	assert.Equal(t, "Slave()", aggregator.DeviceLabel("Slave()"))
}

func TestChildKeys(t *testing.T) {
	assert.Equal(t, []string{"M1", "M2"}, aggregator.ChildKeys(map[string]any{"M2": 1, "M1": 2}))
	assert.Nil(t, aggregator.ChildKeys(nil))
	assert.Nil(t, aggregator.ChildKeys(3.0))
}
