package dashboard_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrosense/internal/aggregator"
	"agrosense/internal/dashboard"
	"agrosense/internal/irrigation"
	"agrosense/internal/models"
	"agrosense/internal/realtime"
	"agrosense/internal/threshold"
)

type fixedProfile struct {
	profile *models.CropProfile
}

func (f fixedProfile) Active() *models.CropProfile { return f.profile }

type fixture struct {
	store   *realtime.MemoryStore
	session *dashboard.Session
	archive chan models.DeviceSeries
	cancel  context.CancelFunc
}

func seed(t *testing.T, store *realtime.MemoryStore) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "DHARA/M1/Slave(A)", map[string]any{
		"1700000000": map[string]any{"temperature": 25, "humidity": 70, "latitude": 12.9, "tilt": 1.5},
		"1700003600": map[string]any{"temperature": 35, "humidity": 72, "latitude": 12.9, "tilt": 2.5},
	}))
	require.NoError(t, store.Set(ctx, "DHARA/M1/Slave(B)", map[string]any{"junk": "x"}))
	require.NoError(t, store.Set(ctx, "DHARA/M1/Gateway", map[string]any{"fw": "1.2"}))
	require.NoError(t, store.Set(ctx, "DHARA/M2/Slave(C)/1700000000", map[string]any{"humidity": 40}))
}

func start(t *testing.T) *fixture {
	t.Helper()
	store := realtime.NewMemoryStore()
	seed(t, store)

	profile := models.DefaultCropProfile()
	archive := make(chan models.DeviceSeries, 16)
	session := dashboard.NewSession(
		store,
		aggregator.NewAggregator(nil),
		threshold.NewEvaluator(nil),
		nil,
		fixedProfile{profile: &profile},
		irrigation.NewBridge(store, "DHARA", ""),
		dashboard.Config{Root: "DHARA", DevicePrefix: "Slave(", Archive: archive},
	)

	ctx, cancel := context.WithCancel(context.Background())
	go session.Run(ctx)
	t.Cleanup(cancel)

	f := &fixture{store: store, session: session, archive: archive, cancel: cancel}
	f.waitFor(t, func(v *dashboard.View) bool { return !v.Loading })
	return f
}

func (f *fixture) waitFor(t *testing.T, cond func(*dashboard.View) bool) *dashboard.View {
	t.Helper()
	var last *dashboard.View
	require.Eventually(t, func() bool {
		last = f.session.View()
		return cond(last)
	}, 2*time.Second, 5*time.Millisecond)
	return last
}

func TestAutoSelectsFirstMaster(t *testing.T) {
	f := start(t)

	v := f.session.View()
	assert.Equal(t, []string{"M1", "M2"}, v.Masters)
	assert.Equal(t, "M1", v.SelectedMaster)
	assert.Equal(t, dashboard.OverviewView, v.ActiveView)
	assert.Equal(t, []string{"Slave(A)", "Slave(B)"}, v.Devices)
	assert.Equal(t, 1, f.store.SubscriberCount("DHARA"))
	assert.Equal(t, 1, f.store.SubscriberCount("DHARA/M1"))
}

func TestOverviewMarksOfflineDevices(t *testing.T) {
	f := start(t)

	v := f.session.View()
	require.Len(t, v.Overview, 2)

	a := v.Overview[0]
	assert.Equal(t, "A", a.Label)
	assert.True(t, a.Online)
	assert.Equal(t, int64(1700003600000), a.Latest.Timestamp)
	assert.Equal(t, threshold.High, a.Statuses["temperature"])

	b := v.Overview[1]
	assert.Equal(t, "B", b.Label)
	assert.False(t, b.Online)
	assert.Nil(t, b.Latest)
	assert.Nil(t, v.Device)
}

func TestSwitchingMasterReplacesSubscription(t *testing.T) {
	f := start(t)
	ctx := context.Background()

	require.NoError(t, f.session.SelectView(ctx, "Slave(A)"))
	require.NoError(t, f.session.SelectMaster(ctx, "M2"))

	assert.Equal(t, 0, f.store.SubscriberCount("DHARA/M1"))
	assert.Equal(t, 1, f.store.SubscriberCount("DHARA/M2"))
	assert.Equal(t, 0, f.store.SubscriberCount("DHARA/M1/Slave(A)/Control/Irrigation"))

	v := f.waitFor(t, func(v *dashboard.View) bool { return !v.Loading && v.SelectedMaster == "M2" })
	assert.Equal(t, dashboard.OverviewView, v.ActiveView)
	assert.Equal(t, []string{"Slave(C)"}, v.Devices)

	assert.ErrorIs(t, f.session.SelectMaster(ctx, "M9"), dashboard.ErrUnknownMaster)
}

func TestDeviceView(t *testing.T) {
	f := start(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.session.SelectView(ctx, "Slave(Z)"), dashboard.ErrUnknownDevice)
	require.NoError(t, f.session.SelectView(ctx, "Slave(A)"))

	v := f.waitFor(t, func(v *dashboard.View) bool { return v.Device != nil })
	d := v.Device
	assert.Equal(t, "A", d.Label)
	assert.Len(t, d.Data.FullData, 2)

	var keys []string
	for _, c := range d.Cards {
		keys = append(keys, c.Key)
	}
	assert.Equal(t, []string{"humidity", "temperature"}, keys, "location and IMU keys stay off the cards")
	assert.Equal(t, threshold.High, d.Cards[1].Status)
	assert.Equal(t, 30.0, d.Cards[1].Stats.Avg)

	require.Len(t, d.Location, 1)
	assert.Equal(t, "latitude", d.Location[0].Key)
	require.Len(t, d.IMU, 1)
	assert.Equal(t, 2.5, *d.IMU[0].Value)

	assert.Equal(t, threshold.MoodNeutral, d.Mood.Mood)

	data, err := f.session.Device(ctx, "Slave(A)")
	require.NoError(t, err)
	assert.Len(t, data.FullData, 2)
}

func TestIrrigationStream(t *testing.T) {
	f := start(t)
	ctx := context.Background()
	path := "DHARA/M1/Slave(A)/Control/Irrigation"

	assert.ErrorIs(t, f.session.ToggleIrrigation(ctx), dashboard.ErrNoDevice)

	require.NoError(t, f.session.SelectView(ctx, "Slave(A)"))
	assert.Equal(t, 1, f.store.SubscriberCount(path))

	require.NoError(t, f.session.ToggleIrrigation(ctx))
	f.waitFor(t, func(v *dashboard.View) bool { return v.Device != nil && v.Device.Irrigation })

	require.NoError(t, f.session.ToggleIrrigation(ctx))
	f.waitFor(t, func(v *dashboard.View) bool { return v.Device != nil && !v.Device.Irrigation })

	require.NoError(t, f.session.SelectView(ctx, dashboard.OverviewView))
	assert.Equal(t, 0, f.store.SubscriberCount(path))
}

func TestLiveUpdatesAndWatch(t *testing.T) {
	f := start(t)
	views, cancel := f.session.Watch()
	defer cancel()

	first := <-views
	require.NotNil(t, first)

	require.NoError(t, f.store.Set(context.Background(), "DHARA/M1/Slave(B)/1700007200", map[string]any{"temperature": 20}))

	require.Eventually(t, func() bool {
		select {
		case v := <-views:
			return len(v.Overview) == 2 && v.Overview[1].Online
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	cancel()
	for range views {
	}
}

func TestArchiveReceivesSeries(t *testing.T) {
	f := start(t)

	select {
	case series := <-f.archive:
		assert.Equal(t, "M1", series.MasterID)
		assert.Equal(t, "Slave(A)", series.DeviceID)
		assert.Len(t, series.Points, 2)
	case <-time.After(2 * time.Second):
		t.Fatal("no series archived")
	}
}

func TestRunTeardown(t *testing.T) {
	f := start(t)
	require.NoError(t, f.session.SelectView(context.Background(), "Slave(A)"))
	assert.Equal(t, 3, f.store.TotalSubscribers())

	f.cancel()
	require.Eventually(t, func() bool { return f.store.TotalSubscribers() == 0 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return f.session.Refresh(context.Background()) == dashboard.ErrStopped
	}, 2*time.Second, 5*time.Millisecond)
}

// flakyStore fails the first subscribes, like a broker that is still coming up
type flakyStore struct {
	*realtime.MemoryStore
	mu       sync.Mutex
	failures int
}

func (f *flakyStore) Subscribe(path string, fn realtime.Handler) (realtime.Subscription, error) {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return nil, errors.New("subscribe rejected")
	}
	f.mu.Unlock()
	return f.MemoryStore.Subscribe(path, fn)
}

func TestFailedSubscribeIsRetried(t *testing.T) {
	mem := realtime.NewMemoryStore()
	seed(t, mem)
	store := &flakyStore{MemoryStore: mem, failures: 2}

	session := dashboard.NewSession(
		store,
		aggregator.NewAggregator(nil),
		threshold.NewEvaluator(nil),
		nil,
		nil,
		nil,
		dashboard.Config{Root: "DHARA", DevicePrefix: "Slave(", ResubscribeInterval: 5 * time.Millisecond},
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go session.Run(ctx)

	require.Eventually(t, func() bool {
		v := session.View()
		return !v.Loading && v.SelectedMaster == "M1"
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, mem.SubscriberCount("DHARA"))
}
