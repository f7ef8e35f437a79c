// Package dashboard runs one dashboard session: it follows the selected
// master and device in the realtime store and renders immutable Views.
//
// All session state is owned by the goroutine running Run. Store callbacks
// and user commands reach it through channels; callbacks carry the
// generation of the subscription that produced them, and anything from a
// torn-down subscription is dropped.
package dashboard

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"agrosense/internal/aggregator"
	"agrosense/internal/irrigation"
	"agrosense/internal/models"
	"agrosense/internal/realtime"
	"agrosense/internal/sensors"
	"agrosense/internal/threshold"
	"agrosense/pkg/logger"
)

var (
	ErrStopped       = errors.New("dashboard session stopped")
	ErrUnknownMaster = errors.New("unknown master")
	ErrUnknownDevice = errors.New("unknown device")
	ErrNoDevice      = errors.New("no device view is active")
)

// ProfileSource supplies the active crop profile, or nil
type ProfileSource interface {
	Active() *models.CropProfile
}

type stream int

const (
	streamMasters stream = iota
	streamMaster
	streamIrrigation
	streamCount
)

func (s stream) String() string {
	switch s {
	case streamMasters:
		return "masters"
	case streamMaster:
		return "master"
	case streamIrrigation:
		return "irrigation"
	}
	return "unknown"
}

type update struct {
	stream stream
	gen    uint64
	snap   realtime.Snapshot
}

// resubscribe asks the loop to retry a stream whose subscribe failed
type resubscribe struct {
	stream stream
	gen    uint64
}

type commandKind int

const (
	cmdSelectMaster commandKind = iota
	cmdSelectView
	cmdRefresh
	cmdIrrigationTarget
	cmdDevice
)

type command struct {
	kind  commandKind
	arg   string
	reply chan result
}

type result struct {
	err    error
	target ToggleTarget
	device models.ProcessedDevice
}

// ToggleTarget identifies the actuator of the active device view
type ToggleTarget struct {
	Master  string
	Device  string
	Current bool
}

// Config holds session configuration
type Config struct {
	Root         string
	DevicePrefix string
	// Archive receives every device series after each master push; sends never block
	Archive chan<- models.DeviceSeries
	// ResubscribeInterval is the first wait after a failed subscribe; defaults to 500ms
	ResubscribeInterval time.Duration
}

// Session is one dashboard session
type Session struct {
	store    realtime.Store
	bridge   *irrigation.Bridge
	profiles ProfileSource
	render   renderer
	config   Config

	updates  chan update
	retries  chan resubscribe
	commands chan command
	done     chan struct{}
	stopOnce sync.Once

	// owned by Run
	masters      []string
	master       string
	masterNode   any
	masterLoaded bool
	activeView   string
	irrigationOn bool
	gens         [streamCount]uint64
	subs         [streamCount]realtime.Subscription
	paths        [streamCount]string
	backoffs     [streamCount]*backoff.ExponentialBackOff
	version      uint64

	mu       sync.RWMutex
	current  *View
	watchers map[uint64]chan *View
	nextWID  uint64
}

// NewSession creates a session. Nothing is subscribed until Run.
func NewSession(
	store realtime.Store,
	agg *aggregator.Aggregator,
	eval *threshold.Evaluator,
	registry *sensors.Registry,
	profiles ProfileSource,
	bridge *irrigation.Bridge,
	config Config,
) *Session {
	if registry == nil {
		registry = sensors.Default()
	}
	s := &Session{
		store:      store,
		bridge:     bridge,
		profiles:   profiles,
		render:     renderer{agg: agg, eval: eval, registry: registry},
		config:     config,
		updates:    make(chan update, 16),
		retries:    make(chan resubscribe),
		commands:   make(chan command),
		done:       make(chan struct{}),
		activeView: OverviewView,
		watchers:   make(map[uint64]chan *View),
	}
	if config.ResubscribeInterval <= 0 {
		config.ResubscribeInterval = 500 * time.Millisecond
	}
	for i := range s.backoffs {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = config.ResubscribeInterval
		b.MaxInterval = 30 * time.Second
		b.MaxElapsedTime = 0
		b.Reset()
		s.backoffs[i] = b
	}
	s.current = &View{ActiveView: OverviewView, Loading: true}
	return s
}

// Run owns the session until ctx ends, then tears down every subscription
func (s *Session) Run(ctx context.Context) {
	logger.Printf("Dashboard: Session starting (root %s)", s.config.Root)
	s.subscribe(streamMasters, s.config.Root)
	s.publish()

	defer func() {
		for st := stream(0); st < streamCount; st++ {
			s.unsubscribe(st)
		}
		s.stopOnce.Do(func() { close(s.done) })
		logger.Printf("Dashboard: Session stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case u := <-s.updates:
			if u.gen != s.gens[u.stream] || s.subs[u.stream] == nil {
				logger.Debugf("Dashboard: dropping stale %s update (gen %d, current %d)", u.stream, u.gen, s.gens[u.stream])
				continue
			}
			s.apply(u)
			s.publish()
		case r := <-s.retries:
			if r.gen != s.gens[r.stream] || s.subs[r.stream] != nil {
				continue
			}
			s.subscribe(r.stream, s.paths[r.stream])
			s.publish()
		case c := <-s.commands:
			c.reply <- s.execute(c)
		}
	}
}

func (s *Session) subscribe(st stream, path string) {
	s.unsubscribe(st)
	s.paths[st] = path
	gen := s.gens[st]
	sub, err := s.store.Subscribe(path, func(snap realtime.Snapshot) {
		select {
		case s.updates <- update{stream: st, gen: gen, snap: snap}:
		case <-s.done:
		}
	})
	if err != nil {
		// rendered as awaiting data until a retry or selection change succeeds
		logger.Errorf("Dashboard: failed to subscribe %s stream to %s: %v", st, path, err)
		s.retryLater(st, gen)
		return
	}
	s.subs[st] = sub
	s.backoffs[st].Reset()
	logger.Debugf("Dashboard: %s stream on %s (gen %d)", st, path, gen)
}

// retryLater schedules another subscribe for st. A selection change in the
// meantime advances the generation and the retry is ignored.
func (s *Session) retryLater(st stream, gen uint64) {
	wait := s.backoffs[st].NextBackOff()
	if wait == backoff.Stop {
		return
	}
	logger.Warnf("Dashboard: retrying %s stream in %s", st, wait)
	time.AfterFunc(wait, func() {
		select {
		case s.retries <- resubscribe{stream: st, gen: gen}:
		case <-s.done:
		}
	})
}

// unsubscribe tears down a stream and advances its generation
func (s *Session) unsubscribe(st stream) {
	if s.subs[st] != nil {
		s.subs[st].Unsubscribe()
		s.subs[st] = nil
	}
	s.gens[st]++
}

func (s *Session) apply(u update) {
	switch u.stream {
	case streamMasters:
		s.masters = aggregator.ChildKeys(u.snap.Value)
		if s.master == "" && len(s.masters) > 0 {
			s.selectMaster(s.masters[0])
		}
	case streamMaster:
		s.masterNode = u.snap.Value
		s.masterLoaded = true
		s.forwardArchive()
	case streamIrrigation:
		s.irrigationOn = irrigation.IsOn(u.snap.Value)
	}
}

func (s *Session) execute(c command) result {
	switch c.kind {
	case cmdSelectMaster:
		if !slices.Contains(s.masters, c.arg) {
			return result{err: ErrUnknownMaster}
		}
		if c.arg != s.master {
			s.selectMaster(c.arg)
			s.publish()
		}
	case cmdSelectView:
		if err := s.selectView(c.arg); err != nil {
			return result{err: err}
		}
		s.publish()
	case cmdRefresh:
		s.publish()
	case cmdIrrigationTarget:
		if s.activeView == OverviewView {
			return result{err: ErrNoDevice}
		}
		return result{target: ToggleTarget{Master: s.master, Device: s.activeView, Current: s.irrigationOn}}
	case cmdDevice:
		if !slices.Contains(s.deviceIDs(), c.arg) {
			return result{err: ErrUnknownDevice}
		}
		return result{device: s.render.agg.Aggregate(s.deviceNodes()[c.arg])}
	}
	return result{}
}

// selectMaster switches the master stream and resets to the overview
func (s *Session) selectMaster(id string) {
	logger.Printf("Dashboard: Selecting master %s", id)
	s.unsubscribe(streamIrrigation)
	s.irrigationOn = false
	s.activeView = OverviewView
	s.master = id
	s.masterNode = nil
	s.masterLoaded = false
	s.subscribe(streamMaster, realtime.JoinPath(s.config.Root, id))
}

func (s *Session) selectView(id string) error {
	if id == "" {
		id = OverviewView
	}
	if id == s.activeView {
		return nil
	}
	if id != OverviewView && !slices.Contains(s.deviceIDs(), id) {
		return ErrUnknownDevice
	}

	s.unsubscribe(streamIrrigation)
	s.irrigationOn = false
	s.activeView = id
	if id != OverviewView && s.bridge != nil {
		s.subscribe(streamIrrigation, s.bridge.Path(s.master, id))
	}
	return nil
}

func (s *Session) deviceIDs() []string {
	return aggregator.DeviceIDs(s.masterNode, s.config.DevicePrefix)
}

func (s *Session) deviceNodes() map[string]any {
	m, _ := s.masterNode.(map[string]any)
	return m
}

func (s *Session) forwardArchive() {
	if s.config.Archive == nil {
		return
	}
	nodes := s.deviceNodes()
	for _, id := range s.deviceIDs() {
		points := s.render.agg.Points(aggregator.SplitDeviceRaw(nodes[id]))
		if len(points) == 0 {
			continue
		}
		select {
		case s.config.Archive <- models.DeviceSeries{MasterID: s.master, DeviceID: id, Points: points}:
		default:
			logger.Warnf("Dashboard: archive channel full, dropping series for %s", id)
		}
	}
}

func (s *Session) build() *View {
	s.version++
	var profile *models.CropProfile
	if s.profiles != nil {
		profile = s.profiles.Active()
	}

	ids := s.deviceIDs()
	v := &View{
		Version:        s.version,
		Masters:        slices.Clone(s.masters),
		SelectedMaster: s.master,
		Devices:        ids,
		ActiveView:     s.activeView,
		Loading:        s.master == "" || !s.masterLoaded,
		Profile:        profile,
	}
	if v.Loading {
		return v
	}

	if s.activeView == OverviewView {
		v.Overview = s.render.overview(ids, s.deviceNodes(), profile)
	} else {
		data := s.render.agg.Aggregate(s.deviceNodes()[s.activeView])
		v.Device = s.render.device(s.activeView, data, s.irrigationOn, profile)
	}
	return v
}

func (s *Session) publish() {
	v := s.build()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = v
	for _, ch := range s.watchers {
		// keep only the newest view for slow watchers
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}

// View returns the latest rendered view
func (s *Session) View() *View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Watch returns a channel that always holds the newest view not yet read,
// primed with the current one. cancel closes the channel.
func (s *Session) Watch() (<-chan *View, func()) {
	ch := make(chan *View, 1)

	s.mu.Lock()
	s.nextWID++
	id := s.nextWID
	s.watchers[id] = ch
	ch <- s.current
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *Session) send(ctx context.Context, kind commandKind, arg string) (result, error) {
	c := command{kind: kind, arg: arg, reply: make(chan result, 1)}
	select {
	case s.commands <- c:
	case <-s.done:
		return result{}, ErrStopped
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
	r := <-c.reply
	return r, r.err
}

// SelectMaster follows another master and returns to the overview
func (s *Session) SelectMaster(ctx context.Context, id string) error {
	_, err := s.send(ctx, cmdSelectMaster, id)
	return err
}

// SelectView shows the overview or one device of the selected master
func (s *Session) SelectView(ctx context.Context, id string) error {
	_, err := s.send(ctx, cmdSelectView, id)
	return err
}

// Refresh re-renders the view, e.g. after the active profile changed
func (s *Session) Refresh(ctx context.Context) error {
	_, err := s.send(ctx, cmdRefresh, "")
	return err
}

// Device aggregates one device of the selected master
func (s *Session) Device(ctx context.Context, id string) (models.ProcessedDevice, error) {
	r, err := s.send(ctx, cmdDevice, id)
	return r.device, err
}

// ToggleIrrigation flips the actuator of the active device. The view shows
// the new state once the store pushes it back.
func (s *Session) ToggleIrrigation(ctx context.Context) error {
	if s.bridge == nil {
		return ErrNoDevice
	}
	r, err := s.send(ctx, cmdIrrigationTarget, "")
	if err != nil {
		return err
	}
	return s.bridge.Toggle(ctx, r.target.Master, r.target.Device, r.target.Current)
}

