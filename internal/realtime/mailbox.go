package realtime

import "sync"

// Mailbox delivers snapshots to a handler on its own goroutine. Posting
// never blocks: an undelivered snapshot is replaced by a newer one, so a
// slow handler always sees the latest state.
type Mailbox struct {
	fn      Handler
	mu      sync.Mutex
	pending Snapshot
	has     bool
	signal  chan struct{}
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewMailbox starts the delivery goroutine for fn
func NewMailbox(fn Handler) *Mailbox {
	m := &Mailbox{
		fn:      fn,
		signal:  make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go m.run()
	return m
}

// Post queues s, replacing any snapshot not yet delivered
func (m *Mailbox) Post(s Snapshot) {
	m.mu.Lock()
	m.pending, m.has = s, true
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *Mailbox) run() {
	defer close(m.stopped)
	for {
		select {
		case <-m.done:
			return
		case <-m.signal:
		}

		m.mu.Lock()
		s, ok := m.pending, m.has
		m.pending, m.has = Snapshot{}, false
		m.mu.Unlock()

		select {
		case <-m.done:
			return
		default:
		}
		if ok {
			m.fn(s)
		}
	}
}

// Close stops delivery. A handler call already running is not interrupted;
// use Wait to block until it has returned.
func (m *Mailbox) Close() {
	m.once.Do(func() { close(m.done) })
}

// Wait blocks until the delivery goroutine has exited
func (m *Mailbox) Wait() {
	<-m.stopped
}
