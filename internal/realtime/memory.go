package realtime

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store. Writes are visible to subscribers
// immediately; it backs tests and the offline demo mode.
type MemoryStore struct {
	mu     sync.Mutex
	tree   Tree
	subs   map[uint64]*memorySub
	nextID uint64
	closed bool
}

type memorySub struct {
	id    uint64
	path  string
	segs  []string
	box   *Mailbox
	store *MemoryStore
	once  sync.Once
}

func (s *memorySub) Unsubscribe() {
	s.once.Do(func() {
		s.store.mu.Lock()
		delete(s.store.subs, s.id)
		s.store.mu.Unlock()
		s.box.Close()
	})
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[uint64]*memorySub)}
}

// Subscribe installs fn and immediately delivers the current value
func (m *MemoryStore) Subscribe(path string, fn Handler) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	m.nextID++
	sub := &memorySub{
		id:    m.nextID,
		path:  path,
		segs:  SplitPath(path),
		box:   NewMailbox(fn),
		store: m,
	}
	m.subs[sub.id] = sub
	sub.box.Post(Snapshot{Path: path, Value: m.tree.Get(sub.segs)})
	return sub, nil
}

// Get returns a copy of the value at path
func (m *MemoryStore) Get(ctx context.Context, path string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Snapshot{}, ErrClosed
	}
	return Snapshot{Path: path, Value: m.tree.Get(SplitPath(path))}, nil
}

// Set writes value at path and notifies every related subscriber
func (m *MemoryStore) Set(ctx context.Context, path string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	norm, err := Normalize(value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	segs := SplitPath(path)
	m.tree.Set(segs, norm)
	for _, sub := range m.subs {
		if Related(sub.segs, segs) {
			sub.box.Post(Snapshot{Path: sub.path, Value: m.tree.Get(sub.segs)})
		}
	}
	return nil
}

// SubscriberCount returns how many active subscriptions watch exactly path
func (m *MemoryStore) SubscriberCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := JoinPath(SplitPath(path)...)
	n := 0
	for _, sub := range m.subs {
		if JoinPath(sub.segs...) == want {
			n++
		}
	}
	return n
}

// TotalSubscribers returns the number of active subscriptions
func (m *MemoryStore) TotalSubscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// Close drops every subscription; later calls fail with ErrClosed
func (m *MemoryStore) Close() {
	m.mu.Lock()
	subs := m.subs
	m.subs = make(map[uint64]*memorySub)
	m.closed = true
	m.mu.Unlock()

	for _, sub := range subs {
		sub.once.Do(sub.box.Close)
	}
}
