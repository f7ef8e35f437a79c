package mqtt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"agrosense/internal/realtime"
	"agrosense/pkg/logger"
)

// broker is the part of the paho client the store uses
type broker interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Subscriber mirrors retained topics into a local tree and fans changes
// out to path watchers. Each watched path maps to one broker filter
// "path/#", shared by every watcher of that path.
type Subscriber struct {
	client broker
	qos    byte
	wait   time.Duration

	mu       sync.Mutex
	tree     realtime.Tree
	filters  map[string]int
	watchers map[uint64]*watcher
	nextID   uint64
}

type watcher struct {
	id   uint64
	path string
	segs []string
	box  *realtime.Mailbox
	sub  *Subscriber
	once sync.Once
}

func (w *watcher) Unsubscribe() {
	w.once.Do(func() {
		w.box.Close()
		w.sub.release(w)
	})
}

// SubscriberConfig holds configuration for the subscriber
type SubscriberConfig struct {
	QoS byte
	// AckTimeout bounds the wait for SUBACK/UNSUBACK
	AckTimeout time.Duration
}

// NewSubscriber creates a subscriber on client
func NewSubscriber(client broker, config SubscriberConfig) *Subscriber {
	if config.AckTimeout <= 0 {
		config.AckTimeout = 10 * time.Second
	}
	return &Subscriber{
		client:   client,
		qos:      config.QoS,
		wait:     config.AckTimeout,
		filters:  make(map[string]int),
		watchers: make(map[uint64]*watcher),
	}
}

// Subscribe installs fn on path and delivers the cached value right away.
// Retained messages arriving after the broker acknowledges the filter are
// delivered as ordinary changes.
func (s *Subscriber) Subscribe(path string, fn realtime.Handler) (realtime.Subscription, error) {
	segs := realtime.SplitPath(path)
	key := realtime.JoinPath(segs...)

	s.mu.Lock()
	s.nextID++
	w := &watcher{id: s.nextID, path: path, segs: segs, box: realtime.NewMailbox(fn), sub: s}
	s.watchers[w.id] = w
	s.filters[key]++
	first := s.filters[key] == 1
	w.box.Post(realtime.Snapshot{Path: path, Value: s.tree.Get(segs)})
	s.mu.Unlock()

	if first {
		if err := s.subscribeFilter(key); err != nil {
			w.Unsubscribe()
			return nil, err
		}
		logger.Debugf("MQTT Subscriber: Subscribed to %s", topicFilter(key))
	}
	return w, nil
}

func (s *Subscriber) subscribeFilter(key string) error {
	token := s.client.Subscribe(topicFilter(key), s.qos, s.handleMessage)
	if !token.WaitTimeout(s.wait) {
		return fmt.Errorf("subscribe to %s timed out", topicFilter(key))
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topicFilter(key), err)
	}
	return nil
}

func (s *Subscriber) release(w *watcher) {
	key := realtime.JoinPath(w.segs...)

	s.mu.Lock()
	if _, ok := s.watchers[w.id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.watchers, w.id)
	s.filters[key]--
	last := s.filters[key] <= 0
	if last {
		delete(s.filters, key)
		if !s.coveredLocked(w.segs) {
			s.pruneLocked(w.segs)
		}
	}
	s.mu.Unlock()

	if last {
		token := s.client.Unsubscribe(topicFilter(key))
		if token.WaitTimeout(s.wait) && token.Error() != nil {
			logger.Warnf("MQTT Subscriber: failed to unsubscribe from %s: %v", topicFilter(key), token.Error())
		}
	}
}

// coveredLocked reports whether an active filter is segs or an ancestor of it
func (s *Subscriber) coveredLocked(segs []string) bool {
	for key := range s.filters {
		f := realtime.SplitPath(key)
		if len(f) <= len(segs) && realtime.Related(f, segs) {
			return true
		}
	}
	return false
}

// pruneLocked clears the subtree at segs, which no filter refreshes any
// more, except the parts still under a descendant filter
func (s *Subscriber) pruneLocked(segs []string) {
	type kept struct {
		segs  []string
		value any
	}
	var keep []kept
	for key := range s.filters {
		f := realtime.SplitPath(key)
		if len(f) > len(segs) && realtime.Related(f, segs) {
			keep = append(keep, kept{segs: f, value: s.tree.Get(f)})
		}
	}

	s.tree.Set(segs, nil)
	for _, k := range keep {
		if k.value != nil {
			s.tree.Set(k.segs, k.value)
		}
	}
}

// Get returns the cached value at path. A path no filter covers is read by
// a short-lived subscription that collects retained messages for settle.
func (s *Subscriber) Get(ctx context.Context, path string, settle time.Duration) (realtime.Snapshot, error) {
	segs := realtime.SplitPath(path)

	s.mu.Lock()
	covered := s.coveredLocked(segs)
	value := s.tree.Get(segs)
	s.mu.Unlock()
	if covered {
		return realtime.Snapshot{Path: path, Value: value}, nil
	}

	sub, err := s.Subscribe(path, func(realtime.Snapshot) {})
	if err != nil {
		return realtime.Snapshot{}, err
	}
	defer sub.Unsubscribe()

	timer := time.NewTimer(settle)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return realtime.Snapshot{}, ctx.Err()
	}

	s.mu.Lock()
	value = s.tree.Get(segs)
	s.mu.Unlock()
	return realtime.Snapshot{Path: path, Value: value}, nil
}

// Resubscribe re-issues every active filter, e.g. after a reconnect
// without a persistent session
func (s *Subscriber) Resubscribe() {
	s.mu.Lock()
	keys := make([]string, 0, len(s.filters))
	for key := range s.filters {
		keys = append(keys, key)
	}
	s.mu.Unlock()

	for _, key := range keys {
		if err := s.subscribeFilter(key); err != nil {
			logger.Errorf("MQTT Subscriber: %v", err)
		}
	}
	if len(keys) > 0 {
		logger.Printf("MQTT Subscriber: Resubscribed %d filters", len(keys))
	}
}

// Watchers returns the number of active subscriptions
func (s *Subscriber) Watchers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers)
}

// Close drops every watcher without touching the broker
func (s *Subscriber) Close() {
	s.mu.Lock()
	watchers := s.watchers
	s.watchers = make(map[uint64]*watcher)
	s.filters = make(map[string]int)
	s.mu.Unlock()

	for _, w := range watchers {
		w.once.Do(w.box.Close)
	}
}

// handleMessage writes a retained value into the tree and notifies
// every watcher whose path is related to the topic
func (s *Subscriber) handleMessage(client mqtt.Client, msg mqtt.Message) {
	segs := topicPath(msg.Topic())
	value := decodePayload(msg.Payload())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree.Set(segs, value)
	for _, w := range s.watchers {
		if realtime.Related(w.segs, segs) {
			w.box.Post(realtime.Snapshot{Path: w.path, Value: s.tree.Get(w.segs)})
		}
	}
}

// decodePayload turns a message body into a tree value. An empty body
// clears the retained topic; bodies that are not JSON fall back to a
// number, then to the raw string.
func decodePayload(payload []byte) any {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil
	}
	var value any
	if err := json.Unmarshal(trimmed, &value); err == nil {
		return value
	}
	if f, err := strconv.ParseFloat(string(trimmed), 64); err == nil {
		return f
	}
	return string(payload)
}

// topicFilter returns the wildcard filter covering a path and its subtree
func topicFilter(key string) string {
	if key == "" {
		return "#"
	}
	return key + "/#"
}

// topicPath maps a topic onto tree segments
// Example: "DHARA/M1/Slave(A)/1700000000" -> [DHARA M1 Slave(A) 1700000000]
func topicPath(topic string) []string {
	return realtime.SplitPath(topic)
}
