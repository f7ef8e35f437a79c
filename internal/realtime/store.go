// Package realtime abstracts the push-based store the dashboard reads from.
// Data lives in a tree addressed by "/"-separated paths; subscribing to a
// path delivers the whole subtree value every time anything under it changes.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrClosed is returned by a store that has been shut down
var ErrClosed = errors.New("realtime store closed")

// Snapshot is the value at Path at one moment. Value is a decoded JSON
// tree (map[string]any, []any, float64, bool, string) or nil when absent.
type Snapshot struct {
	Path  string
	Value any
}

// Exists reports whether anything is stored at the path
func (s Snapshot) Exists() bool {
	return s.Value != nil
}

// Handler receives snapshots. Calls for one subscription are sequential.
type Handler func(Snapshot)

// Subscription is an active listener. Unsubscribe is idempotent; no new
// delivery starts after it returns, though one already running may finish.
type Subscription interface {
	Unsubscribe()
}

// Store is the read/write surface of the realtime store
type Store interface {
	// Subscribe installs fn on path. fn is called with the current value
	// once, then after every change affecting path.
	Subscribe(path string, fn Handler) (Subscription, error)
	// Get returns the current value at path
	Get(ctx context.Context, path string) (Snapshot, error)
	// Set writes value at path. Subscribers observe the write when the store echoes it back.
	Set(ctx context.Context, path string, value any) error
}

// SplitPath splits a path into its non-empty segments
func SplitPath(path string) []string {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// JoinPath joins segments with "/"
func JoinPath(segs ...string) string {
	return strings.Join(segs, "/")
}

// Normalize converts a Go value into the decoded-JSON form stored in the tree
func Normalize(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode value: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode value: %w", err)
	}
	return out, nil
}
