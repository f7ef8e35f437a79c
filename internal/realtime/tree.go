package realtime

// Tree is a mutable JSON tree. It is not safe for concurrent use.
type Tree struct {
	root any
}

// Get returns a deep copy of the value at segs, or nil
func (t *Tree) Get(segs []string) any {
	node := t.root
	for _, s := range segs {
		m, ok := node.(map[string]any)
		if !ok {
			return nil
		}
		node = m[s]
	}
	return Clone(node)
}

// Set stores value at segs, creating parents. A nil value deletes the node
// and prunes parents left empty.
func (t *Tree) Set(segs []string, value any) {
	if len(segs) == 0 {
		t.root = value
		return
	}
	if value == nil {
		t.root = deleteAt(t.root, segs)
		return
	}
	root, ok := t.root.(map[string]any)
	if !ok {
		root = make(map[string]any)
		t.root = root
	}
	node := root
	for _, s := range segs[:len(segs)-1] {
		child, ok := node[s].(map[string]any)
		if !ok {
			child = make(map[string]any)
			node[s] = child
		}
		node = child
	}
	node[segs[len(segs)-1]] = value
}

func deleteAt(node any, segs []string) any {
	m, ok := node.(map[string]any)
	if !ok {
		return node
	}
	if len(segs) == 1 {
		delete(m, segs[0])
	} else if child, exists := m[segs[0]]; exists {
		next := deleteAt(child, segs[1:])
		if cm, ok := next.(map[string]any); ok && len(cm) == 0 {
			delete(m, segs[0])
		} else {
			m[segs[0]] = next
		}
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

// Related reports whether one path is a prefix of the other, i.e. a
// change at one is visible from the other
func Related(a, b []string) bool {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Clone deep-copies maps and slices of a decoded JSON value
func Clone(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, child := range x {
			out[k] = Clone(child)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, child := range x {
			out[i] = Clone(child)
		}
		return out
	}
	return v
}
