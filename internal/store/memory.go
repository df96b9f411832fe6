package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Op names a store operation for fault injection and call recording.
type Op string

const (
	OpGet    Op = "get"
	OpPut    Op = "put"
	OpPatch  Op = "patch"
	OpDelete Op = "delete"
	OpPost   Op = "post"
)

// Call is one recorded operation against a Memory store.
type Call struct {
	Op   Op
	Path string
}

// FaultFunc may fail an operation before it is applied.
type FaultFunc func(op Op, path string, q *Query) error

// Memory is an in-process Store with the same node semantics as the REST
// backend. Used by tests and by dry runs without a backend.
type Memory struct {
	mu    sync.Mutex
	root  map[string]any
	ids   *PushIDGenerator
	fault FaultFunc
	calls []Call
}

type MemoryOption func(*Memory)

// WithClock drives push key generation from now.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.ids = NewPushIDGenerator(now) }
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		root: map[string]any{},
		ids:  NewPushIDGenerator(nil),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// SetFault installs fn; nil clears it.
func (m *Memory) SetFault(fn FaultFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fault = fn
}

// Calls returns the operations applied so far, faulted ones included.
func (m *Memory) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// Raw returns a deep copy of the node at path, or nil.
func (m *Memory) Raw(path string) any {
	m.mu.Lock()
	defer m.mu.Unlock()
	node := m.lookup(splitPath(path))
	if node == nil {
		return nil
	}
	cp, _ := normalize(node)
	return cp
}

func (m *Memory) begin(op Op, path string, q *Query) error {
	m.calls = append(m.calls, Call{Op: op, Path: path})
	if m.fault != nil {
		return m.fault(op, path, q)
	}
	return nil
}

func (m *Memory) Get(ctx context.Context, path string, q *Query, out any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(OpGet, path, q); err != nil {
		return false, err
	}

	node := applyQuery(m.lookup(splitPath(path)), q)
	if node == nil {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	data, err := json.Marshal(node)
	if err != nil {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, nil
	}
	return true, nil
}

func (m *Memory) Put(ctx context.Context, path string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v, err := normalize(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(OpPut, path, nil); err != nil {
		return err
	}
	m.set(splitPath(path), v)
	return nil
}

func (m *Memory) Patch(ctx context.Context, path string, partial any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(partial)
	if err != nil {
		return fmt.Errorf("encode value: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return &HTTPError{Status: 400, Message: "patch body must be an object"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(OpPatch, path, nil); err != nil {
		return err
	}
	base := splitPath(path)
	for k, child := range fields {
		m.set(append(append([]string{}, base...), splitPath(k)...), prune(child))
	}
	return nil
}

func (m *Memory) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(OpDelete, path, nil); err != nil {
		return err
	}
	m.set(splitPath(path), nil)
	return nil
}

func (m *Memory) Post(ctx context.Context, path string, value any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, err := normalize(value)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(OpPost, path, nil); err != nil {
		return "", err
	}
	key := m.ids.Next()
	m.set(append(splitPath(path), key), v)
	return key, nil
}

func (m *Memory) lookup(segs []string) any {
	var node any = m.root
	for _, s := range segs {
		obj, ok := node.(map[string]any)
		if !ok {
			return nil
		}
		node, ok = obj[s]
		if !ok {
			return nil
		}
	}
	return node
}

func (m *Memory) set(segs []string, v any) {
	if len(segs) == 0 {
		if obj, ok := v.(map[string]any); ok {
			m.root = obj
		} else {
			m.root = map[string]any{}
		}
		return
	}
	if v == nil {
		m.remove(m.root, segs)
		return
	}
	node := m.root
	for _, s := range segs[:len(segs)-1] {
		child, ok := node[s].(map[string]any)
		if !ok {
			child = map[string]any{}
			node[s] = child
		}
		node = child
	}
	node[segs[len(segs)-1]] = v
}

// remove deletes the leaf and prunes parents left empty. It reports whether
// node itself became empty.
func (m *Memory) remove(node map[string]any, segs []string) bool {
	if len(segs) == 1 {
		delete(node, segs[0])
		return len(node) == 0
	}
	child, ok := node[segs[0]].(map[string]any)
	if !ok {
		return len(node) == 0
	}
	if m.remove(child, segs[1:]) {
		delete(node, segs[0])
	}
	return len(node) == 0
}

func applyQuery(node any, q *Query) any {
	obj, ok := node.(map[string]any)
	if !ok || q == nil {
		return node
	}
	if q.Shallow {
		keys := make(map[string]any, len(obj))
		for k := range obj {
			keys[k] = true
		}
		return keys
	}
	if q.LimitToLast > 0 && len(obj) > q.LimitToLast {
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		keep := make(map[string]any, q.LimitToLast)
		for _, k := range keys[len(keys)-q.LimitToLast:] {
			keep[k] = obj[k]
		}
		return keep
	}
	return obj
}

// normalize round-trips v through JSON so the tree only holds decoded
// values. JSON null becomes nil.
func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return prune(out), nil
}

// prune drops null children and empty objects, which the backend never
// stores.
func prune(v any) any {
	obj, ok := v.(map[string]any)
	if !ok {
		return v
	}
	for k, child := range obj {
		if c := prune(child); c == nil {
			delete(obj, k)
		} else {
			obj[k] = c
		}
	}
	if len(obj) == 0 {
		return nil
	}
	return obj
}
