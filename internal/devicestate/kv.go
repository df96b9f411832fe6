// Package devicestate persists per-device state in two scopes: a sync scope
// (a JSON file holding settings meant to follow the user) and a local scope
// (a SQLite table holding history and the session pointer).
package devicestate

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// KV is one storage scope. Values are JSON documents keyed by name.
type KV interface {
	// Get decodes the value into out; found is false for absent keys.
	Get(ctx context.Context, key string, out any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Remove(ctx context.Context, keys ...string) error
	// Update runs fn on the current raw value (nil when absent) and stores
	// its result atomically with respect to other KV calls.
	Update(ctx context.Context, key string, fn func(raw json.RawMessage) (any, error)) error
	Close() error
}

// Memory is a KV held in process memory.
type Memory struct {
	mu   sync.Mutex
	data map[string]json.RawMessage
}

func NewMemory() *Memory {
	return &Memory{data: map[string]json.RawMessage{}}
}

func (m *Memory) Get(_ context.Context, key string, out any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return decode(m.data[key], out)
}

func (m *Memory) Set(_ context.Context, key string, value any) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = data
	return nil
}

func (m *Memory) Remove(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *Memory) Update(_ context.Context, key string, fn func(json.RawMessage) (any, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := fn(m.data[key])
	if err != nil {
		return err
	}
	data, err := encode(next)
	if err != nil {
		return err
	}
	m.data[key] = data
	return nil
}

func (m *Memory) Close() error { return nil }

func encode(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode state value: %w", err)
	}
	return data, nil
}

func decode(raw json.RawMessage, out any) (bool, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode state value: %w", err)
	}
	return true, nil
}
