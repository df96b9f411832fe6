package store

import (
	"context"
	"sync/atomic"
)

// Switch forwards to a Store that can be replaced at runtime, for example
// when the backend URL changes in the config file. With no target every call
// fails with ErrNotConfigured.
type Switch struct {
	target atomic.Pointer[holder]
}

type holder struct{ s Store }

func NewSwitch(s Store) *Switch {
	sw := &Switch{}
	sw.Set(s)
	return sw
}

// Set replaces the target; nil unconfigures.
func (sw *Switch) Set(s Store) {
	sw.target.Store(&holder{s: s})
}

func (sw *Switch) current() (Store, error) {
	h := sw.target.Load()
	if h == nil || h.s == nil {
		return nil, ErrNotConfigured
	}
	return h.s, nil
}

func (sw *Switch) Get(ctx context.Context, path string, q *Query, out any) (bool, error) {
	s, err := sw.current()
	if err != nil {
		return false, err
	}
	return s.Get(ctx, path, q, out)
}

func (sw *Switch) Put(ctx context.Context, path string, value any) error {
	s, err := sw.current()
	if err != nil {
		return err
	}
	return s.Put(ctx, path, value)
}

func (sw *Switch) Patch(ctx context.Context, path string, partial any) error {
	s, err := sw.current()
	if err != nil {
		return err
	}
	return s.Patch(ctx, path, partial)
}

func (sw *Switch) Delete(ctx context.Context, path string) error {
	s, err := sw.current()
	if err != nil {
		return err
	}
	return s.Delete(ctx, path)
}

func (sw *Switch) Post(ctx context.Context, path string, value any) (string, error) {
	s, err := sw.current()
	if err != nil {
		return "", err
	}
	return s.Post(ctx, path, value)
}
