package devicestate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"syscall"

	"github.com/davebream/rpswatch/internal/config"
)

// File is a KV stored as one JSON object on disk. Every write rewrites the
// file atomically; the file is re-read on each access so edits from another
// process are picked up. The daemon and CLI processes share the file, so
// each access holds a flock on a sidecar lock file.
type File struct {
	mu   sync.Mutex
	path string
}

func OpenFile(path string) (*File, error) {
	f := &File{path: path}
	unlock, err := f.lock(syscall.LOCK_SH)
	if err != nil {
		return nil, err
	}
	defer unlock()
	if _, err := f.load(); err != nil {
		return nil, err
	}
	return f, nil
}

// lock takes the cross-process lock (shared for reads, exclusive for
// writes) and returns its release.
func (f *File) lock(how int) (func(), error) {
	lf, err := os.OpenFile(f.path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := syscall.Flock(int(lf.Fd()), how); err != nil {
		lf.Close()
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	return func() {
		syscall.Flock(int(lf.Fd()), syscall.LOCK_UN)
		lf.Close()
	}, nil
}

func (f *File) load() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	doc := map[string]json.RawMessage{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.path, err)
	}
	return doc, nil
}

func (f *File) save(doc map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	return config.AtomicWriteFile(f.path, append(data, '\n'), 0600)
}

func (f *File) Get(_ context.Context, key string, out any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	unlock, err := f.lock(syscall.LOCK_SH)
	if err != nil {
		return false, err
	}
	defer unlock()
	doc, err := f.load()
	if err != nil {
		return false, err
	}
	return decode(doc[key], out)
}

func (f *File) Set(ctx context.Context, key string, value any) error {
	return f.Update(ctx, key, func(json.RawMessage) (any, error) { return value, nil })
}

func (f *File) Remove(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	unlock, err := f.lock(syscall.LOCK_EX)
	if err != nil {
		return err
	}
	defer unlock()
	doc, err := f.load()
	if err != nil {
		return err
	}
	for _, k := range keys {
		delete(doc, k)
	}
	return f.save(doc)
}

func (f *File) Update(_ context.Context, key string, fn func(json.RawMessage) (any, error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	unlock, err := f.lock(syscall.LOCK_EX)
	if err != nil {
		return err
	}
	defer unlock()
	doc, err := f.load()
	if err != nil {
		return err
	}
	next, err := fn(doc[key])
	if err != nil {
		return err
	}
	data, err := encode(next)
	if err != nil {
		return err
	}
	doc[key] = data
	return f.save(doc)
}

func (f *File) Close() error { return nil }
