package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// secretPatterns matches credentials that can reach a log line: plaintext
// extension passwords, the LinkedIn auth cookie and database auth tokens.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)"password"\s*:\s*"[^"]*"`),
	regexp.MustCompile(`(?i)(password|passwd|secret|token|authorization)\s*[:=]\s*\S+`),
	regexp.MustCompile(`(?i)bearer\s+\S+`),
	regexp.MustCompile(`li_at=[^;\s]+`),
	regexp.MustCompile(`([?&](auth|access_token)=)[^&\s]+`),
}

const redactedPlaceholder = "[REDACTED]"

// ScrubSecrets replaces known secret patterns in a string.
func ScrubSecrets(s string) string {
	for _, pat := range secretPatterns {
		s = pat.ReplaceAllString(s, redactedPlaceholder)
	}
	return s
}

const (
	logFileName = "daemon.log"
	maxLogBytes = 10 * 1024 * 1024
	maxLogAge   = 7 * 24 * time.Hour
	maxBackups  = 3
)

// RotatingWriter appends to a log file and shifts it to .1, .2, ... once it
// would exceed maxBytes. Backups past maxBackups or older than maxAge are
// removed.
type RotatingWriter struct {
	mu         sync.Mutex
	path       string
	maxBytes   int64
	maxAge     time.Duration
	maxBackups int
	file       *os.File
	size       int64
}

func NewRotatingWriter(path string, maxBytes int64, maxAge time.Duration) (*RotatingWriter, error) {
	rw := &RotatingWriter{
		path:       path,
		maxBytes:   maxBytes,
		maxAge:     maxAge,
		maxBackups: maxBackups,
	}
	if err := rw.open(); err != nil {
		return nil, err
	}
	return rw, nil
}

func (rw *RotatingWriter) open() error {
	f, err := os.OpenFile(rw.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	rw.file = f
	rw.size = info.Size()
	return nil
}

func (rw *RotatingWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.size > 0 && rw.size+int64(len(p)) > rw.maxBytes {
		// Keep writing to the current file if rotation fails.
		_ = rw.rotate()
	}

	n, err := rw.file.Write(p)
	rw.size += int64(n)
	return n, err
}

func (rw *RotatingWriter) backup(n int) string {
	return fmt.Sprintf("%s.%d", rw.path, n)
}

func (rw *RotatingWriter) rotate() error {
	rw.file.Close()

	for i := rw.maxBackups - 1; i >= 1; i-- {
		os.Rename(rw.backup(i), rw.backup(i+1))
	}
	if err := os.Rename(rw.path, rw.backup(1)); err != nil {
		f, openErr := os.OpenFile(rw.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if openErr != nil {
			return fmt.Errorf("rotate: rename failed (%v), truncate also failed: %w", err, openErr)
		}
		rw.file = f
		rw.size = 0
		return fmt.Errorf("rotate rename: %w", err)
	}

	if err := rw.open(); err != nil {
		return err
	}
	go rw.prune()
	return nil
}

func (rw *RotatingWriter) prune() {
	dir := filepath.Dir(rw.path)
	base := filepath.Base(rw.path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-rw.maxAge)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, base+".") {
			continue
		}
		var n int
		if _, err := fmt.Sscanf(strings.TrimPrefix(name, base+"."), "%d", &n); err == nil && n > rw.maxBackups {
			os.Remove(filepath.Join(dir, name))
			continue
		}
		if info, err := entry.Info(); err == nil && info.ModTime().Before(cutoff) {
			os.Remove(filepath.Join(dir, name))
		}
	}
}

func (rw *RotatingWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.file != nil {
		return rw.file.Close()
	}
	return nil
}

// ScrubbingHandler wraps a slog.Handler and scrubs secrets from the message
// and from string attributes, including those nested in groups.
type ScrubbingHandler struct {
	inner slog.Handler
}

func NewScrubbingHandler(inner slog.Handler) *ScrubbingHandler {
	return &ScrubbingHandler{inner: inner}
}

func (h *ScrubbingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ScrubbingHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, ScrubSecrets(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(scrubAttr(a))
		return true
	})
	return h.inner.Handle(ctx, out)
}

func (h *ScrubbingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	scrubbed := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		scrubbed[i] = scrubAttr(a)
	}
	return &ScrubbingHandler{inner: h.inner.WithAttrs(scrubbed)}
}

func (h *ScrubbingHandler) WithGroup(name string) slog.Handler {
	return &ScrubbingHandler{inner: h.inner.WithGroup(name)}
}

func scrubAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()
	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, ScrubSecrets(a.Value.String()))
	case slog.KindGroup:
		group := a.Value.Group()
		scrubbed := make([]any, len(group))
		for i, ga := range group {
			scrubbed[i] = scrubAttr(ga)
		}
		return slog.Group(a.Key, scrubbed...)
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			return slog.String(a.Key, ScrubSecrets(err.Error()))
		}
	}
	return a
}

// Setup creates the daemon logger: JSON lines, secret-scrubbed, written to a
// rotating daemon.log in logDir and optionally mirrored to stderr. level may
// be changed later to apply a config reload. The returned cleanup closes the
// log file.
func Setup(logDir string, level *slog.LevelVar, alsoStderr bool) (*slog.Logger, func(), error) {
	rw, err := NewRotatingWriter(filepath.Join(logDir, logFileName), maxLogBytes, maxLogAge)
	if err != nil {
		return nil, nil, fmt.Errorf("setup logging: %w", err)
	}

	var w io.Writer = rw
	if alsoStderr {
		w = io.MultiWriter(rw, os.Stderr)
	}
	return New(w, level), func() { rw.Close() }, nil
}

// New builds a scrubbing JSON logger on w.
func New(w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(NewScrubbingHandler(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// Component creates a child logger tagged with a component name.
func Component(parent *slog.Logger, name string) *slog.Logger {
	if parent == nil {
		parent = slog.Default()
	}
	return parent.With("component", name)
}

type ctxKey struct{}

// WithContext stores logger in ctx.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger stored in ctx, or slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}
