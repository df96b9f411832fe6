package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScrubSecrets(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"password field", "password: hunter2", "[REDACTED]"},
		{"password json", `{"username":"ana","password":"hunter2"}`, `{"username":"ana",[REDACTED]}`},
		{"bearer token", "Bearer eyJhbGciOiJ", "[REDACTED]"},
		{"auth cookie", "cookie li_at=AQEDAR1234; JSESSIONID=x", "cookie [REDACTED]; JSESSIONID=x"},
		{"auth query", "GET /users.json?auth=abc123", "GET /users.json[REDACTED]"},
		{"no secret", "hello world", "hello world"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScrubSecrets(tt.input))
		})
	}
}

func TestRotatingWriter(t *testing.T) {
	t.Run("creates log file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "test.log")

		rw, err := NewRotatingWriter(path, 1024, 24*time.Hour)
		require.NoError(t, err)
		defer rw.Close()

		n, err := rw.Write([]byte("hello\n"))
		require.NoError(t, err)
		assert.Equal(t, 6, n)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "hello\n", string(data))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	})

	t.Run("shifts backups on rotation", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "test.log")

		rw, err := NewRotatingWriter(path, 20, 24*time.Hour)
		require.NoError(t, err)
		defer rw.Close()

		rw.Write([]byte("first-line-xxxxxxx\n"))
		rw.Write([]byte("second-line-xxxxxx\n"))
		rw.Write([]byte("third-line-xxxxxxx\n"))

		one, err := os.ReadFile(path + ".1")
		require.NoError(t, err)
		assert.Contains(t, string(one), "second-line")

		two, err := os.ReadFile(path + ".2")
		require.NoError(t, err)
		assert.Contains(t, string(two), "first-line")

		cur, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(cur), "third-line")
	})

	t.Run("prunes aged and excess backups", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "test.log")

		aged := path + ".1"
		require.NoError(t, os.WriteFile(aged, []byte("old"), 0600))
		old := time.Now().Add(-10 * 24 * time.Hour)
		require.NoError(t, os.Chtimes(aged, old, old))

		excess := path + ".9"
		require.NoError(t, os.WriteFile(excess, []byte("x"), 0600))

		rw := &RotatingWriter{path: path, maxAge: 7 * 24 * time.Hour, maxBackups: 3}
		rw.prune()

		_, err := os.Stat(aged)
		assert.True(t, os.IsNotExist(err), "aged backup removed")
		_, err = os.Stat(excess)
		assert.True(t, os.IsNotExist(err), "backup past the limit removed")
	})
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestScrubbingHandler(t *testing.T) {
	t.Run("scrubs message", func(t *testing.T) {
		var buf bytes.Buffer
		New(&buf, slog.LevelDebug).Info("password=hunter2")
		assert.Equal(t, "[REDACTED]", decodeLine(t, &buf)["msg"])
	})

	t.Run("scrubs string and error attributes", func(t *testing.T) {
		var buf bytes.Buffer
		New(&buf, slog.LevelDebug).Info("login failed",
			"body", `{"password":"hunter2"}`,
			"error", errors.New("rejected token=abc"))
		entry := decodeLine(t, &buf)
		assert.Equal(t, "{[REDACTED]}", entry["body"])
		assert.Equal(t, "rejected [REDACTED]", entry["error"])
	})

	t.Run("scrubs groups", func(t *testing.T) {
		var buf bytes.Buffer
		New(&buf, slog.LevelDebug).Info("req", slog.Group("cookie", "raw", "li_at=secret"))
		entry := decodeLine(t, &buf)
		assert.Equal(t, map[string]any{"raw": "[REDACTED]"}, entry["cookie"])
	})

	t.Run("preserves non-secret attributes", func(t *testing.T) {
		var buf bytes.Buffer
		New(&buf, slog.LevelDebug).Info("status resolved", "status", "logged_in", "tabs", 2)
		entry := decodeLine(t, &buf)
		assert.Equal(t, "status resolved", entry["msg"])
		assert.Equal(t, float64(2), entry["tabs"])
	})

	t.Run("WithAttrs scrubs", func(t *testing.T) {
		var buf bytes.Buffer
		New(&buf, slog.LevelDebug).With("env", "password: hunter2").Info("test")
		assert.Equal(t, "[REDACTED]", decodeLine(t, &buf)["env"])
	})
}

func TestSetup(t *testing.T) {
	dir := t.TempDir()
	level := new(slog.LevelVar)

	logger, cleanup, err := Setup(dir, level, false)
	require.NoError(t, err)
	defer cleanup()

	logger.Debug("hidden")
	level.Set(slog.LevelDebug)
	logger.Debug("visible after level change")

	data, err := os.ReadFile(filepath.Join(dir, "daemon.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "visible after level change")
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	Component(New(&buf, slog.LevelInfo), "reconciler").Info("started")
	assert.Equal(t, "reconciler", decodeLine(t, &buf)["component"])
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo)
	ctx := WithContext(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
	assert.Same(t, slog.Default(), FromContext(context.Background()))
}
