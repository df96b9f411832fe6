package daemon

import (
	"context"
	"log/slog"
	"strings"

	"github.com/davebream/rpswatch/internal/config"
	"github.com/davebream/rpswatch/internal/devicestate"
	"github.com/davebream/rpswatch/internal/logging"
	"github.com/davebream/rpswatch/internal/store"
)

// MemoryBackend selects an in-process store for dry runs.
const MemoryBackend = "memory"

// ResolveBackendURL prefers the URL saved in device state over the config
// file.
func ResolveBackendURL(ctx context.Context, cfg *config.Config, state *devicestate.State) string {
	if state != nil {
		if u, err := state.BackendURL(ctx); err == nil && strings.TrimSpace(u) != "" {
			return u
		}
	}
	if cfg == nil {
		return ""
	}
	return cfg.BackendURL
}

// OpenStore returns the store for url. An empty or placeholder URL yields
// store.ErrNotConfigured.
func OpenStore(url string, logger *slog.Logger) (store.Store, error) {
	if strings.TrimSpace(url) == MemoryBackend {
		return store.NewMemory(), nil
	}
	return store.NewClient(url, store.WithLogger(logging.Component(logger, "store")))
}
