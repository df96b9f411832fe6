package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/davebream/rpswatch/internal/store"
)

// InspectLimit is how many of the newest records Inspect reads.
const InspectLimit = 200

// Node selects what Inspect reads.
type Node string

const (
	NodeSessions Node = "sessions"
	NodeEvents   Node = "events"
)

// Format selects how Inspect renders.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Inspect renders the newest raw records of an account node.
func (s *Service) Inspect(ctx context.Context, accountID string, node Node, format Format) ([]byte, error) {
	if accountID == "" {
		return nil, required("account", "account id is required")
	}
	var path string
	switch node {
	case NodeSessions:
		path = store.SessionsPath(accountID)
	case NodeEvents:
		path = store.EventsPath(accountID)
	default:
		return nil, &ValidationError{Field: "node", Message: fmt.Sprintf("unknown node %q (want sessions or events)", node)}
	}

	var raw map[string]any
	if _, err := s.store.Get(ctx, path, store.LastN(InspectLimit), &raw); err != nil {
		return nil, fmt.Errorf("load %s: %w", node, err)
	}
	if raw == nil {
		raw = map[string]any{}
	}

	switch format {
	case FormatJSON, "":
		out, err := json.MarshalIndent(raw, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(out, '\n'), nil
	case FormatYAML:
		return yaml.Marshal(raw)
	default:
		return nil, &ValidationError{Field: "format", Message: fmt.Sprintf("unknown format %q (want json or yaml)", format)}
	}
}
