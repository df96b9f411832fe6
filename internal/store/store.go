// Package store reads and writes path-addressed JSON nodes in a Firebase
// Realtime Database style tree. Writes are last-write-wins with no
// transactions; a Put of nil removes the node.
package store

import (
	"context"
	"net/url"
	"strconv"
	"strings"
)

// Store is the remote document tree. Get reports found=false for absent,
// null or malformed nodes.
type Store interface {
	Get(ctx context.Context, path string, q *Query, out any) (bool, error)
	Put(ctx context.Context, path string, value any) error
	Patch(ctx context.Context, path string, partial any) error
	Delete(ctx context.Context, path string) error
	Post(ctx context.Context, path string, value any) (string, error)
}

// Query narrows a Get on a collection node.
type Query struct {
	OrderByKey  bool
	LimitToLast int
	Shallow     bool
}

// LastN selects the N children with the greatest keys.
func LastN(n int) *Query {
	return &Query{OrderByKey: true, LimitToLast: n}
}

// ShallowKeys returns only the child keys of a node, each mapped to true.
func ShallowKeys() *Query {
	return &Query{Shallow: true}
}

func (q *Query) values() url.Values {
	v := url.Values{}
	if q == nil {
		return v
	}
	if q.OrderByKey {
		v.Set("orderBy", `"$key"`)
	}
	if q.LimitToLast > 0 {
		v.Set("limitToLast", strconv.Itoa(q.LimitToLast))
	}
	if q.Shallow {
		v.Set("shallow", "true")
	}
	return v
}

// Path joins segments into a store path, escaping each one.
func Path(segments ...string) string {
	escaped := make([]string, 0, len(segments))
	for _, s := range segments {
		if s == "" {
			continue
		}
		escaped = append(escaped, url.PathEscape(s))
	}
	return strings.Join(escaped, "/")
}

func splitPath(p string) []string {
	var out []string
	for _, seg := range strings.Split(strings.Trim(p, "/"), "/") {
		if seg == "" {
			continue
		}
		if u, err := url.PathUnescape(seg); err == nil {
			seg = u
		}
		out = append(out, seg)
	}
	return out
}

// Paths used by the rest of the module.

func AccountsPath() string { return "accounts" }

func AccountPath(accountID string) string { return Path("accounts", accountID) }

func AccountConfigPath(accountID string) string { return Path("accounts", accountID, "config") }

func CurrentUserPath(accountID string) string { return Path("accounts", accountID, "currentUser") }

func AccountStatePath(accountID string) string { return Path("accounts", accountID, "state") }

func SessionsPath(accountID string) string { return Path("accounts", accountID, "sessions") }

func SessionPath(accountID, sessionID string) string {
	return Path("accounts", accountID, "sessions", sessionID)
}

func EventsPath(accountID string) string { return Path("accounts", accountID, "events") }

func UsersPath() string { return "users" }

func UserPath(userID string) string { return Path("users", userID) }

func AdminsPath() string { return "admins" }

func AdminPath(userID string) string { return Path("admins", userID) }

func OnlinePath() string { return "extensionOnline" }

func OnlineUserPath(userID string) string { return Path("extensionOnline", userID) }
