// Package ipc is the newline-delimited JSON protocol between the CLI and the
// daemon. Each connection carries one request line and one response line.
package ipc

import (
	"fmt"

	"github.com/google/uuid"
)

// Version is the protocol version both ends must agree on.
const Version = 1

const (
	ActionEnsurePresence  = "ensurePresence"
	ActionWriteOnline     = "writeExtensionOnlineNow"
	ActionRemoveOnline    = "removeExtensionOnline"
	ActionSessionConflict = "sessionConflictDetected"
	ActionAccountInfo     = "getAccountInfo"
	ActionStatus          = "status"
	ActionLogin           = "login"
	ActionLogout          = "logout"
)

var knownActions = map[string]bool{
	ActionEnsurePresence:  true,
	ActionWriteOnline:     true,
	ActionRemoveOnline:    true,
	ActionSessionConflict: true,
	ActionAccountInfo:     true,
	ActionStatus:          true,
	ActionLogin:           true,
	ActionLogout:          true,
}

// Error codes carried in Response.Code.
const (
	CodeInvalidRequest = "invalid_request"
	CodeProtocol       = "protocol_error"
	CodeUnknownAction  = "unknown_action"
	CodeFailed         = "failed"
	CodeShuttingDown   = "shutting_down"
)

type Request struct {
	V      int    `json:"v"`
	ID     string `json:"id,omitempty"`
	Action string `json:"action"`
	UserID string `json:"userId,omitempty"`
}

// NewRequest stamps a fresh request id.
func NewRequest(action, userID string) *Request {
	return &Request{
		V:      Version,
		ID:     uuid.New().String(),
		Action: action,
		UserID: userID,
	}
}

type Response struct {
	V     int    `json:"v"`
	ID    string `json:"id,omitempty"`
	OK    bool   `json:"ok"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
	Email string `json:"email,omitempty"`
	PID   int    `json:"pid,omitempty"`
}

func NewOKResponse(id string) *Response {
	return &Response{V: Version, ID: id, OK: true}
}

func NewErrorResponse(id, code, message string) *Response {
	return &Response{V: Version, ID: id, Code: code, Error: message}
}

// ValidateRequest checks the version and the action. It returns the error
// code to send back along with the error.
func ValidateRequest(req *Request) (string, error) {
	if req.V != Version {
		return CodeProtocol, fmt.Errorf(
			"protocol version mismatch: daemon is v%d, client is v%d. Run `rpswatch restart` and retry",
			Version, req.V,
		)
	}
	if req.Action == "" {
		return CodeInvalidRequest, fmt.Errorf("action is required")
	}
	if !knownActions[req.Action] {
		return CodeUnknownAction, fmt.Errorf("unknown action %q", req.Action)
	}
	if req.Action == ActionRemoveOnline && req.UserID == "" {
		return CodeInvalidRequest, fmt.Errorf("%s requires userId", ActionRemoveOnline)
	}
	return "", nil
}

// RemoteError is a failure reported by the daemon.
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
