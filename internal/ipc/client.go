package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrDaemonNotRunning means nothing accepted the connection.
var ErrDaemonNotRunning = errors.New("daemon is not running")

const DefaultTimeout = 10 * time.Second

type Client struct {
	socketPath string
	timeout    time.Duration
}

func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath, timeout: DefaultTimeout}
}

// WithTimeout returns a copy of c with a different per-request timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	cp := *c
	cp.timeout = d
	return &cp
}

// Send writes req and reads one response. A failed dial is reported as
// ErrDaemonNotRunning; a response with ok=false is returned as is.
func (c *Client) Send(ctx context.Context, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var d net.Dialer
	raw, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDaemonNotRunning, err)
	}
	conn := NewConn(raw)
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if err := conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("send %s: %w", req.Action, err)
	}
	var resp Response
	if err := conn.ReadJSON(&resp); err != nil {
		return nil, fmt.Errorf("read %s response: %w", req.Action, err)
	}
	return &resp, nil
}

// Call sends action and turns a failed response into a *RemoteError.
func (c *Client) Call(ctx context.Context, action, userID string) (*Response, error) {
	resp, err := c.Send(ctx, NewRequest(action, userID))
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return resp, &RemoteError{Code: resp.Code, Message: resp.Error}
	}
	return resp, nil
}

// Running reports whether a daemon accepts connections on socketPath.
func Running(socketPath string) bool {
	conn, err := net.DialTimeout("unix", socketPath, 500*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
