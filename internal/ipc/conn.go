package ipc

import (
	"bufio"
	"encoding/json"
	"net"
	"sync"
)

// maxLine bounds a single message.
const maxLine = 1024 * 1024

// Conn frames JSON values as lines over a socket connection.
type Conn struct {
	net.Conn
	scanner *bufio.Scanner
	mu      sync.Mutex
}

func NewConn(c net.Conn) *Conn {
	scanner := bufio.NewScanner(c)
	scanner.Buffer(make([]byte, 0, 4096), maxLine)
	return &Conn{Conn: c, scanner: scanner}
}

func (c *Conn) ReadLine() ([]byte, error) {
	if c.scanner.Scan() {
		// scanner.Bytes() is invalidated on the next Scan
		line := c.scanner.Bytes()
		out := make([]byte, len(line))
		copy(out, line)
		return out, nil
	}
	if err := c.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, net.ErrClosed
}

func (c *Conn) ReadJSON(v any) error {
	line, err := c.ReadLine()
	if err != nil {
		return err
	}
	return json.Unmarshal(line, v)
}

func (c *Conn) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = c.Write(append(data, '\n'))
	return err
}
