package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/davebream/rpswatch/internal/config"
)

// Handler answers one request. A nil response is reported as a failure.
type Handler interface {
	Handle(ctx context.Context, req *Request) *Response
}

type HandlerFunc func(ctx context.Context, req *Request) *Response

func (f HandlerFunc) Handle(ctx context.Context, req *Request) *Response {
	return f(ctx, req)
}

// RequestTimeout bounds reading the request and handling it.
const RequestTimeout = 30 * time.Second

type Server struct {
	socketPath string
	handler    Handler
	logger     *slog.Logger
	listener   net.Listener
	wg         sync.WaitGroup
}

func NewServer(socketPath string, h Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{socketPath: socketPath, handler: h, logger: logger}
}

// Listen binds the socket. The socket directory must not be accessible to
// other users, and a socket that still accepts connections is left alone.
func (s *Server) Listen() error {
	socketDir := filepath.Dir(s.socketPath)
	if err := config.EnsureDir(socketDir, 0700); err != nil {
		return fmt.Errorf("create socket dir: %w", err)
	}
	dirInfo, err := os.Stat(socketDir)
	if err != nil {
		return fmt.Errorf("stat socket dir: %w", err)
	}
	if perm := dirInfo.Mode().Perm(); perm&0077 != 0 {
		return fmt.Errorf("socket directory %s has insecure permissions %o (expected 0700)", socketDir, perm)
	}

	if conn, err := net.DialTimeout("unix", s.socketPath, 200*time.Millisecond); err == nil {
		conn.Close()
		return fmt.Errorf("another daemon is already listening on %s", s.socketPath)
	}
	os.Remove(s.socketPath)

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		ln.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}
	s.listener = ln
	return nil
}

// Serve accepts connections until ctx is done, then waits for in-flight
// requests and removes the socket.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("ipc: Serve called before Listen")
	}
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()
				os.Remove(s.socketPath)
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			s.logger.Error("accept error", "error", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}
}

func (s *Server) handleConnection(ctx context.Context, raw net.Conn) {
	conn := NewConn(raw)
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(RequestTimeout))

	var req Request
	if err := conn.ReadJSON(&req); err != nil {
		if !errors.Is(err, net.ErrClosed) {
			conn.WriteJSON(NewErrorResponse("", CodeInvalidRequest, "invalid request JSON"))
		}
		return
	}
	if code, err := ValidateRequest(&req); err != nil {
		s.logger.Debug("rejected request", "action", req.Action, "code", code, "error", err)
		conn.WriteJSON(NewErrorResponse(req.ID, code, err.Error()))
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()
	resp := s.handler.Handle(reqCtx, &req)
	if resp == nil {
		resp = NewErrorResponse(req.ID, CodeFailed, "no response")
	}
	resp.V = Version
	resp.ID = req.ID
	if err := conn.WriteJSON(resp); err != nil {
		s.logger.Debug("write response failed", "action", req.Action, "error", err)
		return
	}
	s.logger.Debug("request handled", "action", req.Action, "ok", resp.OK)
}
