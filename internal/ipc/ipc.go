// Package ipc is the panel's control socket: a Unix socket that accepts one
// line-oriented command per connection and answers with one line.
package ipc

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Commands understood by the panel.
const (
	CmdRefresh = "refresh"
	CmdShow    = "show"
	CmdHide    = "hide"
	CmdStatus  = "status"
)

const (
	replyOK    = "ok"
	replyError = "error"

	ioTimeout = 5 * time.Second
)

var (
	ErrServerAlreadyRunning = errors.New("IPC server already running")
	ErrUnknownCommand       = errors.New("unknown command")
)

// Handler executes a command and returns the reply text.
type Handler interface {
	Handle(command string) (string, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(command string) (string, error)

// Handle calls f.
func (f HandlerFunc) Handle(command string) (string, error) {
	return f(command)
}

// DefaultSocketPath prefers $XDG_RUNTIME_DIR and falls back to a per-user
// path in /tmp.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "shellpanel.sock")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("shellpanel-%d.sock", os.Getuid()))
}

// Server accepts control connections.
type Server struct {
	socketPath string
	handler    Handler
	logger     *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	running  bool
	wg       sync.WaitGroup
}

// NewServer creates a stopped server.
func NewServer(socketPath string, handler Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		socketPath: socketPath,
		handler:    handler,
		logger:     logger.With("component", "ipc"),
	}
}

// SocketPath returns the path the server listens on.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Start listens on the socket, replacing a stale socket file.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrServerAlreadyRunning
	}

	if _, err := os.Stat(s.socketPath); err == nil {
		os.Remove(s.socketPath)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create socket listener: %w", err)
	}

	s.listener = listener
	s.running = true

	s.wg.Add(1)
	go s.acceptConnections(listener)

	s.logger.Info("IPC server listening", "socket", s.socketPath)
	return nil
}

func (s *Server) acceptConnections(listener net.Listener) {
	defer s.wg.Done()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.isRunning() {
				s.logger.Warn("error accepting connection", "error", err)
				continue
			}
			return
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(ioTimeout))

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && line == "" {
		s.logger.Warn("error reading from connection", "error", err)
		return
	}

	command := strings.TrimSpace(line)
	if command == "" {
		return
	}
	s.logger.Debug("received IPC message", "command", command)

	reply, err := s.handler.Handle(command)
	if err != nil {
		fmt.Fprintf(conn, "%s %s\n", replyError, oneLine(err.Error()))
		return
	}
	fmt.Fprintf(conn, "%s %s\n", replyOK, oneLine(reply))
}

func (s *Server) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stop closes the listener, waits for open connections and removes the
// socket file.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	err := s.listener.Close()
	s.mu.Unlock()

	s.wg.Wait()

	if _, statErr := os.Stat(s.socketPath); statErr == nil {
		os.Remove(s.socketPath)
	}

	s.logger.Info("IPC server stopped")
	return err
}

// Send delivers one command and returns the reply text. A reply starting
// with "error" is returned as an error.
func Send(socketPath, command string) (string, error) {
	conn, err := net.DialTimeout("unix", socketPath, ioTimeout)
	if err != nil {
		return "", fmt.Errorf("failed to connect to shellpanel socket: %w", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(ioTimeout))

	if _, err := fmt.Fprintf(conn, "%s\n", command); err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read reply: %w", err)
	}
	line = strings.TrimRight(line, "\n")

	status, text, _ := strings.Cut(line, " ")
	switch status {
	case replyOK:
		return text, nil
	case replyError:
		return "", errors.New(text)
	default:
		return "", fmt.Errorf("malformed reply %q", line)
	}
}

func oneLine(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}
