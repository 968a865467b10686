package ipc

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// socketPath keeps the path short enough for sun_path.
func socketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "sp")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "s.sock")
}

type recordingHandler struct {
	mu       sync.Mutex
	received []string
}

func (h *recordingHandler) Handle(command string) (string, error) {
	h.mu.Lock()
	h.received = append(h.received, command)
	h.mu.Unlock()

	switch command {
	case CmdStatus:
		return "text=\"12:30\"", nil
	case CmdRefresh, CmdShow, CmdHide:
		return "", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}
}

func (h *recordingHandler) commands() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.received...)
}

func startServer(t *testing.T, h Handler) *Server {
	t.Helper()
	s := NewServer(socketPath(t), h, nil)
	require.NoError(t, s.Start())
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func TestSendAndReply(t *testing.T) {
	h := &recordingHandler{}
	s := startServer(t, h)

	reply, err := Send(s.SocketPath(), CmdStatus)
	require.NoError(t, err)
	assert.Equal(t, "text=\"12:30\"", reply)

	reply, err = Send(s.SocketPath(), CmdRefresh)
	require.NoError(t, err)
	assert.Empty(t, reply)

	assert.Equal(t, []string{CmdStatus, CmdRefresh}, h.commands())
}

func TestHandlerErrorBecomesClientError(t *testing.T) {
	s := startServer(t, &recordingHandler{})

	_, err := Send(s.SocketPath(), "explode")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestMultilineRepliesAreFlattened(t *testing.T) {
	s := startServer(t, HandlerFunc(func(string) (string, error) {
		return "", errors.New("line one\nline two")
	}))

	_, err := Send(s.SocketPath(), CmdStatus)
	require.Error(t, err)
	assert.Equal(t, "line one line two", err.Error())
}

func TestStartReplacesStaleSocket(t *testing.T) {
	path := socketPath(t)
	require.NoError(t, os.WriteFile(path, nil, 0600))

	s := NewServer(path, &recordingHandler{}, nil)
	require.NoError(t, s.Start())
	t.Cleanup(func() { _ = s.Stop() })

	_, err := Send(path, CmdShow)
	assert.NoError(t, err)
}

func TestDoubleStart(t *testing.T) {
	s := startServer(t, &recordingHandler{})
	assert.ErrorIs(t, s.Start(), ErrServerAlreadyRunning)
}

func TestStopRemovesSocket(t *testing.T) {
	s := NewServer(socketPath(t), &recordingHandler{}, nil)
	require.NoError(t, s.Start())
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())

	assert.NoFileExists(t, s.SocketPath())
	_, err := Send(s.SocketPath(), CmdStatus)
	assert.Error(t, err)
}

func TestSendRejectsMalformedReply(t *testing.T) {
	path := socketPath(t)
	listener, err := net.Listen("unix", path)
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 64)
		conn.Read(buf)
		conn.Write([]byte("what\n"))
	}()

	_, err = Send(path, CmdStatus)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed reply")
}

func TestDefaultSocketPath(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	assert.Equal(t, "/run/user/1000/shellpanel.sock", DefaultSocketPath())

	t.Setenv("XDG_RUNTIME_DIR", "")
	assert.Equal(t, filepath.Join(os.TempDir(), fmt.Sprintf("shellpanel-%d.sock", os.Getuid())), DefaultSocketPath())
}
