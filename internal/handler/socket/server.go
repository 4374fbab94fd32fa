package socket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

const maxAcceptBackoff = time.Second

// Listen creates a unix stream listener at path with the given permissions.
// A stale socket left at path is removed first; any other file is left alone.
func Listen(path string, mode os.FileMode) (*net.UnixListener, error) {
	if fi, err := os.Lstat(path); err == nil {
		if fi.Mode()&os.ModeSocket == 0 {
			return nil, fmt.Errorf("%s exists and is not a socket", path)
		}
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}

	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", path, err)
	}
	if err := os.Chmod(path, mode); err != nil {
		slog.Warn("failed to set socket permissions", "path", path, "mode", mode.String(), "error", err)
	}
	return ln, nil
}

// Server accepts connections and runs each through a Handler in its own
// goroutine, up to a fixed number at a time.
type Server struct {
	handler *Handler
	sem     *semaphore.Weighted

	mu      sync.Mutex
	ln      net.Listener
	closing bool
	wg      sync.WaitGroup
}

// NewServer creates a server that handles at most maxConns connections at once.
func NewServer(handler *Handler, maxConns int) *Server {
	if maxConns <= 0 {
		maxConns = 64
	}
	return &Server{handler: handler, sem: semaphore.NewWeighted(int64(maxConns))}
}

// Serve accepts connections on ln until ln is closed or ctx is done.
// Accept errors are logged and retried with backoff. If Shutdown already ran,
// ln is closed and Serve returns immediately.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		ln.Close()
		return nil
	}
	s.ln = ln
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else {
				backoff = min(2*backoff, maxAcceptBackoff)
			}
			slog.Error("accept failed", "error", err, "retry_in", backoff.String())
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		if err := s.sem.Acquire(ctx, 1); err != nil {
			conn.Close()
			return nil
		}
		s.wg.Add(1)
		go s.serveConn(ctx, conn)
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer s.sem.Release(1)
	defer conn.Close()

	s.handler.metrics.ConnOpened()
	defer s.handler.metrics.ConnClosed()

	logger := slog.With("conn_id", uuid.NewString())
	// In-flight requests finish even after shutdown starts; Shutdown bounds the wait.
	s.handler.Serve(context.WithoutCancel(ctx), conn, logger)
}

// Shutdown closes the listener and waits for in-flight connections until
// ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	ln := s.ln
	s.mu.Unlock()

	var closeErr error
	if ln != nil {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			closeErr = err
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return closeErr
	case <-ctx.Done():
		return fmt.Errorf("connections still in flight: %w", ctx.Err())
	}
}
