package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gonzalop/miniftp/internal/workerpool"
)

// Server is the FTP server.
//
// A single dispatcher goroutine accepts control connections and hands each
// one to a fixed pool of workers. A worker runs one session to completion,
// so at most Workers sessions execute at a time; the rest wait in the
// pool's queue.
//
// Lifecycle:
//  1. Create server with NewServer()
//  2. Start with ListenAndServe() or Serve()
//  3. Call Shutdown() from another goroutine to stop
//
// Basic example:
//
//	s, err := server.NewServer(":2121", server.WithRootDir("/srv/ftp"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go func() {
//	    <-ctx.Done()
//	    s.Shutdown(context.Background())
//	}()
//	if err := s.ListenAndServe(); !errors.Is(err, server.ErrServerClosed) {
//	    log.Fatal(err)
//	}
type Server struct {
	// addr is the TCP address to listen on (e.g., ":2121").
	addr string

	// rootDir is the absolute directory every session starts in.
	rootDir string

	logger  *slog.Logger
	metrics MetricsCollector

	// workers is the size of the session worker pool.
	workers int

	// pollInterval bounds every blocking accept and control read so that
	// shutdown and idle expiry are noticed.
	pollInterval time.Duration

	// maxIdleTime closes control connections idle for longer. Zero disables it.
	maxIdleTime time.Duration

	// maxPending rejects connections when this many sessions are queued.
	// Zero means unbounded.
	maxPending int

	// bandwidthLimit caps each RETR in bytes per second. Zero disables it.
	bandwidthLimit int64

	passive         passiveConfig
	nextPassivePort atomic.Int32

	reg *registry

	mu       sync.Mutex
	listener net.Listener
	pool     *workerpool.Pool
	done     chan struct{}

	// closePoller releases the dispatcher's readiness poller, when it has one.
	closePoller func()
}

// ErrServerClosed is returned by the Server's Serve and ListenAndServe
// methods after a call to Shutdown.
var ErrServerClosed = errors.New("ftp: Server closed")

// aLongTimeAgo is a deadline that has already expired.
var aLongTimeAgo = time.Unix(1, 0)

// NewServer creates a new FTP server with the given address and options.
// The root directory must be provided via the WithRootDir option.
//
// Default values:
//   - Logger: slog.Default()
//   - Workers: 4
//   - PollInterval: 1 second
//   - MaxIdleTime: 5 minutes
//   - Passive host: 127.0.0.1, any free port
//   - MaxPending, BandwidthLimit, DataAcceptTimeout: 0 (disabled)
func NewServer(addr string, options ...Option) (*Server, error) {
	s := &Server{
		addr:         addr,
		logger:       slog.Default(),
		workers:      4,
		pollInterval: time.Second,
		maxIdleTime:  5 * time.Minute,
		passive:      passiveConfig{host: "127.0.0.1"},
		reg:          newRegistry(),
	}

	for _, opt := range options {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.rootDir == "" {
		return nil, fmt.Errorf("root directory is required (use WithRootDir option)")
	}

	s.passive.next = &s.nextPassivePort
	s.passive.pollInterval = s.pollInterval
	s.passive.running = s.reg.isRunning

	return s, nil
}

// RootDir returns the directory sessions start in.
func (s *Server) RootDir() string {
	return s.rootDir
}

// Stats reports how many sessions are running and how many are waiting for
// a worker. Both are zero when the server is not serving.
func (s *Server) Stats() (active, pending int) {
	s.mu.Lock()
	pool := s.pool
	s.mu.Unlock()
	if pool == nil {
		return 0, 0
	}
	return pool.Active(), pool.Pending()
}

// ListenAndServe starts the FTP server on the configured address.
// It blocks until the server stops or an error occurs.
func (s *Server) ListenAndServe() error {
	if !s.reg.isRunning() {
		return ErrServerClosed
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.logger.Info("FTP server listening", "addr", ln.Addr().String(), "root", s.rootDir)
	return s.Serve(ln)
}

// Serve accepts incoming connections on the listener l and dispatches them
// to the worker pool. It blocks until Shutdown is called or accepting fails,
// and returns only after every queued and running session has finished.
// After Shutdown it returns ErrServerClosed.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	if !s.reg.isRunning() {
		s.mu.Unlock()
		l.Close()
		return ErrServerClosed
	}
	if s.listener != nil {
		s.mu.Unlock()
		return errors.New("ftp: Server already serving")
	}
	pool := workerpool.New(s.workers)
	done := make(chan struct{})
	s.listener = l
	s.pool = pool
	s.done = done
	s.mu.Unlock()

	err := s.acceptLoop(l, func(conn net.Conn) {
		s.admit(pool, conn)
	})

	l.Close()
	pool.Stop()
	close(done)

	if err != nil && s.reg.isRunning() {
		return err
	}
	return ErrServerClosed
}

// admit registers conn and queues its session. A connection that cannot be
// queued is closed without a session.
func (s *Server) admit(pool *workerpool.Pool, conn net.Conn) {
	if !s.reg.register(conn) {
		conn.Close()
		s.recordConnection(false, "shutting_down")
		return
	}

	if s.maxPending > 0 && pool.Pending() >= s.maxPending {
		s.reg.deregister(conn)
		_ = conn.SetWriteDeadline(time.Now().Add(s.pollInterval))
		_, _ = io.WriteString(conn, ReplyServiceUnavailable.Line())
		conn.Close()
		s.logger.Warn("connection_rejected",
			"remote_addr", conn.RemoteAddr().String(),
			"reason", "queue_full",
			"pending", pool.Pending(),
		)
		s.recordConnection(false, "queue_full")
		return
	}

	// The task owns conn from here on. It is only interrupted from outside
	// by Shutdown half-closing the socket.
	err := pool.Submit(func() {
		defer s.reg.deregister(conn)
		s.ServeConn(conn)
	})
	if err != nil {
		s.reg.deregister(conn)
		conn.Close()
		s.logger.Debug("connection dropped", "remote_addr", conn.RemoteAddr().String(), "error", err)
		s.recordConnection(false, "shutting_down")
		return
	}

	s.recordConnection(true, "accepted")
	if s.metrics != nil {
		s.metrics.RecordWorkers(pool.Active(), pool.Pending())
	}
}

// ServeConn runs one session on conn until the client quits, the
// connection fails, or the server shuts down. conn is closed on return.
//
// Connections handed to ServeConn directly are not tracked by Shutdown
// beyond the shutdown check made on every read timeout.
func (s *Server) ServeConn(conn net.Conn) {
	newSession(s, conn).serve()
}

// Shutdown stops the server: it refuses new connections, closes the
// listener and the dispatcher's poller, and half-closes every live control connection so that blocked
// reads return. It then waits for Serve to finish the remaining sessions.
//
// If ctx expires first, the remaining control connections are closed
// outright and ctx's error is returned.
func (s *Server) Shutdown(ctx context.Context) error {
	conns, first := s.reg.stop()

	s.mu.Lock()
	ln := s.listener
	done := s.done
	closePoller := s.closePoller
	s.mu.Unlock()

	var err error
	if ln != nil {
		if cerr := ln.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = cerr
		}
	}
	if closePoller != nil {
		closePoller()
	}

	if first {
		s.logger.Info("FTP server shutting down", "live_sessions", len(conns))
	}
	for _, c := range conns {
		interrupt(c)
	}

	if done == nil {
		return err
	}

	select {
	case <-done:
		return err
	case <-ctx.Done():
		for _, c := range conns {
			c.Close()
		}
		return ctx.Err()
	}
}

// acceptBlocking is the portable dispatcher loop: one Accept at a time,
// bounded by the poll interval when the listener supports deadlines.
func (s *Server) acceptBlocking(l net.Listener, handle func(net.Conn)) error {
	type deadliner interface {
		SetDeadline(time.Time) error
	}
	dl, canDeadline := l.(deadliner)

	var tempDelay time.Duration
	for {
		if !s.reg.isRunning() {
			return nil
		}
		if canDeadline {
			_ = dl.SetDeadline(time.Now().Add(s.pollInterval))
		}

		conn, err := l.Accept()
		if err != nil {
			if !s.reg.isRunning() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if isTemporaryAcceptError(err) {
				tempDelay = backoff(tempDelay)
				s.logger.Warn("accept error, retrying", "error", err, "delay", tempDelay)
				time.Sleep(tempDelay)
				continue
			}
			return err
		}
		tempDelay = 0
		handle(conn)
	}
}

func backoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > time.Second {
		d = time.Second
	}
	return d
}

func (s *Server) recordConnection(accepted bool, reason string) {
	if s.metrics != nil {
		s.metrics.RecordConnection(accepted, reason)
	}
}
