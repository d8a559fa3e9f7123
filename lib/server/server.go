// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/bureau-foundation/ticketd/lib/codec"
	"github.com/bureau-foundation/ticketd/lib/metrics"
	"github.com/bureau-foundation/ticketd/lib/netutil"
	"github.com/bureau-foundation/ticketd/lib/wire"
)

// DefaultPort is the TCP port the server listens on when the
// configuration does not name one.
const DefaultPort = 4093

// Defaults applied by New to zero-valued Config fields.
const (
	DefaultWorkers      = 8
	DefaultQueueSize    = 64
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 10 * time.Second
)

// MessageFrameTooLarge is sent to a client whose request frame exceeds
// the size limit, just before the connection is closed.
const MessageFrameTooLarge = "request too large"

// ErrUnsupportedPlatform is returned by Serve on platforms without
// epoll.
var ErrUnsupportedPlatform = errors.New("server requires linux epoll")

// Executor turns one decoded request into its response.
// *dispatch.Pipeline implements it.
type Executor interface {
	Execute(ctx context.Context, request wire.Request) wire.Response
}

// Config holds the server's collaborators and limits.
type Config struct {
	// Listener must be a *net.TCPListener (or another listener
	// exposing its descriptor through syscall.Conn). Serve takes
	// ownership and closes it on return.
	Listener net.Listener

	Executor Executor

	Workers      int
	QueueSize    int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxFrameSize int

	// Metrics is optional.
	Metrics *metrics.Server
	Logger  *slog.Logger
}

// Server accepts connections and runs the request cycle for each.
type Server struct {
	listener     net.Listener
	executor     Executor
	workers      int
	queueSize    int
	readTimeout  time.Duration
	writeTimeout time.Duration
	maxFrameSize int
	metrics      *metrics.Server
	logger       *slog.Logger

	mu          sync.Mutex
	connections map[int]*connection
}

// Listen opens a TCP listener on address.
func Listen(address string) (*net.TCPListener, error) {
	addr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("resolving listen address %q: %w", address, err)
	}
	listener, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", address, err)
	}
	return listener, nil
}

// New validates config and builds a server. Zero limits take the
// package defaults.
func New(config Config) (*Server, error) {
	if config.Listener == nil {
		return nil, errors.New("server: listener is required")
	}
	if config.Executor == nil {
		return nil, errors.New("server: executor is required")
	}
	s := &Server{
		listener:     config.Listener,
		executor:     config.Executor,
		workers:      config.Workers,
		queueSize:    config.QueueSize,
		readTimeout:  config.ReadTimeout,
		writeTimeout: config.WriteTimeout,
		maxFrameSize: config.MaxFrameSize,
		metrics:      config.Metrics,
		logger:       config.Logger,
		connections:  make(map[int]*connection),
	}
	if s.workers <= 0 {
		s.workers = DefaultWorkers
	}
	if s.queueSize <= 0 {
		s.queueSize = DefaultQueueSize
	}
	if s.readTimeout <= 0 {
		s.readTimeout = DefaultReadTimeout
	}
	if s.writeTimeout <= 0 {
		s.writeTimeout = DefaultWriteTimeout
	}
	if s.maxFrameSize <= 0 {
		s.maxFrameSize = wire.DefaultMaxFrameSize
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s, nil
}

// Addr returns the listener's address.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// connection is one accepted client. fd is the descriptor registered
// with epoll; conn owns it.
type connection struct {
	fd     int
	conn   net.Conn
	remote string
}

// cycleResult tells the worker what to do with a connection after one
// request cycle.
type cycleResult struct {
	keep   bool
	reason string
}

// cycle reads one frame from c, dispatches it, and writes the
// response. It is the whole of a worker's task for one readiness
// event.
func (s *Server) cycle(ctx context.Context, c *connection) cycleResult {
	c.conn.SetReadDeadline(time.Now().Add(s.readTimeout)) //nolint:realclock // kernel I/O deadline
	payload, err := wire.ReadFrame(c.conn, s.maxFrameSize)
	if err != nil {
		switch {
		case errors.Is(err, wire.ErrFrameTooLarge):
			s.logger.Warn("request frame too large",
				"remote_addr", c.remote,
				"error", err,
			)
			s.write(c, wire.Fail(MessageFrameTooLarge))
			return cycleResult{reason: metrics.ReasonOversize}
		case netutil.IsExpectedCloseError(err):
			s.logger.Debug("client disconnected", "remote_addr", c.remote, "error", err)
			return cycleResult{reason: metrics.ReasonPeer}
		default:
			s.logger.Warn("reading request failed", "remote_addr", c.remote, "error", err)
			return cycleResult{reason: metrics.ReasonError}
		}
	}

	var response wire.Response
	request, err := wire.DecodeRequest(payload)
	if err != nil {
		if s.logger.Enabled(ctx, slog.LevelDebug) {
			s.logger.Debug("malformed request", "remote_addr", c.remote, "error", err, "cbor", diagnose(payload))
		}
		response = wire.Fail(wire.MessageMalformed)
	} else {
		response = s.executor.Execute(ctx, request)
	}

	if err := s.write(c, response); err != nil {
		return cycleResult{reason: metrics.ReasonError}
	}
	if request.Command == wire.CommandExit {
		s.logger.Debug("client exited", "remote_addr", c.remote)
		return cycleResult{reason: metrics.ReasonExit}
	}
	return cycleResult{keep: true}
}

// maxDiagnosisLength caps the diagnostic notation logged for a
// malformed frame.
const maxDiagnosisLength = 256

// diagnose renders payload in CBOR diagnostic notation for the debug
// log, truncated to maxDiagnosisLength.
func diagnose(payload []byte) string {
	notation, err := codec.Diagnose(payload)
	if err != nil {
		return fmt.Sprintf("undecodable (%d bytes): %v", len(payload), err)
	}
	if len(notation) > maxDiagnosisLength {
		return notation[:maxDiagnosisLength] + "..."
	}
	return notation
}

// write sends one response under the write deadline. Failures are
// logged here; the caller only decides whether to close.
func (s *Server) write(c *connection, response wire.Response) error {
	c.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)) //nolint:realclock // kernel I/O deadline
	err := wire.WriteResponse(c.conn, response)
	if err == nil {
		return nil
	}
	if netutil.IsExpectedCloseError(err) {
		s.logger.Debug("client went away before response", "remote_addr", c.remote, "error", err)
	} else {
		s.logger.Warn("writing response failed", "remote_addr", c.remote, "error", err)
	}
	return err
}

// track records a newly accepted connection.
func (s *Server) track(c *connection) {
	s.mu.Lock()
	s.connections[c.fd] = c
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.ConnectionOpened()
	}
	s.logger.Debug("client connected", "remote_addr", c.remote)
}

// lookup returns the connection registered under fd.
func (s *Server) lookup(fd int) (*connection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.connections[fd]
	return c, ok
}

// untrack forgets c and reports whether it was still tracked. Only the
// caller that receives true may close it.
func (s *Server) untrack(c *connection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connections[c.fd] != c {
		return false
	}
	delete(s.connections, c.fd)
	return true
}

// drainConnections removes and returns every tracked connection.
func (s *Server) drainConnections() []*connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	remaining := make([]*connection, 0, len(s.connections))
	for fd, c := range s.connections {
		remaining = append(remaining, c)
		delete(s.connections, fd)
	}
	return remaining
}

// closed finishes the bookkeeping for a closed connection.
func (s *Server) closed(c *connection, reason string) {
	if err := c.conn.Close(); err != nil && !netutil.IsExpectedCloseError(err) {
		s.logger.Debug("closing connection", "remote_addr", c.remote, "error", err)
	}
	if s.metrics != nil {
		s.metrics.ConnectionClosed(reason)
	}
}
