// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package server

import (
	"context"
	"fmt"
	"net"
	"os"
	"runtime"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/ticketd/lib/metrics"
)

// eventBatch bounds how many readiness events one epoll_wait returns.
const eventBatch = 128

// Serve runs the event loop and the worker pool until ctx is
// cancelled. On cancellation it stops accepting, lets workers finish
// the cycles already queued (each bounded by the read and write
// timeouts), closes every connection and the listener, and returns
// nil. Request handlers run under a context that is not cancelled by
// shutdown, so an in-flight save completes.
func (s *Server) Serve(ctx context.Context) error {
	defer s.listener.Close()

	listenerConn, ok := s.listener.(syscall.Conn)
	if !ok {
		return fmt.Errorf("server: listener %T does not expose its descriptor", s.listener)
	}
	rawListener, err := listenerConn.SyscallConn()
	if err != nil {
		return fmt.Errorf("server: listener descriptor: %w", err)
	}
	listenerFD, err := descriptor(rawListener)
	if err != nil {
		return err
	}

	p, err := newPoller()
	if err != nil {
		return err
	}
	defer p.close()
	if err := p.add(listenerFD, unix.EPOLLIN); err != nil {
		return err
	}

	tasks := make(chan *connection, s.queueSize)
	handlerContext := context.WithoutCancel(ctx)
	var workers sync.WaitGroup
	for range s.workers {
		workers.Go(func() { s.work(handlerContext, p, tasks) })
	}

	stopWake := context.AfterFunc(ctx, func() {
		if err := p.wake(); err != nil {
			s.logger.Error("waking event loop", "error", err)
		}
	})
	defer stopWake()

	s.logger.Info("ticket server listening",
		"address", s.listener.Addr().String(),
		"workers", s.workers,
		"queue_size", s.queueSize,
	)

	loopErr := s.loop(ctx, p, rawListener, listenerFD, tasks)

	close(tasks)
	workers.Wait()
	p.remove(listenerFD)
	for _, c := range s.drainConnections() {
		p.remove(c.fd)
		s.closed(c, metrics.ReasonShutdown)
	}
	if loopErr != nil {
		s.logger.Error("event loop failed", "error", loopErr)
		return loopErr
	}
	s.logger.Info("ticket server stopped")
	return nil
}

// loop owns epoll_wait. It accepts new clients and hands readable ones
// to the workers; it never reads or writes a client socket.
func (s *Server) loop(ctx context.Context, p *poller, rawListener syscall.RawConn, listenerFD int, tasks chan<- *connection) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	events := make([]unix.EpollEvent, eventBatch)
	for {
		count, err := p.wait(events)
		if err != nil {
			return fmt.Errorf("epoll_wait: %w", err)
		}
		for _, event := range events[:count] {
			fd := int(event.Fd)
			switch fd {
			case p.wakeFD:
				p.drainWake()
				if ctx.Err() != nil {
					return nil
				}
			case listenerFD:
				if err := s.acceptAll(p, rawListener); err != nil {
					return err
				}
			default:
				c, ok := s.lookup(fd)
				if !ok {
					continue
				}
				// A full queue blocks the loop, which in turn leaves
				// new connections waiting in the kernel backlog.
				select {
				case tasks <- c:
					if s.metrics != nil {
						s.metrics.QueueDepth(len(tasks))
					}
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

// acceptAll accepts until the backlog is empty.
func (s *Server) acceptAll(p *poller, rawListener syscall.RawConn) error {
	var accepted []int
	var acceptErr error
	controlErr := rawListener.Control(func(listenerFD uintptr) {
		for {
			fd, _, err := unix.Accept4(int(listenerFD), unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
			switch err {
			case nil:
				accepted = append(accepted, fd)
				continue
			case unix.EAGAIN:
			case unix.EINTR, unix.ECONNABORTED:
				continue
			case unix.EMFILE, unix.ENFILE, unix.ENOBUFS, unix.ENOMEM:
				s.logger.Warn("accept deferred: out of resources", "error", err)
			default:
				acceptErr = fmt.Errorf("accept4: %w", err)
			}
			return
		}
	})
	for _, fd := range accepted {
		s.register(p, fd)
	}
	if controlErr != nil {
		return fmt.Errorf("accessing listener: %w", controlErr)
	}
	return acceptErr
}

// register wraps an accepted descriptor in a net.Conn for deadline
// support and adds the connection's descriptor to epoll.
func (s *Server) register(p *poller, acceptedFD int) {
	file := os.NewFile(uintptr(acceptedFD), "ticketd-client")
	conn, err := net.FileConn(file)
	file.Close()
	if err != nil {
		s.logger.Warn("wrapping accepted connection", "error", err)
		return
	}
	connConn, ok := conn.(syscall.Conn)
	if !ok {
		conn.Close()
		s.logger.Warn("accepted connection does not expose its descriptor", "type", fmt.Sprintf("%T", conn))
		return
	}
	raw, err := connConn.SyscallConn()
	var fd int
	if err == nil {
		fd, err = descriptor(raw)
	}
	if err != nil {
		conn.Close()
		s.logger.Warn("reading connection descriptor", "error", err)
		return
	}

	c := &connection{fd: fd, conn: conn, remote: conn.RemoteAddr().String()}
	s.track(c)
	if err := p.add(fd, connectionEvents); err != nil {
		s.logger.Warn("registering connection", "remote_addr", c.remote, "error", err)
		if s.untrack(c) {
			s.closed(c, metrics.ReasonError)
		}
	}
}

// work runs request cycles until tasks is closed. A connection is in at
// most one task at a time: its one-shot registration is disarmed from
// the moment the loop queued it until arm below.
func (s *Server) work(ctx context.Context, p *poller, tasks <-chan *connection) {
	for c := range tasks {
		if s.metrics != nil {
			s.metrics.WorkerBusy()
			s.metrics.QueueDepth(len(tasks))
		}
		result := s.cycle(ctx, c)
		if result.keep {
			if err := p.arm(c.fd); err != nil {
				s.logger.Warn("re-arming connection", "remote_addr", c.remote, "error", err)
				result = cycleResult{reason: metrics.ReasonError}
			}
		}
		if !result.keep && s.untrack(c) {
			if err := p.remove(c.fd); err != nil {
				s.logger.Debug("removing connection from epoll", "remote_addr", c.remote, "error", err)
			}
			s.closed(c, result.reason)
		}
		if s.metrics != nil {
			s.metrics.WorkerIdle()
		}
	}
}

// descriptor extracts the file descriptor behind raw. The descriptor
// stays valid for as long as the owning listener or connection is
// open.
func descriptor(raw syscall.RawConn) (int, error) {
	var fd int
	if err := raw.Control(func(value uintptr) { fd = int(value) }); err != nil {
		return 0, fmt.Errorf("reading descriptor: %w", err)
	}
	return fd, nil
}
