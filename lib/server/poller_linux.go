// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package server

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// connectionEvents is the interest set for a client connection.
// EPOLLONESHOT disables the registration after one event; arm
// re-enables it.
const connectionEvents = unix.EPOLLIN | unix.EPOLLRDHUP | unix.EPOLLONESHOT

// poller wraps an epoll instance and the eventfd that interrupts
// epoll_wait. The event's Fd field carries the descriptor so the loop
// can tell the listener, the wake fd, and clients apart.
type poller struct {
	epollFD int
	wakeFD  int
}

func newPoller() (*poller, error) {
	epollFD, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}
	wakeFD, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epollFD)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	p := &poller{epollFD: epollFD, wakeFD: wakeFD}
	if err := p.add(wakeFD, unix.EPOLLIN); err != nil {
		p.close()
		return nil, err
	}
	return p, nil
}

func (p *poller) add(fd int, events uint32) error {
	event := unix.EpollEvent{Events: events, Fd: int32(fd)}
	if err := unix.EpollCtl(p.epollFD, unix.EPOLL_CTL_ADD, fd, &event); err != nil {
		return fmt.Errorf("epoll_ctl add fd %d: %w", fd, err)
	}
	return nil
}

// arm re-enables read interest on a one-shot registration. If data is
// already buffered the next epoll_wait reports it immediately.
func (p *poller) arm(fd int) error {
	event := unix.EpollEvent{Events: connectionEvents, Fd: int32(fd)}
	if err := unix.EpollCtl(p.epollFD, unix.EPOLL_CTL_MOD, fd, &event); err != nil {
		return fmt.Errorf("epoll_ctl mod fd %d: %w", fd, err)
	}
	return nil
}

// remove drops fd from the interest list. It must run before fd is
// closed, or a reused descriptor number could inherit the registration.
func (p *poller) remove(fd int) error {
	if err := unix.EpollCtl(p.epollFD, unix.EPOLL_CTL_DEL, fd, nil); err != nil && !errors.Is(err, unix.ENOENT) {
		return fmt.Errorf("epoll_ctl del fd %d: %w", fd, err)
	}
	return nil
}

// wait blocks until at least one registered descriptor is ready.
func (p *poller) wait(events []unix.EpollEvent) (int, error) {
	for {
		count, err := unix.EpollWait(p.epollFD, events, -1)
		if err == unix.EINTR {
			continue
		}
		return count, err
	}
}

// wake makes a concurrent or future wait return with the wake fd
// readable. Safe to call from any goroutine.
func (p *poller) wake() error {
	var buffer [8]byte
	binary.NativeEndian.PutUint64(buffer[:], 1)
	_, err := unix.Write(p.wakeFD, buffer[:])
	if err != nil && err != unix.EAGAIN {
		return fmt.Errorf("writing eventfd: %w", err)
	}
	return nil
}

// drainWake resets the eventfd counter.
func (p *poller) drainWake() {
	var buffer [8]byte
	unix.Read(p.wakeFD, buffer[:])
}

func (p *poller) close() {
	unix.Close(p.wakeFD)
	unix.Close(p.epollFD)
}
