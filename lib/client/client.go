// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/bureau-foundation/ticketd/lib/wire"
)

// DefaultDialTimeout bounds the connect phase.
const DefaultDialTimeout = 5 * time.Second

// DefaultResponseTimeout bounds the wait for one response, covering the
// server's read timeout, handler execution, and write timeout.
const DefaultResponseTimeout = 45 * time.Second

// DefaultAddress is where a local server listens by default.
var DefaultAddress = net.JoinHostPort("localhost", strconv.Itoa(4093))

// ErrClosed is returned by calls on a client after Close or Exit.
var ErrClosed = errors.New("client closed")

// ResponseError is returned when the server answers with success
// false. Data carries any payload the failure included, such as the
// current minimum for add_if_min.
type ResponseError struct {
	Command string
	Message string
	Data    *wire.Payload
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Command, e.Message)
}

// Config describes how to reach a server.
type Config struct {
	Address         string
	DialTimeout     time.Duration
	ResponseTimeout time.Duration
	MaxFrameSize    int
	Logger          *slog.Logger
}

// Client is a connection to a ticket server. It is safe for concurrent
// use; calls are serialized.
type Client struct {
	address         string
	dialTimeout     time.Duration
	responseTimeout time.Duration
	maxFrameSize    int
	logger          *slog.Logger

	mu       sync.Mutex
	conn     net.Conn
	login    string
	password string
	closed   bool
}

// Dial connects to the server at config.Address.
func Dial(ctx context.Context, config Config) (*Client, error) {
	c := &Client{
		address:         config.Address,
		dialTimeout:     config.DialTimeout,
		responseTimeout: config.ResponseTimeout,
		maxFrameSize:    config.MaxFrameSize,
		logger:          config.Logger,
	}
	if c.address == "" {
		c.address = DefaultAddress
	}
	if c.dialTimeout <= 0 {
		c.dialTimeout = DefaultDialTimeout
	}
	if c.responseTimeout <= 0 {
		c.responseTimeout = DefaultResponseTimeout
	}
	if c.maxFrameSize <= 0 {
		c.maxFrameSize = wire.DefaultMaxFrameSize
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.connectLocked(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Address returns the server address the client dials.
func (c *Client) Address() string { return c.address }

// SetCredentials sets the login and password attached to every
// subsequent request.
func (c *Client) SetCredentials(login, password string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.login = login
	c.password = password
}

// Login returns the login currently attached to requests.
func (c *Client) Login() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.login
}

// Close drops the connection. Further calls return ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return c.dropLocked()
}

// Do sends request as-is, after attaching the client's credentials
// when the request carries none, and returns the server's response
// whatever its success flag.
func (c *Client) Do(ctx context.Context, request wire.Request) (wire.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return wire.Response{}, ErrClosed
	}
	if request.Login == "" {
		request.Login = c.login
		request.Password = c.password
	}
	request.Success = true
	request.UserID = nil

	if c.conn == nil {
		if err := c.connectLocked(ctx); err != nil {
			return wire.Response{}, err
		}
	}
	response, err := c.roundTripLocked(ctx, request)
	if err != nil {
		c.dropLocked()
		return wire.Response{}, fmt.Errorf("%s on %s: %w", request.Command, c.address, err)
	}
	return response, nil
}

// Call sends command with data and returns a *ResponseError when the
// server reports failure.
func (c *Client) Call(ctx context.Context, command string, data *wire.Payload) (wire.Response, error) {
	response, err := c.Do(ctx, wire.Request{Command: command, Data: data})
	if err != nil {
		return wire.Response{}, err
	}
	if !response.Success {
		return response, &ResponseError{Command: command, Message: response.Message, Data: response.Data}
	}
	return response, nil
}

func (c *Client) connectLocked(ctx context.Context) error {
	dialer := net.Dialer{Timeout: c.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.address)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", c.address, err)
	}
	c.conn = conn
	c.logger.Debug("connected", "address", c.address)
	return nil
}

func (c *Client) dropLocked() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// roundTripLocked writes one frame and reads one frame. Cancelling ctx
// interrupts a pending read or write by moving the deadline to now.
func (c *Client) roundTripLocked(ctx context.Context, request wire.Request) (wire.Response, error) {
	deadline := time.Now().Add(c.responseTimeout) //nolint:realclock // kernel I/O deadline
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	conn := c.conn
	conn.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now()) //nolint:realclock // kernel I/O deadline
	})
	defer stop()

	if err := wire.WriteRequest(conn, request); err != nil {
		return wire.Response{}, c.contextError(ctx, err)
	}
	response, err := wire.ReadResponse(conn, c.maxFrameSize)
	if err != nil {
		return wire.Response{}, c.contextError(ctx, err)
	}
	return response, nil
}

// contextError prefers the context's error when cancellation caused
// the I/O failure.
func (c *Client) contextError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w (%v)", ctxErr, err)
	}
	return err
}
