// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/ticketd/cmd/ticketctl/cli"
	"github.com/bureau-foundation/ticketd/lib/client"
	"github.com/bureau-foundation/ticketd/lib/process"
	"github.com/bureau-foundation/ticketd/lib/secret"
)

const (
	envAddress  = "TICKETD_ADDRESS"
	envUser     = "TICKETD_USER"
	envPassword = "TICKETD_PASSWORD"
)

// app carries the process streams and the connection flags shared by
// every subcommand.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string

	address string
	user    string
	timeout time.Duration
	json    bool
	verbose bool
}

func newApp(stdin io.Reader, stdout, stderr io.Writer, getenv func(string) string) *app {
	return &app{stdin: stdin, stdout: stdout, stderr: stderr, getenv: getenv}
}

// connectionFlags returns a flag set holding the shared connection
// flags, named after the subcommand.
func (a *app) connectionFlags(name string) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	address := a.getenv(envAddress)
	if address == "" {
		address = client.DefaultAddress
	}
	flagSet.StringVar(&a.address, "address", address, "server address (env "+envAddress+")")
	flagSet.StringVarP(&a.user, "user", "u", a.getenv(envUser), "username (env "+envUser+")")
	flagSet.DurationVar(&a.timeout, "timeout", client.DefaultResponseTimeout, "time to wait for each response")
	flagSet.BoolVar(&a.json, "json", false, "write results as JSON")
	flagSet.BoolVarP(&a.verbose, "verbose", "v", false, "log connection activity to stderr")
	return flagSet
}

func (a *app) logger() *slog.Logger {
	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	return process.NewLogger(a.stderr, level, process.FormatAuto)
}

// dial connects to the server. With authenticate set and a user
// configured, the password is resolved and attached to every request.
func (a *app) dial(ctx context.Context, authenticate bool) (*client.Client, error) {
	c, err := client.Dial(ctx, client.Config{
		Address:         a.address,
		ResponseTimeout: a.timeout,
		Logger:          a.logger(),
	})
	if err != nil {
		return nil, err
	}
	if authenticate && a.user != "" {
		password, err := a.password()
		if err != nil {
			c.Close()
			return nil, err
		}
		c.SetCredentials(a.user, password)
	}
	return c, nil
}

// credentials returns the configured user and password, failing when
// no user is set.
func (a *app) credentials() (string, string, error) {
	if a.user == "" {
		return "", "", errors.New("--user (or " + envUser + ") is required")
	}
	password, err := a.password()
	if err != nil {
		return "", "", err
	}
	return a.user, password, nil
}

// password reads TICKETD_PASSWORD, then falls back to an echo-free
// terminal prompt, then to one line of stdin. Prompted input stays in
// a secret.Buffer until it is copied out for the client.
func (a *app) password() (string, error) {
	if password := a.getenv(envPassword); password != "" {
		return password, nil
	}
	var (
		buffer *secret.Buffer
		err    error
	)
	if file, ok := a.stdin.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		fmt.Fprintf(a.stderr, "Password for %s: ", a.user)
		raw, readErr := term.ReadPassword(int(file.Fd()))
		fmt.Fprintln(a.stderr)
		if readErr != nil {
			return "", fmt.Errorf("reading password: %w", readErr)
		}
		buffer, err = secret.FromBytes(raw)
	} else {
		buffer, err = secret.ReadLine(a.stdin)
	}
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	defer buffer.Close()
	return buffer.String(), nil
}

// emit writes value as JSON under --json, otherwise calls text.
func (a *app) emit(value any, text func(w io.Writer)) error {
	if a.json {
		return cli.WriteJSON(a.stdout, value)
	}
	text(a.stdout)
	return nil
}

// withClient is the Run body shared by commands that need one
// connection: dial, call, close.
func (a *app) withClient(authenticate bool, call func(ctx context.Context, c *client.Client, args []string) error) func(context.Context, []string) error {
	return func(ctx context.Context, args []string) error {
		c, err := a.dial(ctx, authenticate)
		if err != nil {
			return err
		}
		defer c.Close()
		return call(ctx, c, args)
	}
}
