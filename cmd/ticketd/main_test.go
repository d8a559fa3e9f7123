// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package main

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/ticketd/lib/client"
	"github.com/bureau-foundation/ticketd/lib/clock"
	"github.com/bureau-foundation/ticketd/lib/config"
	"github.com/bureau-foundation/ticketd/lib/testutil"
	"github.com/bureau-foundation/ticketd/lib/ticket"
	"github.com/bureau-foundation/ticketd/lib/userstore"
)

func testConfig(t *testing.T, dataDir string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = dataDir
	cfg.Server.Listen = "127.0.0.1:0"
	cfg.Users.Database = filepath.Join(dataDir, "users.db")
	cfg.Users.Argon2 = userstore.HashParams{Time: 1, MemoryKiB: 64, Threads: 1}
	cfg.Snapshot.Path = filepath.Join(dataDir, "tickets.snapshot")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return cfg
}

// startDaemon runs a daemon and returns its address plus a stop
// function that cancels it and returns run's error.
func startDaemon(t *testing.T, cfg *config.Config) (*daemon, func() error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	d, err := newDaemon(ctx, cfg, clock.Real(), nil)
	if err != nil {
		cancel()
		t.Fatalf("newDaemon: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- d.run(ctx) }()
	stopped := false
	stop := func() error {
		if stopped {
			return nil
		}
		stopped = true
		cancel()
		err := testutil.RequireReceive(t, done, 10*time.Second, "daemon stops")
		d.close()
		return err
	}
	t.Cleanup(func() { stop() })
	return d, stop
}

func TestDaemonPersistsAcrossRestart(t *testing.T) {
	dataDir := t.TempDir()
	cfg := testConfig(t, dataDir)
	ctx := context.Background()

	d, stop := startDaemon(t, cfg)
	c, err := client.Dial(ctx, client.Config{Address: d.server.Addr().String()})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if _, err := c.Register(ctx, "operator", "password9"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	created, err := c.Add(ctx, ticket.Ticket{
		Name:        "opening night",
		Coordinates: ticket.Coordinates{X: 2, Y: 3},
		Price:       120,
		Person:      ticket.Person{PassportID: "P-42", HairColor: ticket.ColorBlack},
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	c.Close()
	if err := stop(); err != nil {
		t.Fatalf("run: %v", err)
	}

	restarted, _ := startDaemon(t, cfg)
	if got := restarted.collection.Size(); got != 1 {
		t.Fatalf("restarted collection has %d tickets, want 1", got)
	}

	c, err = client.Dial(ctx, client.Config{Address: restarted.server.Addr().String()})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()
	if _, err := c.LoginAs(ctx, "operator", "password9"); err != nil {
		t.Fatalf("LoginAs after restart: %v", err)
	}
	tickets, err := c.Show(ctx)
	if err != nil {
		t.Fatalf("Show: %v", err)
	}
	if len(tickets) != 1 || tickets[0].ID != created.ID || tickets[0].OwnerID != created.OwnerID {
		t.Fatalf("tickets after restart = %+v, want %+v", tickets, created)
	}
}

func TestDaemonMetricsEndpoint(t *testing.T) {
	listener := testutil.LocalListener(t)
	address := listener.Addr().String()
	listener.Close()

	cfg := testConfig(t, t.TempDir())
	cfg.Metrics.Listen = address
	d, _ := startDaemon(t, cfg)

	c, err := client.Dial(context.Background(), client.Config{Address: d.server.Addr().String()})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()
	if _, err := c.Register(context.Background(), "watcher", "password9"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	var body string
	testutil.RequireEventually(t, 5*time.Second, func() bool {
		response, err := http.Get("http://" + address + "/metrics")
		if err != nil {
			return false
		}
		defer response.Body.Close()
		data, _ := io.ReadAll(response.Body)
		body = string(data)
		return response.StatusCode == http.StatusOK
	}, "metrics endpoint serving")

	for _, want := range []string{
		"ticketd_connections_accepted_total 1",
		`ticketd_requests_total{command="register",outcome="ok"} 1`,
		"ticketd_collection_size 0",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestRunVersion(t *testing.T) {
	if err := run([]string{"--version"}); err != nil {
		t.Fatalf("run --version: %v", err)
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	if err := run([]string{"--config", path}); err == nil {
		t.Fatal("run with a missing config file succeeded")
	}
}
