// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/ticketd/lib/auth"
	"github.com/bureau-foundation/ticketd/lib/clock"
	"github.com/bureau-foundation/ticketd/lib/collection"
	"github.com/bureau-foundation/ticketd/lib/commands"
	"github.com/bureau-foundation/ticketd/lib/config"
	"github.com/bureau-foundation/ticketd/lib/dispatch"
	"github.com/bureau-foundation/ticketd/lib/metrics"
	"github.com/bureau-foundation/ticketd/lib/process"
	"github.com/bureau-foundation/ticketd/lib/server"
	"github.com/bureau-foundation/ticketd/lib/snapshot"
	"github.com/bureau-foundation/ticketd/lib/userstore"
	"github.com/bureau-foundation/ticketd/lib/version"
)

// metricsShutdownTimeout bounds the graceful stop of the /metrics
// endpoint.
const metricsShutdownTimeout = 5 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("ticketd", pflag.ContinueOnError)
	var (
		configPath  string
		listen      string
		logFormat   string
		showVersion bool
	)
	flags.StringVar(&configPath, "config", "", "path to the config file (default: $"+config.EnvironmentVariable+")")
	flags.StringVar(&listen, "listen", "", "override server.listen")
	flags.StringVar(&logFormat, "log-format", "json", "log format: json, text, or auto")
	flags.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if showVersion {
		version.Print(os.Stdout, "ticketd")
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.Server.Listen = listen
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	level, _ := cfg.LogLevel()
	format, err := process.ParseLogFormat(logFormat)
	if err != nil {
		return err
	}
	logger := process.NewLogger(os.Stderr, level, format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := newDaemon(ctx, cfg, clock.Real(), logger)
	if err != nil {
		return err
	}
	defer d.close()

	logger.Info("ticketd starting",
		"version", version.Info(),
		"environment", cfg.Environment,
		"listen", d.server.Addr().String(),
		"store", d.collection.Info().StoreKind,
		"tickets", d.collection.Size(),
	)
	return d.run(ctx)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}

// daemon is the assembled server: storage, pipeline, transport and
// metrics.
type daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	users      *userstore.Store
	collection *collection.Manager
	metrics    *metrics.Server
	server     *server.Server
}

func newDaemon(ctx context.Context, cfg *config.Config, clk clock.Clock, logger *slog.Logger) (*daemon, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}

	compression, err := snapshot.ParseCompression(cfg.Snapshot.Compression)
	if err != nil {
		return nil, err
	}
	store, err := snapshot.Open(snapshot.Config{
		Path:         cfg.Snapshot.Path,
		Compression:  compression,
		Recipients:   cfg.Snapshot.AgeRecipients,
		IdentityFile: cfg.Snapshot.AgeIdentityFile,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	manager, err := collection.New(ctx, collection.Options{
		Clock:       clk,
		Persistence: store,
		StoreKind:   store.Kind(),
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("loading collection: %w", err)
	}

	hasher, err := userstore.NewArgon2Hasher(cfg.Users.Argon2)
	if err != nil {
		return nil, err
	}
	users, err := userstore.Open(userstore.Config{
		Path:     cfg.Users.Database,
		PoolSize: cfg.Users.PoolSize,
		Hasher:   hasher,
		Clock:    clk,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening user store: %w", err)
	}

	collectors := metrics.New()
	collectors.RegisterCollectionSize(manager.Size)

	set := commands.New(commands.Options{
		Collection: manager,
		Users:      users,
		Admins:     cfg.Server.Admins,
		Logger:     logger,
	})
	builder := dispatch.NewBuilder()
	set.Register(builder)
	pipeline := dispatch.NewPipeline(builder.Build(), auth.NewGate(users, logger), logger,
		set.Observe, collectors.ObserveRequest)
	set.Bind(pipeline)

	listener, err := server.Listen(cfg.Server.Listen)
	if err != nil {
		users.Close()
		return nil, err
	}
	srv, err := server.New(server.Config{
		Listener:     listener,
		Executor:     pipeline,
		Workers:      cfg.Server.Workers,
		QueueSize:    cfg.Server.QueueSize,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		MaxFrameSize: cfg.Server.MaxFrameSize,
		Metrics:      collectors,
		Logger:       logger,
	})
	if err != nil {
		listener.Close()
		users.Close()
		return nil, err
	}

	return &daemon{
		cfg:        cfg,
		logger:     logger,
		users:      users,
		collection: manager,
		metrics:    collectors,
		server:     srv,
	}, nil
}

// run serves until ctx is cancelled or a component fails, then saves
// the collection.
func (d *daemon) run(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error { return d.server.Serve(groupCtx) })

	if d.cfg.Snapshot.AutosaveInterval > 0 {
		group.Go(func() error {
			d.collection.RunAutosave(groupCtx, d.cfg.Snapshot.AutosaveInterval)
			return nil
		})
	}

	if d.cfg.Metrics.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", d.metrics.Handler())
		httpServer := &http.Server{
			Addr:              d.cfg.Metrics.Listen,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		group.Go(func() error {
			d.logger.Info("metrics endpoint listening", "address", d.cfg.Metrics.Listen)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics endpoint: %w", err)
			}
			return nil
		})
		group.Go(func() error {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(groupCtx), metricsShutdownTimeout)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		})
	}

	runErr := group.Wait()

	d.logger.Info("saving collection before exit", "tickets", d.collection.Size())
	if err := d.collection.Save(context.Background()); err != nil {
		d.logger.Error("final save failed", "error", err)
		return errors.Join(runErr, fmt.Errorf("saving collection: %w", err))
	}
	if runErr != nil {
		return runErr
	}
	d.logger.Info("ticketd stopped")
	return nil
}

func (d *daemon) close() {
	if err := d.users.Close(); err != nil {
		d.logger.Warn("closing user store", "error", err)
	}
}
