// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bureau-foundation/ticketd/lib/wire"
)

// Namespace prefixes every metric name.
const Namespace = "ticketd"

// Close reasons reported by ConnectionClosed.
const (
	ReasonPeer     = "peer"
	ReasonError    = "error"
	ReasonExit     = "exit"
	ReasonShutdown = "shutdown"
	ReasonOversize = "oversize"
)

const (
	outcomeOK   = "ok"
	outcomeFail = "fail"

	unknownCommand = "unknown"
)

// Server groups the collectors one ticket server updates.
type Server struct {
	registry *prometheus.Registry

	connections prometheus.Gauge
	accepted    prometheus.Counter
	closed      *prometheus.CounterVec
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	busyWorkers prometheus.Gauge
	queueDepth  prometheus.Gauge

	known map[string]bool
}

// New creates the collectors and registers them, along with the Go
// runtime and process collectors, on a fresh registry.
func New() *Server {
	s := &Server{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "connections",
			Help:      "Open client connections.",
		}),
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "connections_accepted_total",
			Help:      "Client connections accepted since start.",
		}),
		closed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "connections_closed_total",
			Help:      "Client connections closed, by reason.",
		}, []string{"reason"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "requests_total",
			Help:      "Requests dispatched, by command and outcome.",
		}, []string{"command", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "request_duration_seconds",
			Help:      "Time from decoded request to built response.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 9),
		}, []string{"command"}),
		busyWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "workers_busy",
			Help:      "Workers currently running a request cycle.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "task_queue_depth",
			Help:      "Readable connections waiting for a worker.",
		}),
		known: make(map[string]bool, len(wire.Commands)),
	}
	for _, command := range wire.Commands {
		s.known[command] = true
	}
	s.registry.MustRegister(
		s.connections, s.accepted, s.closed, s.requests,
		s.duration, s.busyWorkers, s.queueDepth,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return s
}

// Registry returns the registry backing this server's metrics.
func (s *Server) Registry() *prometheus.Registry { return s.registry }

// Handler serves the registry in the Prometheus exposition format.
func (s *Server) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry})
}

// RegisterCollectionSize exports the live ticket count, read on every
// scrape.
func (s *Server) RegisterCollectionSize(size func() int) {
	s.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "collection_size",
		Help:      "Tickets in the collection.",
	}, func() float64 { return float64(size()) }))
}

// ConnectionOpened records an accepted connection.
func (s *Server) ConnectionOpened() {
	s.accepted.Inc()
	s.connections.Inc()
}

// ConnectionClosed records a closed connection and why it closed.
func (s *Server) ConnectionClosed(reason string) {
	s.connections.Dec()
	s.closed.WithLabelValues(reason).Inc()
}

// WorkerBusy and WorkerIdle bracket one request cycle on a worker.
func (s *Server) WorkerBusy() { s.busyWorkers.Inc() }

// WorkerIdle marks the end of a request cycle.
func (s *Server) WorkerIdle() { s.busyWorkers.Dec() }

// QueueDepth reports the number of tasks waiting in the worker queue.
func (s *Server) QueueDepth(depth int) { s.queueDepth.Set(float64(depth)) }

// ObserveRequest counts one dispatched request. Its signature matches
// dispatch.Observer.
func (s *Server) ObserveRequest(_ context.Context, request *wire.Request, response wire.Response, elapsed time.Duration) {
	command := request.Command
	if !s.known[command] {
		command = unknownCommand
	}
	outcome := outcomeOK
	if !response.Success {
		outcome = outcomeFail
	}
	s.requests.WithLabelValues(command, outcome).Inc()
	s.duration.WithLabelValues(command).Observe(elapsed.Seconds())
}
