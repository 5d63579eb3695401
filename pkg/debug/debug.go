// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package debug serves metrics, pprof and health endpoints on a side port.
package debug

import (
	"context"
	"net/http"
	"net/http/pprof"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	readyStateNotReady = 0
	readyStateReady    = 1
)

// ReadyCheckTimeout bounds one custom readiness check.
const ReadyCheckTimeout = 2 * time.Second

var (
	readyState atomic.Int64

	// Custom handlers registered by other packages
	customHandlersMu sync.RWMutex
	customHandlers   = make(map[string]http.Handler)

	// Custom readiness check function (optional)
	customReadyCheckMu sync.RWMutex
	customReadyCheck   func(ctx context.Context) error

	// Global registry for custom metrics
	globalRegistry = prometheus.NewRegistry()
)

func SetReady() {
	readyState.Store(readyStateReady)
}

func SetNotReady() {
	readyState.Store(readyStateNotReady)
}

// SetReadyCheck registers a custom readiness check, typically a database
// ping. The server is ready only after SetReady and while check succeeds.
func SetReadyCheck(check func(ctx context.Context) error) {
	customReadyCheckMu.Lock()
	defer customReadyCheckMu.Unlock()
	customReadyCheck = check
}

// Ready reports nil when the server can take traffic.
func Ready(ctx context.Context) error {
	if readyState.Load() != readyStateReady {
		return errNotReady
	}

	customReadyCheckMu.RLock()
	check := customReadyCheck
	customReadyCheckMu.RUnlock()

	if check == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, ReadyCheckTimeout)
	defer cancel()
	return check(ctx)
}

func IsReady() bool {
	return Ready(context.Background()) == nil
}

type readyError string

func (e readyError) Error() string { return string(e) }

const errNotReady = readyError("server is starting")

// RegisterHandler registers a custom handler on the debug mux.
// Must be called before GetMux() to be included.
func RegisterHandler(pattern string, handler http.Handler) {
	customHandlersMu.Lock()
	defer customHandlersMu.Unlock()
	customHandlers[pattern] = handler
}

// Registry returns the Prometheus registry for registering custom metrics.
// Metrics registered here will be exported on /metrics alongside default metrics.
func Registry() prometheus.Registerer {
	return globalRegistry
}

func GetMux() *http.ServeMux {
	mux := http.NewServeMux()

	gatherers := prometheus.Gatherers{
		prometheus.DefaultGatherer,
		globalRegistry,
	}
	mux.Handle("/metrics", promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{}))
	mux.Handle("/debug/", http.HandlerFunc(pprof.Index))
	mux.Handle("/debug/allocs/", pprof.Handler("allocs"))
	mux.Handle("/debug/block/", pprof.Handler("block"))
	mux.Handle("/debug/cmdline", http.HandlerFunc(pprof.Cmdline))
	mux.Handle("/debug/goroutine/", pprof.Handler("goroutine"))
	mux.Handle("/debug/heap/", pprof.Handler("heap"))
	mux.Handle("/debug/mutex/", pprof.Handler("mutex"))
	mux.Handle("/debug/profile", http.HandlerFunc(pprof.Profile))
	mux.Handle("/debug/symbol", http.HandlerFunc(pprof.Symbol))
	mux.Handle("/debug/trace", http.HandlerFunc(pprof.Trace))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := Ready(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	customHandlersMu.RLock()
	defer customHandlersMu.RUnlock()
	for pattern, handler := range customHandlers {
		mux.Handle(pattern, handler)
	}

	return mux
}

// NewServer returns an HTTP server for GetMux on addr.
func NewServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           GetMux(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
