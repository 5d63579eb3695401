//go:build integration

// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared utilities for integration tests.
package testutil

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/client"

	"github.com/stretchr/testify/require"
)

// DefaultTimeout is the default timeout for test operations
const DefaultTimeout = 30 * time.Second

// ShortTimeout is a shorter timeout for simple operations
const ShortTimeout = 5 * time.Second

// GetEnv returns the environment variable value or a default
func GetEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// RequireEnv returns the value of key, skipping the test when it is unset.
func RequireEnv(t *testing.T, key, what string) string {
	t.Helper()
	val := os.Getenv(key)
	if val == "" {
		t.Skipf("%s not set - skipping integration test (requires %s)", key, what)
	}
	return val
}

// WithTimeout creates a context with the default timeout
func WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, DefaultTimeout)
}

// WithShortTimeout creates a context with a short timeout
func WithShortTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, ShortTimeout)
}

// UniqueLabel generates a unique container label using a timestamp
func UniqueLabel(prefix string) string {
	return prefix + "-" + time.Now().Format("20060102-150405.000000000")
}

// SkipIfShort skips the test if running in short mode
func SkipIfShort(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping in short mode")
	}
}

// NewContainerClient connects to the configured container servers and
// skips the test when none answers its readiness probe.
func NewContainerClient(t *testing.T) *client.ContainerClientPool {
	t.Helper()
	SkipIfShort(t)
	WaitReady(t, Addrs.ContainerServer1Debug)

	c, err := client.NewContainerClientPool(client.ContainerClientPoolConfig{
		SeedAddrs:      Addrs.Servers(),
		RequestTimeout: ShortTimeout,
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

// WaitReady polls the /ready endpoint of a debug server, skipping the test
// if it never becomes ready.
func WaitReady(t *testing.T, debugAddr string) {
	t.Helper()

	transport := &http.Transport{DisableKeepAlives: true}
	defer transport.CloseIdleConnections()
	hc := &http.Client{Transport: transport, Timeout: time.Second}

	deadline := time.Now().Add(ShortTimeout)
	for time.Now().Before(deadline) {
		resp, err := hc.Get("http://" + debugAddr + "/ready")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(200 * time.Millisecond)
	}
	t.Skipf("container server at %s is not ready - skipping", debugAddr)
}
