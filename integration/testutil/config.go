//go:build integration

// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

// ServiceAddresses holds addresses for all services used in tests
type ServiceAddresses struct {
	ContainerServer1 string
	ContainerServer2 string
	// Debug HTTP port of ContainerServer1 (metrics, readiness)
	ContainerServer1Debug string
}

// DefaultAddresses returns default service addresses for local Docker testing
func DefaultAddresses() ServiceAddresses {
	return ServiceAddresses{
		ContainerServer1:      GetEnv("CONTAINER_SERVER_1_ADDR", "localhost:8090"),
		ContainerServer2:      GetEnv("CONTAINER_SERVER_2_ADDR", ""),
		ContainerServer1Debug: GetEnv("CONTAINER_SERVER_1_DEBUG_ADDR", "localhost:8091"),
	}
}

// Addrs is a global instance of ServiceAddresses for convenience
var Addrs = DefaultAddresses()

// Servers returns the configured container server addresses.
func (a ServiceAddresses) Servers() []string {
	out := []string{a.ContainerServer1}
	if a.ContainerServer2 != "" {
		out = append(out, a.ContainerServer2)
	}
	return out
}
