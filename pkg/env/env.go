// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package env holds the deployment environment read from ENV.
package env

import (
	"sync"

	"github.com/spf13/viper"
)

const (
	Local      = "local"
	Production = "production"
	Testing    = "testing"
)

var (
	mu  sync.RWMutex
	env = Local
)

func get() string {
	mu.RLock()
	defer mu.RUnlock()
	return env
}

func IsLocal() bool {
	return get() == Local
}

func IsProduction() bool {
	return get() == Production
}

func IsTesting() bool {
	return get() == Testing
}

// Env returns the current environment name.
func Env() string {
	return get()
}

// Set overrides the environment. Unknown names fall back to Local.
func Set(name string) {
	switch name {
	case Local, Production, Testing:
	default:
		name = Local
	}
	mu.Lock()
	env = name
	mu.Unlock()
}

// Load reads ENV (or ZAPPROPS_ENV, or "env" in a config file) through viper.
// It is called again after config files are merged.
func Load() string {
	viper.BindEnv("env", "ZAPPROPS_ENV", "ENV")
	Set(viper.GetString("env"))
	return Env()
}

func init() {
	Load()
}
