// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package vitess provides a Vitess/MySQL implementation of the db.DB interface.
package vitess

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/db"
	dbsql "github.com/LeeDigitalWorks/zapprops/pkg/metadata/db/sql"

	"github.com/go-sql-driver/mysql"
)

// TLSMode specifies how TLS should be configured for MySQL connections
type TLSMode string

const (
	// TLSModeDisabled disables TLS
	TLSModeDisabled TLSMode = "disabled"
	// TLSModePreferred uses TLS if the server offers it
	TLSModePreferred TLSMode = "preferred"
	// TLSModeRequired requires TLS but skips certificate verification
	TLSModeRequired TLSMode = "required"
	// TLSModeVerifyCA requires TLS and verifies the server certificate against a CA
	TLSModeVerifyCA TLSMode = "verify-ca"
)

// tlsConfigName is the name the verify-ca config is registered under.
const tlsConfigName = "zapprops-verify-ca"

// Config holds Vitess connection configuration
type Config struct {
	// DSN is the data source name (e.g., "user:pass@tcp(vtgate:3306)/keyspace")
	DSN string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// TLS settings
	TLSMode   TLSMode // TLS mode: disabled, preferred, required, verify-ca
	TLSCAFile string  // Path to CA certificate file (for verify-ca mode)
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig(dsn string) Config {
	return Config{
		DSN:             dsn,
		MaxOpenConns:    db.DefaultMaxOpenConns,
		MaxIdleConns:    db.DefaultMaxIdleConns,
		ConnMaxLifetime: time.Duration(db.DefaultConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(db.DefaultConnMaxIdleTime) * time.Second,
	}
}

// Vitess implements db.DB using Vitess as the backing store
type Vitess struct {
	*dbsql.Store
	config Config
}

// NewVitess creates a new Vitess-backed database
func NewVitess(cfg Config) (*Vitess, error) {
	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	store, err := dbsql.Open("mysql", dbsql.MySQLDialect{}, dbsql.Config{
		DSN:             dsn,
		Driver:          db.DriverVitess,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	})
	if err != nil {
		return nil, err
	}

	return &Vitess{
		Store:  store,
		config: cfg,
	}, nil
}

// buildDSN parses cfg.DSN and applies the TLS mode, replacing any tls
// parameter already present.
func buildDSN(cfg Config) (string, error) {
	mc, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return "", fmt.Errorf("parse DSN: %w", err)
	}

	switch cfg.TLSMode {
	case "":
	case TLSModeDisabled:
		mc.TLSConfig = "false"
		mc.TLS = nil
	case TLSModePreferred:
		mc.TLSConfig = "preferred"
	case TLSModeRequired:
		mc.TLSConfig = "skip-verify"
	case TLSModeVerifyCA:
		tlsConfig := &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
		if cfg.TLSCAFile != "" {
			caCert, err := os.ReadFile(cfg.TLSCAFile)
			if err != nil {
				return "", fmt.Errorf("read CA file: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caCert) {
				return "", fmt.Errorf("failed to append CA certificate")
			}
			tlsConfig.RootCAs = pool
		}
		if err := mysql.RegisterTLSConfig(tlsConfigName, tlsConfig); err != nil {
			return "", fmt.Errorf("register TLS config: %w", err)
		}
		mc.TLSConfig = tlsConfigName
	default:
		return "", fmt.Errorf("unknown TLS mode: %s", cfg.TLSMode)
	}

	return mc.FormatDSN(), nil
}

// Ensure Vitess implements db.DB
var _ db.DB = (*Vitess)(nil)
