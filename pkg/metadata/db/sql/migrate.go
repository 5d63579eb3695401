// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package sql

import (
	"context"
	"fmt"

	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/db"
)

// Migrate creates the schema_migrations table and applies the pending
// migrations of the store's driver.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	driver := s.config.Driver
	if driver == "" {
		driver = db.Driver(s.dialect.Name())
	}
	return db.RunMigrations(ctx, &migrator{store: s}, driver)
}

// migrator implements db.Migrator on top of a Store.
type migrator struct {
	store *Store
}

func (m *migrator) CurrentVersion(ctx context.Context) (int, error) {
	var version int
	err := m.store.QueryRow(ctx, `
		SELECT COALESCE(MAX(version), 0) FROM schema_migrations
	`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("get current version: %w", err)
	}
	return version, nil
}

// Apply executes the statements of a migration one at a time; the MySQL
// driver rejects multi-statement scripts by default.
func (m *migrator) Apply(ctx context.Context, migration db.Migration) error {
	for _, stmt := range db.SplitStatements(migration.SQL) {
		if _, err := m.store.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute statement: %w", err)
		}
	}
	return nil
}

func (m *migrator) SetVersion(ctx context.Context, version int) error {
	_, err := m.store.Exec(ctx, `
		INSERT INTO schema_migrations (version) VALUES ($1)
	`, version)
	if err != nil {
		return fmt.Errorf("record migration version: %w", err)
	}
	return nil
}
