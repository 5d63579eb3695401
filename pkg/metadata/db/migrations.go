// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed migrations
var migrationsFS embed.FS

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// migrationDir maps a driver to the directory holding its dialect's scripts.
func migrationDir(driver Driver) (string, error) {
	switch driver {
	case DriverPostgres, DriverCockroach:
		return "migrations/postgres", nil
	case DriverMySQL, DriverVitess:
		return "migrations/mysql", nil
	case DriverSQLite:
		return "migrations/sqlite", nil
	default:
		return "", fmt.Errorf("no migrations for driver %q", driver)
	}
}

// LoadMigrations loads the migration files for driver from the embedded
// filesystem, ordered by version.
func LoadMigrations(driver Driver) ([]Migration, error) {
	dir, err := migrationDir(driver)
	if err != nil {
		return nil, err
	}
	entries, err := fs.ReadDir(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		// 001_create_containers.sql -> 1, create_containers
		var version int
		var name string
		if _, err := fmt.Sscanf(entry.Name(), "%d_%s", &version, &name); err != nil {
			return nil, fmt.Errorf("parse migration filename %s: %w", entry.Name(), err)
		}

		content, err := fs.ReadFile(migrationsFS, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		migrations = append(migrations, Migration{
			Version: version,
			Name:    strings.TrimSuffix(name, ".sql"),
			SQL:     string(content),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	for i := 1; i < len(migrations); i++ {
		if migrations[i].Version == migrations[i-1].Version {
			return nil, fmt.Errorf("duplicate migration version %d", migrations[i].Version)
		}
	}

	return migrations, nil
}

// Migrator handles database migrations
type Migrator interface {
	// CurrentVersion returns the current migration version
	CurrentVersion(ctx context.Context) (int, error)
	// Apply applies a migration
	Apply(ctx context.Context, m Migration) error
	// SetVersion records that a migration has been applied
	SetVersion(ctx context.Context, version int) error
}

// RunMigrations applies all pending migrations for driver
func RunMigrations(ctx context.Context, migrator Migrator, driver Driver) error {
	migrations, err := LoadMigrations(driver)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	currentVersion, err := migrator.CurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		if err := migrator.Apply(ctx, m); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Name, err)
		}

		if err := migrator.SetVersion(ctx, m.Version); err != nil {
			return fmt.Errorf("set version %d: %w", m.Version, err)
		}
	}

	return nil
}

// SplitStatements splits a migration script into individual statements.
// Semicolons inside quoted strings and comments do not end a statement,
// and comment lines leading a statement are dropped.
func SplitStatements(script string) []string {
	var (
		statements []string
		current    strings.Builder
		quote      byte
		inLine     bool
		inBlock    bool
	)

	flush := func() {
		if stmt := stripLeadingComments(current.String()); stmt != "" {
			statements = append(statements, stmt)
		}
		current.Reset()
	}

	for i := 0; i < len(script); i++ {
		c := script[i]
		next := byte(0)
		if i+1 < len(script) {
			next = script[i+1]
		}

		switch {
		case inLine:
			if c == '\n' {
				inLine = false
			}
		case inBlock:
			if c == '*' && next == '/' {
				current.WriteByte(c)
				c = next
				i++
				inBlock = false
			}
		case quote != 0:
			if c == quote {
				if next == quote {
					current.WriteByte(c)
					i++
				} else {
					quote = 0
				}
			}
		case c == '-' && next == '-':
			inLine = true
		case c == '/' && next == '*':
			inBlock = true
		case c == '\'' || c == '"':
			quote = c
		case c == ';':
			flush()
			continue
		}
		current.WriteByte(c)
	}
	flush()

	return statements
}

func stripLeadingComments(stmt string) string {
	lines := strings.Split(stmt, "\n")
	for len(lines) > 0 {
		line := strings.TrimSpace(lines[0])
		if line == "" || strings.HasPrefix(line, "--") {
			lines = lines[1:]
			continue
		}
		break
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
