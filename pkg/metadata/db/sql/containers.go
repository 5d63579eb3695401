// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/db"
	"github.com/LeeDigitalWorks/zapprops/pkg/property"
	"github.com/LeeDigitalWorks/zapprops/pkg/types"

	"github.com/google/uuid"
)

// ============================================================================
// Container Operations
// ============================================================================

func (s *Store) CreateContainer(ctx context.Context, info *types.ContainerInfo, props property.Set) error {
	if err := db.CheckCreate(info, props); err != nil {
		return err
	}

	return s.WithTx(ctx, nil, func(tx *TxStore) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO containers (id, pool_id, created_at, modified_at, version)
			VALUES ($1, $2, $3, $4, $5)
		`, info.ID.String(), info.PoolID.String(), info.CreatedAt, info.ModifiedAt, int64(db.InitialVersion))
		if err != nil {
			if tx.Dialect().IsUniqueViolation(err) {
				return db.ErrContainerExists
			}
			return fmt.Errorf("insert container: %w", err)
		}
		return upsertProperties(ctx, tx, info.ID, props)
	})
}

func (s *Store) GetContainer(ctx context.Context, id uuid.UUID) (*types.ContainerInfo, error) {
	var info *types.ContainerInfo
	err := s.WithTx(ctx, s.dialect.ReadTxOptions(), func(tx *TxStore) error {
		var err error
		info, err = scanContainer(tx.QueryRow(ctx, `
			SELECT id, pool_id, created_at, modified_at
			FROM containers WHERE id = $1
		`, id.String()))
		if err != nil {
			return err
		}
		info.Snapshots, err = listSnapshots(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// GetProperties reads the version and the property rows in one read-only
// transaction so both come from the same committed state.
func (s *Store) GetProperties(ctx context.Context, id uuid.UUID, ids []property.ID) (property.Set, uint64, error) {
	ids, err := db.RequestedIDs(ids)
	if err != nil {
		return nil, 0, err
	}

	var (
		stored  property.Set
		version uint64
	)
	err = s.WithTx(ctx, s.dialect.ReadTxOptions(), func(tx *TxStore) error {
		err := tx.QueryRow(ctx, `SELECT version FROM containers WHERE id = $1`, id.String()).Scan(&version)
		if errors.Is(err, sql.ErrNoRows) {
			return db.ErrContainerNotFound
		}
		if err != nil {
			return fmt.Errorf("get version: %w", err)
		}
		stored, err = loadProperties(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	props, err := stored.Select(ids)
	if err != nil {
		return nil, 0, err
	}
	return props, version, nil
}

func (s *Store) PutProperties(ctx context.Context, id uuid.UUID, props property.Set, expectedVersion uint64) (uint64, error) {
	if err := db.CheckPut(props); err != nil {
		return 0, err
	}

	var next uint64
	err := s.WithTx(ctx, nil, func(tx *TxStore) error {
		current, err := lockContainer(ctx, tx, id)
		if err != nil {
			return err
		}
		if expectedVersion != 0 && expectedVersion != current {
			return db.ErrVersionConflict
		}
		if err := upsertProperties(ctx, tx, id, props); err != nil {
			return err
		}
		next = current + 1
		_, err = tx.Exec(ctx, `
			UPDATE containers SET version = $1, modified_at = $2 WHERE id = $3
		`, int64(next), time.Now().UnixNano(), id.String())
		if err != nil {
			return fmt.Errorf("bump version: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

func (s *Store) DestroyContainer(ctx context.Context, id uuid.UUID) error {
	return s.WithTx(ctx, nil, func(tx *TxStore) error {
		res, err := tx.Exec(ctx, `DELETE FROM containers WHERE id = $1`, id.String())
		if err != nil {
			return fmt.Errorf("delete container: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("delete container: %w", err)
		} else if n == 0 {
			return db.ErrContainerNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM container_properties WHERE container_id = $1`, id.String()); err != nil {
			return fmt.Errorf("delete properties: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM container_snapshots WHERE container_id = $1`, id.String()); err != nil {
			return fmt.Errorf("delete snapshots: %w", err)
		}
		return nil
	})
}

func (s *Store) ListContainers(ctx context.Context, params *db.ListContainersParams) (*db.ListContainersResult, error) {
	if params == nil {
		params = &db.ListContainersParams{}
	}
	after, err := db.ParseContinuationToken(params.ContinuationToken)
	if err != nil {
		return nil, err
	}
	limit := params.PageSize()

	query := `SELECT id, pool_id, created_at, modified_at FROM containers WHERE id > $1`
	args := []any{""}
	if after != uuid.Nil {
		args[0] = after.String()
	}
	if params.PoolID != uuid.Nil {
		query += ` AND pool_id = $2`
		args = append(args, params.PoolID.String())
	}
	query += fmt.Sprintf(` ORDER BY id LIMIT %d`, limit+1)

	result := &db.ListContainersResult{}
	err = s.WithTx(ctx, s.dialect.ReadTxOptions(), func(tx *TxStore) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("list containers: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			info, err := scanContainer(rows)
			if err != nil {
				return err
			}
			result.Containers = append(result.Containers, info)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("list containers: %w", err)
		}
		rows.Close()

		if len(result.Containers) > limit {
			result.Containers = result.Containers[:limit]
			result.IsTruncated = true
			result.NextContinuationToken = result.Containers[limit-1].ID.String()
		}
		return attachSnapshots(ctx, tx, result.Containers)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ============================================================================
// Snapshot Operations
// ============================================================================

func (s *Store) AddSnapshot(ctx context.Context, id uuid.UUID, epoch uint64, limit uint64) error {
	return s.WithTx(ctx, nil, func(tx *TxStore) error {
		if _, err := lockContainer(ctx, tx, id); err != nil {
			return err
		}
		epochs, err := listSnapshots(ctx, tx, id)
		if err != nil {
			return err
		}
		if slices.Contains(epochs, epoch) {
			return db.ErrSnapshotExists
		}
		if limit != 0 && uint64(len(epochs)) >= limit {
			return db.ErrSnapshotLimit
		}

		now := time.Now().UnixNano()
		_, err = tx.Exec(ctx, `
			INSERT INTO container_snapshots (container_id, epoch, created_at) VALUES ($1, $2, $3)
		`, id.String(), int64(epoch), now)
		if err != nil {
			if tx.Dialect().IsUniqueViolation(err) {
				return db.ErrSnapshotExists
			}
			return fmt.Errorf("insert snapshot: %w", err)
		}
		return touchContainer(ctx, tx, id, now)
	})
}

func (s *Store) DeleteSnapshot(ctx context.Context, id uuid.UUID, epoch uint64) error {
	return s.WithTx(ctx, nil, func(tx *TxStore) error {
		if _, err := lockContainer(ctx, tx, id); err != nil {
			return err
		}
		res, err := tx.Exec(ctx, `
			DELETE FROM container_snapshots WHERE container_id = $1 AND epoch = $2
		`, id.String(), int64(epoch))
		if err != nil {
			return fmt.Errorf("delete snapshot: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("delete snapshot: %w", err)
		} else if n == 0 {
			return db.ErrSnapshotNotFound
		}
		return touchContainer(ctx, tx, id, time.Now().UnixNano())
	})
}

// ============================================================================
// Helpers
// ============================================================================

// lockContainer returns the current property version, locking the
// container row for the rest of the transaction.
func lockContainer(ctx context.Context, q Querier, id uuid.UUID) (uint64, error) {
	var version uint64
	err := q.QueryRow(ctx, `SELECT version FROM containers WHERE id = $1`+q.Dialect().LockSuffix(), id.String()).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, db.ErrContainerNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lock container: %w", err)
	}
	return version, nil
}

func touchContainer(ctx context.Context, q Querier, id uuid.UUID, now int64) error {
	if _, err := q.Exec(ctx, `UPDATE containers SET modified_at = $1 WHERE id = $2`, now, id.String()); err != nil {
		return fmt.Errorf("update container: %w", err)
	}
	return nil
}

func upsertProperties(ctx context.Context, q Querier, id uuid.UUID, props property.Set) error {
	query := `
		INSERT INTO container_properties (container_id, prop_id, kind, num_val, str_val)
		VALUES ($1, $2, $3, $4, $5)` +
		q.Dialect().UpsertSuffix("container_id, prop_id", []string{"kind", "num_val", "str_val"})

	for _, e := range props {
		_, err := q.Exec(ctx, query, id.String(), int64(e.ID), int(e.Value.Kind()), int64(e.Value.Num()), e.Value.Str())
		if err != nil {
			return fmt.Errorf("store property %s: %w", e.ID, err)
		}
	}
	return nil
}

func loadProperties(ctx context.Context, q Querier, id uuid.UUID) (property.Set, error) {
	rows, err := q.Query(ctx, `
		SELECT prop_id, kind, num_val, str_val
		FROM container_properties WHERE container_id = $1
		ORDER BY prop_id
	`, id.String())
	if err != nil {
		return nil, fmt.Errorf("load properties: %w", err)
	}
	defer rows.Close()

	var props property.Set
	for rows.Next() {
		e, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		props = append(props, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load properties: %w", err)
	}
	return props, nil
}

func listSnapshots(ctx context.Context, q Querier, id uuid.UUID) ([]uint64, error) {
	rows, err := q.Query(ctx, `SELECT epoch FROM container_snapshots WHERE container_id = $1`, id.String())
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var epochs []uint64
	for rows.Next() {
		var epoch int64
		if err := rows.Scan(&epoch); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		epochs = append(epochs, uint64(epoch))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	slices.Sort(epochs)
	return epochs, nil
}

// attachSnapshots fills the snapshot lists of a listing page with a single
// query.
func attachSnapshots(ctx context.Context, q Querier, containers []*types.ContainerInfo) error {
	if len(containers) == 0 {
		return nil
	}
	byID := make(map[string]*types.ContainerInfo, len(containers))
	marks := make([]string, len(containers))
	args := make([]any, len(containers))
	for i, c := range containers {
		byID[c.ID.String()] = c
		marks[i] = fmt.Sprintf("$%d", i+1)
		args[i] = c.ID.String()
	}

	rows, err := q.Query(ctx, `
		SELECT container_id, epoch FROM container_snapshots
		WHERE container_id IN (`+strings.Join(marks, ", ")+`)
	`, args...)
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid   string
			epoch int64
		)
		if err := rows.Scan(&cid, &epoch); err != nil {
			return fmt.Errorf("scan snapshot: %w", err)
		}
		if c, ok := byID[cid]; ok {
			c.Snapshots = append(c.Snapshots, uint64(epoch))
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}
	for _, c := range containers {
		slices.Sort(c.Snapshots)
	}
	return nil
}
