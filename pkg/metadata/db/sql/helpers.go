// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package sql

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/db"
	"github.com/LeeDigitalWorks/zapprops/pkg/property"
	"github.com/LeeDigitalWorks/zapprops/pkg/types"

	"github.com/google/uuid"
)

// scanContainer scans the id, pool_id, created_at and modified_at columns.
func scanContainer(s scanner) (*types.ContainerInfo, error) {
	var (
		info          types.ContainerInfo
		idStr, poolID string
	)
	err := s.Scan(&idStr, &poolID, &info.CreatedAt, &info.ModifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrContainerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan container: %w", err)
	}

	if info.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("parse container id %q: %w", idStr, err)
	}
	if info.PoolID, err = uuid.Parse(poolID); err != nil {
		return nil, fmt.Errorf("parse pool id %q: %w", poolID, err)
	}
	return &info, nil
}

// scanProperty scans one container_properties row. num_val carries the bits
// of the unsigned value in a signed column.
func scanProperty(s scanner) (property.Entry, error) {
	var (
		id     int64
		kind   int
		num    int64
		strVal string
	)
	if err := s.Scan(&id, &kind, &num, &strVal); err != nil {
		return property.Entry{}, fmt.Errorf("scan property: %w", err)
	}
	v, err := property.NewValue(property.Kind(kind), uint64(num), strVal)
	if err != nil {
		return property.Entry{}, fmt.Errorf("decode property %#x: %w", id, err)
	}
	return property.Entry{ID: property.ID(id), Value: v}, nil
}
