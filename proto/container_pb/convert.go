// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package container_pb

import (
	"fmt"

	"github.com/LeeDigitalWorks/zapprops/pkg/property"
	"github.com/LeeDigitalWorks/zapprops/pkg/types"

	"github.com/google/uuid"
)

// FromEntry encodes a property entry for the wire.
func FromEntry(e property.Entry) *PropertyEntry {
	return &PropertyEntry{Type: uint32(e.ID), Val: e.Value.Num(), Str: e.Value.Str()}
}

// FromSet encodes a property set for the wire.
func FromSet(s property.Set) []*PropertyEntry {
	out := make([]*PropertyEntry, len(s))
	for i, e := range s {
		out[i] = FromEntry(e)
	}
	return out
}

// ToEntry decodes a wire entry using the kind of its descriptor.
func (p *PropertyEntry) ToEntry() (property.Entry, error) {
	if p == nil {
		return property.Entry{}, fmt.Errorf("%w: nil entry", property.ErrInvalidProperty)
	}
	id := property.ID(p.Type)
	d, err := property.DescriptorFor(id)
	if err != nil {
		return property.Entry{}, err
	}
	v, err := property.NewValue(d.Kind, p.Val, p.Str)
	if err != nil {
		return property.Entry{}, fmt.Errorf("%s: %w", id, err)
	}
	return property.Entry{ID: id, Value: v}, nil
}

// ToSet decodes wire entries into a property set.
func ToSet(entries []*PropertyEntry) (property.Set, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	out := make(property.Set, len(entries))
	for i, p := range entries {
		e, err := p.ToEntry()
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

// IDs returns the ids of query slots in request order.
func IDs(entries []*PropertyEntry) []property.ID {
	if len(entries) == 0 {
		return nil
	}
	ids := make([]property.ID, len(entries))
	for i, p := range entries {
		ids[i] = property.ID(p.GetType())
	}
	return ids
}

// Fill writes the values of s into the slots, matching by position. The
// slot Type is left as sent.
func Fill(slots []*PropertyEntry, s property.Set) []*PropertyEntry {
	if len(slots) == 0 {
		return FromSet(s)
	}
	for i, slot := range slots {
		if slot == nil || i >= len(s) {
			continue
		}
		slot.Val = s[i].Value.Num()
		slot.Str = s[i].Value.Str()
	}
	return slots
}

// GetType returns the slot type, or 0 for a nil slot.
func (p *PropertyEntry) GetType() uint32 {
	if p == nil {
		return 0
	}
	return p.Type
}

// FromContainerInfo encodes container metadata for the wire.
func FromContainerInfo(c *types.ContainerInfo) *ContainerInfo {
	if c == nil {
		return nil
	}
	return &ContainerInfo{
		Uuid:           c.ID.String(),
		PoolUuid:       c.PoolID.String(),
		CreatedAt:      c.CreatedAt,
		ModifiedAt:     c.ModifiedAt,
		OpenedAt:       c.OpenedAt,
		ClosedAt:       c.ClosedAt,
		Snapshots:      c.Snapshots,
		LatestSnapshot: c.LatestSnapshot(),
		NumHandles:     int32(c.NumHandles),
	}
}

// ToContainerInfo decodes wire container metadata.
func (c *ContainerInfo) ToContainerInfo() (*types.ContainerInfo, error) {
	if c == nil {
		return nil, nil
	}
	id, err := uuid.Parse(c.Uuid)
	if err != nil {
		return nil, fmt.Errorf("container uuid: %w", err)
	}
	pool, err := uuid.Parse(c.PoolUuid)
	if err != nil {
		return nil, fmt.Errorf("pool uuid: %w", err)
	}
	return &types.ContainerInfo{
		ID:         id,
		PoolID:     pool,
		CreatedAt:  c.CreatedAt,
		ModifiedAt: c.ModifiedAt,
		OpenedAt:   c.OpenedAt,
		ClosedAt:   c.ClosedAt,
		Snapshots:  c.Snapshots,
		NumHandles: int(c.NumHandles),
	}, nil
}

// ParseUUID parses an optional id; the empty string yields uuid.Nil.
func ParseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(s)
}

// FormatUUID formats id, mapping uuid.Nil to the empty string.
func FormatUUID(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}
