// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package container_pb

import (
	"encoding/json"
	"testing"

	"github.com/LeeDigitalWorks/zapprops/pkg/property"
	"github.com/LeeDigitalWorks/zapprops/pkg/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToEntry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      *PropertyEntry
		want    property.Entry
		wantErr error
	}{
		{
			name: "label",
			in:   &PropertyEntry{Type: uint32(property.IDLabel), Str: "x"},
			want: property.Entry{ID: property.IDLabel, Value: property.String("x")},
		},
		{
			name: "bool",
			in:   &PropertyEntry{Type: uint32(property.IDChecksumServerVerify), Val: 1},
			want: property.Entry{ID: property.IDChecksumServerVerify, Value: property.Bool(true)},
		},
		{
			name:    "bool out of range",
			in:      &PropertyEntry{Type: uint32(property.IDChecksumServerVerify), Val: 2},
			wantErr: property.ErrInvalidProperty,
		},
		{
			name:    "unknown type",
			in:      &PropertyEntry{Type: 0x77},
			wantErr: property.ErrUnknownProperty,
		},
		{
			name:    "nil slot",
			wantErr: property.ErrInvalidProperty,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := tt.in.ToEntry()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.ID, got.ID)
			assert.True(t, tt.want.Value.Equal(got.Value))
		})
	}
}

func TestFillKeepsSlotTypes(t *testing.T) {
	t.Parallel()
	slots := []*PropertyEntry{
		{Type: uint32(property.IDChecksumChunkSize)},
		{Type: uint32(property.IDLabel)},
	}
	filled := Fill(slots, property.Set{
		{ID: property.IDChecksumChunkSize, Value: property.Uint64(16384)},
		{ID: property.IDLabel, Value: property.String("lbl")},
	})
	require.Len(t, filled, 2)
	assert.Equal(t, uint32(property.IDChecksumChunkSize), filled[0].Type)
	assert.Equal(t, uint64(16384), filled[0].Val)
	assert.Equal(t, "lbl", filled[1].Str)

	all := Fill(nil, property.Defaults())
	assert.Len(t, all, len(property.IDs()))
}

func TestContainerInfoRoundTrip(t *testing.T) {
	t.Parallel()
	in := &types.ContainerInfo{
		ID:         uuid.New(),
		PoolID:     uuid.New(),
		CreatedAt:  10,
		Snapshots:  []uint64{3, 7},
		NumHandles: 2,
	}
	wire := FromContainerInfo(in)
	assert.Equal(t, uint64(7), wire.LatestSnapshot)

	data, err := Codec{}.Marshal(wire)
	require.NoError(t, err)
	var decoded ContainerInfo
	require.NoError(t, Codec{}.Unmarshal(data, &decoded))

	out, err := decoded.ToContainerInfo()
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = (&ContainerInfo{Uuid: "nope"}).ToContainerInfo()
	assert.Error(t, err)
}

func TestCodecIsJSON(t *testing.T) {
	t.Parallel()
	data, err := Codec{}.Marshal(&QueryContainerRequest{Handle: "h", Properties: []*PropertyEntry{{Type: 0x1002}}})
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
	assert.JSONEq(t, `{"handle":"h","properties":[{"type":4098}]}`, string(data))
	assert.Equal(t, "json", Codec{}.Name())
}
