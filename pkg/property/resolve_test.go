// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package property

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opts    CreateOptions
		want    map[ID]Value
		wantErr error
	}{
		{
			name: "posix with checksum and server verify",
			opts: CreateOptions{Type: "POSIX", ChecksumEnabled: true, ServerVerify: true},
			want: map[ID]Value{
				IDLayoutType:           Enum(uint32(LayoutPOSIX)),
				IDChecksum:             Enum(uint32(ChecksumCRC16)),
				IDChecksumServerVerify: Bool(true),
				IDChecksumChunkSize:    Uint64(DefaultChunkSize),
				IDLabel:                String(DefaultLabel),
				IDLayoutVersion:        Uint32(DefaultLayoutVersion),
			},
		},
		{
			name: "explicit checksum type and chunk size",
			opts: CreateOptions{Type: "hdf5", ChecksumEnabled: true, ChecksumType: ChecksumSHA256, ChunkSize: 1 << 20},
			want: map[ID]Value{
				IDLayoutType:        Enum(uint32(LayoutHDF5)),
				IDChecksum:          Enum(uint32(ChecksumSHA256)),
				IDChecksumChunkSize: Uint64(1 << 20),
			},
		},
		{
			name: "default sentinel selects crc16",
			opts: CreateOptions{Type: "PYTHON", ChecksumEnabled: true, ChecksumType: ChecksumTypeDefault},
			want: map[ID]Value{IDChecksum: Enum(uint32(ChecksumCRC16))},
		},
		{
			name: "checksum disabled keeps supplied details",
			opts: CreateOptions{Type: "POSIX", ChecksumType: ChecksumSHA1, ServerVerify: true, ChunkSize: 8192},
			want: map[ID]Value{
				IDChecksum:             Enum(uint32(ChecksumOff)),
				IDChecksumServerVerify: Bool(true),
				IDChecksumChunkSize:    Uint64(8192),
			},
		},
		{
			name: "explicit entries override fields",
			opts: CreateOptions{
				Type:    "DATABASE",
				Label:   "orders",
				Entries: Set{{ID: IDLabel, Value: String("orders-v2")}, {ID: IDSnapshotMax, Value: Uint64(8)}},
			},
			want: map[ID]Value{
				IDLabel:       String("orders-v2"),
				IDSnapshotMax: Uint64(8),
			},
		},
		{
			name:    "unsupported type",
			opts:    CreateOptions{Type: "ext4"},
			wantErr: ErrUnsupportedType,
		},
		{
			name:    "missing type",
			opts:    CreateOptions{},
			wantErr: ErrUnsupportedType,
		},
		{
			name:    "layout cannot be supplied",
			opts:    CreateOptions{Type: "POSIX", Entries: Set{{ID: IDLayoutType, Value: Enum(uint32(LayoutHDF5))}}},
			wantErr: ErrInvalidProperty,
		},
		{
			name:    "chunk size too large",
			opts:    CreateOptions{Type: "POSIX", ChecksumEnabled: true, ChunkSize: MaxChunkSize + 1},
			wantErr: ErrInvalidProperty,
		},
		{
			name:    "invalid checksum type",
			opts:    CreateOptions{Type: "POSIX", ChecksumEnabled: true, ChecksumType: 9},
			wantErr: ErrInvalidProperty,
		},
		{
			name:    "redundancy factor out of range",
			opts:    CreateOptions{Type: "SPARK", RedundancyFactor: 5},
			wantErr: ErrInvalidProperty,
		},
		{
			name:    "unknown explicit entry",
			opts:    CreateOptions{Type: "POSIX", Entries: Set{{ID: 0x1fff, Value: Uint32(1)}}},
			wantErr: ErrUnknownProperty,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := Resolve(tc.opts)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, IDs(), got.IDs(), "resolved set must cover the schema in order")
			for id, want := range tc.want {
				v, ok := got.Get(id)
				require.True(t, ok, id.String())
				assert.True(t, want.Equal(v), "%s: want %v got %v", id, want, v)
			}
		})
	}
}

func TestPresentMasksDisabledChecksumDetails(t *testing.T) {
	t.Parallel()

	stored, err := Resolve(CreateOptions{Type: "POSIX", ServerVerify: true, ChunkSize: 4096})
	require.NoError(t, err)

	masked := Present(stored)
	verify, _ := masked.Get(IDChecksumServerVerify)
	chunk, _ := masked.Get(IDChecksumChunkSize)
	assert.Equal(t, uint64(0), verify.Num())
	assert.Equal(t, uint64(0), chunk.Num())

	// Stored values survive masking and reappear once checksums are enabled.
	raw, _ := stored.Get(IDChecksumChunkSize)
	assert.Equal(t, uint64(4096), raw.Uint64())

	enabled := Present(stored.Merge(Set{{ID: IDChecksum, Value: Enum(uint32(ChecksumCRC64))}}))
	verify, _ = enabled.Get(IDChecksumServerVerify)
	chunk, _ = enabled.Get(IDChecksumChunkSize)
	assert.Equal(t, uint64(1), verify.Num())
	assert.Equal(t, uint64(4096), chunk.Num())
}

func TestPresentWithoutDependencyInSet(t *testing.T) {
	t.Parallel()

	// Checksum defaults to OFF when it is not part of the stored set.
	got := Present(Set{{ID: IDChecksumChunkSize, Value: Uint64(512)}})
	require.Len(t, got, 1)
	assert.Equal(t, uint64(0), got[0].Value.Num())
}

func TestRoundTripEndToEndScenario(t *testing.T) {
	t.Parallel()

	stored, err := Resolve(CreateOptions{Type: "POSIX", ChecksumEnabled: true, ServerVerify: true})
	require.NoError(t, err)

	got, err := Present(stored).Select([]ID{IDLayoutType, IDChecksum, IDChecksumServerVerify, IDChecksumChunkSize})
	require.NoError(t, err)

	nums := make([]uint64, len(got))
	for i, e := range got {
		nums[i] = e.Value.Num()
	}
	assert.Equal(t, []uint64{uint64(LayoutPOSIX), 1, 1, 16384}, nums)
}

func TestNormalizeUpdate(t *testing.T) {
	t.Parallel()

	got, err := NormalizeUpdate(Set{
		{ID: IDChecksum, Value: Enum(uint32(ChecksumTypeDefault))},
		{ID: IDChecksumChunkSize, Value: Uint64(0)},
	})
	require.NoError(t, err)
	want := Set{
		{ID: IDChecksum, Value: Enum(uint32(DefaultChecksumType))},
		{ID: IDChecksumChunkSize, Value: Uint64(DefaultChunkSize)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("NormalizeUpdate() mismatch (-want +got):\n%s", diff)
	}

	_, err = NormalizeUpdate(Set{{ID: IDLayoutType, Value: Enum(uint32(LayoutHDF5))}})
	assert.ErrorIs(t, err, ErrInvalidProperty)

	_, err = NormalizeUpdate(Set{{ID: IDRedundancyFactor, Value: Uint32(1)}})
	assert.ErrorIs(t, err, ErrInvalidProperty)

	_, err = NormalizeUpdate(nil)
	assert.ErrorIs(t, err, ErrInvalidProperty)
}

func TestSetSelectFallsBackToDefault(t *testing.T) {
	t.Parallel()

	got, err := Set{{ID: IDChecksum, Value: Enum(1)}}.Select([]ID{IDSnapshotMax, IDChecksum})
	require.NoError(t, err)
	want := Set{{ID: IDSnapshotMax, Value: Uint64(0)}, {ID: IDChecksum, Value: Enum(1)}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Select() mismatch (-want +got):\n%s", diff)
	}

	_, err = Set{}.Select([]ID{0x4242})
	assert.ErrorIs(t, err, ErrUnknownProperty)
}

func TestValueJSON(t *testing.T) {
	t.Parallel()

	in := Set{
		{ID: IDLabel, Value: String("scratch")},
		{ID: IDChecksumServerVerify, Value: Bool(true)},
		{ID: IDChecksumChunkSize, Value: Uint64(1 << 40)},
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out Set
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, in.Equal(out))

	var v Value
	assert.Error(t, json.Unmarshal([]byte(`{"kind":"bool","num":2}`), &v))
	assert.Error(t, json.Unmarshal([]byte(`{"kind":"uint32","num":4294967296}`), &v))
	assert.Error(t, json.Unmarshal([]byte(`{"kind":"bogus"}`), &v))
}
