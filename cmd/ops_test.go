// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/LeeDigitalWorks/zapprops/pkg/cache"
	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/db/memory"
	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/service/container"
	"github.com/LeeDigitalWorks/zapprops/pkg/property"
	"github.com/LeeDigitalWorks/zapprops/pkg/types"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPool = uuid.MustParse("2b0f8c51-7d1e-4f0b-9c1a-5a4e2b7c9d30")

func newTestService(t *testing.T) container.Service {
	t.Helper()
	handles := cache.NewHandleTable(cache.HandleTableConfig{})
	t.Cleanup(handles.Stop)
	svc, err := container.NewService(container.Config{DB: memory.New(), Handles: handles})
	require.NoError(t, err)
	return svc
}

func createPOSIX(t *testing.T, svc container.Service, opts property.CreateOptions) uuid.UUID {
	t.Helper()
	if opts.Type == "" {
		opts.Type = "POSIX"
	}
	res, err := svc.CreateContainer(context.Background(), &container.CreateContainerRequest{PoolID: testPool, Options: opts})
	require.NoError(t, err)
	return res.Info.ID
}

func TestCreateRequestFromFlags(t *testing.T) {
	t.Parallel()

	c := &cobra.Command{}
	addCreateFlags(c.Flags())
	require.NoError(t, c.Flags().Parse([]string{
		"--pool", testPool.String(),
		"--checksum", "default",
		"--server_verify",
		"--label", "scratch",
		"--property", "snapshot_max=4",
	}))

	req, err := createRequestFromFlags(c)
	require.NoError(t, err)
	assert.Equal(t, testPool, req.PoolID)
	assert.Equal(t, uuid.Nil, req.ContainerID)
	assert.Equal(t, "POSIX", req.Options.Type)
	assert.True(t, req.Options.ChecksumEnabled)
	assert.Equal(t, property.ChecksumTypeDefault, req.Options.ChecksumType)
	assert.Zero(t, req.Options.ChunkSize)
	assert.Equal(t, property.Set{{ID: property.IDSnapshotMax, Value: property.Uint64(4)}}, req.Options.Entries)

	// The CLI create and query reproduce the end-to-end checksum scenario.
	svc := newTestService(t)
	ctx := context.Background()
	created, err := svc.CreateContainer(ctx, req)
	require.NoError(t, err)

	ids, err := parsePropertyNames([]string{"layout_type", "checksum", "checksum_server_verify", "checksum_chunk_size"})
	require.NoError(t, err)
	res, err := queryContainer(ctx, svc, created.Info.ID, ids)
	require.NoError(t, err)
	assert.Equal(t, created.Info.ID, res.Info.ID)

	var got []uint64
	for _, e := range res.Properties {
		got = append(got, e.Value.Num())
	}
	assert.Equal(t, []uint64{uint64(property.LayoutPOSIX), 1, 1, property.DefaultChunkSize}, got)
}

func TestCreateRequestFromFlagsErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
	}{
		{"bad pool", []string{"--pool", "nope"}},
		{"bad id", []string{"--pool", testPool.String(), "--id", "nope"}},
		{"bad checksum", []string{"--pool", testPool.String(), "--checksum", "md5"}},
		{"bad chunk size", []string{"--pool", testPool.String(), "--chunk_size", "lots"}},
		{"bad property", []string{"--pool", testPool.String(), "--property", "colour=red"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := &cobra.Command{}
			addCreateFlags(c.Flags())
			require.NoError(t, c.Flags().Parse(tt.args))
			_, err := createRequestFromFlags(c)
			assert.Error(t, err)
		})
	}
}

func TestParseAssignment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    property.Entry
		wantErr bool
	}{
		{in: "label=scratch", want: property.Entry{ID: property.IDLabel, Value: property.String("scratch")}},
		{in: "0x1001=by-code", want: property.Entry{ID: property.IDLabel, Value: property.String("by-code")}},
		{in: "checksum=sha256", want: property.Entry{ID: property.IDChecksum, Value: property.Enum(uint32(property.ChecksumSHA256))}},
		{in: "checksum_chunk_size=32KiB", want: property.Entry{ID: property.IDChecksumChunkSize, Value: property.Uint64(32768)}},
		{in: "checksum_chunk_size=4096", want: property.Entry{ID: property.IDChecksumChunkSize, Value: property.Uint64(4096)}},
		{in: "checksum_server_verify=true", want: property.Entry{ID: property.IDChecksumServerVerify, Value: property.Bool(true)}},
		{in: "redundancy_factor=2", want: property.Entry{ID: property.IDRedundancyFactor, Value: property.Uint32(2)}},
		{in: "snapshot_max=0x10", want: property.Entry{ID: property.IDSnapshotMax, Value: property.Uint64(16)}},
		{in: "layout_type=hdf5", want: property.Entry{ID: property.IDLayoutType, Value: property.Enum(uint32(property.LayoutHDF5))}},
		{in: "label", wantErr: true},
		{in: "colour=red", wantErr: true},
		{in: "redundancy_factor=two", wantErr: true},
		{in: "checksum=md5", wantErr: true},
		{in: "checksum_server_verify=maybe", wantErr: true},
		{in: "snapshot_max=16KiB", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := parseAssignment(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePropertyNames(t *testing.T) {
	t.Parallel()

	ids, err := parsePropertyNames(nil)
	require.NoError(t, err)
	assert.Nil(t, ids)

	ids, err = parsePropertyNames([]string{"snapshot_max", "0x1001", "4100"})
	require.NoError(t, err)
	assert.Equal(t, []property.ID{property.IDSnapshotMax, property.IDLabel, property.IDChecksum}, ids)

	_, err = parsePropertyNames([]string{"label", "bogus"})
	assert.ErrorIs(t, err, property.ErrUnknownProperty)
}

func TestQueryContainerClosesHandle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newTestService(t)
	id := createPOSIX(t, svc, property.CreateOptions{})

	res, err := queryContainer(ctx, svc, id, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Info.NumHandles)
	assert.Len(t, res.Properties, len(property.IDs()))

	list, err := svc.ListContainers(ctx, nil)
	require.NoError(t, err)
	require.Len(t, list.Containers, 1)
	assert.Zero(t, list.Containers[0].NumHandles)

	_, err = queryContainer(ctx, svc, uuid.New(), nil)
	assert.True(t, container.IsNotFound(err))
}

func TestSetPropertiesThroughHandle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newTestService(t)
	id := createPOSIX(t, svc, property.CreateOptions{})

	props, err := parseAssignments([]string{"label=renamed", "snapshot_max=3"})
	require.NoError(t, err)
	version, err := setProperties(ctx, svc, id, props, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), version)

	_, err = setProperties(ctx, svc, id, props, 1)
	var e *container.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, container.ErrCodeVersionConflict, e.Code)

	res, err := queryContainer(ctx, svc, id, []property.ID{property.IDLabel})
	require.NoError(t, err)
	assert.Equal(t, "renamed", res.Properties[0].Value.Str())
	assert.Equal(t, 1, res.Info.NumHandles, "only the query handle is open")
}

func TestWithHandleSnapshot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newTestService(t)
	id := createPOSIX(t, svc, property.CreateOptions{})

	epoch, err := withHandle(ctx, svc, id, types.OpenReadWrite, func(h uuid.UUID) (uint64, error) {
		return svc.CreateSnapshot(ctx, h, 42)
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(42), epoch)

	_, err = withHandle(ctx, svc, id, types.OpenReadOnly, func(h uuid.UUID) (uint64, error) {
		return 0, svc.DestroySnapshot(ctx, h, 42)
	})
	var e *container.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, container.ErrCodeAccessDenied, e.Code)
}

func TestListContainersWithQuery(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newTestService(t)

	created := make(map[uuid.UUID]bool)
	for range 5 {
		created[createPOSIX(t, svc, property.CreateOptions{ChecksumEnabled: true, ChecksumType: property.ChecksumCRC32})] = true
	}

	ids := []property.ID{property.IDChecksum, property.IDLabel}
	rows, err := listContainers(ctx, svc, &container.ListContainersRequest{MaxContainers: 2}, ids, true, 3)
	require.NoError(t, err)
	require.Len(t, rows, 5)

	for i, r := range rows {
		assert.True(t, created[r.Info.ID])
		if i > 0 {
			assert.Less(t, rows[i-1].Info.ID.String(), r.Info.ID.String())
		}
		require.Len(t, r.Properties, 2)
		assert.Equal(t, uint64(property.ChecksumCRC32), r.Properties[0].Value.Num())
		assert.Equal(t, property.DefaultLabel, r.Properties[1].Value.Str())
		assert.Equal(t, uint64(1), r.Version)
	}

	plain, err := listContainers(ctx, svc, &container.ListContainersRequest{}, nil, false, 0)
	require.NoError(t, err)
	require.Len(t, plain, 5)
	assert.Nil(t, plain[0].Properties)
}

// failingQuery fails every query on one container.
type failingQuery struct {
	container.Service
	bad uuid.UUID
}

func (f *failingQuery) OpenContainer(ctx context.Context, id uuid.UUID, flags types.OpenFlag) (types.Handle, error) {
	if id == f.bad {
		return types.Handle{}, container.NewBusyError("injected")
	}
	return f.Service.OpenContainer(ctx, id, flags)
}

func TestListContainersQueryShortCircuits(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newTestService(t)

	var last uuid.UUID
	for range 4 {
		last = createPOSIX(t, svc, property.CreateOptions{})
	}

	rows, err := listContainers(ctx, &failingQuery{Service: svc, bad: last}, &container.ListContainersRequest{}, []property.ID{property.IDLabel}, true, 2)
	require.Error(t, err)
	assert.Nil(t, rows)
	var e *container.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, container.ErrCodeBusy, e.Code)
	assert.Contains(t, err.Error(), last.String())
}

func TestPrinterContainerTable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newTestService(t)
	id := createPOSIX(t, svc, property.CreateOptions{ChecksumEnabled: true, ChecksumType: property.ChecksumSHA512})

	res, err := queryContainer(ctx, svc, id, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, newPrinter(&buf, "table").container(res.Info, res.Properties, res.Version))
	out := buf.String()
	assert.Contains(t, out, id.String())
	assert.Contains(t, out, "PROPERTY")
	assert.Contains(t, out, "SHA512")
	assert.Contains(t, out, "16384 (16 KiB)")
	assert.Contains(t, out, "POSIX")
	assert.Contains(t, out, "0x1004")
}

func TestPrinterJSON(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newTestService(t)
	id := createPOSIX(t, svc, property.CreateOptions{Label: "json"})

	res, err := queryContainer(ctx, svc, id, []property.ID{property.IDLabel, property.IDLayoutType})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, newPrinter(&buf, "json").container(res.Info, res.Properties, res.Version))

	var got containerView
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, id, got.Info.ID)
	assert.Equal(t, uint64(1), got.Version)
	assert.Equal(t, []propertyView{
		{Name: "label", Code: "0x1001", Value: "json"},
		{Name: "layout_type", Code: "0x1002", Value: "POSIX"},
	}, got.Properties)
}

func TestPrinterList(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newTestService(t)
	createPOSIX(t, svc, property.CreateOptions{})
	createPOSIX(t, svc, property.CreateOptions{})

	ids := []property.ID{property.IDRedundancyFactor}
	rows, err := listContainers(ctx, svc, &container.ListContainersRequest{}, ids, true, 0)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, newPrinter(&buf, "").list(rows, ids))
	assert.Contains(t, buf.String(), "redundancy_factor")
	assert.Contains(t, buf.String(), "2 containers")
}

func TestFormatValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		id   property.ID
		v    property.Value
		want string
	}{
		{property.IDChecksum, property.Enum(uint32(property.ChecksumOff)), "OFF"},
		{property.IDChecksum, property.Enum(uint32(property.ChecksumCRC64)), "CRC64"},
		{property.IDLayoutType, property.Enum(uint32(property.LayoutPOSIX)), "POSIX"},
		{property.IDChecksumChunkSize, property.Uint64(0), "0"},
		{property.IDChecksumChunkSize, property.Uint64(1 << 20), "1048576 (1.0 MiB)"},
		{property.IDChecksumServerVerify, property.Bool(true), "true"},
		{property.IDLabel, property.String("x"), "x"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatValue(tt.id, tt.v), "%s", tt.id)
	}
}
