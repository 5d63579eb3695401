// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package compression

import (
	"bytes"
	"crypto/rand"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAlgorithm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    Algorithm
		wantErr bool
	}{
		{"", None, false},
		{"none", None, false},
		{"lz4", LZ4, false},
		{"zstd", ZSTD, false},
		{"s2", S2, false},
		{"ZSTD", None, true},
		{"gzip", None, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			got, err := ParseAlgorithm(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func roundTrip(t *testing.T, algo Algorithm, payload []byte) ([]byte, []byte) {
	t.Helper()

	var stream bytes.Buffer
	w, err := NewWriter(algo, &stream)
	require.NoError(t, err)
	_, err = w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close(), "second close is a no-op")

	encoded := bytes.Clone(stream.Bytes())
	r, got, err := NewReader(&stream)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, algo, got)

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return out, encoded
}

func TestStreamRoundTrip(t *testing.T) {
	t.Parallel()

	compressible := []byte(strings.Repeat(`{"id":4100,"value":1}`, 2000))
	random := make([]byte, 8192)
	_, err := rand.Read(random)
	require.NoError(t, err)

	for _, algo := range Algorithms() {
		t.Run(algo.String(), func(t *testing.T) {
			t.Parallel()

			out, encoded := roundTrip(t, algo, compressible)
			assert.Equal(t, compressible, out)
			assert.True(t, bytes.HasPrefix(encoded, []byte(magic+algo.String()+"\n")))
			if algo != None {
				assert.Less(t, len(encoded), len(compressible))
			}

			out, _ = roundTrip(t, algo, random)
			assert.Equal(t, random, out)

			out, _ = roundTrip(t, algo, nil)
			assert.Empty(t, out)
		})
	}
}

func TestReaderWithoutHeader(t *testing.T) {
	t.Parallel()

	legacy := `{"records":[]}` + "\n"
	r, algo, err := NewReader(strings.NewReader(legacy))
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, None, algo)
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, legacy, string(out))
}

func TestReaderEmpty(t *testing.T) {
	t.Parallel()

	r, algo, err := NewReader(bytes.NewReader(nil))
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, None, algo)
}

func TestReaderBadHeader(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"unknown algorithm": magic + "brotli\npayload",
		"unterminated":      magic + strings.Repeat("x", 64),
	}
	for name, stream := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, _, err := NewReader(strings.NewReader(stream))
			assert.Error(t, err)
		})
	}
}

func TestNewWriterRejectsUnknown(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	_, err := NewWriter("brotli", &buf)
	require.Error(t, err)
	assert.Zero(t, buf.Len())
}
