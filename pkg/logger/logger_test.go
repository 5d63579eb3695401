// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"testing"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevLevel := Level()
	SetOutput(&buf)
	SetLevel(zerolog.TraceLevel)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(prevLevel)
	})
	return &buf
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestCtxFallsBackToGlobal(t *testing.T) {
	assert.Same(t, &globalLogger, Ctx(context.Background()))
	assert.Same(t, &globalLogger, Ctx(nil)) //nolint:staticcheck
}

func TestWithRequestID(t *testing.T) {
	buf := captureOutput(t)

	ctx := WithRequestID(context.Background(), "req-1")
	Ctx(ctx).Info().Msg("hello")

	entry := lastEntry(t, buf)
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "hello", entry["message"])
}

func TestRaftAdapterFields(t *testing.T) {
	buf := captureOutput(t)

	l := NewRaftLogger("raft").Named("fsm").With("node", "n1")
	l.Warn("entering candidate state", "term", 3, "dangling")

	entry := lastEntry(t, buf)
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "raft.fsm", entry["component"])
	assert.Equal(t, "n1", entry["node"])
	assert.EqualValues(t, 3, entry["term"])
	assert.Equal(t, "<missing>", entry["dangling"])
}

func TestRaftAdapterLevel(t *testing.T) {
	prev := Level()
	t.Cleanup(func() { SetLevel(prev) })

	l := NewRaftLogger("raft")
	SetLevel(zerolog.WarnLevel)
	assert.Equal(t, hclog.Warn, l.GetLevel())
	assert.False(t, l.IsInfo())
	assert.True(t, l.IsError())

	SetLevel(zerolog.DebugLevel)
	assert.True(t, l.IsDebug())
	assert.False(t, l.IsTrace())
}
