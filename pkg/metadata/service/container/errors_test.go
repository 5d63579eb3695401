// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"errors"
	"fmt"
	"testing"

	"github.com/LeeDigitalWorks/zapprops/pkg/cache"
	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/db"
	"github.com/LeeDigitalWorks/zapprops/pkg/property"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestFromError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err      error
		wantCode ErrorCode
		wantGRPC codes.Code
	}{
		{property.ErrUnknownProperty, ErrCodeUnknownProperty, codes.InvalidArgument},
		{fmt.Errorf("id 0x99: %w", property.ErrInvalidProperty), ErrCodeInvalidProperty, codes.InvalidArgument},
		{property.ErrUnsupportedType, ErrCodeUnsupportedType, codes.InvalidArgument},
		{db.ErrContainerNotFound, ErrCodeNotFound, codes.NotFound},
		{db.ErrSnapshotNotFound, ErrCodeNotFound, codes.NotFound},
		{db.ErrContainerExists, ErrCodeAlreadyExists, codes.AlreadyExists},
		{db.ErrSnapshotExists, ErrCodeAlreadyExists, codes.AlreadyExists},
		{db.ErrVersionConflict, ErrCodeVersionConflict, codes.FailedPrecondition},
		{db.ErrSnapshotLimit, ErrCodeSnapshotLimit, codes.FailedPrecondition},
		{db.ErrNotLeader, ErrCodeUnavailable, codes.Unavailable},
		{cache.ErrTooManyHandles, ErrCodeBusy, codes.FailedPrecondition},
		{errors.New("boom"), ErrCodeInternalError, codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			t.Parallel()
			e := FromError(tt.err)
			require.NotNil(t, e)
			assert.Equal(t, tt.wantCode, e.Code)
			assert.Equal(t, tt.wantGRPC, e.GRPCCode())
			assert.ErrorIs(t, e, tt.err)
		})
	}

	assert.Nil(t, FromError(nil))

	wrapped := fmt.Errorf("outer: %w", NewBusyError("busy"))
	assert.Equal(t, ErrCodeBusy, FromError(wrapped).Code)
}

func TestInternalErrorHidesCause(t *testing.T) {
	t.Parallel()
	e := FromError(errors.New("dsn=postgres://secret"))
	st := e.ToGRPCStatus()
	assert.Equal(t, codes.Internal, st.Code())
	assert.Contains(t, st.Message(), "internal error")
}

func TestErrorCodeNames(t *testing.T) {
	t.Parallel()
	for code := ErrCodeNone; code <= ErrCodeInternalError; code++ {
		parsed, ok := ParseErrorCode(code.String())
		require.True(t, ok, code.String())
		assert.Equal(t, code, parsed)
	}
	_, ok := ParseErrorCode("Bogus")
	assert.False(t, ok)
	assert.Equal(t, "ErrorCode(99)", ErrorCode(99).String())
}

func TestFromGRPCStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		st       *status.Status
		codeName string
		wantCode ErrorCode
	}{
		{"ok", status.New(codes.OK, ""), "", ErrCodeNone},
		{"named code wins", status.New(codes.FailedPrecondition, "busy"), "Busy", ErrCodeBusy},
		{"unknown name falls back", status.New(codes.NotFound, "gone"), "Bogus", ErrCodeNotFound},
		{"unavailable is transport failure", status.New(codes.Unavailable, "conn refused"), "", ErrCodeTransportFailure},
		{"deadline", status.New(codes.DeadlineExceeded, "slow"), "", ErrCodeDeadlineExceeded},
		{"permission", status.New(codes.PermissionDenied, "ro"), "", ErrCodeAccessDenied},
		{"unknown grpc code", status.New(codes.DataLoss, "?"), "", ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := FromGRPCStatus(tt.st, tt.codeName)
			if tt.wantCode == ErrCodeNone {
				assert.Nil(t, e)
				return
			}
			require.NotNil(t, e)
			assert.Equal(t, tt.wantCode, e.Code)
			assert.Equal(t, tt.st.Message(), e.Message)
		})
	}
}

func TestRetryable(t *testing.T) {
	t.Parallel()
	assert.True(t, (&Error{Code: ErrCodeUnavailable}).Retryable())
	assert.True(t, (&Error{Code: ErrCodeTransportFailure}).Retryable())
	assert.False(t, (&Error{Code: ErrCodeNotFound}).Retryable())
	assert.True(t, IsTransportFailure(&Error{Code: ErrCodeTransportFailure}))
	assert.Equal(t, ErrCodeNone, CodeOf(nil))
	assert.Equal(t, ErrCodeInternalError, CodeOf(errors.New("x")))
}
