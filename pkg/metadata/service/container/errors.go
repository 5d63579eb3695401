// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"context"
	"errors"
	"fmt"

	"github.com/LeeDigitalWorks/zapprops/pkg/cache"
	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/db"
	"github.com/LeeDigitalWorks/zapprops/pkg/property"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorCode represents a container service error code
type ErrorCode int

const (
	ErrCodeNone ErrorCode = iota
	ErrCodeNotFound
	ErrCodeAlreadyExists
	ErrCodeUnknownProperty
	ErrCodeInvalidProperty
	ErrCodeUnsupportedType
	ErrCodeInvalidArgument
	ErrCodeVersionConflict
	ErrCodeSnapshotLimit
	ErrCodeBusy
	ErrCodeAccessDenied
	ErrCodeUnavailable
	ErrCodeTransportFailure
	ErrCodeCanceled
	ErrCodeDeadlineExceeded
	ErrCodeInternalError
)

var errorCodeNames = map[ErrorCode]string{
	ErrCodeNone:             "None",
	ErrCodeNotFound:         "NotFound",
	ErrCodeAlreadyExists:    "AlreadyExists",
	ErrCodeUnknownProperty:  "UnknownProperty",
	ErrCodeInvalidProperty:  "InvalidProperty",
	ErrCodeUnsupportedType:  "UnsupportedType",
	ErrCodeInvalidArgument:  "InvalidArgument",
	ErrCodeVersionConflict:  "VersionConflict",
	ErrCodeSnapshotLimit:    "SnapshotLimit",
	ErrCodeBusy:             "Busy",
	ErrCodeAccessDenied:     "AccessDenied",
	ErrCodeUnavailable:      "Unavailable",
	ErrCodeTransportFailure: "TransportFailure",
	ErrCodeCanceled:         "Canceled",
	ErrCodeDeadlineExceeded: "DeadlineExceeded",
	ErrCodeInternalError:    "InternalError",
}

func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// ParseErrorCode is the inverse of ErrorCode.String.
func ParseErrorCode(name string) (ErrorCode, bool) {
	for code, n := range errorCodeNames {
		if n == name {
			return code, true
		}
	}
	return ErrCodeNone, false
}

// Error represents a container service error with an error code
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" && e.Err != nil {
		return e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// GRPCCode returns the gRPC status code for the error.
func (e *Error) GRPCCode() codes.Code {
	switch e.Code {
	case ErrCodeNone:
		return codes.OK
	case ErrCodeNotFound:
		return codes.NotFound
	case ErrCodeAlreadyExists:
		return codes.AlreadyExists
	case ErrCodeUnknownProperty, ErrCodeInvalidProperty, ErrCodeUnsupportedType, ErrCodeInvalidArgument:
		return codes.InvalidArgument
	case ErrCodeVersionConflict, ErrCodeSnapshotLimit, ErrCodeBusy:
		return codes.FailedPrecondition
	case ErrCodeAccessDenied:
		return codes.PermissionDenied
	case ErrCodeUnavailable, ErrCodeTransportFailure:
		return codes.Unavailable
	case ErrCodeCanceled:
		return codes.Canceled
	case ErrCodeDeadlineExceeded:
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}

// ToGRPCStatus converts the error to a gRPC status.
func (e *Error) ToGRPCStatus() *status.Status {
	return status.New(e.GRPCCode(), e.Error())
}

// Retryable reports whether a client may retry the failed call.
func (e *Error) Retryable() bool {
	switch e.Code {
	case ErrCodeUnavailable, ErrCodeTransportFailure:
		return true
	default:
		return false
	}
}

// FromError converts any error into an *Error, mapping store and schema
// sentinels to their codes.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	code := ErrCodeInternalError
	switch {
	case errors.Is(err, context.Canceled):
		code = ErrCodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		code = ErrCodeDeadlineExceeded
	case errors.Is(err, property.ErrUnknownProperty):
		code = ErrCodeUnknownProperty
	case errors.Is(err, property.ErrInvalidProperty):
		code = ErrCodeInvalidProperty
	case errors.Is(err, property.ErrUnsupportedType):
		code = ErrCodeUnsupportedType
	case errors.Is(err, db.ErrContainerNotFound), errors.Is(err, db.ErrSnapshotNotFound):
		code = ErrCodeNotFound
	case errors.Is(err, db.ErrContainerExists), errors.Is(err, db.ErrSnapshotExists):
		code = ErrCodeAlreadyExists
	case errors.Is(err, db.ErrVersionConflict):
		code = ErrCodeVersionConflict
	case errors.Is(err, db.ErrSnapshotLimit):
		code = ErrCodeSnapshotLimit
	case errors.Is(err, db.ErrNotLeader):
		code = ErrCodeUnavailable
	case errors.Is(err, cache.ErrTooManyHandles):
		code = ErrCodeBusy
	}

	if code == ErrCodeInternalError {
		return &Error{Code: code, Message: "internal error", Err: err}
	}
	return &Error{Code: code, Err: err}
}

// FromGRPCStatus rebuilds an *Error from a status received by a client.
// codeName is the service code sent alongside the status, if any.
func FromGRPCStatus(st *status.Status, codeName string) *Error {
	if st == nil || st.Code() == codes.OK {
		return nil
	}
	if code, ok := ParseErrorCode(codeName); ok {
		return &Error{Code: code, Message: st.Message()}
	}

	code := ErrCodeInternalError
	switch st.Code() {
	case codes.NotFound:
		code = ErrCodeNotFound
	case codes.AlreadyExists:
		code = ErrCodeAlreadyExists
	case codes.InvalidArgument:
		code = ErrCodeInvalidArgument
	case codes.FailedPrecondition:
		code = ErrCodeVersionConflict
	case codes.PermissionDenied, codes.Unauthenticated:
		code = ErrCodeAccessDenied
	case codes.Unavailable, codes.ResourceExhausted:
		code = ErrCodeTransportFailure
	case codes.DeadlineExceeded:
		code = ErrCodeDeadlineExceeded
	case codes.Canceled:
		code = ErrCodeCanceled
	}
	return &Error{Code: code, Message: st.Message()}
}

// Error constructors for convenience

func NewNotFoundError(resource string) *Error {
	return &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("%s not found", resource)}
}

func NewAccessDeniedError(reason string) *Error {
	return &Error{Code: ErrCodeAccessDenied, Message: reason}
}

func NewInvalidArgumentError(reason string) *Error {
	return &Error{Code: ErrCodeInvalidArgument, Message: reason}
}

func NewBusyError(reason string) *Error {
	return &Error{Code: ErrCodeBusy, Message: reason}
}

// CodeOf returns the code of err, or ErrCodeInternalError for errors that
// are not service errors.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternalError
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}

// IsTransportFailure reports whether err is a retried-out transport error.
func IsTransportFailure(err error) bool {
	return CodeOf(err) == ErrCodeTransportFailure
}
