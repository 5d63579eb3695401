// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package context

import (
	"context"

	"github.com/google/uuid"
)

const (
	// RequestKey is the gRPC metadata key carrying the request id.
	RequestKey = "zapprops-request-id"
	// ErrorCodeKey is the trailer key carrying the service error code.
	ErrorCodeKey = "zapprops-error-code"
)

type RequestID struct{}

// WithUUID returns ctx with a request id, generating one if ctx has none.
func WithUUID(c context.Context) (context.Context, string) {
	if id, ok := c.Value(RequestID{}).(string); ok && id != "" {
		return c, id
	}
	newID := uuid.New().String()
	c = context.WithValue(c, RequestID{}, newID)
	return c, newID
}

func FromUUID(c context.Context, reqID string) context.Context {
	return context.WithValue(c, RequestID{}, reqID)
}

// RequestIDFrom returns the request id stored in c, if any.
func RequestIDFrom(c context.Context) string {
	id, _ := c.Value(RequestID{}).(string)
	return id
}
