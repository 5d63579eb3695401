// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package property

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownProperty = errors.New("unknown property")
	ErrInvalidProperty = errors.New("invalid property")
	ErrUnsupportedType = errors.New("unsupported container type")
)

func unknownProperty(id ID) error {
	return fmt.Errorf("%w: %#x", ErrUnknownProperty, uint32(id))
}

func invalidProperty(id ID, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidProperty, id, fmt.Sprintf(format, args...))
}
