// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package compression

import (
	"io"

	"github.com/pierrec/lz4/v4"
)

func newLZ4Writer(w io.Writer) io.WriteCloser {
	return lz4.NewWriter(w)
}

func newLZ4Reader(r io.Reader) io.ReadCloser {
	return io.NopCloser(lz4.NewReader(r))
}
