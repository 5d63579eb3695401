// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package compression

import (
	"io"

	"github.com/klauspost/compress/s2"
)

func newS2Writer(w io.Writer) io.WriteCloser {
	return s2.NewWriter(w, s2.WriterConcurrency(1))
}

func newS2Reader(r io.Reader) io.ReadCloser {
	return io.NopCloser(s2.NewReader(r))
}
