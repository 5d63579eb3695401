// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package compression

import (
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var (
	zstdEncoderPool = sync.Pool{
		New: func() any {
			enc, _ := zstd.NewWriter(nil,
				zstd.WithEncoderLevel(zstd.SpeedDefault),
				zstd.WithEncoderConcurrency(1),
			)
			return enc
		},
	}
	zstdDecoderPool = sync.Pool{
		New: func() any {
			dec, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
			return dec
		},
	}
)

type zstdWriter struct {
	*zstd.Encoder
}

func newZSTDWriter(w io.Writer) io.WriteCloser {
	enc := zstdEncoderPool.Get().(*zstd.Encoder)
	enc.Reset(w)
	return &zstdWriter{Encoder: enc}
}

func (w *zstdWriter) Close() error {
	err := w.Encoder.Close()
	zstdEncoderPool.Put(w.Encoder)
	return err
}

type zstdReader struct {
	*zstd.Decoder
}

func newZSTDReader(r io.Reader) (io.ReadCloser, error) {
	dec := zstdDecoderPool.Get().(*zstd.Decoder)
	if err := dec.Reset(r); err != nil {
		zstdDecoderPool.Put(dec)
		return nil, fmt.Errorf("zstd reset: %w", err)
	}
	return &zstdReader{Decoder: dec}, nil
}

func (r *zstdReader) Read(p []byte) (int, error) {
	return r.Decoder.Read(p)
}

func (r *zstdReader) Close() error {
	zstdDecoderPool.Put(r.Decoder)
	return nil
}
