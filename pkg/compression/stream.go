// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package compression

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
)

// magic prefixes every framed stream. It is followed by the algorithm
// name and a newline.
const magic = "zps1:"

// maxHeaderLen bounds the header a reader will scan for.
const maxHeaderLen = len(magic) + 16

// NewWriter writes a stream header for algo to w and returns a writer that
// compresses everything written to it. Close flushes the compressor but
// does not close w.
func NewWriter(algo Algorithm, w io.Writer) (io.WriteCloser, error) {
	if !algo.IsValid() {
		return nil, fmt.Errorf("unknown compression algorithm %q", algo)
	}
	cw := &countingWriter{w: w}
	if _, err := io.WriteString(cw, magic+string(algo)+"\n"); err != nil {
		return nil, fmt.Errorf("write stream header: %w", err)
	}
	header := cw.n

	var enc io.WriteCloser
	switch algo {
	case LZ4:
		enc = newLZ4Writer(cw)
	case ZSTD:
		enc = newZSTDWriter(cw)
	case S2:
		enc = newS2Writer(cw)
	default:
		enc = nopWriteCloser{cw}
	}
	return &meteredWriter{enc: enc, out: cw, header: header, algo: algo}, nil
}

// NewReader reads the stream header from r and returns a reader yielding
// the decompressed payload along with the algorithm the stream was written
// with. A stream without a header is returned unchanged as None, which
// keeps streams written before framing readable.
func NewReader(r io.Reader) (io.ReadCloser, Algorithm, error) {
	br := bufio.NewReaderSize(r, 4096)
	prefix, err := br.Peek(len(magic))
	if err != nil && err != io.EOF {
		return nil, None, fmt.Errorf("read stream header: %w", err)
	}
	if !bytes.Equal(prefix, []byte(magic)) {
		return io.NopCloser(br), None, nil
	}

	peek, _ := br.Peek(maxHeaderLen)
	end := bytes.IndexByte(peek, '\n')
	if end < 0 {
		return nil, None, fmt.Errorf("stream header not terminated")
	}
	algo := Algorithm(strings.TrimPrefix(string(peek[:end]), magic))
	if !algo.IsValid() {
		return nil, None, fmt.Errorf("unknown compression algorithm %q in stream header", algo)
	}
	if _, err := br.Discard(end + 1); err != nil {
		return nil, None, err
	}

	switch algo {
	case LZ4:
		return newLZ4Reader(br), algo, nil
	case ZSTD:
		rc, err := newZSTDReader(br)
		return rc, algo, err
	case S2:
		return newS2Reader(br), algo, nil
	default:
		return io.NopCloser(br), algo, nil
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// meteredWriter records raw and stored byte counts once the stream is
// closed.
type meteredWriter struct {
	enc    io.WriteCloser
	out    *countingWriter
	header int64
	raw    int64
	algo   Algorithm
	closed bool
}

func (m *meteredWriter) Write(p []byte) (int, error) {
	n, err := m.enc.Write(p)
	m.raw += int64(n)
	return n, err
}

func (m *meteredWriter) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	if err := m.enc.Close(); err != nil {
		return err
	}
	observe(m.algo, m.raw, m.out.n-m.header)
	return nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
