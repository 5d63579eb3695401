// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package compression frames and compresses state streams such as raft
// snapshots. A framed stream starts with a short header naming the
// algorithm, so readers never need to be told how it was written.
package compression

import "fmt"

// Algorithm names a stream compression algorithm.
type Algorithm string

const (
	None Algorithm = "none"
	LZ4  Algorithm = "lz4"
	ZSTD Algorithm = "zstd"
	S2   Algorithm = "s2"
)

// Algorithms lists every supported algorithm.
func Algorithms() []Algorithm {
	return []Algorithm{None, LZ4, ZSTD, S2}
}

// IsValid reports whether a is a supported algorithm.
func (a Algorithm) IsValid() bool {
	switch a {
	case None, LZ4, ZSTD, S2:
		return true
	default:
		return false
	}
}

func (a Algorithm) String() string {
	return string(a)
}

// ParseAlgorithm parses a configured algorithm name. The empty string
// selects None.
func ParseAlgorithm(s string) (Algorithm, error) {
	if s == "" {
		return None, nil
	}
	a := Algorithm(s)
	if !a.IsValid() {
		return None, fmt.Errorf("unknown compression algorithm %q", s)
	}
	return a, nil
}
