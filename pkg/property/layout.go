// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package property

import (
	"fmt"
	"strings"
)

// Layout is the access-pattern schema a container follows.
type Layout uint32

const (
	LayoutUnknown Layout = iota
	LayoutPOSIX
	LayoutHDF5
	LayoutPython
	LayoutSpark
	LayoutDatabase
	LayoutRoot
	LayoutSeismic
	LayoutMeteo
)

// containerTypes maps the container-type strings accepted at create time
// to their layout. UNKNOWN is deliberately absent.
var containerTypes = map[string]Layout{
	"POSIX":    LayoutPOSIX,
	"HDF5":     LayoutHDF5,
	"PYTHON":   LayoutPython,
	"SPARK":    LayoutSpark,
	"DATABASE": LayoutDatabase,
	"ROOT":     LayoutRoot,
	"SEISMIC":  LayoutSeismic,
	"METEO":    LayoutMeteo,
}

// ParseLayout derives a layout from a container-type string (case-insensitive).
func ParseLayout(containerType string) (Layout, error) {
	if l, ok := containerTypes[strings.ToUpper(strings.TrimSpace(containerType))]; ok {
		return l, nil
	}
	return LayoutUnknown, fmt.Errorf("%w: %q", ErrUnsupportedType, containerType)
}

// ContainerTypes returns the accepted container-type strings in layout order.
func ContainerTypes() []string {
	out := make([]string, 0, len(containerTypes))
	for l := LayoutPOSIX; l <= LayoutMeteo; l++ {
		out = append(out, l.String())
	}
	return out
}

func (l Layout) String() string {
	for name, layout := range containerTypes {
		if layout == l {
			return name
		}
	}
	if l == LayoutUnknown {
		return "UNKNOWN"
	}
	return fmt.Sprintf("LAYOUT(%d)", uint32(l))
}

// ChecksumType selects the checksum algorithm; ChecksumOff disables checksums.
type ChecksumType uint32

const (
	ChecksumOff ChecksumType = iota
	ChecksumCRC16
	ChecksumCRC32
	ChecksumAdler32
	ChecksumCRC64
	ChecksumSHA1
	ChecksumSHA256
	ChecksumSHA512
)

// ChecksumTypeDefault asks the create path to pick DefaultChecksumType.
const ChecksumTypeDefault ChecksumType = 100

// DefaultChecksumType is used when checksums are enabled without a type.
const DefaultChecksumType = ChecksumCRC16

var checksumNames = []string{"OFF", "CRC16", "CRC32", "ADLER32", "CRC64", "SHA1", "SHA256", "SHA512"}

func (c ChecksumType) Valid() bool { return c <= ChecksumSHA512 }

func (c ChecksumType) Enabled() bool { return c != ChecksumOff }

func (c ChecksumType) String() string {
	if c.Valid() {
		return checksumNames[c]
	}
	if c == ChecksumTypeDefault {
		return "DEFAULT"
	}
	return fmt.Sprintf("CHECKSUM(%d)", uint32(c))
}

// ParseChecksumType accepts an algorithm name such as "crc32" or "default".
func ParseChecksumType(s string) (ChecksumType, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "DEFAULT" {
		return ChecksumTypeDefault, nil
	}
	for i, n := range checksumNames {
		if n == name {
			return ChecksumType(i), nil
		}
	}
	return ChecksumOff, fmt.Errorf("%w: unknown checksum type %q", ErrInvalidProperty, s)
}
