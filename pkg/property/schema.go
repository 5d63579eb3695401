// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package property defines the container property schema, the typed
// values stored against it, and the create-time and read-time rules that
// turn caller input into stored sets and stored sets into query results.
package property

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ID is the 32-bit code identifying a container property on the wire.
type ID uint32

const (
	IDLabel                ID = 0x1001
	IDLayoutType           ID = 0x1002
	IDLayoutVersion        ID = 0x1003
	IDChecksum             ID = 0x1004
	IDChecksumChunkSize    ID = 0x1005
	IDChecksumServerVerify ID = 0x1006
	IDRedundancyFactor     ID = 0x1007
	IDSnapshotMax          ID = 0x1008
)

const (
	DefaultLabel         = "container_label_not_set"
	MaxLabelLength       = 127
	DefaultChunkSize     = 16384
	MaxChunkSize         = 1 << 30
	DefaultLayoutVersion = 1
	MaxRedundancyFactor  = 4
)

func (id ID) String() string {
	if i, ok := byID[id]; ok {
		return schema[i].Name
	}
	return fmt.Sprintf("%#x", uint32(id))
}

// Descriptor describes one recognized property.
type Descriptor struct {
	ID      ID
	Name    string
	Kind    Kind
	Default Value

	// Mutable properties may change after create.
	Mutable bool
	// Settable properties may be supplied by the caller at create time.
	// Derived properties are computed instead.
	Settable bool

	// DependsOn names a property that must be evaluated first. When
	// ValidIf reports false for its current value, this property is
	// stored but reads as the zero value of its kind.
	DependsOn ID
	ValidIf   func(dep Value) bool

	validate func(Value) error
}

func (d Descriptor) HasDependency() bool { return d.DependsOn != 0 }

// Validate checks that v has the descriptor's kind and is in range.
func (d Descriptor) Validate(v Value) error {
	if v.Kind() != d.Kind {
		return invalidProperty(d.ID, "expected %s value, got %s", d.Kind, v.Kind())
	}
	if d.validate != nil {
		return d.validate(v)
	}
	return nil
}

func checksumEnabled(dep Value) bool { return ChecksumType(dep.Enum()).Enabled() }

// schema is ordered: a dependency always precedes its dependents.
var schema = []Descriptor{
	{
		ID:       IDLabel,
		Name:     "label",
		Kind:     KindString,
		Default:  String(DefaultLabel),
		Mutable:  true,
		Settable: true,
		validate: validateLabel,
	},
	{
		ID:      IDLayoutType,
		Name:    "layout_type",
		Kind:    KindEnum,
		Default: Enum(uint32(LayoutUnknown)),
		validate: func(v Value) error {
			if Layout(v.Enum()) > LayoutMeteo {
				return invalidProperty(IDLayoutType, "unknown layout %d", v.Enum())
			}
			return nil
		},
	},
	{
		ID:      IDLayoutVersion,
		Name:    "layout_version",
		Kind:    KindUint32,
		Default: Uint32(DefaultLayoutVersion),
	},
	{
		ID:       IDChecksum,
		Name:     "checksum",
		Kind:     KindEnum,
		Default:  Enum(uint32(ChecksumOff)),
		Mutable:  true,
		Settable: true,
		validate: func(v Value) error {
			if !ChecksumType(v.Enum()).Valid() {
				return invalidProperty(IDChecksum, "unknown checksum type %d", v.Enum())
			}
			return nil
		},
	},
	{
		ID:        IDChecksumChunkSize,
		Name:      "checksum_chunk_size",
		Kind:      KindUint64,
		Default:   Uint64(DefaultChunkSize),
		Mutable:   true,
		Settable:  true,
		DependsOn: IDChecksum,
		ValidIf:   checksumEnabled,
		validate: func(v Value) error {
			if v.Uint64() == 0 || v.Uint64() > MaxChunkSize {
				return invalidProperty(IDChecksumChunkSize, "chunk size %d out of range [1, %d]", v.Uint64(), MaxChunkSize)
			}
			return nil
		},
	},
	{
		ID:        IDChecksumServerVerify,
		Name:      "checksum_server_verify",
		Kind:      KindBool,
		Default:   Bool(false),
		Mutable:   true,
		Settable:  true,
		DependsOn: IDChecksum,
		ValidIf:   checksumEnabled,
	},
	{
		ID:       IDRedundancyFactor,
		Name:     "redundancy_factor",
		Kind:     KindUint32,
		Default:  Uint32(0),
		Settable: true,
		validate: func(v Value) error {
			if v.Uint32() > MaxRedundancyFactor {
				return invalidProperty(IDRedundancyFactor, "redundancy factor %d exceeds %d", v.Uint32(), MaxRedundancyFactor)
			}
			return nil
		},
	},
	{
		ID:       IDSnapshotMax,
		Name:     "snapshot_max",
		Kind:     KindUint64,
		Default:  Uint64(0),
		Mutable:  true,
		Settable: true,
	},
}

var (
	byID   = make(map[ID]int, len(schema))
	byName = make(map[string]ID, len(schema))
)

func init() {
	for i, d := range schema {
		if _, dup := byID[d.ID]; dup {
			panic(fmt.Sprintf("property: duplicate descriptor id %#x", uint32(d.ID)))
		}
		if d.HasDependency() {
			if _, ok := byID[d.DependsOn]; !ok {
				panic(fmt.Sprintf("property: %s depends on %#x which is not defined before it", d.Name, uint32(d.DependsOn)))
			}
		}
		if d.Default.Kind() != d.Kind {
			panic(fmt.Sprintf("property: %s default has kind %s", d.Name, d.Default.Kind()))
		}
		byID[d.ID] = i
		byName[d.Name] = d.ID
	}
}

func validateLabel(v Value) error {
	label := v.Str()
	switch {
	case label == "":
		return invalidProperty(IDLabel, "label must not be empty")
	case len(label) > MaxLabelLength:
		return invalidProperty(IDLabel, "label longer than %d bytes", MaxLabelLength)
	}
	if _, err := uuid.Parse(label); err == nil {
		return invalidProperty(IDLabel, "label %q must not be a UUID", label)
	}
	return nil
}

// DescriptorFor returns the descriptor for id.
func DescriptorFor(id ID) (Descriptor, error) {
	i, ok := byID[id]
	if !ok {
		return Descriptor{}, unknownProperty(id)
	}
	return schema[i], nil
}

// Descriptors returns every descriptor in schema order.
func Descriptors() []Descriptor {
	out := make([]Descriptor, len(schema))
	copy(out, schema)
	return out
}

// IDs returns every property id in schema order.
func IDs() []ID {
	out := make([]ID, len(schema))
	for i, d := range schema {
		out[i] = d.ID
	}
	return out
}

// Lookup resolves a property by name ("checksum") or numeric code
// ("0x1004" or "4100").
func Lookup(name string) (ID, error) {
	if id, ok := byName[strings.ToLower(strings.TrimSpace(name))]; ok {
		return id, nil
	}
	n, err := strconv.ParseUint(name, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownProperty, name)
	}
	if _, ok := byID[ID(n)]; !ok {
		return 0, unknownProperty(ID(n))
	}
	return ID(n), nil
}

// CheckIDs verifies every id is part of the schema and appears once.
func CheckIDs(ids []ID) error {
	seen := make(map[ID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return unknownProperty(id)
		}
		if _, dup := seen[id]; dup {
			return invalidProperty(id, "duplicate entry")
		}
		seen[id] = struct{}{}
	}
	return nil
}

// CheckEntries verifies a set against the schema: ids must be known and
// unique, and every value must match its descriptor.
func CheckEntries(s Set) error {
	seen := make(map[ID]struct{}, len(s))
	for _, e := range s {
		d, err := DescriptorFor(e.ID)
		if err != nil {
			return err
		}
		if _, dup := seen[e.ID]; dup {
			return invalidProperty(e.ID, "duplicate entry")
		}
		seen[e.ID] = struct{}{}
		if err := d.Validate(e.Value); err != nil {
			return err
		}
	}
	return nil
}

// WithDependencies returns ids followed by any dependencies they need for
// read-time evaluation that are not already present.
func WithDependencies(ids []ID) []ID {
	out := make([]ID, len(ids), len(ids)+2)
	copy(out, ids)
	seen := make(map[ID]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	for i := 0; i < len(out); i++ {
		idx, ok := byID[out[i]]
		if !ok || !schema[idx].HasDependency() {
			continue
		}
		dep := schema[idx].DependsOn
		if _, ok := seen[dep]; !ok {
			seen[dep] = struct{}{}
			out = append(out, dep)
		}
	}
	return out
}

// Defaults returns the default value of every property in schema order.
func Defaults() Set {
	out := make(Set, len(schema))
	for i, d := range schema {
		out[i] = Entry{ID: d.ID, Value: d.Default}
	}
	return out
}
