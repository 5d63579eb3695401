// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package property

// CreateOptions enumerates every input the create path accepts. Only Type
// is required; zero values select schema defaults.
type CreateOptions struct {
	// Type is the container-type string the layout is derived from ("POSIX").
	Type string

	Label string

	// ChecksumType is consulted only when ChecksumEnabled is set.
	// ChecksumOff and ChecksumTypeDefault both select DefaultChecksumType.
	ChecksumEnabled bool
	ChecksumType    ChecksumType
	ServerVerify    bool
	// ChunkSize of 0 selects DefaultChunkSize.
	ChunkSize uint64

	RedundancyFactor uint32
	SnapshotMax      uint64

	// Entries are explicit settable properties applied after the fields
	// above, overriding them.
	Entries Set
}

// Resolve validates opts against the schema, applies defaults and derives
// the layout. The result holds every schema property in schema order.
func Resolve(opts CreateOptions) (Set, error) {
	layout, err := ParseLayout(opts.Type)
	if err != nil {
		return nil, err
	}

	var supplied Set
	if opts.Label != "" {
		supplied = append(supplied, Entry{ID: IDLabel, Value: String(opts.Label)})
	}
	if opts.ChecksumEnabled {
		ct := opts.ChecksumType
		if ct == ChecksumOff || ct == ChecksumTypeDefault {
			ct = DefaultChecksumType
		}
		supplied = append(supplied, Entry{ID: IDChecksum, Value: Enum(uint32(ct))})
	}
	if opts.ServerVerify {
		supplied = append(supplied, Entry{ID: IDChecksumServerVerify, Value: Bool(true)})
	}
	if opts.ChunkSize != 0 {
		supplied = append(supplied, Entry{ID: IDChecksumChunkSize, Value: Uint64(opts.ChunkSize)})
	}
	if opts.RedundancyFactor != 0 {
		supplied = append(supplied, Entry{ID: IDRedundancyFactor, Value: Uint32(opts.RedundancyFactor)})
	}
	if opts.SnapshotMax != 0 {
		supplied = append(supplied, Entry{ID: IDSnapshotMax, Value: Uint64(opts.SnapshotMax)})
	}

	explicit, err := normalize(opts.Entries, func(d Descriptor) bool { return d.Settable })
	if err != nil {
		return nil, err
	}
	supplied = supplied.Merge(explicit)

	out := make(Set, 0, len(schema))
	for _, d := range schema {
		v, ok := supplied.Get(d.ID)
		switch {
		case d.ID == IDLayoutType:
			v = Enum(uint32(layout))
		case !ok:
			v = d.Default
		}
		if err := d.Validate(v); err != nil {
			return nil, err
		}
		out = append(out, Entry{ID: d.ID, Value: v})
	}
	return out, nil
}

// NormalizeUpdate validates a set of post-create changes. Every entry must
// name a mutable property; a zero chunk size is replaced by the default.
func NormalizeUpdate(s Set) (Set, error) {
	if len(s) == 0 {
		return nil, invalidProperty(0, "empty update")
	}
	return normalize(s, func(d Descriptor) bool { return d.Mutable })
}

func normalize(s Set, allowed func(Descriptor) bool) (Set, error) {
	out := make(Set, 0, len(s))
	seen := make(map[ID]struct{}, len(s))
	for _, e := range s {
		d, err := DescriptorFor(e.ID)
		if err != nil {
			return nil, err
		}
		if !allowed(d) {
			return nil, invalidProperty(e.ID, "property cannot be set")
		}
		if _, dup := seen[e.ID]; dup {
			return nil, invalidProperty(e.ID, "duplicate entry")
		}
		seen[e.ID] = struct{}{}
		if e.ID == IDChecksumChunkSize && e.Value.Kind() == KindUint64 && e.Value.Uint64() == 0 {
			e.Value = d.Default
		}
		if e.ID == IDChecksum && e.Value.Kind() == KindEnum && ChecksumType(e.Value.Enum()) == ChecksumTypeDefault {
			e.Value = Enum(uint32(DefaultChecksumType))
		}
		if err := d.Validate(e.Value); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Present applies read-time dependency rules to a stored set. An entry
// whose dependency is disabled reads as the zero value of its kind; the
// stored value is untouched. Dependencies missing from stored read as
// their defaults.
func Present(stored Set) Set {
	out := stored.Clone()
	for i, e := range out {
		idx, ok := byID[e.ID]
		if !ok {
			continue
		}
		d := schema[idx]
		if !d.HasDependency() || d.ValidIf == nil {
			continue
		}
		if !d.ValidIf(effective(stored, d.DependsOn)) {
			out[i].Value = Zero(d.Kind)
		}
	}
	return out
}

// effective returns the read-time value of id, following its own
// dependency chain.
func effective(stored Set, id ID) Value {
	d := schema[byID[id]]
	v, ok := stored.Get(id)
	if !ok {
		v = d.Default
	}
	if d.HasDependency() && d.ValidIf != nil && !d.ValidIf(effective(stored, d.DependsOn)) {
		return Zero(d.Kind)
	}
	return v
}
