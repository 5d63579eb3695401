// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package property

// Entry pairs a property id with its value.
type Entry struct {
	ID    ID    `json:"id"`
	Value Value `json:"value"`
}

// Set is an ordered sequence of entries with unique ids.
type Set []Entry

// Get returns the value stored for id.
func (s Set) Get(id ID) (Value, bool) {
	for _, e := range s {
		if e.ID == id {
			return e.Value, true
		}
	}
	return Value{}, false
}

// IDs returns the ids of the set in order.
func (s Set) IDs() []ID {
	ids := make([]ID, len(s))
	for i, e := range s {
		ids[i] = e.ID
	}
	return ids
}

func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	out := make(Set, len(s))
	copy(out, s)
	return out
}

// Merge returns a new set where entries of updates replace entries with the
// same id and unmatched updates are appended. s is left untouched.
func (s Set) Merge(updates Set) Set {
	out := s.Clone()
	for _, u := range updates {
		replaced := false
		for i := range out {
			if out[i].ID == u.ID {
				out[i].Value = u.Value
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, u)
		}
	}
	return out
}

// Select returns the entries for ids in the order requested. A known id
// missing from s (a record written before the property existed) reads as
// the descriptor default.
func (s Set) Select(ids []ID) (Set, error) {
	out := make(Set, 0, len(ids))
	for _, id := range ids {
		v, ok := s.Get(id)
		if !ok {
			d, err := DescriptorFor(id)
			if err != nil {
				return nil, err
			}
			v = d.Default
		}
		out = append(out, Entry{ID: id, Value: v})
	}
	return out, nil
}

func (s Set) Equal(o Set) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i].ID != o[i].ID || !s[i].Value.Equal(o[i].Value) {
			return false
		}
	}
	return true
}
