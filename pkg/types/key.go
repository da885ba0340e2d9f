// Package types provides core data types shared across the NEMO engine.
package types

import "strings"

// keySep separates tuple fields in the encoded form. The unit separator is
// not a legal character in scenario set members, so encoding is unambiguous.
const keySep = "\x1f"

// KeyTuple is an ordered sequence of string-valued dimension labels (for
// example region, technology, year). It is used both as a grouping key in
// constraint generation and as an index into sparse variable structures.
// Equality is field-wise string equality.
type KeyTuple []string

// NewKeyTuple builds a KeyTuple from the given fields.
func NewKeyTuple(fields ...string) KeyTuple {
	k := make(KeyTuple, len(fields))
	copy(k, fields)
	return k
}

// Equal reports whether k and other have the same length and identical
// fields at every position.
func (k KeyTuple) Equal(other KeyTuple) bool {
	if len(k) != len(other) {
		return false
	}
	for i := range k {
		if k[i] != other[i] {
			return false
		}
	}
	return true
}

// Compare orders tuples lexicographically by field, with shorter tuples
// ordering before longer tuples sharing the same prefix.
func (k KeyTuple) Compare(other KeyTuple) int {
	n := len(k)
	if len(other) < n {
		n = len(other)
	}
	for i := 0; i < n; i++ {
		if c := strings.Compare(k[i], other[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(k) < len(other):
		return -1
	case len(k) > len(other):
		return 1
	default:
		return 0
	}
}

// Prefix returns the first n fields of the tuple. The result shares storage
// with k and must not be mutated.
func (k KeyTuple) Prefix(n int) KeyTuple {
	return k[:n]
}

// Extend returns a new tuple with v appended. The receiver is not modified.
func (k KeyTuple) Extend(v string) KeyTuple {
	out := make(KeyTuple, len(k)+1)
	copy(out, k)
	out[len(k)] = v
	return out
}

// Clone returns a copy of the tuple with its own backing storage.
func (k KeyTuple) Clone() KeyTuple {
	out := make(KeyTuple, len(k))
	copy(out, k)
	return out
}

// Encode returns a deterministic string form suitable for use as a map key.
func (k KeyTuple) Encode() string {
	return strings.Join(k, keySep)
}

// DecodeKey reverses Encode. An empty string decodes to an empty tuple.
func DecodeKey(s string) KeyTuple {
	if s == "" {
		return KeyTuple{}
	}
	return KeyTuple(strings.Split(s, keySep))
}

// String renders the tuple for logs and error messages.
func (k KeyTuple) String() string {
	return "[" + strings.Join(k, ", ") + "]"
}
