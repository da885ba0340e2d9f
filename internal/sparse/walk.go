package sparse

import (
	"sort"

	"github.com/sei-international/nemo/pkg/types"
)

// Walk enumerates every full-length tuple reachable through the chain: for
// each level-1 key, each value extends the key, which indexes the next
// level, and so on. The enumeration reproduces exactly the set of tuples
// observed in the source rows. Order is deterministic (lexicographic), so
// repeated walks assign identical positions.
func (idx Index) Walk(fn func(types.KeyTuple)) {
	if len(idx) == 0 {
		return
	}
	for _, key := range sortedKeys(idx[0]) {
		idx.walkFrom(types.DecodeKey(key), fn)
	}
}

// walkFrom extends prefix through the remaining levels.
func (idx Index) walkFrom(prefix types.KeyTuple, fn func(types.KeyTuple)) {
	level := len(prefix) - 1
	set := idx[level][prefix.Encode()]
	for _, v := range sortedValues(set) {
		next := prefix.Extend(v)
		if level+1 < len(idx) {
			idx.walkFrom(next, fn)
		} else {
			fn(next)
		}
	}
}

// Tuples collects the walk into a slice.
func (idx Index) Tuples() []types.KeyTuple {
	var out []types.KeyTuple
	idx.Walk(func(k types.KeyTuple) {
		out = append(out, k)
	})
	return out
}

func sortedKeys(l Level) []string {
	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedValues(s ValueSet) []string {
	vals := make([]string, 0, len(s))
	for v := range s {
		vals = append(vals, v)
	}
	sort.Strings(vals)
	return vals
}
