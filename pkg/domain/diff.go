package domain

import (
	"reflect"
	"sort"
	"strings"
)

// Change is a single path-level difference between two Context states.
type Change struct {
	Segments []string
	Value    any
	// Deleted marks a path present in the old state and absent in the new one.
	Deleted bool
}

// Path returns the dotted form of the change location.
func (c Change) Path() string {
	return strings.Join(c.Segments, PathSeparator)
}

// Diff calculates the writes that turn oldState into newState.
// Nested maps are compared key by key; any other value is compared as a whole.
// Changes are sorted by path so that replaying them is deterministic.
func Diff(oldState, newState map[string]any) []Change {
	var changes []Change
	diffInto(nil, oldState, newState, &changes)
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Path() < changes[j].Path()
	})
	return changes
}

func diffInto(prefix []string, old, new map[string]any, out *[]Change) {
	// Added or modified
	for k, newVal := range new {
		segs := appendSeg(prefix, k)
		oldVal, exists := old[k]
		if !exists {
			*out = append(*out, Change{Segments: segs, Value: newVal})
			continue
		}
		oldMap, oldIsMap := oldVal.(map[string]any)
		newMap, newIsMap := newVal.(map[string]any)
		if oldIsMap && newIsMap {
			diffInto(segs, oldMap, newMap, out)
			continue
		}
		if !reflect.DeepEqual(oldVal, newVal) {
			*out = append(*out, Change{Segments: segs, Value: newVal})
		}
	}

	// Deleted
	for k := range old {
		if _, exists := new[k]; !exists {
			*out = append(*out, Change{Segments: appendSeg(prefix, k), Deleted: true})
		}
	}
}

func appendSeg(prefix []string, seg string) []string {
	segs := make([]string, len(prefix), len(prefix)+1)
	copy(segs, prefix)
	return append(segs, seg)
}
