// Package diff compares two component snapshots and classifies the
// severity of the change. Compute is a pure function: identical inputs
// always produce identical diffs, with entries in canonical key order.
package diff

import (
	"sort"

	"github.com/uistack/comp-vs/internal/snapshot"
	"github.com/uistack/comp-vs/internal/types"
)

// Compute diffs current against previous. A nil previous means "initial
// version": the result is empty and carries no bump recommendation.
func Compute(previous *types.Snapshot, current types.Snapshot) types.Diff {
	d := types.Diff{
		Added:   []types.DiffEntry{},
		Changed: []types.DiffEntry{},
		Removed: []types.DiffEntry{},
	}
	if previous == nil {
		return d
	}

	compareProperties(&d, previous.PropertyDefinitions, current.PropertyDefinitions)
	compareVariables(&d, previous.VariablesUsed, current.VariablesUsed)

	// Geometry-only changes collapse into one reserved entry.
	if d.Empty() {
		before := snapshot.CanonicalGeometry(previous.Geometry)
		after := snapshot.CanonicalGeometry(current.Geometry)
		if before != after {
			d.Changed = append(d.Changed, types.DiffEntry{
				Kind:   types.DiffKindGeometry,
				Key:    types.GeometryKey,
				Before: before,
				After:  after,
			})
		}
	}

	sortEntries(d.Added)
	sortEntries(d.Changed)
	sortEntries(d.Removed)

	d.Bump = classify(d)
	if !d.Empty() {
		d.Unified = UnifiedText(previous, current)
	}
	return d
}

func compareProperties(d *types.Diff, prev, cur map[string]types.PropertyDefinition) {
	for key, def := range cur {
		after := snapshot.CanonicalProperty(def)
		prevDef, ok := prev[key]
		if !ok {
			d.Added = append(d.Added, types.DiffEntry{Kind: types.DiffKindProperty, Key: key, After: after})
			continue
		}
		if before := snapshot.CanonicalProperty(prevDef); before != after {
			d.Changed = append(d.Changed, types.DiffEntry{Kind: types.DiffKindProperty, Key: key, Before: before, After: after})
		}
	}
	for key, def := range prev {
		if _, ok := cur[key]; !ok {
			d.Removed = append(d.Removed, types.DiffEntry{Kind: types.DiffKindProperty, Key: key, Before: snapshot.CanonicalProperty(def)})
		}
	}
}

func compareVariables(d *types.Diff, prev, cur map[string]string) {
	for slot, id := range cur {
		prevID, ok := prev[slot]
		if !ok {
			d.Added = append(d.Added, types.DiffEntry{Kind: types.DiffKindVariable, Key: slot, After: id})
			continue
		}
		if prevID != id {
			d.Changed = append(d.Changed, types.DiffEntry{Kind: types.DiffKindVariable, Key: slot, Before: prevID, After: id})
		}
	}
	for slot, id := range prev {
		if _, ok := cur[slot]; !ok {
			d.Removed = append(d.Removed, types.DiffEntry{Kind: types.DiffKindVariable, Key: slot, Before: id})
		}
	}
}

func sortEntries(entries []types.DiffEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Key != entries[j].Key {
			return entries[i].Key < entries[j].Key
		}
		return entries[i].Kind < entries[j].Kind
	})
}

// classify maps diff content to a bump recommendation. Removals are
// breaking, additions are additive, everything else is a patch. An
// empty diff recommends no bump at all.
func classify(d types.Diff) types.BumpType {
	switch {
	case len(d.Removed) > 0:
		return types.BumpMajor
	case len(d.Added) > 0:
		return types.BumpMinor
	case len(d.Changed) > 0:
		return types.BumpPatch
	default:
		return ""
	}
}
