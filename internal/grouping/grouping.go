// Package grouping reconstructs component-set structure from a flat
// list of named components. The "<base> / <variant>" naming convention
// drives membership; the scan is a pure function of its input order.
package grouping

import (
	"strings"

	"github.com/uistack/comp-vs/internal/types"
)

// Separator splits a component name into base and variant parts.
const Separator = " / "

// Group partitions components into component-set groups. Groups are
// emitted in order of first occurrence of their base name; variants
// keep input order. A name without the separator forms its own
// standalone group.
func Group(components []types.RawComponent) []types.ComponentGroup {
	groups := make([]types.ComponentGroup, 0, len(components))
	index := make(map[string]int, len(components))

	for _, comp := range components {
		base := comp.Name
		if i := strings.Index(comp.Name, Separator); i >= 0 {
			base = comp.Name[:i]
		}

		at, seen := index[base]
		if !seen {
			index[base] = len(groups)
			groups = append(groups, types.ComponentGroup{
				BaseName:     base,
				Variants:     []types.RawComponent{comp},
				ThumbnailURL: comp.ThumbnailURL,
			})
			at = len(groups) - 1
		} else {
			groups[at].Variants = append(groups[at].Variants, comp)
		}

		// Any shared set identifier in the input wins; grouping stays
		// name-driven when the extractor supplied none.
		if groups[at].ComponentSetID == "" && comp.SetID != "" {
			groups[at].ComponentSetID = comp.SetID
		}
	}

	return groups
}
