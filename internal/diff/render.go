package diff

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/uistack/comp-vs/internal/snapshot"
	"github.com/uistack/comp-vs/internal/types"
)

// UnifiedText renders a human-readable unified diff of the two
// snapshots' canonical forms, for display alongside the structured diff
// during review.
func UnifiedText(previous *types.Snapshot, current types.Snapshot) string {
	before := ""
	if previous != nil {
		before = snapshot.Canonical(*previous)
	}
	after := snapshot.Canonical(current)
	if before == after {
		return ""
	}

	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "previous",
		ToFile:   "current",
		Context:  3,
	}

	res, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return strings.TrimSpace(after)
	}
	return strings.TrimSpace(res)
}
