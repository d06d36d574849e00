// Package lifecycle governs a component version's journey from draft to
// published. Transition is the only way a version's status changes;
// every transition taken produces exactly one audit entry, so the audit
// trail is always a prefix of the legal action sequence.
package lifecycle

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/uistack/comp-vs/internal/types"
)

// InvalidTransitionError reports an action that is not legal from the
// version's current state. The version is left unchanged.
type InvalidTransitionError struct {
	From   types.VersionStatus
	Action types.AuditAction
}

func (e *InvalidTransitionError) Error() string {
	return "action " + string(e.Action) + " is not valid from state " + string(e.From)
}

// ErrEmptyDiff rejects submitting a version whose diff carries no
// entries. Only a component's first version may be submitted without
// one.
var ErrEmptyDiff = errors.New("cannot submit a version with an empty diff")

// Transition applies action to v and returns the updated copy together
// with the audit entry recording it. On error the returned version
// equals the input and no audit entry is produced.
func Transition(v types.ComponentVersion, action types.AuditAction, actor, note string, now time.Time) (types.ComponentVersion, types.AuditEntry, error) {
	switch {
	case action == types.ActionSubmittedForReview && v.Status == types.StatusDraft:
		if v.Diff != nil && v.Diff.Empty() {
			return v, types.AuditEntry{}, ErrEmptyDiff
		}
		v.Status = types.StatusInReview

	case action == types.ActionApproved && v.Status == types.StatusInReview:
		v.Status = types.StatusApproved
		v.ReviewedBy = actor

	case action == types.ActionRejected && v.Status == types.StatusInReview:
		v.Status = types.StatusDraft

	case action == types.ActionPublished && v.Status == types.StatusApproved:
		v.Status = types.StatusPublished
		publishedAt := now
		v.PublishedAt = &publishedAt

	case action == types.ActionDeprecated && v.Status == types.StatusPublished:
		v.Status = types.StatusDeprecated

	default:
		return v, types.AuditEntry{}, &InvalidTransitionError{From: v.Status, Action: action}
	}

	v.UpdatedAt = now
	return v, newAuditEntry(v.ID, action, actor, note, now), nil
}

func newAuditEntry(versionID string, action types.AuditAction, actor, note string, now time.Time) types.AuditEntry {
	return types.AuditEntry{
		ID:                 uuid.NewString(),
		ComponentVersionID: versionID,
		Action:             action,
		PerformedBy:        actor,
		Note:               note,
		CreatedAt:          now,
	}
}
