package types

import (
	"encoding/json"
	"time"
)

// BumpType classifies the severity of a structural change, mirroring
// semantic versioning. The zero value means "no bump".
type BumpType string

const (
	BumpPatch BumpType = "patch"
	BumpMinor BumpType = "minor"
	BumpMajor BumpType = "major"
)

// VersionStatus enumerates the lifecycle states of a component version.
type VersionStatus string

const (
	StatusDraft      VersionStatus = "draft"
	StatusInReview   VersionStatus = "in_review"
	StatusApproved   VersionStatus = "approved"
	StatusPublished  VersionStatus = "published"
	StatusDeprecated VersionStatus = "deprecated"
	// StatusSuperseded marks a previously published version that a newer
	// publish has replaced. The row and its audit trail are retained.
	StatusSuperseded VersionStatus = "superseded"
)

// AuditAction names one transition recorded in a version's audit trail.
type AuditAction string

const (
	ActionCreated            AuditAction = "created"
	ActionSubmittedForReview AuditAction = "submitted_for_review"
	ActionApproved           AuditAction = "approved"
	ActionPublished          AuditAction = "published"
	ActionRejected           AuditAction = "rejected"
	ActionDeprecated         AuditAction = "deprecated"
)

// PropertyDefinition describes one configurable slot of a component.
type PropertyDefinition struct {
	Type    string   `json:"type"`
	Default string   `json:"default,omitempty"`
	Options []string `json:"options,omitempty"`
}

// Geometry summarises the rendered size and layout of a component.
type Geometry struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Layout string  `json:"layout,omitempty"`
}

// Snapshot captures the structural state of one component at a point in
// time. Raw holds the original extracted payload for round-trip
// reconstruction and is never consulted for equality or diffing.
type Snapshot struct {
	ComponentKey        string                        `json:"componentKey"`
	PropertyDefinitions map[string]PropertyDefinition `json:"propertyDefinitions,omitempty"`
	VariablesUsed       map[string]string             `json:"variablesUsed,omitempty"`
	Geometry            Geometry                      `json:"geometry"`
	Raw                 json.RawMessage               `json:"raw,omitempty"`
}

// DiffKind distinguishes property changes from variable-binding changes.
type DiffKind string

const (
	DiffKindProperty DiffKind = "property"
	DiffKindVariable DiffKind = "variable"
	DiffKindGeometry DiffKind = "geometry"
)

// GeometryKey is the reserved diff key for geometry-only changes.
const GeometryKey = "__geometry__"

// DiffEntry names one added, changed, or removed slot with its before
// and after values where applicable.
type DiffEntry struct {
	Kind   DiffKind `json:"kind"`
	Key    string   `json:"key"`
	Before string   `json:"before,omitempty"`
	After  string   `json:"after,omitempty"`
}

// Diff is the structural comparison of two snapshots. Entries within
// each sequence follow canonical (sorted) key order.
type Diff struct {
	Added   []DiffEntry `json:"added"`
	Changed []DiffEntry `json:"changed"`
	Removed []DiffEntry `json:"removed"`
	Bump    BumpType    `json:"bump,omitempty"`
	Unified string      `json:"unified,omitempty"`
}

// Empty reports whether the diff carries no entries at all.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Changed) == 0 && len(d.Removed) == 0
}

// ComponentVersion is one persisted, immutable version of a component.
// Diff and BumpType are unset only on a component's first recorded
// version.
type ComponentVersion struct {
	ID            string        `json:"id"`
	ProjectID     string        `json:"projectId,omitempty"`
	ComponentKey  string        `json:"componentKey"`
	ComponentName string        `json:"componentName"`
	Version       string        `json:"version"`
	Status        VersionStatus `json:"status"`
	Snapshot      Snapshot      `json:"snapshot"`
	Diff          *Diff         `json:"diff,omitempty"`
	BumpType      BumpType      `json:"bumpType,omitempty"`
	CreatedBy     string        `json:"createdBy"`
	ReviewedBy    string        `json:"reviewedBy,omitempty"`
	PublishedAt   *time.Time    `json:"publishedAt,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// AuditEntry is an append-only record of one transition taken by a
// component version.
type AuditEntry struct {
	ID                 string      `json:"id"`
	ComponentVersionID string      `json:"componentVersionId"`
	Action             AuditAction `json:"action"`
	PerformedBy        string      `json:"performedBy"`
	Note               string      `json:"note,omitempty"`
	CreatedAt          time.Time   `json:"createdAt"`
}

// RawComponent is one extracted local or remote component before
// grouping, identified by scene node and library key.
type RawComponent struct {
	NodeID       string `json:"nodeId"`
	Key          string `json:"key"`
	Name         string `json:"name"`
	SetID        string `json:"setId,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

// ComponentGroup collects the variants of one component set by naming
// convention. Groups are transient scan output and never persisted.
type ComponentGroup struct {
	BaseName       string         `json:"baseName"`
	Variants       []RawComponent `json:"variants"`
	ThumbnailURL   string         `json:"thumbnailUrl,omitempty"`
	ComponentSetID string         `json:"componentSetId,omitempty"`
}

// Project scopes component versions to one design file.
type Project struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	FigmaFileKey string    `json:"figmaFileKey,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// RemoteComponent is a published component row from the remote library
// index, used to seed diffs for components not yet versioned locally.
type RemoteComponent struct {
	Key      string   `json:"key"`
	Name     string   `json:"name"`
	Version  string   `json:"version"`
	Snapshot Snapshot `json:"snapshot"`
}
