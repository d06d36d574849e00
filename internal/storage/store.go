// Package storage persists component versions, audit trails, and cold
// snapshot payloads. Version rows are append-only: publishing a new
// version demotes the previous published row, it never deletes it.
package storage

import (
	"context"

	"github.com/uistack/comp-vs/internal/types"
)

// ListVersionsOptions controls version-history retrieval.
type ListVersionsOptions struct {
	ComponentKey string
	Descending   bool
	Limit        int
}

// VersionStore defines the persistence operations the versioning engine
// requires. Every write that represents a transition carries its audit
// entry so row and trail land together.
type VersionStore interface {
	CreateProject(ctx context.Context, p types.Project) (types.Project, error)
	GetProject(ctx context.Context, id string) (types.Project, error)

	CreateVersion(ctx context.Context, v types.ComponentVersion, audit types.AuditEntry) (types.ComponentVersion, error)
	GetVersion(ctx context.Context, id string) (types.ComponentVersion, error)
	UpdateVersion(ctx context.Context, v types.ComponentVersion, audit types.AuditEntry) (types.ComponentVersion, error)

	// PublishVersion persists v as the component's current published
	// version and atomically demotes the previously published row, if
	// any, to superseded. It returns the published row and the demoted
	// row (zero when there was none).
	PublishVersion(ctx context.Context, v types.ComponentVersion, audit types.AuditEntry) (types.ComponentVersion, types.ComponentVersion, error)

	LatestVersion(ctx context.Context, componentKey string) (types.ComponentVersion, error)
	CurrentPublished(ctx context.Context, componentKey string) (types.ComponentVersion, error)
	ListVersions(ctx context.Context, opts ListVersionsOptions) []types.ComponentVersion
	ListAudit(ctx context.Context, versionID string) []types.AuditEntry
}

// SnapshotArchive stores raw snapshot payloads outside the hot store.
// Superseded versions have their payloads copied here at publish time.
type SnapshotArchive interface {
	Store(ctx context.Context, componentKey, versionID string, data []byte) error
	Fetch(ctx context.Context, componentKey, versionID string) ([]byte, error)
	Remove(ctx context.Context, componentKey, versionID string) error
	Close() error
}

func validateVersion(v types.ComponentVersion) error {
	if v.ID == "" {
		return &ValidationError{Message: "version id is required"}
	}
	if v.ComponentKey == "" {
		return &ValidationError{Message: "component key is required"}
	}
	if v.Version == "" {
		return &ValidationError{Message: "version string is required"}
	}
	return nil
}
