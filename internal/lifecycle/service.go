package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uistack/comp-vs/internal/diff"
	"github.com/uistack/comp-vs/internal/snapshot"
	"github.com/uistack/comp-vs/internal/storage"
	"github.com/uistack/comp-vs/internal/types"
)

const firstVersion = "1.0.0"

// LibraryIndex lists published components for a design file. It seeds
// the previous snapshot for components that have no local history yet.
type LibraryIndex interface {
	ListPublished(ctx context.Context, fileKey string) ([]types.RemoteComponent, error)
}

// Versioner drives the versioning write path: it diffs incoming
// snapshots against the last recorded state, computes the semantic
// version bump, and moves versions through the review lifecycle.
// Callers must serialize writes per component key.
type Versioner struct {
	store   storage.VersionStore
	archive storage.SnapshotArchive
	library LibraryIndex
	fileKey string
	log     *zap.Logger
	clock   func() time.Time
}

// VersionerOptions configures a Versioner. Archive and Library are
// optional.
type VersionerOptions struct {
	Store   storage.VersionStore
	Archive storage.SnapshotArchive
	Library LibraryIndex
	FileKey string
	Logger  *zap.Logger
}

// NewVersioner wires a Versioner from its collaborators.
func NewVersioner(opts VersionerOptions) *Versioner {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Versioner{
		store:   opts.Store,
		archive: opts.Archive,
		library: opts.Library,
		fileKey: opts.FileKey,
		log:     log,
		clock:   time.Now,
	}
}

// RecordRequest describes one extracted snapshot to version.
type RecordRequest struct {
	ProjectID     string
	ComponentKey  string
	ComponentName string
	Actor         string
	Snapshot      types.Snapshot
}

// Record compares the snapshot against the component's last recorded
// version (falling back to the remote library for unseen components)
// and creates a new draft version when anything changed. The bool
// result reports whether a row was created; an unchanged snapshot
// creates nothing and returns the existing head, or a zero version when
// the only known previous state was remote.
func (s *Versioner) Record(ctx context.Context, req RecordRequest) (types.ComponentVersion, bool, error) {
	if req.ComponentKey == "" {
		return types.ComponentVersion{}, false, &storage.ValidationError{Message: "component key is required"}
	}
	if req.ComponentName == "" {
		return types.ComponentVersion{}, false, &storage.ValidationError{Message: "component name is required"}
	}
	if req.Actor == "" {
		return types.ComponentVersion{}, false, &storage.ValidationError{Message: "actor is required"}
	}

	var (
		previous     *types.Snapshot
		baseVersion  string
		localHead    types.ComponentVersion
		hasLocalHead bool
	)

	head, err := s.store.LatestVersion(ctx, req.ComponentKey)
	switch {
	case err == nil:
		localHead = head
		hasLocalHead = true
		previous = &head.Snapshot
		baseVersion = head.Version
	case isNotFound(err):
		remote, ok, rerr := s.remoteSeed(ctx, req.ComponentKey)
		if rerr != nil {
			return types.ComponentVersion{}, false, rerr
		}
		if ok {
			previous = &remote.Snapshot
			baseVersion = remote.Version
		}
	default:
		return types.ComponentVersion{}, false, err
	}

	d := diff.Compute(previous, req.Snapshot)
	if previous != nil && d.Empty() {
		if hasLocalHead {
			return localHead, false, nil
		}
		return types.ComponentVersion{}, false, nil
	}

	version, err := nextVersion(baseVersion, d.Bump)
	if err != nil {
		return types.ComponentVersion{}, false, err
	}

	now := s.clock().UTC()
	row := types.ComponentVersion{
		ID:            uuid.NewString(),
		ProjectID:     req.ProjectID,
		ComponentKey:  req.ComponentKey,
		ComponentName: req.ComponentName,
		Version:       version,
		Status:        types.StatusDraft,
		Snapshot:      req.Snapshot,
		CreatedBy:     req.Actor,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if previous != nil {
		row.Diff = &d
		row.BumpType = d.Bump
	}

	created, err := s.store.CreateVersion(ctx, row, newAuditEntry(row.ID, types.ActionCreated, req.Actor, "", now))
	if err != nil {
		return types.ComponentVersion{}, false, err
	}

	s.log.Info("recorded component version",
		zap.String("component_key", created.ComponentKey),
		zap.String("version", created.Version),
		zap.String("bump", string(created.BumpType)),
		zap.String("fingerprint", snapshot.Fingerprint(created.Snapshot)),
	)
	return created, true, nil
}

// Submit moves a draft version into review.
func (s *Versioner) Submit(ctx context.Context, versionID, actor string) (types.ComponentVersion, error) {
	return s.transition(ctx, versionID, types.ActionSubmittedForReview, actor, "")
}

// Approve marks an in-review version approved and records the reviewer.
func (s *Versioner) Approve(ctx context.Context, versionID, actor string) (types.ComponentVersion, error) {
	return s.transition(ctx, versionID, types.ActionApproved, actor, "")
}

// Reject sends an in-review version back to draft with the reviewer's
// reason.
func (s *Versioner) Reject(ctx context.Context, versionID, actor, reason string) (types.ComponentVersion, error) {
	return s.transition(ctx, versionID, types.ActionRejected, actor, reason)
}

// Deprecate retires a published version. Prior versions are untouched.
func (s *Versioner) Deprecate(ctx context.Context, versionID, actor string) (types.ComponentVersion, error) {
	return s.transition(ctx, versionID, types.ActionDeprecated, actor, "")
}

// Publish promotes an approved version to the component's current
// published version, superseding the previous one. The superseded
// row's raw payload is copied to the snapshot archive. Publish is not
// retried on failure: a blind retry could demote twice, so retry policy
// belongs to the caller keyed by version id.
func (s *Versioner) Publish(ctx context.Context, versionID, actor string) (types.ComponentVersion, error) {
	v, err := s.store.GetVersion(ctx, versionID)
	if err != nil {
		return types.ComponentVersion{}, err
	}

	updated, audit, err := Transition(v, types.ActionPublished, actor, "", s.clock().UTC())
	if err != nil {
		return types.ComponentVersion{}, err
	}

	published, superseded, err := s.store.PublishVersion(ctx, updated, audit)
	if err != nil {
		return types.ComponentVersion{}, err
	}

	if superseded.ID != "" && s.archive != nil && len(superseded.Snapshot.Raw) > 0 {
		if aerr := s.archive.Store(ctx, superseded.ComponentKey, superseded.ID, superseded.Snapshot.Raw); aerr != nil {
			s.log.Warn("archiving superseded snapshot failed",
				zap.String("version_id", superseded.ID),
				zap.Error(aerr),
			)
		}
	}

	s.log.Info("published component version",
		zap.String("component_key", published.ComponentKey),
		zap.String("version", published.Version),
		zap.String("superseded", superseded.ID),
	)
	return published, nil
}

func (s *Versioner) transition(ctx context.Context, versionID string, action types.AuditAction, actor, note string) (types.ComponentVersion, error) {
	v, err := s.store.GetVersion(ctx, versionID)
	if err != nil {
		return types.ComponentVersion{}, err
	}

	updated, audit, err := Transition(v, action, actor, note, s.clock().UTC())
	if err != nil {
		return types.ComponentVersion{}, err
	}
	return s.store.UpdateVersion(ctx, updated, audit)
}

func (s *Versioner) remoteSeed(ctx context.Context, componentKey string) (types.RemoteComponent, bool, error) {
	if s.library == nil || s.fileKey == "" {
		return types.RemoteComponent{}, false, nil
	}

	published, err := s.library.ListPublished(ctx, s.fileKey)
	if err != nil {
		return types.RemoteComponent{}, false, fmt.Errorf("list remote library: %w", err)
	}
	for _, remote := range published {
		if remote.Key == componentKey {
			return remote, true, nil
		}
	}
	return types.RemoteComponent{}, false, nil
}

func nextVersion(base string, bump types.BumpType) (string, error) {
	if base == "" {
		return firstVersion, nil
	}

	current, err := semver.NewVersion(base)
	if err != nil {
		return "", fmt.Errorf("parse version %q: %w", base, err)
	}

	var next semver.Version
	switch bump {
	case types.BumpMajor:
		next = current.IncMajor()
	case types.BumpMinor:
		next = current.IncMinor()
	default:
		next = current.IncPatch()
	}
	return next.String(), nil
}

func isNotFound(err error) bool {
	var notFound *storage.NotFoundError
	return errors.As(err, &notFound)
}
