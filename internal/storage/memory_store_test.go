package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/uistack/comp-vs/internal/types"
)

func makeVersion(id, componentKey, version string, status types.VersionStatus) types.ComponentVersion {
	now := time.Now().UTC()
	return types.ComponentVersion{
		ID:            id,
		ComponentKey:  componentKey,
		ComponentName: "Button",
		Version:       version,
		Status:        status,
		Snapshot:      types.Snapshot{ComponentKey: componentKey},
		CreatedBy:     "alice",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func auditFor(versionID string, action types.AuditAction) types.AuditEntry {
	return types.AuditEntry{
		ID:                 versionID + "-" + string(action),
		ComponentVersionID: versionID,
		Action:             action,
		PerformedBy:        "alice",
		CreatedAt:          time.Now().UTC(),
	}
}

func TestMemoryStoreVersionLifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	v1 := makeVersion("v1", "btn", "1.0.0", types.StatusDraft)
	if _, err := store.CreateVersion(ctx, v1, auditFor("v1", types.ActionCreated)); err != nil {
		t.Fatalf("CreateVersion: %v", err)
	}

	if _, err := store.CreateVersion(ctx, v1, auditFor("v1", types.ActionCreated)); err == nil {
		t.Fatalf("expected conflict on duplicate id")
	}

	dup := makeVersion("v1b", "btn", "1.0.0", types.StatusDraft)
	if _, err := store.CreateVersion(ctx, dup, auditFor("v1b", types.ActionCreated)); err == nil {
		t.Fatalf("expected conflict on duplicate component/version pair")
	}

	v2 := makeVersion("v2", "btn", "1.1.0", types.StatusDraft)
	if _, err := store.CreateVersion(ctx, v2, auditFor("v2", types.ActionCreated)); err != nil {
		t.Fatalf("CreateVersion v2: %v", err)
	}

	latest, err := store.LatestVersion(ctx, "btn")
	if err != nil {
		t.Fatalf("LatestVersion: %v", err)
	}
	if latest.ID != "v2" {
		t.Fatalf("expected v2 latest, got %s", latest.ID)
	}

	v1.Status = types.StatusApproved
	if _, err := store.UpdateVersion(ctx, v1, auditFor("v1", types.ActionApproved)); err != nil {
		t.Fatalf("UpdateVersion: %v", err)
	}

	v1.Status = types.StatusPublished
	published, demoted, err := store.PublishVersion(ctx, v1, auditFor("v1", types.ActionPublished))
	if err != nil {
		t.Fatalf("PublishVersion v1: %v", err)
	}
	if published.ID != "v1" {
		t.Fatalf("unexpected published id %s", published.ID)
	}
	if demoted.ID != "" {
		t.Fatalf("expected no demotion on first publish, got %s", demoted.ID)
	}

	v2.Status = types.StatusPublished
	_, demoted, err = store.PublishVersion(ctx, v2, auditFor("v2", types.ActionPublished))
	if err != nil {
		t.Fatalf("PublishVersion v2: %v", err)
	}
	if demoted.ID != "v1" {
		t.Fatalf("expected v1 demoted, got %q", demoted.ID)
	}
	if demoted.Status != types.StatusSuperseded {
		t.Fatalf("expected superseded status, got %s", demoted.Status)
	}

	current, err := store.CurrentPublished(ctx, "btn")
	if err != nil {
		t.Fatalf("CurrentPublished: %v", err)
	}
	if current.ID != "v2" || current.Status != types.StatusPublished {
		t.Fatalf("unexpected current version %s/%s", current.ID, current.Status)
	}

	// Exactly one published row per component after the second publish.
	publishedCount := 0
	for _, v := range store.ListVersions(ctx, ListVersionsOptions{ComponentKey: "btn"}) {
		if v.Status == types.StatusPublished {
			publishedCount++
		}
	}
	if publishedCount != 1 {
		t.Fatalf("expected exactly 1 published row, got %d", publishedCount)
	}

	stored, err := store.GetVersion(ctx, "v1")
	if err != nil {
		t.Fatalf("GetVersion v1: %v", err)
	}
	if stored.Status != types.StatusSuperseded {
		t.Fatalf("expected v1 superseded, got %s", stored.Status)
	}

	audit := store.ListAudit(ctx, "v1")
	if len(audit) != 3 {
		t.Fatalf("expected 3 audit entries for v1, got %d", len(audit))
	}
	wantActions := []types.AuditAction{types.ActionCreated, types.ActionApproved, types.ActionPublished}
	for i, entry := range audit {
		if entry.Action != wantActions[i] {
			t.Fatalf("audit[%d] = %s, want %s", i, entry.Action, wantActions[i])
		}
	}

	desc := store.ListVersions(ctx, ListVersionsOptions{ComponentKey: "btn", Descending: true, Limit: 1})
	if len(desc) != 1 || desc[0].ID != "v2" {
		t.Fatalf("expected newest version first")
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.GetVersion(ctx, "missing"); err == nil {
		t.Fatalf("expected not found")
	} else {
		var notFound *NotFoundError
		if !errors.As(err, &notFound) {
			t.Fatalf("expected NotFoundError, got %T", err)
		}
	}

	if _, err := store.LatestVersion(ctx, "unseen"); err == nil {
		t.Fatalf("expected not found for unseen component")
	}
	if _, err := store.CurrentPublished(ctx, "unseen"); err == nil {
		t.Fatalf("expected not found when nothing published")
	}

	v := makeVersion("", "btn", "1.0.0", types.StatusDraft)
	if _, err := store.CreateVersion(ctx, v, types.AuditEntry{}); err == nil {
		t.Fatalf("expected validation error for missing id")
	}
}

func TestMemoryStoreProjects(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	p, err := store.CreateProject(ctx, types.Project{ID: "p1", Name: "Design System"})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if p.CreatedAt.IsZero() {
		t.Fatalf("expected CreatedAt to be set")
	}

	if _, err := store.CreateProject(ctx, types.Project{ID: "p1", Name: "Other"}); err == nil {
		t.Fatalf("expected conflict on duplicate project id")
	}

	got, err := store.GetProject(ctx, "p1")
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if got.Name != "Design System" {
		t.Fatalf("unexpected project name %s", got.Name)
	}
}
