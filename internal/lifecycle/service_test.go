package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uistack/comp-vs/internal/snapshot"
	"github.com/uistack/comp-vs/internal/storage"
	"github.com/uistack/comp-vs/internal/types"
)

type fakeLibrary struct {
	components []types.RemoteComponent
	calls      int
}

func (f *fakeLibrary) ListPublished(ctx context.Context, fileKey string) ([]types.RemoteComponent, error) {
	f.calls++
	return f.components, nil
}

func newTestVersioner(t *testing.T, lib LibraryIndex) (*Versioner, storage.VersionStore, *storage.MemoryArchive) {
	t.Helper()
	store := storage.NewMemoryStore()
	archive := storage.NewMemoryArchive()
	v := NewVersioner(VersionerOptions{
		Store:   store,
		Archive: archive,
		Library: lib,
		FileKey: "file-1",
	})
	v.clock = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return v, store, archive
}

func buttonSnapshot(props string) types.Snapshot {
	return snapshot.FromRaw("btn", []byte(`{"propertyDefinitions": `+props+`, "width": 100, "height": 40}`))
}

func TestRecordFirstVersion(t *testing.T) {
	v, store, _ := newTestVersioner(t, nil)
	ctx := context.Background()

	created, ok, err := v.Record(ctx, RecordRequest{
		ComponentKey:  "btn",
		ComponentName: "Button",
		Actor:         "alice",
		Snapshot:      buttonSnapshot(`{"variant": "primary"}`),
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1.0.0", created.Version)
	assert.Equal(t, types.StatusDraft, created.Status)
	assert.Nil(t, created.Diff)
	assert.Empty(t, created.BumpType)
	assert.Equal(t, "alice", created.CreatedBy)
	assert.NotEmpty(t, created.ID)

	audit := store.ListAudit(ctx, created.ID)
	require.Len(t, audit, 1)
	assert.Equal(t, types.ActionCreated, audit[0].Action)
}

func TestRecordUnchangedSnapshotCreatesNothing(t *testing.T) {
	v, store, _ := newTestVersioner(t, nil)
	ctx := context.Background()

	first, _, err := v.Record(ctx, RecordRequest{
		ComponentKey:  "btn",
		ComponentName: "Button",
		Actor:         "alice",
		Snapshot:      buttonSnapshot(`{"variant": "primary"}`),
	})
	require.NoError(t, err)

	// Same structure, different geometry: geometry alone does not count
	// as unchanged, so use a truly identical structural snapshot.
	again, ok, err := v.Record(ctx, RecordRequest{
		ComponentKey:  "btn",
		ComponentName: "Button",
		Actor:         "alice",
		Snapshot:      buttonSnapshot(`{"variant": "primary"}`),
	})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, first.ID, again.ID)

	versions := store.ListVersions(ctx, storage.ListVersionsOptions{ComponentKey: "btn"})
	assert.Len(t, versions, 1)
}

func TestRecordBumpProgression(t *testing.T) {
	v, _, _ := newTestVersioner(t, nil)
	ctx := context.Background()

	_, _, err := v.Record(ctx, RecordRequest{
		ComponentKey: "btn", ComponentName: "Button", Actor: "alice",
		Snapshot: buttonSnapshot(`{"variant": "primary"}`),
	})
	require.NoError(t, err)

	// Added property: minor.
	minor, ok, err := v.Record(ctx, RecordRequest{
		ComponentKey: "btn", ComponentName: "Button", Actor: "alice",
		Snapshot: buttonSnapshot(`{"variant": "primary", "size": "large"}`),
	})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1.1.0", minor.Version)
	assert.Equal(t, types.BumpMinor, minor.BumpType)
	require.NotNil(t, minor.Diff)
	require.Len(t, minor.Diff.Added, 1)
	assert.Equal(t, "size", minor.Diff.Added[0].Key)

	// Removed property: major.
	major, _, err := v.Record(ctx, RecordRequest{
		ComponentKey: "btn", ComponentName: "Button", Actor: "alice",
		Snapshot: buttonSnapshot(`{"variant": "primary"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", major.Version)
	assert.Equal(t, types.BumpMajor, major.BumpType)

	// Changed default only: patch.
	patch, _, err := v.Record(ctx, RecordRequest{
		ComponentKey: "btn", ComponentName: "Button", Actor: "alice",
		Snapshot: buttonSnapshot(`{"variant": "secondary"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "2.0.1", patch.Version)
	assert.Equal(t, types.BumpPatch, patch.BumpType)
}

func TestRecordSeedsFromRemoteLibrary(t *testing.T) {
	remote := buttonSnapshot(`{"variant": "primary"}`)
	lib := &fakeLibrary{components: []types.RemoteComponent{
		{Key: "btn", Name: "Button", Version: "3.2.1", Snapshot: remote},
	}}
	v, store, _ := newTestVersioner(t, lib)
	ctx := context.Background()

	// Changed against the remote state: versioning continues from the
	// remote version number.
	created, ok, err := v.Record(ctx, RecordRequest{
		ComponentKey: "btn", ComponentName: "Button", Actor: "alice",
		Snapshot: buttonSnapshot(`{"variant": "secondary"}`),
	})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "3.2.2", created.Version)
	require.NotNil(t, created.Diff)
	assert.Equal(t, types.BumpPatch, created.BumpType)
	assert.Equal(t, 1, lib.calls)

	// Unchanged against the remote state: nothing is recorded.
	other := &fakeLibrary{components: []types.RemoteComponent{
		{Key: "card", Name: "Card", Version: "1.4.0", Snapshot: snapshot.FromRaw("card", []byte(`{"propertyDefinitions": {"elevated": "true"}}`))},
	}}
	v2, store2, _ := newTestVersioner(t, other)
	zero, ok, err := v2.Record(ctx, RecordRequest{
		ComponentKey: "card", ComponentName: "Card", Actor: "alice",
		Snapshot: snapshot.FromRaw("card", []byte(`{"propertyDefinitions": {"elevated": "true"}}`)),
	})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, zero.ID)
	assert.Empty(t, store2.ListVersions(ctx, storage.ListVersionsOptions{ComponentKey: "card"}))

	// The changed component did get a local row.
	assert.Len(t, store.ListVersions(ctx, storage.ListVersionsOptions{ComponentKey: "btn"}), 1)
}

func TestPublishSupersedesAndArchives(t *testing.T) {
	v, store, archive := newTestVersioner(t, nil)
	ctx := context.Background()

	v1, _, err := v.Record(ctx, RecordRequest{
		ComponentKey: "btn", ComponentName: "Button", Actor: "alice",
		Snapshot: buttonSnapshot(`{"variant": "primary"}`),
	})
	require.NoError(t, err)

	_, err = v.Submit(ctx, v1.ID, "alice")
	require.NoError(t, err)
	_, err = v.Approve(ctx, v1.ID, "bob")
	require.NoError(t, err)
	published1, err := v.Publish(ctx, v1.ID, "bob")
	require.NoError(t, err)
	require.NotNil(t, published1.PublishedAt)
	firstPublishedAt := *published1.PublishedAt

	v2, _, err := v.Record(ctx, RecordRequest{
		ComponentKey: "btn", ComponentName: "Button", Actor: "alice",
		Snapshot: buttonSnapshot(`{"variant": "primary", "size": "large"}`),
	})
	require.NoError(t, err)

	_, err = v.Submit(ctx, v2.ID, "alice")
	require.NoError(t, err)
	_, err = v.Approve(ctx, v2.ID, "bob")
	require.NoError(t, err)
	published2, err := v.Publish(ctx, v2.ID, "bob")
	require.NoError(t, err)

	// Exactly one published row, and it is v2.
	current, err := store.CurrentPublished(ctx, "btn")
	require.NoError(t, err)
	assert.Equal(t, published2.ID, current.ID)
	publishedCount := 0
	for _, row := range store.ListVersions(ctx, storage.ListVersionsOptions{ComponentKey: "btn"}) {
		if row.Status == types.StatusPublished {
			publishedCount++
		}
	}
	assert.Equal(t, 1, publishedCount)

	// v1 is superseded, keeps its audit trail and published timestamp.
	demoted, err := store.GetVersion(ctx, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuperseded, demoted.Status)
	require.NotNil(t, demoted.PublishedAt)
	assert.Equal(t, firstPublishedAt, *demoted.PublishedAt)

	actions := []types.AuditAction{}
	for _, entry := range store.ListAudit(ctx, v1.ID) {
		actions = append(actions, entry.Action)
	}
	assert.Equal(t, []types.AuditAction{
		types.ActionCreated,
		types.ActionSubmittedForReview,
		types.ActionApproved,
		types.ActionPublished,
	}, actions)

	// The superseded row's raw payload went to cold storage.
	raw, err := archive.Fetch(ctx, "btn", v1.ID)
	require.NoError(t, err)
	assert.Equal(t, string(v1.Snapshot.Raw), string(raw))
}

func TestRejectReturnsToDraftWithNote(t *testing.T) {
	v, store, _ := newTestVersioner(t, nil)
	ctx := context.Background()

	created, _, err := v.Record(ctx, RecordRequest{
		ComponentKey: "btn", ComponentName: "Button", Actor: "alice",
		Snapshot: buttonSnapshot(`{"variant": "primary"}`),
	})
	require.NoError(t, err)

	_, err = v.Submit(ctx, created.ID, "alice")
	require.NoError(t, err)

	rejected, err := v.Reject(ctx, created.ID, "bob", "contrast too low")
	require.NoError(t, err)
	assert.Equal(t, types.StatusDraft, rejected.Status)

	audit := store.ListAudit(ctx, created.ID)
	require.Len(t, audit, 3)
	assert.Equal(t, types.ActionRejected, audit[2].Action)
	assert.Equal(t, "contrast too low", audit[2].Note)
}

func TestPublishRequiresApproval(t *testing.T) {
	v, store, _ := newTestVersioner(t, nil)
	ctx := context.Background()

	created, _, err := v.Record(ctx, RecordRequest{
		ComponentKey: "btn", ComponentName: "Button", Actor: "alice",
		Snapshot: buttonSnapshot(`{"variant": "primary"}`),
	})
	require.NoError(t, err)

	_, err = v.Publish(ctx, created.ID, "bob")
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)

	// Audit trail untouched by the failed action.
	assert.Len(t, store.ListAudit(ctx, created.ID), 1)
}

func TestRecordValidation(t *testing.T) {
	v, _, _ := newTestVersioner(t, nil)
	ctx := context.Background()

	_, _, err := v.Record(ctx, RecordRequest{ComponentName: "Button", Actor: "alice"})
	var validation *storage.ValidationError
	assert.ErrorAs(t, err, &validation)

	_, _, err = v.Record(ctx, RecordRequest{ComponentKey: "btn", Actor: "alice"})
	assert.ErrorAs(t, err, &validation)

	_, _, err = v.Record(ctx, RecordRequest{ComponentKey: "btn", ComponentName: "Button"})
	assert.ErrorAs(t, err, &validation)
}
