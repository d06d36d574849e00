package storage

import (
	"context"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"

	"github.com/uistack/comp-vs/internal/types"
)

func newTestRedisStore(t *testing.T) VersionStore {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		mini, err := miniredis.Run()
		if err != nil {
			t.Fatalf("start miniredis: %v", err)
		}
		t.Cleanup(mini.Close)
		addr = mini.Addr()
	} else {
		// Use the externally provided Redis instance.
		t.Cleanup(func() {
			client := redis.NewClient(&redis.Options{Addr: addr})
			_ = client.FlushDB(context.Background()).Err()
			_ = client.Close()
		})
	}

	store, err := NewRedisStore(RedisConfig{Addr: addr})
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	if rs, ok := store.(*redisStore); ok {
		_ = rs.client.FlushDB(context.Background()).Err()
	}
	return store
}

func TestRedisStoreVersionLifecycle(t *testing.T) {
	store := newTestRedisStore(t)
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
	v2.CreatedAt = v1.CreatedAt.Add(1)
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

	v1.Status = types.StatusPublished
	if _, _, err := store.PublishVersion(ctx, v1, auditFor("v1", types.ActionPublished)); err != nil {
		t.Fatalf("PublishVersion v1: %v", err)
	}

	v2.Status = types.StatusPublished
	_, demoted, err := store.PublishVersion(ctx, v2, auditFor("v2", types.ActionPublished))
	if err != nil {
		t.Fatalf("PublishVersion v2: %v", err)
	}
	if demoted.ID != "v1" || demoted.Status != types.StatusSuperseded {
		t.Fatalf("expected v1 superseded, got %s/%s", demoted.ID, demoted.Status)
	}

	current, err := store.CurrentPublished(ctx, "btn")
	if err != nil {
		t.Fatalf("CurrentPublished: %v", err)
	}
	if current.ID != "v2" {
		t.Fatalf("expected v2 current, got %s", current.ID)
	}

	stored, err := store.GetVersion(ctx, "v1")
	if err != nil {
		t.Fatalf("GetVersion v1: %v", err)
	}
	if stored.Status != types.StatusSuperseded {
		t.Fatalf("expected v1 superseded, got %s", stored.Status)
	}

	versions := store.ListVersions(ctx, ListVersionsOptions{ComponentKey: "btn", Descending: true})
	if len(versions) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(versions))
	}
	if versions[0].ID != "v2" {
		t.Fatalf("expected newest version first, got %s", versions[0].ID)
	}

	audit := store.ListAudit(ctx, "v2")
	if len(audit) != 2 {
		t.Fatalf("expected 2 audit entries for v2, got %d", len(audit))
	}
	if audit[0].Action != types.ActionCreated || audit[1].Action != types.ActionPublished {
		t.Fatalf("unexpected audit order: %s, %s", audit[0].Action, audit[1].Action)
	}

	if _, err := store.GetVersion(ctx, "missing"); err == nil {
		t.Fatalf("expected not found")
	}
}

func TestRedisStoreProjects(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	if _, err := store.CreateProject(ctx, types.Project{ID: "p1", Name: "Design System"}); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if _, err := store.CreateProject(ctx, types.Project{ID: "p1", Name: "Other"}); err == nil {
		t.Fatalf("expected conflict on duplicate project id")
	}

	p, err := store.GetProject(ctx, "p1")
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if p.Name != "Design System" {
		t.Fatalf("unexpected project name %s", p.Name)
	}

	if _, err := store.GetProject(ctx, "missing"); err == nil {
		t.Fatalf("expected not found")
	}
}
