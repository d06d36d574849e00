package storage

import (
	"context"
	"sync"
	"time"

	"github.com/uistack/comp-vs/internal/types"
)

// memoryStore provides an in-process fallback for development and
// testing.
type memoryStore struct {
	mu       sync.RWMutex
	clock    func() time.Time
	projects map[string]types.Project
	versions map[string]types.ComponentVersion
	history  map[string][]string          // componentKey -> version ids, insertion order
	semvers  map[string]map[string]string // componentKey -> version string -> id
	current  map[string]string            // componentKey -> published version id
	audits   map[string][]types.AuditEntry
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() VersionStore {
	return &memoryStore{
		clock:    time.Now,
		projects: make(map[string]types.Project),
		versions: make(map[string]types.ComponentVersion),
		history:  make(map[string][]string),
		semvers:  make(map[string]map[string]string),
		current:  make(map[string]string),
		audits:   make(map[string][]types.AuditEntry),
	}
}

func (m *memoryStore) CreateProject(ctx context.Context, p types.Project) (types.Project, error) {
	if p.ID == "" {
		return types.Project{}, &ValidationError{Message: "project id is required"}
	}
	if p.Name == "" {
		return types.Project{}, &ValidationError{Message: "project name is required"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.projects[p.ID]; exists {
		return types.Project{}, &ConflictError{Resource: "project", Key: p.ID}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = m.clock().UTC()
	}
	m.projects[p.ID] = p
	return p, nil
}

func (m *memoryStore) GetProject(ctx context.Context, id string) (types.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.projects[id]
	if !ok {
		return types.Project{}, &NotFoundError{Resource: "project", Key: id}
	}
	return p, nil
}

func (m *memoryStore) CreateVersion(ctx context.Context, v types.ComponentVersion, audit types.AuditEntry) (types.ComponentVersion, error) {
	if err := validateVersion(v); err != nil {
		return types.ComponentVersion{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.versions[v.ID]; exists {
		return types.ComponentVersion{}, &ConflictError{Resource: "version", Key: v.ID}
	}
	pairs, ok := m.semvers[v.ComponentKey]
	if !ok {
		pairs = make(map[string]string)
		m.semvers[v.ComponentKey] = pairs
	}
	if _, exists := pairs[v.Version]; exists {
		return types.ComponentVersion{}, &ConflictError{Resource: "version", Key: v.ComponentKey + "@" + v.Version}
	}

	m.versions[v.ID] = v
	pairs[v.Version] = v.ID
	m.history[v.ComponentKey] = append(m.history[v.ComponentKey], v.ID)
	m.appendAuditLocked(v.ID, audit)
	return v, nil
}

func (m *memoryStore) GetVersion(ctx context.Context, id string) (types.ComponentVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.versions[id]
	if !ok {
		return types.ComponentVersion{}, &NotFoundError{Resource: "version", Key: id}
	}
	return v, nil
}

func (m *memoryStore) UpdateVersion(ctx context.Context, v types.ComponentVersion, audit types.AuditEntry) (types.ComponentVersion, error) {
	if err := validateVersion(v); err != nil {
		return types.ComponentVersion{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.versions[v.ID]; !ok {
		return types.ComponentVersion{}, &NotFoundError{Resource: "version", Key: v.ID}
	}
	m.versions[v.ID] = v
	m.appendAuditLocked(v.ID, audit)
	return v, nil
}

func (m *memoryStore) PublishVersion(ctx context.Context, v types.ComponentVersion, audit types.AuditEntry) (types.ComponentVersion, types.ComponentVersion, error) {
	if err := validateVersion(v); err != nil {
		return types.ComponentVersion{}, types.ComponentVersion{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.versions[v.ID]; !ok {
		return types.ComponentVersion{}, types.ComponentVersion{}, &NotFoundError{Resource: "version", Key: v.ID}
	}

	var demoted types.ComponentVersion
	if prevID, ok := m.current[v.ComponentKey]; ok && prevID != v.ID {
		prev := m.versions[prevID]
		prev.Status = types.StatusSuperseded
		prev.UpdatedAt = v.UpdatedAt
		m.versions[prevID] = prev
		demoted = prev
	}

	m.versions[v.ID] = v
	m.current[v.ComponentKey] = v.ID
	m.appendAuditLocked(v.ID, audit)
	return v, demoted, nil
}

func (m *memoryStore) LatestVersion(ctx context.Context, componentKey string) (types.ComponentVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.history[componentKey]
	if len(ids) == 0 {
		return types.ComponentVersion{}, &NotFoundError{Resource: "version", Key: componentKey}
	}
	return m.versions[ids[len(ids)-1]], nil
}

func (m *memoryStore) CurrentPublished(ctx context.Context, componentKey string) (types.ComponentVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.current[componentKey]
	if !ok {
		return types.ComponentVersion{}, &NotFoundError{Resource: "published version", Key: componentKey}
	}
	return m.versions[id], nil
}

func (m *memoryStore) ListVersions(ctx context.Context, opts ListVersionsOptions) []types.ComponentVersion {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids, ok := m.history[opts.ComponentKey]
	if !ok {
		return []types.ComponentVersion{}
	}

	result := make([]types.ComponentVersion, 0, len(ids))
	appendVersion := func(id string) {
		if v, ok := m.versions[id]; ok {
			result = append(result, v)
		}
	}

	if opts.Descending {
		for i := len(ids) - 1; i >= 0; i-- {
			appendVersion(ids[i])
			if opts.Limit > 0 && len(result) >= opts.Limit {
				break
			}
		}
	} else {
		for _, id := range ids {
			appendVersion(id)
			if opts.Limit > 0 && len(result) >= opts.Limit {
				break
			}
		}
	}
	return result
}

func (m *memoryStore) ListAudit(ctx context.Context, versionID string) []types.AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.audits[versionID]
	out := make([]types.AuditEntry, len(entries))
	copy(out, entries)
	return out
}

func (m *memoryStore) appendAuditLocked(versionID string, audit types.AuditEntry) {
	if audit.Action == "" {
		return
	}
	if audit.ComponentVersionID == "" {
		audit.ComponentVersionID = versionID
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = m.clock().UTC()
	}
	m.audits[versionID] = append(m.audits[versionID], audit)
}
