package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/uistack/comp-vs/internal/config"
	"github.com/uistack/comp-vs/internal/grouping"
	"github.com/uistack/comp-vs/internal/library"
	"github.com/uistack/comp-vs/internal/lifecycle"
	"github.com/uistack/comp-vs/internal/snapshot"
	"github.com/uistack/comp-vs/internal/storage"
	"github.com/uistack/comp-vs/internal/types"
)

// Service holds business logic and storage dependencies.
type Service struct {
	store     storage.VersionStore
	archive   storage.SnapshotArchive
	versioner *lifecycle.Versioner
	log       *zap.Logger
}

const (
	headerActorName = "X-Actor-Name"
	headerActorID   = "X-Actor-ID"
)

// New constructs the service wiring.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*Service, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var archive storage.SnapshotArchive
	if cfg.Archive.Path != "" {
		arc, err := storage.NewBoltArchive(cfg.Archive.Path)
		if err != nil {
			return nil, err
		}
		archive = arc
	}

	var (
		store storage.VersionStore
		err   error
	)
	switch cfg.Storage.Backend {
	case config.StorageBackendRedis:
		store, err = storage.NewRedisStore(cfg.Storage.Redis)
		if err != nil {
			if archive != nil {
				_ = archive.Close()
			}
			return nil, err
		}
	default:
		store = storage.NewMemoryStore()
	}

	var lib lifecycle.LibraryIndex
	if cfg.Library.BaseURL != "" {
		client, err := library.NewClient(cfg.Library.BaseURL, cfg.Library.Token)
		if err != nil {
			if archive != nil {
				_ = archive.Close()
			}
			return nil, err
		}
		lib = client
	}

	versioner := lifecycle.NewVersioner(lifecycle.VersionerOptions{
		Store:   store,
		Archive: archive,
		Library: lib,
		FileKey: cfg.Library.FileKey,
		Logger:  log,
	})

	return &Service{store: store, archive: archive, versioner: versioner, log: log}, nil
}

// Close releases the service's storage resources.
func (s *Service) Close() error {
	if s.archive != nil {
		return s.archive.Close()
	}
	return nil
}

// Handler builds the REST routes for the service.
func Handler(svc *Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/swagger") {
			svc.handleSwagger(w, r, strings.TrimPrefix(r.URL.Path, "/swagger"))
			return
		}

		path := strings.TrimPrefix(r.URL.Path, "/api/v1")
		if path == "" || path == "/" {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown endpoint"})
			return
		}

		switch {
		case strings.HasPrefix(path, "/versions"):
			svc.handleVersions(w, r, strings.TrimPrefix(path, "/versions"))
		case strings.HasPrefix(path, "/components"):
			svc.handleComponents(w, r, strings.TrimPrefix(path, "/components"))
		case strings.HasPrefix(path, "/projects"):
			svc.handleProjects(w, r, strings.TrimPrefix(path, "/projects"))
		case path == "/groups":
			svc.handleGroups(w, r)
		default:
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown resource"})
		}
	})
}

// handleVersions routes /versions, /versions/{id}, /versions/{id}/audit
// and /versions/{id}/{action}.
func (s *Service) handleVersions(w http.ResponseWriter, r *http.Request, tail string) {
	tail = strings.Trim(tail, "/")

	switch {
	case tail == "" && r.Method == http.MethodGet:
		s.handleVersionList(w, r)
	case tail == "" && r.Method == http.MethodPost:
		s.handleRecord(w, r)
	default:
		parts := strings.SplitN(tail, "/", 2)
		id := parts[0]
		if id == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "version id required"})
			return
		}

		if len(parts) == 1 {
			if r.Method != http.MethodGet {
				writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
				return
			}
			v, err := s.store.GetVersion(r.Context(), id)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, v)
			return
		}

		switch parts[1] {
		case "audit":
			if r.Method != http.MethodGet {
				writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
				return
			}
			writeJSON(w, http.StatusOK, s.store.ListAudit(r.Context(), id))
		case "submit", "approve", "reject", "publish", "deprecate":
			s.handleAction(w, r, id, parts[1])
		default:
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown resource"})
		}
	}
}

func (s *Service) handleVersionList(w http.ResponseWriter, r *http.Request) {
	componentKey := r.URL.Query().Get("componentKey")
	if componentKey == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "componentKey query parameter required"})
		return
	}

	order := strings.ToLower(r.URL.Query().Get("order"))
	desc := true
	if order == "asc" || order == "ascending" {
		desc = false
	}

	var limit int
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		var err error
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
	}

	versions := s.store.ListVersions(r.Context(), storage.ListVersionsOptions{
		ComponentKey: componentKey,
		Descending:   desc,
		Limit:        limit,
	})
	writeJSON(w, http.StatusOK, versions)
}

func (s *Service) handleRecord(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromHeaders(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	type request struct {
		ProjectID     string          `json:"projectId"`
		ComponentKey  string          `json:"componentKey"`
		ComponentName string          `json:"componentName"`
		Node          json.RawMessage `json:"node"`
	}

	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	version, created, err := s.versioner.Record(r.Context(), lifecycle.RecordRequest{
		ProjectID:     req.ProjectID,
		ComponentKey:  req.ComponentKey,
		ComponentName: req.ComponentName,
		Actor:         actor,
		Snapshot:      snapshot.FromRaw(req.ComponentKey, req.Node),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{
		"created": created,
		"version": version,
	})
}

func (s *Service) handleAction(w http.ResponseWriter, r *http.Request, id, action string) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	actor, err := actorFromHeaders(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	var v types.ComponentVersion
	switch action {
	case "submit":
		v, err = s.versioner.Submit(r.Context(), id, actor)
	case "approve":
		v, err = s.versioner.Approve(r.Context(), id, actor)
	case "reject":
		var req struct {
			Reason string `json:"reason"`
		}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req)
		}
		v, err = s.versioner.Reject(r.Context(), id, actor, req.Reason)
	case "publish":
		v, err = s.versioner.Publish(r.Context(), id, actor)
	case "deprecate":
		v, err = s.versioner.Deprecate(r.Context(), id, actor)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handleComponents routes /components/current.
func (s *Service) handleComponents(w http.ResponseWriter, r *http.Request, tail string) {
	tail = strings.Trim(tail, "/")
	if tail != "current" || r.Method != http.MethodGet {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown resource"})
		return
	}

	componentKey := r.URL.Query().Get("componentKey")
	if componentKey == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "componentKey query parameter required"})
		return
	}

	v, err := s.store.CurrentPublished(r.Context(), componentKey)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("ETag", `"`+snapshot.Fingerprint(v.Snapshot)+`"`)
	writeJSON(w, http.StatusOK, v)
}

func (s *Service) handleProjects(w http.ResponseWriter, r *http.Request, tail string) {
	tail = strings.Trim(tail, "/")
	switch {
	case tail == "" && r.Method == http.MethodPost:
		var p types.Project
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
			return
		}
		created, err := s.store.CreateProject(r.Context(), p)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	case tail != "" && r.Method == http.MethodGet:
		p, err := s.store.GetProject(r.Context(), tail)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

// handleGroups collapses a flat component list into variant groups.
// Grouping is pure, so the endpoint is stateless.
func (s *Service) handleGroups(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Components []types.RawComponent `json:"components"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	writeJSON(w, http.StatusOK, grouping.Group(req.Components))
}

func actorFromHeaders(r *http.Request) (string, error) {
	name := strings.TrimSpace(r.Header.Get(headerActorName))
	id := strings.TrimSpace(r.Header.Get(headerActorID))
	if name == "" || id == "" {
		return "", fmt.Errorf("%s and %s headers are required", headerActorName, headerActorID)
	}
	return name, nil
}

func writeError(w http.ResponseWriter, err error) {
	var notFound *storage.NotFoundError
	if errors.As(err, &notFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": notFound.Error()})
		return
	}

	var conflict *storage.ConflictError
	if errors.As(err, &conflict) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": conflict.Error()})
		return
	}

	var validation *storage.ValidationError
	if errors.As(err, &validation) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": validation.Error()})
		return
	}

	var transition *lifecycle.InvalidTransitionError
	if errors.As(err, &transition) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": transition.Error()})
		return
	}

	if errors.Is(err, lifecycle.ErrEmptyDiff) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
