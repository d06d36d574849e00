package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/uistack/comp-vs/internal/grouping"
	"github.com/uistack/comp-vs/internal/types"
)

// Scene is the sandbox's window into the design document. The real
// implementation wraps the design tool's scene-graph API; tests supply
// fakes.
type Scene interface {
	// Targets resolves a selection to the node ids to extract. An
	// empty selection means every component in the document.
	Targets(ctx context.Context, nodeIDs []string) ([]string, error)
	// Extract captures one node as a component snapshot.
	Extract(ctx context.Context, nodeID string) (ExtractedComponent, error)
	// LocalComponents enumerates the document's local components.
	LocalComponents(ctx context.Context) ([]types.RawComponent, error)
	// Navigate moves the viewport to a node.
	Navigate(ctx context.Context, nodeID string) error
	// Reconstruct rebuilds a node from a stored snapshot.
	Reconstruct(ctx context.Context, snapshot types.Snapshot) error
	// UserName and FileKey identify the open document for the init
	// handshake.
	UserName() string
	FileKey() string
}

// Settings are the connection settings the surface persists across
// sessions.
type Settings struct {
	Token    string
	FileKey  string
	UserName string
}

// SettingsStore persists Settings on the sandbox side.
type SettingsStore interface {
	Save(settings Settings) error
	Load() (Settings, bool, error)
	Clear() error
}

// MemorySettings is a SettingsStore held in memory.
type MemorySettings struct {
	mu       sync.Mutex
	settings Settings
	saved    bool
}

// NewMemorySettings constructs an empty in-memory settings store.
func NewMemorySettings() *MemorySettings {
	return &MemorySettings{}
}

func (m *MemorySettings) Save(settings Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = settings
	m.saved = true
	return nil
}

func (m *MemorySettings) Load() (Settings, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings, m.saved, nil
}

func (m *MemorySettings) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = Settings{}
	m.saved = false
	return nil
}

// Runner is the sandbox side of the protocol. It serves surface
// requests one at a time over its end of the pipe. Cancellation is
// cooperative: CancelSession marks a session, and the extraction loop
// checks the mark between nodes.
type Runner struct {
	conn     *Conn
	scene    Scene
	settings SettingsStore
	log      *zap.Logger

	mu        sync.Mutex
	cancelled map[string]bool
}

// NewRunner wires a runner to its end of the pipe. A nil settings
// store falls back to an in-memory one.
func NewRunner(conn *Conn, scene Scene, settings SettingsStore, log *zap.Logger) *Runner {
	if settings == nil {
		settings = NewMemorySettings()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		conn:      conn,
		scene:     scene,
		settings:  settings,
		log:       log,
		cancelled: make(map[string]bool),
	}
}

// CancelSession marks a session cancelled. The extraction loop stops at
// the next node boundary and emits nothing further for that session.
func (r *Runner) CancelSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled[sessionID] = true
}

func (r *Runner) isCancelled(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled[sessionID]
}

// Run announces itself with an init message, then serves surface
// requests until the context ends or the pipe closes.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.sendInit(ctx); err != nil {
		return err
	}

	for {
		data, err := r.conn.Recv(ctx)
		if err != nil {
			return err
		}
		env, err := Decode(data)
		if err != nil {
			r.log.Warn("dropping malformed message", zap.Error(err))
			continue
		}
		if err := r.handle(ctx, env); err != nil {
			return err
		}
	}
}

func (r *Runner) sendInit(ctx context.Context) error {
	payload := InitPayload{
		UserName: r.scene.UserName(),
		FileKey:  r.scene.FileKey(),
	}
	if saved, ok, err := r.settings.Load(); err == nil && ok {
		payload.SavedToken = saved.Token
		payload.SavedFileKey = saved.FileKey
		payload.SavedUserName = saved.UserName
	}
	return r.send(ctx, MsgInit, "", payload)
}

func (r *Runner) handle(ctx context.Context, env Envelope) error {
	switch env.Type {
	case MsgExtractSelected:
		var p ExtractSelectedPayload
		if err := DecodePayload(env, &p); err != nil {
			return r.sendError(ctx, env.Session, err.Error())
		}
		return r.runExtraction(ctx, env.Session, p.NodeIDs)

	case MsgExtractSingle:
		var p ExtractSinglePayload
		if err := DecodePayload(env, &p); err != nil {
			return r.sendError(ctx, env.Session, err.Error())
		}
		return r.runExtraction(ctx, env.Session, []string{p.NodeID})

	case MsgNavigate:
		var p NavigatePayload
		if err := DecodePayload(env, &p); err != nil {
			return r.sendError(ctx, "", err.Error())
		}
		if err := r.scene.Navigate(ctx, p.NodeID); err != nil {
			return r.sendError(ctx, "", err.Error())
		}
		return nil

	case MsgReconstruct:
		var p ReconstructPayload
		if err := DecodePayload(env, &p); err != nil {
			return r.sendError(ctx, "", err.Error())
		}
		if err := r.scene.Reconstruct(ctx, p.Snapshot); err != nil {
			return r.sendError(ctx, "", err.Error())
		}
		return nil

	case MsgSaveSettings:
		var p SaveSettingsPayload
		if err := DecodePayload(env, &p); err != nil {
			return r.sendError(ctx, "", err.Error())
		}
		if err := r.settings.Save(Settings(p)); err != nil {
			return r.sendError(ctx, "", err.Error())
		}
		return nil

	case MsgLoadSettings:
		saved, _, err := r.settings.Load()
		if err != nil {
			return r.sendError(ctx, "", err.Error())
		}
		return r.send(ctx, MsgSettingsLoaded, "", SettingsLoadedPayload(saved))

	case MsgClearSettings:
		if err := r.settings.Clear(); err != nil {
			return r.sendError(ctx, "", err.Error())
		}
		return nil

	case MsgScanLocalComponents:
		components, err := r.scene.LocalComponents(ctx)
		if err != nil {
			return r.sendError(ctx, "", err.Error())
		}
		groups := grouping.Group(components)
		return r.send(ctx, MsgLocalComponents, "", LocalComponentsPayload{Groups: groups})

	default:
		r.log.Warn("dropping message of unknown type", zap.String("type", env.Type))
		return nil
	}
}

// runExtraction walks the target nodes, reporting progress as it goes.
// On failure it emits a single error message and discards everything
// extracted so far. A cancelled session emits nothing further.
func (r *Runner) runExtraction(ctx context.Context, sessionID string, nodeIDs []string) error {
	targets, err := r.scene.Targets(ctx, nodeIDs)
	if err != nil {
		return r.sendError(ctx, sessionID, err.Error())
	}

	if err := r.sendProgress(ctx, sessionID, "starting extraction", 0); err != nil {
		return err
	}

	components := make([]ExtractedComponent, 0, len(targets))
	for i, nodeID := range targets {
		if r.isCancelled(sessionID) {
			r.log.Info("extraction cancelled", zap.String("session", sessionID))
			return nil
		}

		component, err := r.scene.Extract(ctx, nodeID)
		if err != nil {
			return r.sendError(ctx, sessionID, err.Error())
		}
		components = append(components, component)

		percent := (i + 1) * 100 / len(targets)
		if err := r.sendProgress(ctx, sessionID, "extracted "+component.Name, percent); err != nil {
			return err
		}
	}

	if r.isCancelled(sessionID) {
		return nil
	}
	return r.send(ctx, MsgExtractionComplete, sessionID, ExtractionCompletePayload{Components: components})
}

func (r *Runner) sendProgress(ctx context.Context, sessionID, message string, percent int) error {
	return r.send(ctx, MsgExtractionProgress, sessionID, ExtractionProgressPayload{
		Message: message,
		Percent: percent,
	})
}

func (r *Runner) sendError(ctx context.Context, sessionID, message string) error {
	return r.send(ctx, MsgError, sessionID, ErrorPayload{Message: message})
}

func (r *Runner) send(ctx context.Context, msgType, sessionID string, payload any) error {
	data, err := Encode(msgType, sessionID, payload)
	if err != nil {
		return err
	}
	return r.conn.Send(ctx, data)
}
