package session

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is the surface's view of the active extraction session.
type State string

const (
	StateIdle      State = "idle"
	StateRequested State = "requested"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// SessionBusyError rejects a start while another session is active.
// The caller retries after the active session reaches a terminal state.
type SessionBusyError struct {
	ActiveID string
}

func (e *SessionBusyError) Error() string {
	return "session " + e.ActiveID + " is already active"
}

// ExtractionError carries a sandbox-reported failure verbatim.
type ExtractionError struct {
	Message string
}

func (e *ExtractionError) Error() string {
	return "extraction failed: " + e.Message
}

// ErrCancelled is delivered to waiters of a cancelled session.
var ErrCancelled = errors.New("session: cancelled")

// Result is the terminal outcome of one extraction session. Components
// is populated only on completion; failure discards all partial work.
type Result struct {
	SessionID  string
	Components []ExtractedComponent
	Err        error
}

// Hooks receive non-terminal sandbox messages. All are optional and
// are invoked from the goroutine that feeds messages to the
// coordinator.
type Hooks struct {
	OnInit            func(InitPayload)
	OnSettingsLoaded  func(SettingsLoadedPayload)
	OnLocalComponents func(LocalComponentsPayload)
	OnProgress        func(sessionID string, percent int, message string)
}

// Coordinator is the surface side of the protocol. It owns user intent:
// it starts and cancels extraction sessions, enforces the one active
// session rule, and discards stale messages from superseded sessions by
// session id.
type Coordinator struct {
	conn  *Conn
	hooks Hooks
	log   *zap.Logger

	mu      sync.Mutex
	state   State
	active  string
	percent int
	done    chan Result
}

// NewCoordinator wires a coordinator to its end of the pipe.
func NewCoordinator(conn *Conn, hooks Hooks, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		conn:  conn,
		hooks: hooks,
		log:   log,
		state: StateIdle,
	}
}

// State reports the active session's state, or the terminal state of
// the last session when none is active.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// StartExtraction begins a session over the named nodes. An empty list
// means scan the whole document. It returns the new session id, or
// SessionBusyError while another session is still requested or running.
func (c *Coordinator) StartExtraction(ctx context.Context, nodeIDs []string) (string, error) {
	return c.start(ctx, MsgExtractSelected, ExtractSelectedPayload{NodeIDs: nodeIDs})
}

// StartSingle begins a session over exactly one node.
func (c *Coordinator) StartSingle(ctx context.Context, nodeID string) (string, error) {
	return c.start(ctx, MsgExtractSingle, ExtractSinglePayload{NodeID: nodeID})
}

func (c *Coordinator) start(ctx context.Context, msgType string, payload any) (string, error) {
	c.mu.Lock()
	if c.state == StateRequested || c.state == StateRunning {
		active := c.active
		c.mu.Unlock()
		return "", &SessionBusyError{ActiveID: active}
	}
	id := uuid.NewString()
	c.state = StateRequested
	c.active = id
	c.percent = 0
	c.done = make(chan Result, 1)
	c.mu.Unlock()

	data, err := Encode(msgType, id, payload)
	if err != nil {
		c.reset(id)
		return "", err
	}
	if err := c.conn.Send(ctx, data); err != nil {
		c.reset(id)
		return "", err
	}

	c.log.Info("extraction session started", zap.String("session", id), zap.String("type", msgType))
	return id, nil
}

func (c *Coordinator) reset(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == id {
		c.state = StateIdle
		c.active = ""
		c.done = nil
	}
}

// Cancel ends the session from the surface side. Later messages bearing
// the cancelled id are dropped. Cancelling an unknown or already
// finished session is a no-op.
func (c *Coordinator) Cancel(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != sessionID || (c.state != StateRequested && c.state != StateRunning) {
		return
	}
	c.state = StateCancelled
	if c.done != nil {
		c.done <- Result{SessionID: sessionID, Err: ErrCancelled}
	}
	c.log.Info("extraction session cancelled", zap.String("session", sessionID))
}

// Wait blocks until the session identified at start reaches a terminal
// state. It must be called with the id returned by StartExtraction or
// StartSingle.
func (c *Coordinator) Wait(ctx context.Context, sessionID string) (Result, error) {
	c.mu.Lock()
	done := c.done
	active := c.active
	c.mu.Unlock()

	if active != sessionID || done == nil {
		return Result{}, errors.New("session: no pending session " + sessionID)
	}

	select {
	case res := <-done:
		return res, res.Err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Pump receives and dispatches sandbox messages until the context ends
// or the pipe closes. Run it on its own goroutine.
func (c *Coordinator) Pump(ctx context.Context) error {
	for {
		data, err := c.conn.Recv(ctx)
		if err != nil {
			return err
		}
		env, err := Decode(data)
		if err != nil {
			c.log.Warn("dropping malformed message", zap.Error(err))
			continue
		}
		c.HandleMessage(env)
	}
}

// HandleMessage dispatches one sandbox message. Extraction traffic from
// a session other than the active one is discarded.
func (c *Coordinator) HandleMessage(env Envelope) {
	switch env.Type {
	case MsgInit:
		var p InitPayload
		if err := DecodePayload(env, &p); err != nil {
			c.log.Warn("dropping message", zap.Error(err))
			return
		}
		if c.hooks.OnInit != nil {
			c.hooks.OnInit(p)
		}

	case MsgSettingsLoaded:
		var p SettingsLoadedPayload
		if err := DecodePayload(env, &p); err != nil {
			c.log.Warn("dropping message", zap.Error(err))
			return
		}
		if c.hooks.OnSettingsLoaded != nil {
			c.hooks.OnSettingsLoaded(p)
		}

	case MsgLocalComponents:
		var p LocalComponentsPayload
		if err := DecodePayload(env, &p); err != nil {
			c.log.Warn("dropping message", zap.Error(err))
			return
		}
		if c.hooks.OnLocalComponents != nil {
			c.hooks.OnLocalComponents(p)
		}

	case MsgExtractionProgress:
		c.handleProgress(env)

	case MsgExtractionComplete:
		c.handleComplete(env)

	case MsgError:
		c.handleError(env)

	default:
		c.log.Warn("dropping message of unknown type", zap.String("type", env.Type))
	}
}

func (c *Coordinator) handleProgress(env Envelope) {
	var p ExtractionProgressPayload
	if err := DecodePayload(env, &p); err != nil {
		c.log.Warn("dropping message", zap.Error(err))
		return
	}

	c.mu.Lock()
	if !c.acceptsLocked(env.Session) {
		c.mu.Unlock()
		return
	}
	c.state = StateRunning
	// Percent never moves backwards. Duplicates and regressions clamp
	// to the highest value seen so far.
	if p.Percent > c.percent {
		c.percent = p.Percent
	}
	shown := c.percent
	c.mu.Unlock()

	if c.hooks.OnProgress != nil {
		c.hooks.OnProgress(env.Session, shown, p.Message)
	}
}

func (c *Coordinator) handleComplete(env Envelope) {
	var p ExtractionCompletePayload
	if err := DecodePayload(env, &p); err != nil {
		c.log.Warn("dropping message", zap.Error(err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.acceptsLocked(env.Session) {
		return
	}
	// The state guard above makes this the single terminal push, so the
	// buffered channel stays readable for a later Wait.
	c.state = StateCompleted
	if c.done != nil {
		c.done <- Result{SessionID: env.Session, Components: p.Components}
	}
}

func (c *Coordinator) handleError(env Envelope) {
	var p ErrorPayload
	if err := DecodePayload(env, &p); err != nil {
		c.log.Warn("dropping message", zap.Error(err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if env.Session != "" && !c.acceptsLocked(env.Session) {
		return
	}
	if env.Session == "" {
		c.log.Warn("sandbox error outside any session", zap.String("message", p.Message))
		return
	}
	c.state = StateFailed
	if c.done != nil {
		c.done <- Result{SessionID: env.Session, Err: &ExtractionError{Message: p.Message}}
	}
}

// acceptsLocked reports whether extraction traffic for sessionID is
// still welcome. Callers hold c.mu.
func (c *Coordinator) acceptsLocked(sessionID string) bool {
	if sessionID == "" || sessionID != c.active {
		return false
	}
	return c.state == StateRequested || c.state == StateRunning
}

// SaveSettings persists connection settings in the sandbox.
func (c *Coordinator) SaveSettings(ctx context.Context, settings SaveSettingsPayload) error {
	return c.send(ctx, MsgSaveSettings, settings)
}

// LoadSettings asks the sandbox for the persisted settings; the answer
// arrives as a settings-loaded message.
func (c *Coordinator) LoadSettings(ctx context.Context) error {
	return c.send(ctx, MsgLoadSettings, nil)
}

// ClearSettings wipes the persisted settings.
func (c *Coordinator) ClearSettings(ctx context.Context) error {
	return c.send(ctx, MsgClearSettings, nil)
}

// Navigate moves the sandbox viewport to a node.
func (c *Coordinator) Navigate(ctx context.Context, nodeID string) error {
	return c.send(ctx, MsgNavigate, NavigatePayload{NodeID: nodeID})
}

// Reconstruct asks the sandbox to rebuild a node from a snapshot.
func (c *Coordinator) Reconstruct(ctx context.Context, payload ReconstructPayload) error {
	return c.send(ctx, MsgReconstruct, payload)
}

// ScanLocalComponents asks the sandbox to enumerate and group the
// document's local components; the answer arrives as a
// local-components message.
func (c *Coordinator) ScanLocalComponents(ctx context.Context) error {
	return c.send(ctx, MsgScanLocalComponents, nil)
}

func (c *Coordinator) send(ctx context.Context, msgType string, payload any) error {
	data, err := Encode(msgType, "", payload)
	if err != nil {
		return err
	}
	return c.conn.Send(ctx, data)
}
