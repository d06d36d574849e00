// Package session implements the extraction conversation between the
// sandboxed scene-graph context and the interactive surface. The two
// sides share no memory; everything crosses as serialized envelopes,
// delivered at most once and in send order per direction.
package session

import (
	"encoding/json"
	"fmt"

	"github.com/uistack/comp-vs/internal/types"
)

// Surface to sandbox message types.
const (
	MsgExtractSelected     = "extract-selected"
	MsgExtractSingle       = "extract-single"
	MsgNavigate            = "navigate"
	MsgSaveSettings        = "save-settings"
	MsgLoadSettings        = "load-settings"
	MsgClearSettings       = "clear-settings"
	MsgReconstruct         = "reconstruct"
	MsgScanLocalComponents = "scan-local-components"
)

// Sandbox to surface message types.
const (
	MsgInit               = "init"
	MsgSettingsLoaded     = "settings-loaded"
	MsgExtractionComplete = "extraction-complete"
	MsgExtractionProgress = "extraction-progress"
	MsgLocalComponents    = "local-components"
	MsgError              = "error"
)

// Envelope is the wire frame for every message. Session carries the
// session id on extraction traffic so a receiver can discard stale
// messages by id comparison; settings and navigation traffic leave it
// empty.
type Envelope struct {
	Type    string          `json:"type"`
	Session string          `json:"session,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ExtractSelectedPayload names the nodes to extract. An empty list
// means scan the whole document.
type ExtractSelectedPayload struct {
	NodeIDs []string `json:"nodeIds"`
}

// ExtractSinglePayload targets one node.
type ExtractSinglePayload struct {
	NodeID string `json:"nodeId"`
}

// NavigatePayload asks the sandbox to move the viewport to a node.
type NavigatePayload struct {
	NodeID string `json:"nodeId"`
}

// SaveSettingsPayload carries the surface's persisted connection
// settings.
type SaveSettingsPayload struct {
	Token    string `json:"token"`
	FileKey  string `json:"fileKey"`
	UserName string `json:"userName"`
}

// ReconstructPayload asks the sandbox to rebuild a node from a stored
// snapshot.
type ReconstructPayload struct {
	Snapshot types.Snapshot `json:"snapshot"`
}

// InitPayload announces the sandbox's identity and any settings it
// restored on startup.
type InitPayload struct {
	UserName      string `json:"userName"`
	FileKey       string `json:"fileKey"`
	SavedToken    string `json:"savedToken,omitempty"`
	SavedFileKey  string `json:"savedFileKey,omitempty"`
	SavedUserName string `json:"savedUserName,omitempty"`
}

// SettingsLoadedPayload answers a load-settings request.
type SettingsLoadedPayload struct {
	Token    string `json:"token"`
	FileKey  string `json:"fileKey"`
	UserName string `json:"userName"`
}

// ExtractedComponent is one component captured during extraction.
type ExtractedComponent struct {
	NodeID   string         `json:"nodeId"`
	Key      string         `json:"key"`
	Name     string         `json:"name"`
	Snapshot types.Snapshot `json:"snapshot"`
}

// ExtractionCompletePayload delivers the full batch in one terminal
// message. Results never arrive incrementally.
type ExtractionCompletePayload struct {
	Components []ExtractedComponent `json:"components"`
}

// ExtractionProgressPayload reports extraction progress. Percent is
// non-decreasing within a session; duplicates are permitted.
type ExtractionProgressPayload struct {
	Message string `json:"message"`
	Percent int    `json:"percent"`
}

// LocalComponentsPayload answers a scan-local-components request.
type LocalComponentsPayload struct {
	Groups []types.ComponentGroup `json:"groups"`
}

// ErrorPayload reports a sandbox-side failure verbatim.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Encode frames a payload into a serialized envelope.
func Encode(msgType, sessionID string, payload any) ([]byte, error) {
	env := Envelope{Type: msgType, Session: sessionID}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", msgType, err)
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

// Decode parses a serialized envelope.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("decode envelope: missing type")
	}
	return env, nil
}

// DecodePayload unmarshals an envelope's payload into dst.
func DecodePayload(env Envelope, dst any) error {
	if len(env.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return nil
}
