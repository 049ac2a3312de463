// Package queryapi registers the toolkit's built-in JSON-RPC methods on a
// query server registry: capability introspection and session bookkeeping.
//
// The heavier query surfaces (trace queries, transcript search) are
// registered by their own subsystems; this package covers the methods
// every deployment carries.
package queryapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"

	"github.com/getada/ada/pkg/jsonrpc"
	"github.com/getada/ada/pkg/rpcserver"
	"github.com/getada/ada/pkg/session"
)

// Service implements the built-in methods.
type Service struct {
	sessions *session.Store
	version  string

	// lookPath resolves external tool availability; swapped in tests.
	lookPath func(string) (string, error)
}

// New creates a Service backed by the given session store.
func New(sessions *session.Store, version string) *Service {
	return &Service{
		sessions: sessions,
		version:  version,
		lookPath: exec.LookPath,
	}
}

// RegisterAll binds every built-in method on reg.
func (s *Service) RegisterAll(reg *rpcserver.Registry) {
	reg.RegisterFunc("ping", s.handlePing)
	reg.RegisterFunc("capabilities", s.handleCapabilities)
	reg.RegisterFunc("session.list", s.handleSessionList)
	reg.RegisterFunc("session.info", s.handleSessionInfo)
	reg.RegisterFunc("session.latest", s.handleSessionLatest)
}

// decodeParams unmarshals params into v. Nil params leave v at its zero
// value; malformed params become an invalid-params error.
func decodeParams(params json.RawMessage, v any) *jsonrpc.Error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return jsonrpc.InvalidParams(err.Error())
	}
	return nil
}

func (s *Service) handlePing(context.Context, json.RawMessage) (any, *jsonrpc.Error) {
	return map[string]any{"pong": true, "version": s.version}, nil
}

// Capability describes one query feature and what it needs.
type Capability struct {
	Available   bool   `json:"available"`
	Requires    string `json:"requires,omitempty"`
	InstallHint string `json:"install_hint,omitempty"`
}

// Capabilities is the full feature matrix reported by the capabilities
// method. Trace-backed features are always available; media features
// depend on external tools.
type Capabilities struct {
	Summary    Capability `json:"summary"`
	Events     Capability `json:"events"`
	Functions  Capability `json:"functions"`
	Threads    Capability `json:"threads"`
	Calls      Capability `json:"calls"`
	TimeInfo   Capability `json:"time_info"`
	Transcribe Capability `json:"transcribe"`
	Screenshot Capability `json:"screenshot"`
}

const toolInstallHint = "Run: ./utils/init_media_tools.sh"

func (s *Service) toolCapability(tool string) Capability {
	_, err := s.lookPath(tool)
	return Capability{
		Available:   err == nil,
		Requires:    tool,
		InstallHint: toolInstallHint,
	}
}

func (s *Service) handleCapabilities(context.Context, json.RawMessage) (any, *jsonrpc.Error) {
	always := Capability{Available: true}
	return Capabilities{
		Summary:    always,
		Events:     always,
		Functions:  always,
		Threads:    always,
		Calls:      always,
		TimeInfo:   always,
		Transcribe: s.toolCapability("whisper"),
		Screenshot: s.toolCapability("ffmpeg"),
	}, nil
}

type sessionListParams struct {
	Running bool   `json:"running"`
	App     string `json:"app"`
}

func (s *Service) handleSessionList(_ context.Context, params json.RawMessage) (any, *jsonrpc.Error) {
	var p sessionListParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}

	var (
		sessions []*session.State
		err      error
	)
	switch {
	case p.App != "":
		sessions, err = s.sessions.FindByApp(p.App)
	case p.Running:
		sessions, err = s.sessions.ListRunning()
	default:
		sessions, err = s.sessions.List()
	}
	if err != nil {
		return nil, jsonrpc.Internal(err.Error())
	}

	if p.App != "" && p.Running {
		filtered := sessions[:0]
		for _, st := range sessions {
			if st.IsRunning() {
				filtered = append(filtered, st)
			}
		}
		sessions = filtered
	}

	if sessions == nil {
		sessions = []*session.State{}
	}
	return map[string]any{"sessions": sessions}, nil
}

type sessionInfoParams struct {
	SessionID string `json:"sessionId"`
}

func (s *Service) handleSessionInfo(_ context.Context, params json.RawMessage) (any, *jsonrpc.Error) {
	var p sessionInfoParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if p.SessionID == "" {
		return nil, jsonrpc.InvalidParams("sessionId is required")
	}

	state, err := s.sessions.Load(p.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, jsonrpc.InvalidParams(fmt.Sprintf("unknown session: %s", p.SessionID))
		}
		return nil, jsonrpc.Internal(err.Error())
	}
	return state, nil
}

type sessionLatestParams struct {
	Running bool `json:"running"`
}

func (s *Service) handleSessionLatest(_ context.Context, params json.RawMessage) (any, *jsonrpc.Error) {
	var p sessionLatestParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}

	state, err := s.sessions.Latest(p.Running)
	if err != nil {
		if errors.Is(err, session.ErrNoSessions) {
			return nil, jsonrpc.InvalidParams("no sessions found")
		}
		return nil, jsonrpc.Internal(err.Error())
	}
	return state, nil
}
