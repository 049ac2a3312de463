package queryapi

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/getada/ada/pkg/jsonrpc"
	"github.com/getada/ada/pkg/rpcserver"
	"github.com/getada/ada/pkg/session"
)

func newTestService(t *testing.T) (*Service, *session.Store) {
	t.Helper()
	store := session.NewStore(t.TempDir())
	svc := New(store, "test")
	svc.lookPath = func(tool string) (string, error) {
		if tool == "ffmpeg" {
			return "/usr/bin/ffmpeg", nil
		}
		return "", errors.New("not found")
	}
	return svc, store
}

func call(t *testing.T, svc *Service, reg *rpcserver.Registry, method, params string) (any, *jsonrpc.Error) {
	t.Helper()
	var raw json.RawMessage
	if params != "" {
		raw = json.RawMessage(params)
	}
	return reg.Call(context.Background(), method, raw)
}

func TestRegisterAll(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	reg := rpcserver.NewRegistry()
	svc.RegisterAll(reg)

	for _, method := range []string{"ping", "capabilities", "session.list", "session.info", "session.latest"} {
		if !reg.Contains(method) {
			t.Errorf("method %s not registered", method)
		}
	}
}

func TestPing(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	reg := rpcserver.NewRegistry()
	svc.RegisterAll(reg)

	result, rpcErr := call(t, svc, reg, "ping", "")
	if rpcErr != nil {
		t.Fatalf("ping failed: %v", rpcErr)
	}
	m, ok := result.(map[string]any)
	if !ok || m["pong"] != true {
		t.Errorf("unexpected ping result: %v", result)
	}
}

func TestCapabilities_ReflectsToolAvailability(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	reg := rpcserver.NewRegistry()
	svc.RegisterAll(reg)

	result, rpcErr := call(t, svc, reg, "capabilities", "")
	if rpcErr != nil {
		t.Fatalf("capabilities failed: %v", rpcErr)
	}
	caps, ok := result.(Capabilities)
	if !ok {
		t.Fatalf("unexpected result type %T", result)
	}
	if !caps.Summary.Available || !caps.Events.Available {
		t.Error("trace-backed capabilities must always be available")
	}
	if !caps.Screenshot.Available {
		t.Error("screenshot should be available with ffmpeg present")
	}
	if caps.Transcribe.Available {
		t.Error("transcribe should be unavailable without whisper")
	}
	if caps.Transcribe.Requires != "whisper" || caps.Transcribe.InstallHint == "" {
		t.Errorf("transcribe capability missing tool metadata: %+v", caps.Transcribe)
	}
}

func TestSessionList(t *testing.T) {
	t.Parallel()
	svc, store := newTestService(t)
	reg := rpcserver.NewRegistry()
	svc.RegisterAll(reg)

	running, err := store.Create(session.AppInfo{Name: "Safari"}, 0)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	done, err := store.Create(session.AppInfo{Name: "Notes"}, 0)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	done.MarkComplete()
	if err := store.Save(done); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	result, rpcErr := call(t, svc, reg, "session.list", "")
	if rpcErr != nil {
		t.Fatalf("session.list failed: %v", rpcErr)
	}
	sessions := result.(map[string]any)["sessions"].([]*session.State)
	if len(sessions) != 2 {
		t.Errorf("expected 2 sessions, got %d", len(sessions))
	}

	result, rpcErr = call(t, svc, reg, "session.list", `{"running":true}`)
	if rpcErr != nil {
		t.Fatalf("session.list running failed: %v", rpcErr)
	}
	sessions = result.(map[string]any)["sessions"].([]*session.State)
	if len(sessions) != 1 || sessions[0].SessionID != running.SessionID {
		t.Errorf("unexpected running sessions: %+v", sessions)
	}

	result, rpcErr = call(t, svc, reg, "session.list", `{"app":"saf"}`)
	if rpcErr != nil {
		t.Fatalf("session.list app failed: %v", rpcErr)
	}
	sessions = result.(map[string]any)["sessions"].([]*session.State)
	if len(sessions) != 1 || sessions[0].AppInfo.Name != "Safari" {
		t.Errorf("unexpected app matches: %+v", sessions)
	}
}

func TestSessionList_EmptyStoreReturnsEmptySlice(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	reg := rpcserver.NewRegistry()
	svc.RegisterAll(reg)

	result, rpcErr := call(t, svc, reg, "session.list", "")
	if rpcErr != nil {
		t.Fatalf("session.list failed: %v", rpcErr)
	}
	// Must serialize as [], not null.
	raw, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(raw) != `{"sessions":[]}` {
		t.Errorf("result = %s", raw)
	}
}

func TestSessionList_BadParams(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	reg := rpcserver.NewRegistry()
	svc.RegisterAll(reg)

	_, rpcErr := call(t, svc, reg, "session.list", `{"running":"yes"}`)
	if rpcErr == nil || rpcErr.Code != jsonrpc.CodeInvalidParams {
		t.Errorf("expected invalid params, got %v", rpcErr)
	}
}

func TestSessionInfo(t *testing.T) {
	t.Parallel()
	svc, store := newTestService(t)
	reg := rpcserver.NewRegistry()
	svc.RegisterAll(reg)

	created, err := store.Create(session.AppInfo{Name: "Mail"}, 0)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	result, rpcErr := call(t, svc, reg, "session.info",
		`{"sessionId":"`+created.SessionID+`"}`)
	if rpcErr != nil {
		t.Fatalf("session.info failed: %v", rpcErr)
	}
	state := result.(*session.State)
	if state.SessionID != created.SessionID {
		t.Errorf("session = %s, want %s", state.SessionID, created.SessionID)
	}

	_, rpcErr = call(t, svc, reg, "session.info", "")
	if rpcErr == nil || rpcErr.Data != "sessionId is required" {
		t.Errorf("expected missing-id error, got %v", rpcErr)
	}

	_, rpcErr = call(t, svc, reg, "session.info", `{"sessionId":"bogus"}`)
	if rpcErr == nil || rpcErr.Code != jsonrpc.CodeInvalidParams {
		t.Errorf("expected invalid params for unknown session, got %v", rpcErr)
	}
}

func TestSessionLatest(t *testing.T) {
	t.Parallel()
	svc, store := newTestService(t)
	reg := rpcserver.NewRegistry()
	svc.RegisterAll(reg)

	_, rpcErr := call(t, svc, reg, "session.latest", "")
	if rpcErr == nil || rpcErr.Data != "no sessions found" {
		t.Errorf("expected no-sessions error, got %v", rpcErr)
	}

	created, err := store.Create(session.AppInfo{Name: "Mail"}, 0)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	result, rpcErr := call(t, svc, reg, "session.latest", "")
	if rpcErr != nil {
		t.Fatalf("session.latest failed: %v", rpcErr)
	}
	if result.(*session.State).SessionID != created.SessionID {
		t.Errorf("unexpected latest session: %+v", result)
	}
}
