package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"
)

// ErrNotFound is returned when a session id has no directory or metadata.
var ErrNotFound = errors.New("session not found")

// ErrNoSessions is returned by Latest when the store is empty.
var ErrNoSessions = errors.New("no sessions found")

// DefaultRoot returns ~/.ada/sessions.
func DefaultRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".ada", "sessions"), nil
}

// Store reads and writes session metadata under a sessions root directory.
type Store struct {
	root string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the sessions root directory.
func (s *Store) Root() string {
	return s.root
}

// Create allocates a new running session: a fresh directory with an
// initial session.json.
func (s *Store) Create(app AppInfo, pid int) (*State, error) {
	now := time.Now()
	id := newSessionID(now)
	dir := filepath.Join(s.root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	state := &State{
		SessionID:   id,
		SessionPath: dir,
		StartTime:   now.UTC().Format(time.RFC3339),
		AppInfo:     app,
		Status:      StatusRunning,
		PID:         pid,
	}
	if err := s.Save(state); err != nil {
		return nil, err
	}
	return state, nil
}

// Load reads the metadata for a session id.
func (s *Store) Load(id string) (*State, error) {
	data, err := os.ReadFile(filepath.Join(s.root, id, StateFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to read session %s: %w", id, err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse session %s: %w", id, err)
	}
	return &state, nil
}

// Save writes the metadata atomically: temp file in the session directory
// followed by a rename, so a crash never leaves a torn session.json.
func (s *Store) Save(state *State) error {
	dir := filepath.Join(s.root, state.SessionID)
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", state.SessionID, err)
	}

	tmp, err := os.CreateTemp(dir, StateFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write session %s: %w", state.SessionID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, StateFileName)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace session %s: %w", state.SessionID, err)
	}
	return nil
}

// List returns all sessions, newest first. Directories without parseable
// metadata are skipped rather than failing the whole listing.
func (s *Store) List() ([]*State, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var sessions []*State
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		state, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		sessions = append(sessions, state)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartTime > sessions[j].StartTime
	})
	return sessions, nil
}

// ListRunning returns sessions still marked running, newest first.
func (s *Store) ListRunning() ([]*State, error) {
	return s.filter(func(st *State) bool { return st.IsRunning() })
}

// FindByApp returns sessions whose app name contains the given string,
// case-insensitively, newest first.
func (s *Store) FindByApp(app string) ([]*State, error) {
	needle := strings.ToLower(app)
	return s.filter(func(st *State) bool {
		return strings.Contains(strings.ToLower(st.AppInfo.Name), needle)
	})
}

func (s *Store) filter(keep func(*State) bool) ([]*State, error) {
	sessions, err := s.List()
	if err != nil {
		return nil, err
	}
	var out []*State
	for _, st := range sessions {
		if keep(st) {
			out = append(out, st)
		}
	}
	return out, nil
}

// Latest returns the most recent session, optionally restricted to
// running ones. Returns ErrNoSessions when nothing matches.
func (s *Store) Latest(runningOnly bool) (*State, error) {
	var (
		sessions []*State
		err      error
	)
	if runningOnly {
		sessions, err = s.ListRunning()
	} else {
		sessions, err = s.List()
	}
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, ErrNoSessions
	}
	return sessions[0], nil
}

// Cleanup marks running sessions whose recorded process is gone as
// failed. Returns the number of sessions repaired.
func (s *Store) Cleanup() (int, error) {
	running, err := s.ListRunning()
	if err != nil {
		return 0, err
	}

	repaired := 0
	for _, st := range running {
		if st.PID != 0 && pidAlive(st.PID) {
			continue
		}
		st.MarkFailed()
		if err := s.Save(st); err != nil {
			return repaired, err
		}
		repaired++
	}
	return repaired, nil
}

// pidAlive reports whether a process with the given pid exists.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 performs the existence check without delivering anything.
	return proc.Signal(syscall.Signal(0)) == nil
}
