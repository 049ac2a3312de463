// Package session manages recorded capture sessions on disk.
//
// Each session gets a directory under the sessions root (by default
// ~/.ada/sessions/) containing session.json metadata plus whatever the
// capture pipeline produced (trace data, screen and voice recordings).
// The session directory is the bundle queries operate on; there is no
// nested archive format.
package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StateFileName is the metadata file inside each session directory.
const StateFileName = "session.json"

// Status is the lifecycle state of a session.
type Status string

// Session statuses.
const (
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// AppInfo identifies the application a session recorded.
type AppInfo struct {
	Name     string `json:"name"`
	BundleID string `json:"bundle_id,omitempty"`
}

// State is the metadata stored in session.json.
type State struct {
	SessionID   string  `json:"session_id"`
	SessionPath string  `json:"session_path"`
	StartTime   string  `json:"start_time"`
	EndTime     string  `json:"end_time,omitempty"`
	AppInfo     AppInfo `json:"app_info"`
	Status      Status  `json:"status"`
	PID         int     `json:"pid,omitempty"`
	CapturePID  int     `json:"capture_pid,omitempty"`
}

// IsRunning reports whether the session is still recording.
func (s *State) IsRunning() bool {
	return s.Status == StatusRunning
}

// MarkComplete ends the session successfully.
func (s *State) MarkComplete() {
	s.Status = StatusComplete
	s.EndTime = time.Now().UTC().Format(time.RFC3339)
}

// MarkFailed ends the session with a failure.
func (s *State) MarkFailed() {
	s.Status = StatusFailed
	s.EndTime = time.Now().UTC().Format(time.RFC3339)
}

// newSessionID returns a sortable session identifier: a UTC timestamp
// prefix for human ordering plus a short random suffix for uniqueness.
func newSessionID(now time.Time) string {
	return fmt.Sprintf("%s-%s", now.UTC().Format("20060102-150405"), uuid.NewString()[:8])
}
