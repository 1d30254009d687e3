package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"marketpulse/coreerr"
)

// SessionStatus is the closed set of session lifecycle states.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)

// Brief is the minimal user input accepted at pipeline start.
type Brief struct {
	Segment   string `json:"segment"`
	Product   string `json:"product"`
	Audience  string `json:"audience"`
	Objective string `json:"objective,omitempty"`
}

// SessionState is the durable record for one session, matching the on-disk
// layout contract's session-state file shape exactly.
type SessionState struct {
	SessionID       string             `json:"session_id"`
	CreatedAt       time.Time          `json:"created_at"`
	LastUpdated     time.Time          `json:"last_updated"`
	Status          SessionStatus      `json:"status"`
	CurrentStage    int                `json:"current_stage"`
	CompletedStages []int              `json:"completed_stages"`
	FailedStages    []int              `json:"failed_stages"`
	ExecutionTimes  map[string]float64 `json:"execution_times"`
	Brief           Brief              `json:"brief"`
}

// NewSessionID builds a time-prefixed, random-suffixed session id.
func NewSessionID(rnd string) string {
	return fmt.Sprintf("%s-%s", time.Now().UTC().Format("20060102T150405"), rnd)
}

func (s *Store) sessionPath(dir, id string) string {
	return filepath.Join(s.root, "sessions", dir, sanitizeFilenamePart(id)+".json")
}

// SaveSession persists SessionState under sessions/active or
// sessions/completed according to its Status, and always refreshes the
// sessions/metadata mirror used for fast listing.
func (s *Store) SaveSession(st *SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st.LastUpdated = time.Now().UTC()
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return coreerr.Wrap(coreerr.PersistenceFailure, "marshal session state", err)
	}

	statusDir := "active"
	if st.Status == SessionCompleted {
		statusDir = "completed"
	}
	if _, err := s.atomicWrite(filepath.Join(s.root, "sessions", statusDir), sanitizeFilenamePart(st.SessionID)+".json", data); err != nil {
		return err
	}
	// Remove stale copy in the other status directory so a session never
	// appears simultaneously active and completed.
	otherDir := "completed"
	if statusDir == "completed" {
		otherDir = "active"
	}
	_ = os.Remove(s.sessionPath(otherDir, st.SessionID))

	_, err = s.atomicWrite(filepath.Join(s.root, "sessions", "metadata"), sanitizeFilenamePart(st.SessionID)+".json", data)
	return err
}

// LoadSession reads the session state file, checking active, then completed,
// then the metadata mirror.
func (s *Store) LoadSession(sessionID string) (*SessionState, error) {
	for _, dir := range []string{"active", "completed", "metadata"} {
		data, err := os.ReadFile(s.sessionPath(dir, sessionID))
		if err != nil {
			continue
		}
		var st SessionState
		if err := json.Unmarshal(data, &st); err != nil {
			return nil, coreerr.Wrap(coreerr.PersistenceFailure, "unmarshal session state", err)
		}
		return &st, nil
	}
	return nil, coreerr.New(coreerr.StageInputMissing, "no session state for "+sessionID)
}

// ListSessions returns every session's state, most recently updated first.
func (s *Store) ListSessions() ([]*SessionState, error) {
	dir := filepath.Join(s.root, "sessions", "metadata")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil
	}
	out := make([]*SessionState, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		var st SessionState
		if err := json.Unmarshal(data, &st); err != nil {
			continue
		}
		out = append(out, &st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastUpdated.After(out[j].LastUpdated) })
	return out, nil
}

// DeleteSession removes every on-disk trace of a session's state file (not
// its artifacts, which remain subject to age-based Cleanup).
func (s *Store) DeleteSession(sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := false
	for _, dir := range []string{"active", "completed", "metadata"} {
		if err := os.Remove(s.sessionPath(dir, sessionID)); err == nil {
			removed = true
		}
	}
	return removed, nil
}
