package store

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketpulse/coreerr"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), nil)
	require.NoError(t, err)
	return s
}

func TestSaveStageAndLoadStageRoundTrip(t *testing.T) {
	s := newTestStore(t)
	payload := map[string]any{"sources": 3, "ok": true}

	path, degraded, err := s.SaveStage("sess-1", "web_stream", payload, CategoryCollection)
	require.NoError(t, err)
	require.False(t, degraded)
	require.FileExists(t, path)

	var out map[string]any
	require.NoError(t, s.LoadStage("sess-1", "web_stream", &out))
	require.Equal(t, float64(3), out["sources"])
	require.Equal(t, true, out["ok"])
}

// TestSaveStageRoundTripsJSONTaggedStruct guards against sanitize() keying
// the persisted JSON by Go field name instead of each field's json tag: a
// struct with differently-cased tags and an embedded time.Time (which has
// only unexported fields) must come back out with every field populated,
// not silently zeroed.
func TestSaveStageRoundTripsJSONTaggedStruct(t *testing.T) {
	type inner struct {
		SizeBytes   int64     `json:"size_bytes"`
		CollectedAt time.Time `json:"collected_at"`
	}
	type payload struct {
		SessionID string `json:"session_id"`
		Meta      inner  `json:"meta"`
	}

	s := newTestStore(t)
	in := payload{
		SessionID: "sess-tagged",
		Meta:      inner{SizeBytes: 512000, CollectedAt: time.Now().UTC().Truncate(time.Second)},
	}

	_, degraded, err := s.SaveStage("sess-tagged", "massive_corpus", in, CategoryCollection)
	require.NoError(t, err)
	require.False(t, degraded)

	var out payload
	require.NoError(t, s.LoadStage("sess-tagged", "massive_corpus", &out))
	require.Equal(t, in.SessionID, out.SessionID)
	require.Equal(t, in.Meta.SizeBytes, out.Meta.SizeBytes)
	require.True(t, in.Meta.CollectedAt.Equal(out.Meta.CollectedAt))
}

func TestSaveStageDegradesCyclicPayload(t *testing.T) {
	s := newTestStore(t)
	type node struct {
		Name string
		Next *node
	}
	a := &node{Name: "a"}
	b := &node{Name: "b", Next: a}
	a.Next = b

	_, degraded, err := s.SaveStage("sess-2", "cyclic", a, CategoryCollection)
	require.NoError(t, err)
	require.True(t, degraded)
}

func TestLoadStageMissingReturnsStageInputMissing(t *testing.T) {
	s := newTestStore(t)
	var out map[string]any
	err := s.LoadStage("nope", "whatever", &out)
	require.Error(t, err)
	require.True(t, coreerr.IsKind(err, coreerr.StageInputMissing))
}

func TestListStageFilesLatestWins(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.SaveStage("sess-3", "web_stream", map[string]any{"v": 1}, CategoryCollection)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, _, err = s.SaveStage("sess-3", "web_stream", map[string]any{"v": 2}, CategoryCollection)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, s.LoadStage("sess-3", "web_stream", &out))
	require.Equal(t, float64(2), out["v"])
}

func TestSaveErrorWritesRecord(t *testing.T) {
	s := newTestStore(t)
	path, err := s.SaveError("sess-4", "exa_stream", errors.New("provider exhausted"), map[string]any{"k": "v"})
	require.NoError(t, err)
	require.FileExists(t, path)
}

func TestCleanupIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.SaveStage("sess-5", "web_stream", map[string]any{"v": 1}, CategoryCollection)
	require.NoError(t, err)

	n1, err := s.Cleanup(-time.Second) // a negative age puts the cutoff 1s in the future, so every file counts as expired
	require.NoError(t, err)
	n2, err := s.Cleanup(-time.Second)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n1, 0)
	require.Equal(t, 0, n2)
}

func TestSessionSaveLoadList(t *testing.T) {
	s := newTestStore(t)
	st := &SessionState{
		SessionID:       "sess-6",
		CreatedAt:       time.Now(),
		Status:          SessionActive,
		CurrentStage:    1,
		CompletedStages: []int{},
		FailedStages:    []int{},
		ExecutionTimes:  map[string]float64{},
		Brief:           Brief{Segment: "s", Product: "p", Audience: "a"},
	}
	require.NoError(t, s.SaveSession(st))

	loaded, err := s.LoadSession("sess-6")
	require.NoError(t, err)
	require.Equal(t, SessionActive, loaded.Status)

	st.Status = SessionCompleted
	require.NoError(t, s.SaveSession(st))
	loaded, err = s.LoadSession("sess-6")
	require.NoError(t, err)
	require.Equal(t, SessionCompleted, loaded.Status)

	sessions, err := s.ListSessions()
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	removed, err := s.DeleteSession("sess-6")
	require.NoError(t, err)
	require.True(t, removed)
}
