package progress

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStartUpdateDrainOrdering(t *testing.T) {
	f := New(nil)
	f.Start("sess-1", 13)

	for step := 1; step <= 13; step++ {
		f.Update("sess-1", step, "working", "")
	}
	f.Complete("sess-1", time.Hour)

	updates := f.DrainUpdates("sess-1", 50)
	require.Len(t, updates, 14) // 13 step updates + 1 complete snapshot

	lastStep := -1
	for _, u := range updates {
		require.GreaterOrEqual(t, u.Step, lastStep)
		lastStep = u.Step
	}
	require.True(t, updates[len(updates)-1].Complete)
}

func TestConcurrentUpdateAndDrainPreservesOrder(t *testing.T) {
	f := New(nil)
	f.Start("sess-2", 20)

	var wg sync.WaitGroup
	for step := 1; step <= 20; step++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			f.Update("sess-2", s, "step", "")
		}(step)
	}
	wg.Wait()

	// Steps may arrive out of goroutine-schedule order since Update doesn't
	// serialize callers by step number, but each individual Update call is
	// atomic under the fabric lock so the queue never corrupts and holds the
	// snapshots in the order the calls were issued.
	updates := f.DrainUpdates("sess-2", 100)
	require.Len(t, updates, 20)
	for i := 1; i < len(updates); i++ {
		require.False(t, updates[i].Timestamp.Before(updates[i-1].Timestamp), "queue must keep issue order")
	}
}

func TestGetStatusAndListActive(t *testing.T) {
	f := New(nil)
	f.Start("sess-3", 5)
	f.Update("sess-3", 2, "halfway", "")

	status, ok := f.GetStatus("sess-3")
	require.True(t, ok)
	require.Equal(t, 2, status.Step)

	require.Contains(t, f.ListActive(), "sess-3")
}

func TestCleanupRemovesOldCompletedSessions(t *testing.T) {
	f := New(nil)
	f.Start("sess-4", 1)
	f.Complete("sess-4", time.Hour)

	removed := f.Cleanup(-time.Second)
	require.Equal(t, 1, removed)

	_, ok := f.GetStatus("sess-4")
	require.False(t, ok)
}
