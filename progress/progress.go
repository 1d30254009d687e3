// Package progress implements the Progress Fabric: per-session step/message
// state with a timestamped log tail, a bounded update queue for polling
// clients, and session lifecycle management (start, update, complete,
// cleanup). Grounded on the platform's metrics_collector concurrency
// pattern (a single package-wide lock guarding an in-memory map) adapted to
// the specification's push/poll progress contract.
package progress

import (
	"sync"
	"time"

	"marketpulse/logger"
)

const (
	logTailCap      = 50
	updateQueueCap  = 100
	defaultGracePer = 10 * time.Minute
)

// LogEntry is a single timestamped log-tail entry.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// Update is a single {step, message, detail, timestamp} snapshot observable
// by pollers, per the glossary's "progress update" definition.
type Update struct {
	SessionID        string    `json:"session_id"`
	Step             int       `json:"step"`
	TotalSteps       int       `json:"total_steps"`
	Message          string    `json:"message"`
	Detail           string    `json:"detail,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
	ElapsedSeconds   float64   `json:"elapsed_seconds"`
	EstRemainingSecs float64   `json:"estimated_remaining_seconds"`
	Complete         bool      `json:"complete"`
}

// session is the Fabric's internal mutable per-session record.
type session struct {
	sessionID  string
	step       int
	totalSteps int
	startedAt  time.Time
	lastUpdate time.Time
	message    string
	logTail    []LogEntry
	queue      []Update
	active     bool
	completed  bool
	completeAt time.Time
}

func (s *session) appendLog(msg string) {
	s.logTail = append(s.logTail, LogEntry{Timestamp: time.Now(), Message: msg})
	if len(s.logTail) > logTailCap {
		s.logTail = s.logTail[len(s.logTail)-logTailCap:]
	}
}

func (s *session) enqueue(u Update) {
	s.queue = append(s.queue, u)
	if len(s.queue) > updateQueueCap {
		// Drain oldest entries on overflow.
		s.queue = s.queue[len(s.queue)-updateQueueCap:]
	}
}

// Fabric is the process-global Progress Fabric. A single lock guards the
// session map and every session's queue; the queue is the only push-style
// delivery channel across the component boundary.
type Fabric struct {
	mu       sync.Mutex
	sessions map[string]*session
	log      *logger.Logger
}

// New constructs an empty Fabric.
func New(log *logger.Logger) *Fabric {
	if log == nil {
		log = logger.New("progress")
	}
	return &Fabric{sessions: map[string]*session{}, log: log}
}

// Start creates a ProgressSession record, replacing any prior record with
// the same id.
func (f *Fabric) Start(sessionID string, totalSteps int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[sessionID] = &session{
		sessionID: sessionID, totalSteps: totalSteps,
		startedAt: time.Now(), lastUpdate: time.Now(), active: true,
	}
}

// Update mutates state, appends a log entry, computes elapsed and estimated
// remaining time, and enqueues a snapshot for pollers.
func (f *Fabric) Update(sessionID string, step int, message, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok {
		return
	}
	s.step = step
	s.message = message
	s.lastUpdate = time.Now()
	s.appendLog(message)

	elapsed := s.lastUpdate.Sub(s.startedAt).Seconds()
	var estRemaining float64
	if step > 0 {
		estRemaining = (elapsed/float64(step))*float64(s.totalSteps) - elapsed
		if estRemaining < 0 {
			estRemaining = 0
		}
	}

	u := Update{
		SessionID: sessionID, Step: step, TotalSteps: s.totalSteps,
		Message: message, Detail: detail, Timestamp: s.lastUpdate,
		ElapsedSeconds: elapsed, EstRemainingSecs: estRemaining,
	}
	s.enqueue(u)
}

// Complete marks a session complete and schedules eviction after gracePeriod
// (10 minutes by default).
func (f *Fabric) Complete(sessionID string, gracePeriod time.Duration) {
	if gracePeriod <= 0 {
		gracePeriod = defaultGracePer
	}
	f.mu.Lock()
	s, ok := f.sessions[sessionID]
	if ok {
		s.active = false
		s.completed = true
		s.completeAt = time.Now()
		s.enqueue(Update{
			SessionID: sessionID, Step: s.totalSteps, TotalSteps: s.totalSteps,
			Message: "complete", Timestamp: time.Now(), Complete: true,
		})
	}
	f.mu.Unlock()

	time.AfterFunc(gracePeriod, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if cur, ok := f.sessions[sessionID]; ok && cur.completed && !cur.completeAt.IsZero() {
			delete(f.sessions, sessionID)
		}
	})
}

// GetStatus returns a direct-poll snapshot of the current state.
func (f *Fabric) GetStatus(sessionID string) (Update, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok {
		return Update{}, false
	}
	return Update{
		SessionID: sessionID, Step: s.step, TotalSteps: s.totalSteps,
		Message: s.message, Timestamp: s.lastUpdate, Complete: s.completed,
	}, true
}

// DrainUpdates pops up to max snapshots from the session's queue, in issue
// order, for long-poll style clients.
func (f *Fabric) DrainUpdates(sessionID string, max int) []Update {
	if max <= 0 {
		max = 50
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok || len(s.queue) == 0 {
		return nil
	}
	n := max
	if n > len(s.queue) {
		n = len(s.queue)
	}
	out := make([]Update, n)
	copy(out, s.queue[:n])
	s.queue = s.queue[n:]
	return out
}

// ListActive returns the session ids currently active (not yet completed).
func (f *Fabric) ListActive() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sessions))
	for id, s := range f.sessions {
		if s.active {
			out = append(out, id)
		}
	}
	return out
}

// Cleanup evicts completed sessions whose completion is older than maxAge.
func (f *Fabric) Cleanup(maxAge time.Duration) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	removed := 0
	now := time.Now()
	for id, s := range f.sessions {
		if s.completed && now.Sub(s.completeAt) > maxAge {
			delete(f.sessions, id)
			removed++
		}
	}
	return removed
}
