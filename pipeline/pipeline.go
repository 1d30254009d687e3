// Package pipeline implements the Master Pipeline Orchestrator (§4.H): it
// sequences the Search Orchestrator, Study Orchestrator, and Report Compiler
// into the full three-stage run, persists per-stage session metadata after
// each stage, and exposes standalone stage entry points plus a rolling
// execution-statistics view. Grounded on the original implementation's
// Master3StageOrchestrator (sequential stage execution, execution_stats
// counters, try/except-per-stage error capture), restructured around the
// coordination core's explicit-error-return idiom instead of exceptions.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"marketpulse/health"
	"marketpulse/logger"
	"marketpulse/providers"
	"marketpulse/report"
	"marketpulse/search"
	"marketpulse/store"
	"marketpulse/study"
)

// StageResult is one stage's outcome within a RunFull result.
type StageResult struct {
	Stage        int     `json:"stage"`
	Success      bool    `json:"success"`
	DurationSecs float64 `json:"duration_seconds"`
	Error        string  `json:"error,omitempty"`
}

// Result is run_full's return value.
type Result struct {
	SessionID       string        `json:"session_id"`
	Success         bool          `json:"success"`
	StagesCompleted []int         `json:"stages_completed"`
	Stages          []StageResult `json:"stages"`
	ReportPath      string        `json:"report_path,omitempty"`
}

// Stats is stats()'s return value: rolling execution counters.
type Stats struct {
	TotalExecutions      int       `json:"total_executions"`
	SuccessfulExecutions int       `json:"successful_executions"`
	FailedExecutions     int       `json:"failed_executions"`
	LastExecution        time.Time `json:"last_execution,omitempty"`
	AverageDurationSecs  float64   `json:"average_execution_seconds"`
}

// HealthVerdict is health_check()'s {ready, degraded, unhealthy} verdict.
type HealthVerdict string

const (
	HealthReady     HealthVerdict = "ready"
	HealthDegraded  HealthVerdict = "degraded"
	HealthUnhealthy HealthVerdict = "unhealthy"
)

// HealthCheck is the composed result of health_check(): §4.B's provider
// registry report folded with §4.D's AI-adapter availability.
type HealthCheck struct {
	Verdict         HealthVerdict                                        `json:"verdict"`
	ProviderClasses map[providers.CapabilityClass]providers.ClassCounts `json:"provider_classes"`
	AIProviderReady bool                                                 `json:"ai_provider_ready"`
}

// Pipeline is the Master Pipeline Orchestrator.
type Pipeline struct {
	registry *providers.Registry
	adapter  *providers.Adapter
	search   *search.Orchestrator
	study    *study.Orchestrator
	report   *report.Compiler
	store    *store.Store
	log      *logger.Logger

	studyMinutes int
	metrics      *health.Metrics

	mu    sync.Mutex
	stats Stats
}

// Option configures optional Pipeline behavior.
type Option func(*Pipeline)

// WithMetrics attaches Prometheus stage-duration observation to every
// completed stage.
func WithMetrics(m *health.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New wires the three stage components plus the registry, adapter and store
// (all already constructed and configured by the caller) into a Pipeline. studyMinutes configures Stage 2's time
// budget (0 resolves to study.DefaultStudyMinutes via study.ClampMinutes).
func New(registry *providers.Registry, adapter *providers.Adapter, searchOrch *search.Orchestrator, studyOrch *study.Orchestrator, reportCompiler *report.Compiler, st *store.Store, studyMinutes int, log *logger.Logger, opts ...Option) *Pipeline {
	if log == nil {
		log = logger.New("pipeline")
	}
	p := &Pipeline{registry: registry, adapter: adapter, search: searchOrch, study: studyOrch, report: reportCompiler, store: st, studyMinutes: study.ClampMinutes(studyMinutes), log: log}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func newSessionState(sessionID string, brief store.Brief) *store.SessionState {
	now := time.Now().UTC()
	return &store.SessionState{
		SessionID:      sessionID,
		CreatedAt:      now,
		LastUpdated:    now,
		Status:         store.SessionActive,
		CurrentStage:   0,
		ExecutionTimes: map[string]float64{},
		Brief:          brief,
	}
}

// resolveSession loads an existing session if session is non-empty and
// already persisted, otherwise creates and persists a fresh active session
// (generating an id if none was supplied).
func (p *Pipeline) resolveSession(session string, brief store.Brief) (*store.SessionState, error) {
	if session != "" {
		if st, err := p.store.LoadSession(session); err == nil {
			return st, nil
		}
	}
	id := session
	if id == "" {
		id = store.NewSessionID(uuid.NewString()[:8])
	}
	st := newSessionState(id, brief)
	if err := p.store.SaveSession(st); err != nil {
		return nil, err
	}
	return st, nil
}

// markStage records stage as completed (success) or failed on sessionState
// and persists it; CurrentStage always advances to the attempted stage
// number so a caller inspecting session metadata sees the last stage
// attempted, matching §4.H's invariant.
func (p *Pipeline) markStage(st *store.SessionState, stage int, elapsed time.Duration, err error) {
	st.CurrentStage = stage
	st.ExecutionTimes[stageKey(stage)] = elapsed.Seconds()
	if err != nil {
		st.FailedStages = append(st.FailedStages, stage)
		st.Status = store.SessionFailed
	} else {
		st.CompletedStages = append(st.CompletedStages, stage)
	}
	_ = p.store.SaveSession(st)
	if p.metrics != nil {
		p.metrics.StageDuration.WithLabelValues(stageKey(stage)).Observe(elapsed.Seconds())
		if err != nil {
			p.metrics.SessionStatusTotal.WithLabelValues(string(store.SessionFailed)).Inc()
		}
	}
}

func stageKey(stage int) string {
	switch stage {
	case 1:
		return "stage_1_collection"
	case 2:
		return "stage_2_study"
	default:
		return "stage_3_report"
	}
}

// RunFull sequences Stage 1 → 2 → 3 for brief, creating a session if absent,
// persisting a per-stage session record after each stage. A stage failure
// records the error, marks the session failed, and returns the partial
// results rather than aborting bookkeeping.
func (p *Pipeline) RunFull(ctx context.Context, brief store.Brief, session string) (*Result, error) {
	sessionState, err := p.resolveSession(session, brief)
	if err != nil {
		return nil, err
	}
	result := &Result{SessionID: sessionState.SessionID}
	runStarted := time.Now()

	corpus, dur, err := p.stage1(ctx, sessionState.SessionID, brief)
	result.Stages = append(result.Stages, stageResult(1, dur, err))
	p.markStage(sessionState, 1, dur, err)
	if err != nil {
		p.recordExecution(false, time.Since(runStarted))
		return result, nil
	}
	result.StagesCompleted = append(result.StagesCompleted, 1)

	_, dur, err = p.stage2(ctx, sessionState.SessionID, corpus)
	result.Stages = append(result.Stages, stageResult(2, dur, err))
	p.markStage(sessionState, 2, dur, err)
	if err != nil {
		p.recordExecution(false, time.Since(runStarted))
		return result, nil
	}
	result.StagesCompleted = append(result.StagesCompleted, 2)

	reportResult, dur, err := p.stage3(sessionState.SessionID)
	result.Stages = append(result.Stages, stageResult(3, dur, err))
	p.markStage(sessionState, 3, dur, err)
	if err != nil {
		p.recordExecution(false, time.Since(runStarted))
		return result, nil
	}
	result.StagesCompleted = append(result.StagesCompleted, 3)
	result.ReportPath = reportResult.ReportPath
	result.Success = true

	sessionState.Status = store.SessionCompleted
	_ = p.store.SaveSession(sessionState)
	if p.metrics != nil {
		p.metrics.SessionStatusTotal.WithLabelValues(string(store.SessionCompleted)).Inc()
	}
	p.recordExecution(true, time.Since(runStarted))
	return result, nil
}

func stageResult(stage int, dur time.Duration, err error) StageResult {
	sr := StageResult{Stage: stage, Success: err == nil, DurationSecs: dur.Seconds()}
	if err != nil {
		sr.Error = err.Error()
	}
	return sr
}

func (p *Pipeline) stage1(ctx context.Context, sessionID string, brief store.Brief) (*search.MassiveCorpus, time.Duration, error) {
	started := time.Now()
	corpus, err := p.search.Run(ctx, search.Brief{
		Segment:   brief.Segment,
		Product:   brief.Product,
		Audience:  brief.Audience,
		SessionID: sessionID,
	})
	if err != nil {
		_, _ = p.store.SaveError(sessionID, "stage_1", err, nil)
	}
	return corpus, time.Since(started), err
}

func (p *Pipeline) stage2(ctx context.Context, sessionID string, corpus *search.MassiveCorpus) (*study.ExpertiseArtifact, time.Duration, error) {
	started := time.Now()
	artifact, err := p.study.Run(ctx, sessionID, corpus, p.studyMinutes)
	if err != nil {
		_, _ = p.store.SaveError(sessionID, "stage_2", err, nil)
	}
	return artifact, time.Since(started), err
}

func (p *Pipeline) stage3(sessionID string) (*report.Result, time.Duration, error) {
	started := time.Now()
	result, err := p.report.Compile(sessionID)
	if err != nil {
		_, _ = p.store.SaveError(sessionID, "stage_3", err, nil)
	}
	return result, time.Since(started), err
}

// RunStage1 is the standalone Stage-1 entry point: it creates a session if
// absent and performs its own persistence exactly as RunFull's Stage-1 leg
// does.
func (p *Pipeline) RunStage1(ctx context.Context, brief store.Brief, session string) (*search.MassiveCorpus, error) {
	sessionState, err := p.resolveSession(session, brief)
	if err != nil {
		return nil, err
	}
	corpus, dur, err := p.stage1(ctx, sessionState.SessionID, brief)
	p.markStage(sessionState, 1, dur, err)
	return corpus, err
}

// RunStage2 is the standalone Stage-2 entry point. session must already have
// a persisted Stage-1 corpus artifact; StageInputMissing is returned
// otherwise (surfaced by store.LoadStage inside search corpus retrieval).
func (p *Pipeline) RunStage2(ctx context.Context, session string) (*study.ExpertiseArtifact, error) {
	sessionState, err := p.store.LoadSession(session)
	if err != nil {
		return nil, err
	}
	var corpus search.MassiveCorpus
	if err := p.store.LoadStage(session, "massive_corpus", &corpus); err != nil {
		_, _ = p.store.SaveError(session, "stage_2", err, nil)
		return nil, err
	}
	artifact, dur, err := p.stage2(ctx, session, &corpus)
	p.markStage(sessionState, 2, dur, err)
	return artifact, err
}

// RunStage3 is the standalone Stage-3 entry point.
func (p *Pipeline) RunStage3(session string) (*report.Result, error) {
	sessionState, err := p.store.LoadSession(session)
	if err != nil {
		return nil, err
	}
	result, dur, err := p.stage3(session)
	p.markStage(sessionState, 3, dur, err)
	if err == nil {
		sessionState.Status = store.SessionCompleted
		_ = p.store.SaveSession(sessionState)
	}
	return result, err
}

// HealthCheck composes §4.B provider-registry status and §4.D AI-adapter
// availability into a single verdict: ready if both have at least one usable
// resource, degraded if only one side does, unhealthy if neither does.
func (p *Pipeline) HealthCheck() HealthCheck {
	classes := map[providers.CapabilityClass]providers.ClassCounts{}
	if p.registry != nil {
		classes = p.registry.StatusReport()
	}
	providerOK := false
	for _, counts := range classes {
		if counts.Active > 0 {
			providerOK = true
			break
		}
	}
	aiOK := p.adapter != nil && p.adapter.HasAvailableProvider()

	verdict := HealthUnhealthy
	switch {
	case providerOK && aiOK:
		verdict = HealthReady
	case providerOK || aiOK:
		verdict = HealthDegraded
	}
	return HealthCheck{Verdict: verdict, ProviderClasses: classes, AIProviderReady: aiOK}
}

// Stats returns stats()'s rolling execution counters.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *Pipeline) recordExecution(success bool, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.TotalExecutions++
	if success {
		p.stats.SuccessfulExecutions++
	} else {
		p.stats.FailedExecutions++
	}
	p.stats.LastExecution = time.Now().UTC()
	n := float64(p.stats.TotalExecutions)
	p.stats.AverageDurationSecs = ((p.stats.AverageDurationSecs * (n - 1)) + dur.Seconds()) / n
}
