// Package study implements the Study Orchestrator (Stage 2): a fixed,
// time-bounded multi-phase study of the Stage-1 corpus through the AI
// Invocation Adapter, emitting a structured ExpertiseArtifact. Grounded on
// the platform's workflow_engine phase-scheduling pattern, narrowed to the
// specification's fixed five-phase program.
package study

import (
	"context"
	"fmt"
	"time"

	"marketpulse/coreerr"
	"marketpulse/logger"
	"marketpulse/providers"
	"marketpulse/search"
	"marketpulse/store"
)

// MinStudyMinutes / MaxStudyMinutes / DefaultStudyMinutes resolve the
// design note's ambiguity: this specification takes [2, 10] with a default
// of 5.
const (
	MinStudyMinutes     = 2
	MaxStudyMinutes     = 10
	DefaultStudyMinutes = 5
)

// PhaseName is one of the fixed five phases of the study schedule.
type PhaseName string

const (
	PhaseAbsorption         PhaseName = "absorption"
	PhasePatternAnalysis    PhaseName = "pattern_analysis"
	PhaseInsightSynthesis   PhaseName = "insight_synthesis"
	PhasePredictiveModeling PhaseName = "predictive_modeling"
	PhaseConsolidation      PhaseName = "consolidation"
)

// phaseShare is each phase's share of the total study duration D, fixed by
// the specification (1, 1.5, 1.5, 1, 0.5 minutes out of a nominal 5.5;
// scaled proportionally to whatever D is configured).
var phaseShare = map[PhaseName]float64{
	PhaseAbsorption:         1.0,
	PhasePatternAnalysis:    1.5,
	PhaseInsightSynthesis:   1.5,
	PhasePredictiveModeling: 1.0,
	PhaseConsolidation:      0.5,
}

var phaseOrder = []PhaseName{
	PhaseAbsorption, PhasePatternAnalysis, PhaseInsightSynthesis, PhasePredictiveModeling, PhaseConsolidation,
}

const totalShare = 5.5

// PhaseOutput is the intermediate output of one phase, persisted through
// the Artifact Store.
type PhaseOutput struct {
	Phase        PhaseName     `json:"phase"`
	Output       string        `json:"output"`
	DurationSecs float64       `json:"duration_seconds"`
	OverranBy    float64       `json:"overran_by_seconds,omitempty"`
}

// StudyMetadata is the expertise artifact's study metadata.
type StudyMetadata struct {
	PhasesCompleted int     `json:"phases_completed"`
	DurationSeconds float64 `json:"duration_seconds"`
	EfficiencyScore float64 `json:"efficiency_score"`
}

// ExpertiseArtifact is the fixed Stage-2 output schema.
type ExpertiseArtifact struct {
	SessionID          string        `json:"session_id"`
	IdentifiedPatterns []string      `json:"identified_patterns"`
	Syntheses          []string      `json:"cross_phase_syntheses"`
	PredictiveModels   []string      `json:"predictive_models"`
	ExpertiseLevel     float64       `json:"expertise_level"`
	Confidence         float64       `json:"confidence"`
	Metadata           StudyMetadata `json:"study_metadata"`
	Phases             []PhaseOutput `json:"phases"`
}

// Orchestrator is the Study Orchestrator (Stage 2).
type Orchestrator struct {
	adapter *providers.Adapter
	store   *store.Store
	log     *logger.Logger
}

// New constructs a Study Orchestrator.
func New(adapter *providers.Adapter, st *store.Store, log *logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.New("study")
	}
	return &Orchestrator{adapter: adapter, store: st, log: log}
}

// ClampMinutes applies the [2,10] clamp with a default of 5 for zero/unset input.
func ClampMinutes(minutes int) int {
	if minutes == 0 {
		return DefaultStudyMinutes
	}
	if minutes < MinStudyMinutes {
		return MinStudyMinutes
	}
	if minutes > MaxStudyMinutes {
		return MaxStudyMinutes
	}
	return minutes
}

// Run drives the fixed five-phase study of corpus within time budget D
// (minutes, clamped to [2,10]) through the AI adapter, persisting each
// phase's output and returning the final ExpertiseArtifact.
func (o *Orchestrator) Run(ctx context.Context, sessionID string, corpus *search.MassiveCorpus, studyMinutes int) (*ExpertiseArtifact, error) {
	if corpus == nil {
		return nil, coreerr.New(coreerr.StageInputMissing, "run_stage_2 requires a Stage-1 corpus")
	}
	budget := time.Duration(ClampMinutes(studyMinutes)) * time.Minute
	log := o.log.WithSession(sessionID).WithStage("study")

	artifact := &ExpertiseArtifact{SessionID: sessionID}
	started := time.Now()
	remaining := budget

	for _, phase := range phaseOrder {
		minDuration := time.Duration(phaseShare[phase] / totalShare * float64(budget))
		if remaining < minDuration {
			minDuration = remaining
		}
		if remaining <= 0 {
			break
		}

		phaseStart := time.Now()
		output, err := o.runPhase(ctx, phase, corpus, artifact)
		phaseElapsed := time.Since(phaseStart)
		if err != nil {
			log.Error("phase failed", err, logger.Fields{"phase": phase})
			output = fmt.Sprintf("phase %s degraded: %v", phase, err)
		}

		po := PhaseOutput{Phase: phase, Output: output, DurationSecs: phaseElapsed.Seconds()}
		if phaseElapsed > minDuration {
			po.OverranBy = (phaseElapsed - minDuration).Seconds()
		}
		artifact.Phases = append(artifact.Phases, po)
		applyPhaseResult(artifact, phase, output)

		if _, _, serr := o.store.SaveStage(sessionID, "study_phase_"+string(phase), po, store.CategoryExpertise); serr != nil {
			return nil, serr
		}

		remaining -= phaseElapsed
		if remaining < 0 {
			remaining = 0
		}
	}

	totalElapsed := time.Since(started)
	artifact.Metadata = StudyMetadata{
		PhasesCompleted: len(artifact.Phases),
		DurationSeconds: totalElapsed.Seconds(),
		EfficiencyScore: efficiencyScore(totalElapsed, budget),
	}
	artifact.ExpertiseLevel = computeExpertiseLevel(corpus, artifact, budget)
	artifact.Confidence = computeConfidence(artifact)

	if _, _, err := o.store.SaveStage(sessionID, "expertise_artifact", artifact, store.CategoryExpertise); err != nil {
		return nil, err
	}
	return artifact, nil
}

func (o *Orchestrator) runPhase(ctx context.Context, phase PhaseName, corpus *search.MassiveCorpus, artifact *ExpertiseArtifact) (string, error) {
	prompt := phasePrompt(phase, corpus, artifact)
	opts := providers.GenerateOptions{}
	if phase == PhaseInsightSynthesis {
		opts.RequireTools = true
		if o.adapter != nil {
			return o.adapter.GenerateWithActiveSearch(ctx, prompt, "", "", 2)
		}
	}
	if o.adapter == nil {
		return "", coreerr.New(coreerr.NoProviderAvailable, "no AI adapter configured")
	}
	return o.adapter.GenerateText(ctx, prompt, opts)
}

func phasePrompt(phase PhaseName, corpus *search.MassiveCorpus, artifact *ExpertiseArtifact) string {
	switch phase {
	case PhaseAbsorption:
		return fmt.Sprintf("Summarize quantitatively the collected corpus for session %s (%d sources, %d bytes) and emit initial insights.",
			corpus.SessionID, corpus.Meta.TotalSources, corpus.Meta.SizeBytes)
	case PhasePatternAnalysis:
		return "Identify temporal, engagement, content, behavioral, and viral patterns in the corpus."
	case PhaseInsightSynthesis:
		return "Merge identified patterns into expert conclusions, using live search if it would sharpen the synthesis."
	case PhasePredictiveModeling:
		return "Assemble named predictive models: trend, engagement, viral, market-evolution, behavior-forecast."
	default:
		return "Compute expertise metrics: domain mastery, insight quality, predictive accuracy, strategic depth, practical applicability."
	}
}

func applyPhaseResult(artifact *ExpertiseArtifact, phase PhaseName, output string) {
	switch phase {
	case PhasePatternAnalysis:
		artifact.IdentifiedPatterns = append(artifact.IdentifiedPatterns, output)
	case PhaseInsightSynthesis:
		artifact.Syntheses = append(artifact.Syntheses, output)
	case PhasePredictiveModeling:
		artifact.PredictiveModels = append(artifact.PredictiveModels, output)
	}
}

func efficiencyScore(elapsed, budget time.Duration) float64 {
	if budget <= 0 {
		return 0
	}
	ratio := elapsed.Seconds() / budget.Seconds()
	score := 1 - absFloat(ratio-1)
	return clamp01(score)
}

// computeExpertiseLevel is a weighted sum of five shares per the
// specification: data volume, insight count, conclusion depth, model
// count, and time share, scaled to [0,100].
func computeExpertiseLevel(corpus *search.MassiveCorpus, artifact *ExpertiseArtifact, budget time.Duration) float64 {
	volumeShare := clamp01(float64(corpus.Meta.SizeBytes) / (1024 * 1024))
	insightShare := clamp01(float64(len(artifact.IdentifiedPatterns)) / 5)
	depthShare := clamp01(float64(len(artifact.Syntheses)) / 3)
	modelShare := clamp01(float64(len(artifact.PredictiveModels)) / 5)
	timeShare := clamp01(artifact.Metadata.DurationSeconds / budget.Seconds())

	weighted := 0.25*volumeShare + 0.25*insightShare + 0.2*depthShare + 0.2*modelShare + 0.1*timeShare
	return weighted * 100
}

func computeConfidence(artifact *ExpertiseArtifact) float64 {
	if len(phaseOrder) == 0 {
		return 0
	}
	return clamp01(float64(artifact.Metadata.PhasesCompleted) / float64(len(phaseOrder)))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
