package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketpulse/coreerr"
	"marketpulse/progress"
	"marketpulse/providers"
	"marketpulse/report"
	"marketpulse/search"
	"marketpulse/store"
	"marketpulse/study"
)

type fakeAIClient struct{}

func (f *fakeAIClient) Complete(ctx context.Context, prompt string, opts providers.GenerateOptions) (string, error) {
	return "synthesized analysis output", nil
}

type fakeSearchCaller struct{}

func (f *fakeSearchCaller) Call(ctx context.Context, ep *providers.Endpoint, query string) (map[string]any, error) {
	return map[string]any{"query": query, "provider": ep.Name}, nil
}

func newTestPipeline(t *testing.T) (*Pipeline, *store.Store) {
	t.Helper()
	root := t.TempDir()
	st, err := store.New(root, nil)
	require.NoError(t, err)

	reg := providers.NewRegistry(60, time.Hour, nil)
	reg.RegisterEndpoint(providers.EndpointConfig{Name: "qwen-1", Class: providers.ClassQwenCompatible})
	for _, class := range []providers.CapabilityClass{
		providers.ClassJinaRead, providers.ClassExa, providers.ClassSerper, providers.ClassSerpAPI,
		providers.ClassFirecrawl, providers.ClassTavily, providers.ClassSupadata, providers.ClassScrapingAnt,
		providers.ClassRapidAPI,
	} {
		reg.RegisterEndpoint(providers.EndpointConfig{Name: string(class) + "-1", Class: class})
	}

	adapter := providers.NewAdapter(reg, nil, nil, nil)
	adapter.Register(providers.NewAIProvider("qwen-1", 1, true, providers.ClassQwenCompatible, &fakeAIClient{}, nil))

	fab := progress.New(nil)
	searchOrch := search.New(reg, st, fab, 0, nil, search.WithCaller(&fakeSearchCaller{}), search.WithStreamDelay(time.Millisecond))
	studyOrch := study.New(adapter, st, nil)
	reportCompiler := report.New(st, nil)

	return New(reg, adapter, searchOrch, studyOrch, reportCompiler, st, 2, nil), st
}

func TestRunFullHappyPathProducesCompleteReport(t *testing.T) {
	p, _ := newTestPipeline(t)
	brief := store.Brief{Segment: "café especial", Product: "curso barista", Audience: "pequenos torrefadores"}

	result, err := p.RunFull(context.Background(), brief, "")
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, []int{1, 2, 3}, result.StagesCompleted)
	require.FileExists(t, result.ReportPath)

	data, err := os.ReadFile(result.ReportPath)
	require.NoError(t, err)
	require.Contains(t, string(data), result.SessionID)
	require.Contains(t, string(data), "Table of Contents")
}

func TestRunStage2WithoutStage1FailsWithStageInputMissing(t *testing.T) {
	p, _ := newTestPipeline(t)
	_, err := p.RunStage2(context.Background(), "sess-never-existed")
	require.Error(t, err)
	require.True(t, coreerr.IsKind(err, coreerr.StageInputMissing))
}

func TestRunStage3ResumesAfterPersistenceFailureCleared(t *testing.T) {
	p, st := newTestPipeline(t)
	brief := store.Brief{Segment: "café especial", Product: "curso barista", Audience: "pequenos torrefadores"}

	_, err := p.RunStage1(context.Background(), brief, "sess-resume")
	require.NoError(t, err)

	corpus := mustLoadCorpus(t, st)
	// The reloaded corpus must carry real field values, not a zero-valued
	// struct — a regression here means sanitize() keyed the persisted JSON
	// by Go field name instead of each field's json tag, which LoadStage's
	// json.Unmarshal then fails to match back into the typed struct.
	require.NotZero(t, corpus.Meta.SizeBytes)
	require.False(t, corpus.Meta.CollectedAt.IsZero())

	_, err = p.study.Run(context.Background(), "sess-resume", corpus, 2)
	require.NoError(t, err)

	// Force a persistence failure by making the report category directory
	// unwritable, simulating Scenario E's forced PersistenceFailure.
	reportDir := filepath.Join(st.Root(), "report")
	require.NoError(t, os.MkdirAll(reportDir, 0o755))
	require.NoError(t, os.Chmod(reportDir, 0o500))

	_, err = p.RunStage3("sess-resume")
	require.Error(t, err)

	require.NoError(t, os.Chmod(reportDir, 0o755))

	result, err := p.RunStage3("sess-resume")
	require.NoError(t, err)
	require.FileExists(t, result.ReportPath)
}

func mustLoadCorpus(t *testing.T, st *store.Store) *search.MassiveCorpus {
	t.Helper()
	var corpus search.MassiveCorpus
	require.NoError(t, st.LoadStage("sess-resume", "massive_corpus", &corpus))
	return &corpus
}

func TestHealthCheckReflectsProviderAvailability(t *testing.T) {
	p, _ := newTestPipeline(t)
	hc := p.HealthCheck()
	require.Equal(t, HealthReady, hc.Verdict)
}

func TestStatsTrackExecutions(t *testing.T) {
	p, _ := newTestPipeline(t)
	brief := store.Brief{Segment: "s", Product: "p", Audience: "a"}
	_, err := p.RunFull(context.Background(), brief, "")
	require.NoError(t, err)

	stats := p.Stats()
	require.Equal(t, 1, stats.TotalExecutions)
	require.Equal(t, 1, stats.SuccessfulExecutions)
	require.Equal(t, 0, stats.FailedExecutions)
}
