package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketpulse/progress"
	"marketpulse/providers"
	"marketpulse/store"
)

type fakeCaller struct {
	fail map[string]bool
}

func (f *fakeCaller) Call(ctx context.Context, ep *providers.Endpoint, query string) (map[string]any, error) {
	if f.fail[string(ep.Class)] {
		return nil, errAlwaysFails
	}
	return map[string]any{"query": query, "provider": ep.Name}, nil
}

var errAlwaysFails = &callError{"simulated provider failure"}

type callError struct{ msg string }

func (e *callError) Error() string { return e.msg }

func newTestOrchestrator(t *testing.T, fail map[string]bool) (*Orchestrator, *store.Store) {
	t.Helper()
	reg := providers.NewRegistry(60, time.Hour, nil)
	for _, class := range []providers.CapabilityClass{
		providers.ClassJinaRead, providers.ClassExa, providers.ClassSerper, providers.ClassSerpAPI,
		providers.ClassFirecrawl, providers.ClassTavily, providers.ClassSupadata, providers.ClassScrapingAnt,
		providers.ClassRapidAPI,
	} {
		reg.RegisterEndpoint(providers.EndpointConfig{Name: string(class) + "-1", Class: class})
	}
	st, err := store.New(t.TempDir(), nil)
	require.NoError(t, err)
	fab := progress.New(nil)
	orch := New(reg, st, fab, 0, nil, WithCaller(&fakeCaller{fail: fail}), WithStreamDelay(time.Millisecond))
	return orch, st
}

func TestRunProducesCorpusWithAllStreamsHealthy(t *testing.T) {
	orch, _ := newTestOrchestrator(t, nil)
	corpus, err := orch.Run(context.Background(), Brief{Segment: "cafe", Product: "curso", Audience: "torrefadores", SessionID: "sess-1"})
	require.NoError(t, err)
	require.Equal(t, len(AllStreams), len(corpus.Meta.StreamsSucceeded))
	require.Empty(t, corpus.Meta.StreamsFailed)
}

func TestRunSurvivesPartialStreamFailure(t *testing.T) {
	orch, _ := newTestOrchestrator(t, map[string]bool{
		"serper": true, "serpapi": true,
	})
	corpus, err := orch.Run(context.Background(), Brief{Segment: "cafe", Product: "curso", Audience: "torrefadores", SessionID: "sess-2"})
	require.NoError(t, err, "partial failure is not fatal as long as some stream succeeds")
	require.NotEmpty(t, corpus.Meta.StreamsSucceeded)
}

func TestRunExpandsCorpusToTargetBytes(t *testing.T) {
	reg := providers.NewRegistry(60, time.Hour, nil)
	reg.RegisterEndpoint(providers.EndpointConfig{Name: "exa-1", Class: providers.ClassExa})
	st, err := store.New(t.TempDir(), nil)
	require.NoError(t, err)
	orch := New(reg, st, nil, 50*1024, nil, WithCaller(&fakeCaller{}), WithStreamDelay(time.Millisecond))

	corpus, err := orch.Run(context.Background(), Brief{Segment: "cafe", Product: "curso", Audience: "torrefadores", SessionID: "sess-3"})
	require.NoError(t, err)
	require.True(t, corpus.Meta.SyntheticExpansion)
	require.GreaterOrEqual(t, corpus.Meta.SizeBytes, int64(50*1024))
}

func TestGenerateVariantsBounded(t *testing.T) {
	variants := GenerateVariants(Brief{Segment: "s", Product: "p", Audience: "a"})
	require.GreaterOrEqual(t, len(variants), minVariants)
	require.LessOrEqual(t, len(variants), maxVariants)
}
