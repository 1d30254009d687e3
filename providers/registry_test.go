package providers

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func twoEndpointRegistry() *Registry {
	r := NewRegistry(1, time.Hour, nil) // 1-second recovery for fast tests
	r.RegisterEndpoint(EndpointConfig{Name: "openai-1", Class: ClassOpenAI})
	r.RegisterEndpoint(EndpointConfig{Name: "openai-2", Class: ClassOpenAI})
	return r
}

func TestRotationLiveness(t *testing.T) {
	r := twoEndpointRegistry()

	first, err := r.GetActive(ClassOpenAI)
	require.NoError(t, err)

	r.MarkError(ClassOpenAI, first.Name, errors.New("500"))

	next, err := r.GetActive(ClassOpenAI)
	require.NoError(t, err)
	require.NotEqual(t, first.Name, next.Name, "must rotate to the other endpoint after an error")

	time.Sleep(1200 * time.Millisecond)
	eps := r.Endpoints(ClassOpenAI)
	for _, e := range eps {
		if e.Name == first.Name {
			require.Equal(t, StatusActive, e.Status, "errored endpoint must recover")
			require.Equal(t, 0, e.ErrorCount, "error count must zero on recovery")
		}
	}
}

func TestFallbackCorrectness(t *testing.T) {
	r := NewRegistry(60, time.Hour, nil)
	r.RegisterEndpoint(EndpointConfig{Name: "serper-1", Class: ClassSerper})

	ep, class, err := r.GetWithFallback(ServiceSearch)
	require.NoError(t, err)
	require.Equal(t, ClassSerper, class)
	require.Equal(t, "serper-1", ep.Name)
}

func TestFallbackReturnsErrorWhenAllEmpty(t *testing.T) {
	r := NewRegistry(60, time.Hour, nil)
	_, _, err := r.GetWithFallback(ServiceSearch)
	require.Error(t, err)
}

func TestRateLimitReEntryZerosWindow(t *testing.T) {
	r := NewRegistry(60, time.Hour, nil)
	r.RegisterEndpoint(EndpointConfig{Name: "exa-1", Class: ClassExa, MaxPerWindow: 1})

	ep, err := r.GetActive(ClassExa)
	require.NoError(t, err)
	resetAt := time.Now().Add(10 * time.Millisecond)
	r.MarkRateLimited(ClassExa, ep.Name, &resetAt)

	_, err = r.GetActive(ClassExa)
	require.Error(t, err, "still rate-limited before reset")

	time.Sleep(20 * time.Millisecond)
	got, err := r.GetActive(ClassExa)
	require.NoError(t, err)
	require.Equal(t, "exa-1", got.Name)

	snaps := r.Endpoints(ClassExa)
	require.Equal(t, 1, snaps[0].RequestsThisWindow, "window counter reset then incremented once by GetActive")
}

func TestScenarioB_ProviderFailoverAfterFiveErrors(t *testing.T) {
	r := NewRegistry(1, time.Hour, nil)
	r.RegisterEndpoint(EndpointConfig{Name: "openai-1", Class: ClassOpenAI})
	r.RegisterEndpoint(EndpointConfig{Name: "openai-2", Class: ClassOpenAI})

	for i := 0; i < 5; i++ {
		r.MarkError(ClassOpenAI, "openai-1", errors.New("fail"))
		// MarkError already transitions to active via its own timer in
		// production; to simulate "pre-marked with error-count=5" we force
		// status back to error without waiting out the timer in between.
	}
	eps := r.Endpoints(ClassOpenAI)
	for _, e := range eps {
		if e.Name == "openai-1" {
			require.Equal(t, StatusError, e.Status)
		}
	}

	ep, err := r.GetActive(ClassOpenAI)
	require.NoError(t, err)
	require.Equal(t, "openai-2", ep.Name)

	time.Sleep(1200 * time.Millisecond)
	snaps := r.Endpoints(ClassOpenAI)
	for _, e := range snaps {
		if e.Name == "openai-1" {
			require.Equal(t, StatusActive, e.Status)
		}
	}
}

func TestStatusReportCounts(t *testing.T) {
	r := NewRegistry(60, time.Hour, nil)
	r.RegisterEndpoint(EndpointConfig{Name: "g-1", Class: ClassGemini})
	r.RegisterEndpoint(EndpointConfig{Name: "g-2", Class: ClassGemini})
	r.MarkOffline(ClassGemini, "g-2")

	report := r.StatusReport()
	require.Equal(t, 1, report[ClassGemini].Active)
	require.Equal(t, 1, report[ClassGemini].Offline)
}

func TestHealthMonotonicity(t *testing.T) {
	r := NewRegistry(60, time.Hour, nil)
	r.RegisterEndpoint(EndpointConfig{Name: "y-1", Class: ClassYouTube})
	r.MarkOffline(ClassYouTube, "y-1")

	report := r.StatusReport()
	require.Equal(t, 0, report[ClassYouTube].Active)

	r.Restore(ClassYouTube, "y-1")
	report = r.StatusReport()
	require.Equal(t, 1, report[ClassYouTube].Active)
}
