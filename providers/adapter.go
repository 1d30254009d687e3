package providers

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"marketpulse/coreerr"
	"marketpulse/logger"
)

// Searcher is the minimal surface the AI Invocation Adapter needs from the
// Search Orchestrator to drive a tool loop. Defined here (rather than
// imported from package search) so providers has no dependency on search;
// the pipeline wires a concrete *search.Orchestrator into it at startup.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// ToolCallDetector inspects a model's raw text output for an emitted
// "search" tool call and extracts the query. The core contract defines
// exactly one tool ("search"); callers supply the detector appropriate to
// their prompt program's tool-call convention.
type ToolCallDetector func(modelOutput string) (query string, isToolCall bool)

// Adapter is the AI Invocation Adapter: a uniform call surface over
// multiple language-model providers with priority ordering and automatic
// failover on quota/error, grounded on the platform's LLMRouter selection
// and failover logic, narrowed to the coordination core's AIProvider shape.
type Adapter struct {
	mu        sync.Mutex
	providers []*AIProvider
	registry  *Registry
	searcher  Searcher
	detector  ToolCallDetector
	log       *logger.Logger
}

// NewAdapter constructs an Adapter. registry may be nil if no provider in
// this adapter is backed by a rotation-managed capability class endpoint.
func NewAdapter(registry *Registry, searcher Searcher, detector ToolCallDetector, log *logger.Logger) *Adapter {
	if log == nil {
		log = logger.New("ai-adapter")
	}
	if detector == nil {
		detector = defaultToolCallDetector
	}
	return &Adapter{registry: registry, searcher: searcher, detector: detector, log: log}
}

func defaultToolCallDetector(out string) (string, bool) {
	const prefix = "TOOL_CALL: search("
	idx := strings.Index(out, prefix)
	if idx < 0 {
		return "", false
	}
	rest := out[idx+len(prefix):]
	end := strings.Index(rest, ")")
	if end < 0 {
		return "", false
	}
	return strings.Trim(rest[:end], `"' `), true
}

// Register adds a provider to the adapter's selection pool.
func (a *Adapter) Register(p *AIProvider) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.providers = append(a.providers, p)
}

// ordered returns available providers meeting requireTools, sorted by
// priority ascending (lower preferred).
func (a *Adapter) ordered(requireTools bool) []*AIProvider {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*AIProvider, 0, len(a.providers))
	for _, p := range a.providers {
		if !p.isAvailable() {
			continue
		}
		if requireTools && !p.SupportsTool {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

// GenerateText selects the highest-priority available provider matching
// opts, invokes it, and fails over to the next-preferred provider on
// recoverable failure per the specification's failure-classification table.
// Exhausting providers returns an error.
func (a *Adapter) GenerateText(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	candidates := a.ordered(opts.RequireTools)
	if len(candidates) == 0 {
		return "", coreerr.New(coreerr.NoProviderAvailable, "no AI provider available")
	}

	var lastErr error
	for _, p := range candidates {
		text, err := a.invoke(ctx, p, prompt, opts)
		if err == nil {
			return text, nil
		}
		lastErr = err
	}
	return "", coreerr.Wrap(coreerr.NoProviderAvailable, "all AI providers exhausted", lastErr)
}

// invoke calls one provider, applying the failure-classification retry
// policy: rate-limited retries once on the same provider with backoff;
// network/timeout retries up to twice; malformed-response retries once;
// quota-exceeded and fatal-auth disable the provider for the process.
func (a *Adapter) invoke(ctx context.Context, p *AIProvider, prompt string, opts GenerateOptions) (string, error) {
	sameProviderRetries := 0

	for {
		text, err := p.Client.Complete(ctx, prompt, opts)
		if err == nil {
			return text, nil
		}
		kind := p.Classify(err)

		switch kind {
		case FailureQuotaExceeded, FailureFatalAuth:
			p.setAvailable(false)
			if a.registry != nil {
				a.registry.MarkError(p.Class, p.Name, err)
			}
			return "", err

		case FailureRateLimited:
			if a.registry != nil {
				a.registry.MarkRateLimited(p.Class, p.Name, nil)
			}
			if sameProviderRetries >= 1 {
				return "", err
			}
			sameProviderRetries++
			time.Sleep(250 * time.Millisecond)
			continue

		case FailureNetworkTimeout:
			if sameProviderRetries >= 2 {
				return "", err
			}
			sameProviderRetries++
			time.Sleep(time.Duration(sameProviderRetries) * 150 * time.Millisecond)
			continue

		case FailureMalformedResponse:
			if sameProviderRetries >= 1 {
				return "", err
			}
			sameProviderRetries++
			continue

		default:
			if a.registry != nil {
				a.registry.MarkError(p.Class, p.Name, err)
			}
			return "", err
		}
	}
}

// HasAvailableProvider reports whether at least one registered provider is
// currently available, used by the Master Pipeline Orchestrator and Health
// Aggregator to fold AI-adapter status into their composed verdicts.
func (a *Adapter) HasAvailableProvider() bool {
	return len(a.ordered(false)) > 0
}

// ProviderAvailability returns each registered provider's name and current
// availability, for the Health Aggregator's itemized detail view.
func (a *Adapter) ProviderAvailability() map[string]bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]bool, len(a.providers))
	for _, p := range a.providers {
		out[p.Name] = p.isAvailable()
	}
	return out
}

// GenerateWithActiveSearch requires a tools-capable provider and drives a
// tool loop: while the model emits a "search" tool call, the adapter
// executes the search through the injected Searcher and feeds the result
// back, up to maxIterations times. With no tools-capable provider
// available, it degrades to GenerateText with the composed prompt.
func (a *Adapter) GenerateWithActiveSearch(ctx context.Context, prompt, searchContext, session string, maxIterations int) (string, error) {
	candidates := a.ordered(true)
	if len(candidates) == 0 || a.searcher == nil {
		composed := prompt
		if searchContext != "" {
			composed = searchContext + "\n\n" + prompt
		}
		return a.GenerateText(ctx, composed, GenerateOptions{})
	}

	current := prompt
	if searchContext != "" {
		current = searchContext + "\n\n" + prompt
	}

	for i := 0; i < maxIterations; i++ {
		out, err := a.GenerateText(ctx, current, GenerateOptions{RequireTools: true})
		if err != nil {
			return "", err
		}
		query, isToolCall := a.detector(out)
		if !isToolCall {
			return out, nil
		}
		result, serr := a.searcher.Search(ctx, query)
		if serr != nil {
			result = "search failed: " + serr.Error()
		}
		current = current + "\n\nTool result for \"" + query + "\":\n" + result
	}

	// Budget exhausted: one final non-tool call to force a conclusive answer.
	return a.GenerateText(ctx, current+"\n\nProvide your final answer now without further tool calls.", GenerateOptions{})
}
