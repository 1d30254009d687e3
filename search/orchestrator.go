package search

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"marketpulse/coreerr"
	"marketpulse/logger"
	"marketpulse/progress"
	"marketpulse/providers"
	"marketpulse/store"
)

// StreamDelay is the default inter-request delay per stream (500ms) used to
// honor rate policies while issuing variant queries serially within a stream.
const StreamDelay = 500 * time.Millisecond

// Orchestrator is the Search Orchestrator (Stage 1).
type Orchestrator struct {
	registry    *providers.Registry
	store       *store.Store
	fabric      *progress.Fabric
	caller      ProviderCaller
	streamDelay time.Duration
	targetBytes int64
	log         *logger.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCaller overrides the default HTTP-based ProviderCaller (used in tests
// with a fake caller).
func WithCaller(c ProviderCaller) Option { return func(o *Orchestrator) { o.caller = c } }

// WithStreamDelay overrides the default 500ms per-stream inter-request delay.
func WithStreamDelay(d time.Duration) Option { return func(o *Orchestrator) { o.streamDelay = d } }

// New constructs a Search Orchestrator.
func New(registry *providers.Registry, st *store.Store, fabric *progress.Fabric, targetBytes int64, log *logger.Logger, opts ...Option) *Orchestrator {
	if log == nil {
		log = logger.New("search")
	}
	if targetBytes <= 0 {
		targetBytes = 500 * 1024
	}
	o := &Orchestrator{
		registry: registry, store: st, fabric: fabric,
		caller: NewDefaultHTTPCaller(20 * time.Second), streamDelay: StreamDelay,
		targetBytes: targetBytes, log: log,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Search implements providers.Searcher so the AI Invocation Adapter's tool
// loop can re-search mid-study: it runs a single ad-hoc web-stream query
// through the registry and returns a best-effort text summary.
func (o *Orchestrator) Search(ctx context.Context, query string) (string, error) {
	ep, class, err := o.registry.GetWithFallback(providers.ServiceSearch)
	if err != nil {
		return "", err
	}
	result, err := o.caller.Call(ctx, ep, query)
	if err != nil {
		o.registry.MarkError(class, ep.Name, err)
		return "", err
	}
	raw, _ := json.Marshal(result)
	return string(raw), nil
}

// Run executes the full Stage-1 algorithm for brief, returning the
// persisted MassiveCorpus. It never fails unless every stream produced
// nothing.
func (o *Orchestrator) Run(ctx context.Context, brief Brief) (*MassiveCorpus, error) {
	sessionID := brief.SessionID
	startedAt := time.Now()
	log := o.log.WithSession(sessionID).WithStage("search")

	totalSteps := len(AllStreams) + 2 // start + each stream + finalize
	if o.fabric != nil {
		o.fabric.Start(sessionID, totalSteps)
		o.fabric.Update(sessionID, 1, "collection started", fmt.Sprintf("%d query variants", 0))
	}

	variants := GenerateVariants(brief)
	if o.fabric != nil {
		o.fabric.Update(sessionID, 1, "derived query variants", fmt.Sprintf("%d variants", len(variants)))
	}

	results := make(map[StreamName]StreamResult, len(AllStreams))
	var succeeded, failed []string
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i, streamName := range AllStreams {
		wg.Add(1)
		go func(step int, name StreamName) {
			defer wg.Done()
			res, err := o.runStream(ctx, sessionID, name, variants)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = append(failed, string(name))
				if _, serr := o.store.SaveError(sessionID, string(name), err, map[string]any{"stream": name}); serr != nil {
					log.Error("failed to persist stream error artifact", serr, logger.Fields{"stream": name})
				}
			} else {
				succeeded = append(succeeded, string(name))
				results[name] = res
			}
			if o.fabric != nil {
				o.fabric.Update(sessionID, step+2, fmt.Sprintf("stream %s complete", name), "")
			}
		}(i, streamName)
	}
	wg.Wait()

	corpus := &MassiveCorpus{
		SessionID: sessionID,
		Brief:     brief,
		Streams:   results,
		Meta: CollectionMeta{
			TotalSources:     len(succeeded),
			ElapsedSeconds:   time.Since(startedAt).Seconds(),
			StreamsSucceeded: succeeded,
			StreamsFailed:    failed,
			CollectedAt:      time.Now(),
		},
	}

	raw, _ := json.Marshal(corpus)
	corpus.Meta.SizeBytes = int64(len(raw))

	if corpus.Meta.SizeBytes < o.targetBytes {
		expandCorpus(corpus, o.targetBytes)
	}

	if o.fabric != nil {
		o.fabric.Update(sessionID, totalSteps, "collection finalized", fmt.Sprintf("%d bytes", corpus.Meta.SizeBytes))
	}

	if _, _, err := o.store.SaveStage(sessionID, "massive_corpus", corpus, store.CategoryCollection); err != nil {
		return nil, err
	}

	if len(succeeded) == 0 {
		return corpus, coreerr.New(coreerr.NoProviderAvailable, "every intelligence stream failed to produce a result")
	}
	return corpus, nil
}

// runStream acquires a provider for streamName's service type and issues
// every variant query serially, respecting the per-stream inter-request
// delay, persisting the stream's collected result to the artifact store.
func (o *Orchestrator) runStream(ctx context.Context, sessionID string, name StreamName, variants []string) (StreamResult, error) {
	serviceType := streamServiceType[name]
	limiter := rate.NewLimiter(rate.Every(o.streamDelay), 1)

	result := StreamResult{}
	var lastErr error
	gotAny := false

	for _, variant := range variants {
		if err := limiter.Wait(ctx); err != nil {
			return result, err
		}
		ep, class, err := o.registry.GetWithFallback(serviceType)
		if err != nil {
			lastErr = err
			continue
		}
		payload, cerr := o.caller.Call(ctx, ep, variant)
		if cerr != nil {
			o.registry.MarkError(class, ep.Name, cerr)
			lastErr = cerr
			continue
		}
		result[variant] = payload
		gotAny = true
	}

	if _, _, err := o.store.SaveStage(sessionID, string(name), result, store.CategoryCollection); err != nil {
		return result, err
	}

	if !gotAny {
		if lastErr == nil {
			lastErr = coreerr.New(coreerr.NoProviderAvailable, "no endpoint available for stream "+string(name))
		}
		return result, lastErr
	}
	return result, nil
}
