package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"marketpulse/config"
	"marketpulse/health"
	"marketpulse/logger"
	"marketpulse/pipeline"
	"marketpulse/progress"
	"marketpulse/providers"
	"marketpulse/report"
	"marketpulse/search"
	"marketpulse/store"
	"marketpulse/study"
)

// system bundles every constructed component a subcommand might need, built
// once per invocation from resolved configuration.
type system struct {
	cfg        *config.Config
	store      *store.Store
	registry   *providers.Registry
	adapter    *providers.Adapter
	aggregator *health.Aggregator
	metrics    *health.Metrics
	pipeline   *pipeline.Pipeline
}

// buildSystem wires every coordination-core component from cfg in
// dependency order: artifact store, registry, then AI adapter over it, then
// the three stage orchestrators, then the pipeline tying them together.
func buildSystem(cfg *config.Config) (*system, error) {
	st, err := store.New(cfg.ArtifactRoot, logger.New("store"))
	if err != nil {
		return nil, fmt.Errorf("open artifact store: %w", err)
	}

	registry := providers.NewRegistry(cfg.RateRecoverySeconds, cfg.HealthCheckInterval, logger.New("registry"))
	adapter := providers.NewAdapter(registry, nil, nil, logger.New("ai-adapter"))

	for class, entries := range cfg.Providers {
		for i, entry := range entries {
			registry.RegisterEndpoint(providers.EndpointConfig{
				Name: entry.Name, BaseURL: entry.BaseURL, APIKey: entry.APIKey,
				Class: providers.CapabilityClass(class),
			})
			if entry.BaseURL == "" {
				continue
			}
			// Only the language-model classes get an AI client; the search/
			// scraping classes are driven through search.ProviderCaller
			// instead (wired into the search Orchestrator below).
			switch providers.CapabilityClass(class) {
			case providers.ClassQwenCompatible, providers.ClassGemini, providers.ClassOpenAI, providers.ClassGroq, providers.ClassDeepseek:
				breakerName := fmt.Sprintf("%s/%s", class, entry.Name)
				client := providers.NewHTTPAIClient(entry.BaseURL, entry.APIKey, entry.Name, breakerName, nil)
				adapter.Register(providers.NewAIProvider(entry.Name, i+1, true, providers.CapabilityClass(class), client, providers.ClassifyHTTPFailure))
			}
		}
	}

	metrics := health.NewMetrics(prometheus.DefaultRegisterer)
	aggregator := health.New(registry, adapter, cfg, st, metrics)

	fabric := progress.New(logger.New("progress"))
	searchOrch := search.New(registry, st, fabric, cfg.Stage1TargetBytes, logger.New("search"))
	studyOrch := study.New(adapter, st, logger.New("study"))
	reportCompiler := report.New(st, logger.New("report"))

	pl := pipeline.New(registry, adapter, searchOrch, studyOrch, reportCompiler, st, cfg.StudyMinutesDefault, logger.New("pipeline"), pipeline.WithMetrics(metrics))

	return &system{cfg: cfg, store: st, registry: registry, adapter: adapter, aggregator: aggregator, metrics: metrics, pipeline: pl}, nil
}
