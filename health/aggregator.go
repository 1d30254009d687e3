package health

import (
	"os"
	"path/filepath"

	"marketpulse/config"
	"marketpulse/providers"
	"marketpulse/store"
)

// Status is the closed set of overall health verdicts.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Report is the Health Aggregator's full composed result.
type Report struct {
	Status              Status                                               `json:"status"`
	ProviderClasses     map[providers.CapabilityClass]providers.ClassCounts `json:"provider_classes"`
	AIProvidersReady    bool                                                 `json:"ai_providers_ready"`
	AIProviderDetail    map[string]bool                                      `json:"ai_provider_detail"`
	ConfigPresent       bool                                                 `json:"config_present"`
	MissingConfig       []string                                             `json:"missing_config,omitempty"`
	ArtifactRootWritable bool                                                `json:"artifact_root_writable"`
	Details             []string                                             `json:"details,omitempty"`
}

// Aggregator is the Health Aggregator (§4.I).
type Aggregator struct {
	registry *providers.Registry
	adapter  *providers.Adapter
	cfg      *config.Config
	store    *store.Store
	metrics  *Metrics
}

// New constructs an Aggregator. metrics may be nil to skip gauge updates.
func New(registry *providers.Registry, adapter *providers.Adapter, cfg *config.Config, st *store.Store, metrics *Metrics) *Aggregator {
	return &Aggregator{registry: registry, adapter: adapter, cfg: cfg, store: st, metrics: metrics}
}

// Check composes every input into one Report and, if Metrics were supplied,
// updates the corresponding Prometheus gauges as a side effect.
func (a *Aggregator) Check() Report {
	rep := Report{ProviderClasses: map[providers.CapabilityClass]providers.ClassCounts{}}

	anyProviderActive := false
	if a.registry != nil {
		rep.ProviderClasses = a.registry.StatusReport()
		for _, counts := range rep.ProviderClasses {
			if counts.Active > 0 {
				anyProviderActive = true
			}
		}
	}

	if a.adapter != nil {
		rep.AIProvidersReady = a.adapter.HasAvailableProvider()
		rep.AIProviderDetail = a.adapter.ProviderAvailability()
	}

	rep.ConfigPresent, rep.MissingConfig = checkConfig(a.cfg)

	if a.store != nil {
		rep.ArtifactRootWritable = checkWritable(a.store.Root())
	}

	rep.Status = composeStatus(anyProviderActive, rep.AIProvidersReady, rep.ConfigPresent, rep.ArtifactRootWritable)
	if !rep.ArtifactRootWritable {
		rep.Details = append(rep.Details, "artifact root is not writable")
	}
	if !rep.ConfigPresent {
		rep.Details = append(rep.Details, "missing required configuration: "+joinOrNone(rep.MissingConfig))
	}
	if !anyProviderActive {
		rep.Details = append(rep.Details, "no provider endpoint is active in any capability class")
	}
	if !rep.AIProvidersReady {
		rep.Details = append(rep.Details, "no AI provider is currently available")
	}

	if a.metrics != nil {
		a.updateMetrics(rep)
	}
	return rep
}

// composeStatus: unhealthy if the artifact store can't be written to (every
// stage's persistence would fail) or neither provider surface has anything
// usable; degraded if exactly one side is down or required configuration is
// missing; healthy otherwise.
func composeStatus(anyProviderActive, aiReady, configOK, fsWritable bool) Status {
	if !fsWritable {
		return StatusUnhealthy
	}
	if !anyProviderActive && !aiReady {
		return StatusUnhealthy
	}
	if !anyProviderActive || !aiReady || !configOK {
		return StatusDegraded
	}
	return StatusHealthy
}

func checkConfig(cfg *config.Config) (bool, []string) {
	if cfg == nil {
		return false, []string{"no configuration loaded"}
	}
	var missing []string
	if cfg.ArtifactRoot == "" {
		missing = append(missing, "artifact_root")
	}
	if len(cfg.Providers) == 0 {
		missing = append(missing, "providers")
	}
	return len(missing) == 0, missing
}

// checkWritable probes root by creating and removing a marker file, since a
// directory can be readable/listable yet not writable (e.g. read-only mount
// or permission-restricted subtree).
func checkWritable(root string) bool {
	probe := filepath.Join(root, ".health-write-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return false
	}
	_ = os.Remove(probe)
	return true
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	out := items[0]
	for _, it := range items[1:] {
		out += ", " + it
	}
	return out
}

func (a *Aggregator) updateMetrics(rep Report) {
	for class, counts := range rep.ProviderClasses {
		a.metrics.ProviderEndpointStatus.WithLabelValues(string(class), "*", "active").Set(float64(counts.Active))
		a.metrics.ProviderEndpointStatus.WithLabelValues(string(class), "*", "rate-limited").Set(float64(counts.RateLimited))
		a.metrics.ProviderEndpointStatus.WithLabelValues(string(class), "*", "error").Set(float64(counts.Error))
		a.metrics.ProviderEndpointStatus.WithLabelValues(string(class), "*", "offline").Set(float64(counts.Offline))
	}
}

// RecordSessionStatus increments the session-status counter for status. The
// Master Pipeline Orchestrator does not call it; it increments the same
// counter directly through the Metrics attached with pipeline.WithMetrics.
func (a *Aggregator) RecordSessionStatus(status store.SessionStatus) {
	if a.metrics == nil {
		return
	}
	a.metrics.SessionStatusTotal.WithLabelValues(string(status)).Inc()
}
