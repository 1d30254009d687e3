package providers

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"marketpulse/coreerr"
	"marketpulse/logger"
)

// Registry fronts a heterogeneous set of third-party endpoints keyed by
// capability class behind a uniform "give me a healthy provider of class X"
// interface, encoding rate-limit and error-recovery policy. It is
// process-global and mutated only under mu; recovery timers and the
// periodic health sweep re-acquire mu to mutate state, matching the
// platform registry's lock discipline.
type Registry struct {
	mu                sync.Mutex
	endpoints         map[CapabilityClass][]*Endpoint
	rrIndex           map[CapabilityClass]int
	recoverySeconds   int
	healthCheckPeriod time.Duration
	log               *logger.Logger
	cronSched         *cron.Cron
}

// NewRegistry constructs an empty Registry. Call RegisterEndpoint to
// populate it from configuration.
func NewRegistry(recoverySeconds int, healthCheckPeriod time.Duration, log *logger.Logger) *Registry {
	if log == nil {
		log = logger.New("providers")
	}
	if recoverySeconds <= 0 {
		recoverySeconds = 60
	}
	if healthCheckPeriod <= 0 {
		healthCheckPeriod = 5 * time.Minute
	}
	return &Registry{
		endpoints:         map[CapabilityClass][]*Endpoint{},
		rrIndex:           map[CapabilityClass]int{},
		recoverySeconds:   recoverySeconds,
		healthCheckPeriod: healthCheckPeriod,
		log:               log,
	}
}

// RegisterEndpoint adds an endpoint to its capability class in StatusActive.
func (r *Registry) RegisterEndpoint(cfg EndpointConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ep := &Endpoint{
		Name: cfg.Name, BaseURL: cfg.BaseURL, APIKey: cfg.APIKey, Class: cfg.Class,
		Status: StatusActive, MaxPerWindow: cfg.MaxPerWindow, windowStartedAt: time.Now(),
	}
	r.endpoints[cfg.Class] = append(r.endpoints[cfg.Class], ep)
}

// StartPeriodicHealthCheck starts the 5-minute (default) background sweep
// via robfig/cron: expired rate limits are cleared and over-window
// endpoints are transitioned to rate-limited.
func (r *Registry) StartPeriodicHealthCheck() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cronSched != nil {
		return
	}
	spec := "@every " + r.healthCheckPeriod.String()
	c := cron.New()
	_, err := c.AddFunc(spec, r.runHealthSweep)
	if err != nil {
		r.log.Error("failed to schedule provider health sweep", err, nil)
		return
	}
	c.Start()
	r.cronSched = c
}

// Stop halts the background health-check scheduler.
func (r *Registry) Stop() {
	r.mu.Lock()
	c := r.cronSched
	r.cronSched = nil
	r.mu.Unlock()
	if c != nil {
		c.Stop()
	}
}

func (r *Registry) runHealthSweep() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, eps := range r.endpoints {
		for _, ep := range eps {
			if ep.Status == StatusRateLimited && !ep.RateLimitResetAt.IsZero() && now.After(ep.RateLimitResetAt) {
				r.clearRateLimitLocked(ep)
			}
			if ep.MaxPerWindow > 0 && ep.RequestsThisWindow >= ep.MaxPerWindow && ep.Status == StatusActive {
				ep.Status = StatusRateLimited
				ep.RateLimitResetAt = now.Add(time.Minute)
			}
		}
	}
}

func (r *Registry) clearRateLimitLocked(ep *Endpoint) {
	ep.Status = StatusActive
	ep.RequestsThisWindow = 0
	ep.windowStartedAt = time.Now()
}

// usableLocked reports whether ep can currently be selected, transitioning
// it back to active first if its rate limit or window has expired.
func (r *Registry) usableLocked(ep *Endpoint, now time.Time) bool {
	if ep.Status == StatusRateLimited && !ep.RateLimitResetAt.IsZero() && now.After(ep.RateLimitResetAt) {
		r.clearRateLimitLocked(ep)
	}
	if ep.Status != StatusActive {
		return false
	}
	if !ep.windowStartedAt.IsZero() && now.Sub(ep.windowStartedAt) >= time.Minute {
		ep.RequestsThisWindow = 0
		ep.windowStartedAt = now
	}
	if ep.MaxPerWindow > 0 && ep.RequestsThisWindow >= ep.MaxPerWindow {
		return false
	}
	return true
}

// GetActive performs round-robin selection over active endpoints in class,
// returning NoProviderAvailable when none are usable. The round-robin index
// only advances when a non-nil endpoint is returned.
func (r *Registry) GetActive(class CapabilityClass) (*Endpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	eps := r.endpoints[class]
	if len(eps) == 0 {
		return nil, coreerr.New(coreerr.NoProviderAvailable, "no endpoints registered for class "+string(class))
	}

	now := time.Now()
	start := r.rrIndex[class]
	for i := 0; i < len(eps); i++ {
		idx := (start + i) % len(eps)
		ep := eps[idx]
		if r.usableLocked(ep, now) {
			ep.RequestsThisWindow++
			ep.LastUsed = now
			r.rrIndex[class] = (idx + 1) % len(eps)
			return ep, nil
		}
	}
	return nil, coreerr.New(coreerr.NoProviderAvailable, "no usable endpoint for class "+string(class))
}

// GetWithFallback walks the fallback chain for serviceType, returning the
// first GetActive hit. skipClasses lets a caller resume the walk after a
// class it already knows failed upstream.
func (r *Registry) GetWithFallback(serviceType ServiceType, skipClasses ...CapabilityClass) (*Endpoint, CapabilityClass, error) {
	chain, ok := FallbackChains[serviceType]
	if !ok {
		return nil, "", coreerr.New(coreerr.NoProviderAvailable, "unknown service type "+string(serviceType))
	}
	skip := map[CapabilityClass]bool{}
	for _, c := range skipClasses {
		skip[c] = true
	}
	for _, class := range chain {
		if skip[class] {
			continue
		}
		ep, err := r.GetActive(class)
		if err == nil {
			return ep, class, nil
		}
	}
	return nil, "", coreerr.New(coreerr.NoProviderAvailable, "no usable endpoint in fallback chain for "+string(serviceType))
}

// MarkError increments the endpoint's error count, transitions it to
// StatusError, and schedules an asynchronous recovery timer (default 60s)
// that restores it to StatusActive with a zeroed error count. In a
// multi-endpoint class it also advances the round-robin index past the
// failed endpoint.
func (r *Registry) MarkError(class CapabilityClass, name string, _ error) {
	r.mu.Lock()
	ep := r.findLocked(class, name)
	if ep == nil {
		r.mu.Unlock()
		return
	}
	ep.ErrorCount++
	ep.Status = StatusError
	eps := r.endpoints[class]
	for i, e := range eps {
		if e == ep {
			r.rrIndex[class] = (i + 1) % len(eps)
			break
		}
	}
	delay := time.Duration(r.recoverySeconds) * time.Second
	r.mu.Unlock()

	time.AfterFunc(delay, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if ep.Status == StatusError {
			ep.Status = StatusActive
			ep.ErrorCount = 0
			ep.RequestsThisWindow = 0
			ep.windowStartedAt = time.Now()
		}
	})
}

// MarkRateLimited transitions the endpoint to StatusRateLimited with the
// supplied (or default now+1m) reset instant.
func (r *Registry) MarkRateLimited(class CapabilityClass, name string, resetAt *time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ep := r.findLocked(class, name)
	if ep == nil {
		return
	}
	ep.Status = StatusRateLimited
	if resetAt != nil {
		ep.RateLimitResetAt = *resetAt
	} else {
		ep.RateLimitResetAt = time.Now().Add(time.Minute)
	}
}

// MarkOffline forces an endpoint offline (used by operator tooling /
// health checks; not driven by any spec-level automatic transition).
func (r *Registry) MarkOffline(class CapabilityClass, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ep := r.findLocked(class, name); ep != nil {
		ep.Status = StatusOffline
	}
}

// Restore forces an endpoint back to StatusActive with a zeroed error count.
func (r *Registry) Restore(class CapabilityClass, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ep := r.findLocked(class, name); ep != nil {
		ep.Status = StatusActive
		ep.ErrorCount = 0
		ep.RequestsThisWindow = 0
		ep.windowStartedAt = time.Now()
		ep.RateLimitResetAt = time.Time{}
	}
}

func (r *Registry) findLocked(class CapabilityClass, name string) *Endpoint {
	for _, ep := range r.endpoints[class] {
		if ep.Name == name {
			return ep
		}
	}
	return nil
}

// StatusReport returns per-class counts of {active, rate-limited, error, offline}.
func (r *Registry) StatusReport() map[CapabilityClass]ClassCounts {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := map[CapabilityClass]ClassCounts{}
	for class, eps := range r.endpoints {
		var c ClassCounts
		for _, ep := range eps {
			switch ep.Status {
			case StatusActive:
				c.Active++
			case StatusRateLimited:
				c.RateLimited++
			case StatusError:
				c.Error++
			case StatusOffline:
				c.Offline++
			}
		}
		out[class] = c
	}
	return out
}

// HasAnyEndpoint reports whether class has at least one registered endpoint.
func (r *Registry) HasAnyEndpoint(class CapabilityClass) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.endpoints[class]) > 0
}

// Endpoints returns a snapshot copy of every endpoint in class, for
// inspection/testing.
func (r *Registry) Endpoints(class CapabilityClass) []snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	eps := r.endpoints[class]
	out := make([]snapshot, len(eps))
	for i, ep := range eps {
		out[i] = ep.snapshot()
	}
	return out
}
