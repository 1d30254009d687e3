package providers

import (
	"context"
	"sync"
)

// GenerateOptions carries the per-call knobs for a language-model request.
type GenerateOptions struct {
	Model           string
	MaxTokens       int
	Temperature     float64
	SystemPrompt    string
	RequireTools    bool
	CapabilityClass CapabilityClass // optional override; empty means "use the provider's configured class"
}

// AIClient is the uniform call surface a concrete language-model backend
// implements; it is the "opaque client handle" referenced by an AIProvider.
type AIClient interface {
	Complete(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// FailureKind classifies an AIClient error for the adapter's retry/failover
// policy, per the specification's failure-classification table.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureQuotaExceeded
	FailureRateLimited
	FailureNetworkTimeout
	FailureMalformedResponse
	FailureFatalAuth
)

// Classifier maps an error returned by an AIClient to a FailureKind. Callers
// supply one per provider since the mapping is backend-specific (HTTP
// status codes, SDK error types, etc).
type Classifier func(error) FailureKind

// AIProvider is a registered language-model backend.
type AIProvider struct {
	Name         string
	Priority     int // lower is preferred
	SupportsTool bool
	Class        CapabilityClass
	Client       AIClient
	Classify     Classifier

	mu        sync.Mutex
	available bool
}

// NewAIProvider constructs an available AIProvider.
func NewAIProvider(name string, priority int, supportsTool bool, class CapabilityClass, client AIClient, classify Classifier) *AIProvider {
	if classify == nil {
		classify = func(error) FailureKind { return FailureNetworkTimeout }
	}
	return &AIProvider{Name: name, Priority: priority, SupportsTool: supportsTool, Class: class, Client: client, Classify: classify, available: true}
}

func (p *AIProvider) isAvailable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available
}

func (p *AIProvider) setAvailable(v bool) {
	p.mu.Lock()
	p.available = v
	p.mu.Unlock()
}

// ResetAvailability restores a provider marked unavailable by a fatal
// failure, e.g. on process restart or a manual operator reset.
func (p *AIProvider) ResetAvailability() { p.setAvailable(true) }
