// Package providers implements the Provider Registry & Rotation Manager
// (capability-class endpoints, round-robin selection, rate-limit/error
// recovery state machine, fallback chains) and the AI Invocation Adapter
// layered on top of it. Grounded on the platform's orchestrator/llm
// registry and routing-strategy packages, narrowed from the platform's
// open-ended provider-type set to the coordination core's closed
// capability-class set.
package providers

import "time"

// Status is the closed set of endpoint lifecycle states.
type Status string

const (
	StatusActive      Status = "active"
	StatusRateLimited Status = "rate-limited"
	StatusError       Status = "error"
	StatusOffline     Status = "offline"
)

// CapabilityClass is one of the fixed, closed set of equivalence classes of
// third-party endpoints.
type CapabilityClass string

// The closed set of fifteen capability classes.
const (
	ClassQwenCompatible CapabilityClass = "qwen-compatible"
	ClassGemini         CapabilityClass = "gemini"
	ClassOpenAI         CapabilityClass = "openai"
	ClassGroq           CapabilityClass = "groq"
	ClassDeepseek       CapabilityClass = "deepseek"
	ClassJinaRead       CapabilityClass = "jina-read"
	ClassExa            CapabilityClass = "exa"
	ClassSerper         CapabilityClass = "serper"
	ClassSerpAPI        CapabilityClass = "serpapi"
	ClassTavily         CapabilityClass = "tavily"
	ClassSupadata       CapabilityClass = "supadata"
	ClassFirecrawl      CapabilityClass = "firecrawl"
	ClassScrapingAnt    CapabilityClass = "scrapingant"
	ClassYouTube        CapabilityClass = "youtube"
	ClassRapidAPI       CapabilityClass = "rapidapi"
)

// ServiceType is one of the closed set of logical service types that map to
// an ordered fallback chain of capability classes.
type ServiceType string

const (
	ServiceAIModels           ServiceType = "ai_models"
	ServiceSearch             ServiceType = "search"
	ServiceSocialInsights     ServiceType = "social_insights"
	ServiceWebScraping        ServiceType = "web_scraping"
	ServiceContentExtraction  ServiceType = "content_extraction"
)

// FallbackChains is the fixed mapping of logical service type to the
// ordered sequence of capability classes consulted to satisfy it.
var FallbackChains = map[ServiceType][]CapabilityClass{
	ServiceAIModels:          {ClassQwenCompatible, ClassGemini, ClassOpenAI, ClassGroq, ClassDeepseek},
	ServiceSearch:            {ClassJinaRead, ClassExa, ClassSerper, ClassSerpAPI, ClassFirecrawl, ClassTavily},
	ServiceSocialInsights:    {ClassSupadata, ClassSerper, ClassSerpAPI, ClassFirecrawl, ClassTavily},
	ServiceWebScraping:       {ClassFirecrawl, ClassScrapingAnt, ClassJinaRead, ClassSerper, ClassSerpAPI},
	ServiceContentExtraction: {ClassFirecrawl, ClassJinaRead, ClassScrapingAnt, ClassSerper, ClassRapidAPI},
}

// EndpointConfig is the static configuration for one provider endpoint,
// supplied at registry construction time from environment/YAML config.
type EndpointConfig struct {
	Name          string
	BaseURL       string
	APIKey        string
	Class         CapabilityClass
	MaxPerWindow  int // requests allowed per one-minute window; 0 = unlimited
}

// Endpoint is a single (capability-class, credential) pair and its mutable
// rotation state. All mutation happens under the owning Registry's lock.
type Endpoint struct {
	Name    string
	BaseURL string
	APIKey  string
	Class   CapabilityClass

	Status              Status
	ErrorCount          int
	LastUsed            time.Time
	RateLimitResetAt    time.Time
	RequestsThisWindow  int
	MaxPerWindow        int
	windowStartedAt     time.Time
}

// snapshot is an immutable copy safe to hand to callers outside the lock.
type snapshot struct {
	Name               string    `json:"name"`
	Class              string    `json:"class"`
	Status             Status    `json:"status"`
	ErrorCount         int       `json:"error_count"`
	LastUsed           time.Time `json:"last_used"`
	RateLimitResetAt   time.Time `json:"rate_limit_reset_at,omitempty"`
	RequestsThisWindow int       `json:"requests_this_window"`
	MaxPerWindow       int       `json:"max_per_window"`
}

func (e *Endpoint) snapshot() snapshot {
	return snapshot{
		Name: e.Name, Class: string(e.Class), Status: e.Status,
		ErrorCount: e.ErrorCount, LastUsed: e.LastUsed,
		RateLimitResetAt: e.RateLimitResetAt, RequestsThisWindow: e.RequestsThisWindow,
		MaxPerWindow: e.MaxPerWindow,
	}
}

// ClassCounts is the per-class status_report shape.
type ClassCounts struct {
	Active      int `json:"active"`
	RateLimited int `json:"rate-limited"`
	Error       int `json:"error"`
	Offline     int `json:"offline"`
}
