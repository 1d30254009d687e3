package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"marketpulse/providers"
)

// ProviderCaller issues one query against a selected endpoint and returns a
// normalized result payload. The specification keeps vendor wire formats
// out of scope; this interface is the seam a real deployment plugs concrete
// per-vendor request/response shaping into. DefaultHTTPCaller below gives a
// reasonable generic implementation usable against any JSON API that
// accepts a bearer token and a query body.
type ProviderCaller interface {
	Call(ctx context.Context, ep *providers.Endpoint, query string) (map[string]any, error)
}

// DefaultHTTPCaller POSTs {"query": ...} to the endpoint's base URL with a
// bearer-token Authorization header and parses a JSON object response.
type DefaultHTTPCaller struct {
	Client *http.Client
}

// NewDefaultHTTPCaller constructs a caller with a bounded per-request timeout.
func NewDefaultHTTPCaller(timeout time.Duration) *DefaultHTTPCaller {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &DefaultHTTPCaller{Client: &http.Client{Timeout: timeout}}
}

func (c *DefaultHTTPCaller) Call(ctx context.Context, ep *providers.Endpoint, query string) (map[string]any, error) {
	if ep.BaseURL == "" {
		return nil, fmt.Errorf("endpoint %s has no base URL configured", ep.Name)
	}
	body, _ := json.Marshal(map[string]string{"query": query})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if ep.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+ep.APIKey)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("provider %s returned status %d", ep.Name, resp.StatusCode)
	}

	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{"raw": string(raw)}, nil
	}
	return out, nil
}

// streamServiceType maps each intelligence stream to the logical service
// type used to select a provider via the registry's fallback chain.
var streamServiceType = map[StreamName]providers.ServiceType{
	StreamWeb:        providers.ServiceSearch,
	StreamSocial:     providers.ServiceSocialInsights,
	StreamTrend:      providers.ServiceSearch,
	StreamMarket:     providers.ServiceSearch,
	StreamCompetitor: providers.ServiceWebScraping,
	StreamContent:    providers.ServiceContentExtraction,
	StreamBehavioral: providers.ServiceSocialInsights,
	StreamPredictive: providers.ServiceSearch,
}
