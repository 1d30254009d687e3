package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// HTTPAIClient is an AIClient backed by an OpenAI-compatible chat-completions
// endpoint, the wire shape shared by the qwen-compatible, openai, groq, and
// deepseek capability classes. One HTTPAIClient is constructed per endpoint
// and holds its own circuit breaker, so a misbehaving endpoint trips
// independently of its siblings in the same capability class.
type HTTPAIClient struct {
	BaseURL string
	APIKey  string
	Model   string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewHTTPAIClient constructs a client for one endpoint. breakerName should
// be unique per endpoint (typically "<class>/<name>") so gobreaker's state
// transitions and the Health Aggregator's per-endpoint reporting line up.
func NewHTTPAIClient(baseURL, apiKey, model, breakerName string, httpClient *http.Client) *HTTPAIClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &HTTPAIClient{BaseURL: baseURL, APIKey: apiKey, Model: model, client: httpClient, breaker: breaker}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete posts a chat-completions request through the client's circuit
// breaker, retrying transient transport errors (via RetryWithBackoff)
// before they ever reach the adapter's failure-classification policy. An
// open breaker fails fast with ErrOpenState, which the supplied Classifier
// should map to FailureNetworkTimeout so the adapter fails over promptly.
func (c *HTTPAIClient) Complete(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	model := c.Model
	if opts.Model != "" {
		model = opts.Model
	}
	messages := []chatMessage{}
	if opts.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: opts.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	reqBody := chatRequest{Model: model, Messages: messages, MaxTokens: opts.MaxTokens, Temperature: opts.Temperature}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return RetryWithBackoff(ctx, RetryConfig{
			MaxAttempts: 2,
			BaseDelay:   150 * time.Millisecond,
			MaxDelay:    2 * time.Second,
			Retryable:   isTransientHTTPError,
		}, func(ctx context.Context) (string, error) {
			return c.doRequest(ctx, payload)
		})
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (c *HTTPAIClient) doRequest(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("upstream %s returned %d: %s", c.BaseURL, resp.StatusCode, body)
	}
	if resp.StatusCode >= 400 {
		return "", &httpStatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("malformed response from %s: %w", c.BaseURL, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("malformed response from %s: no choices", c.BaseURL)
	}
	return parsed.Choices[0].Message.Content, nil
}

// httpStatusError carries the upstream status code through to the caller's
// Classifier, so 429/401/403 map to the correct FailureKind.
type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
}

func isTransientHTTPError(err error) bool {
	var statusErr *httpStatusError
	if asHTTPStatusError(err, &statusErr) {
		return false
	}
	return true
}

func asHTTPStatusError(err error, target **httpStatusError) bool {
	if se, ok := err.(*httpStatusError); ok {
		*target = se
		return true
	}
	return false
}

// ClassifyHTTPFailure maps an HTTPAIClient error to the adapter's
// failure-classification table: upstream status codes take precedence, an
// unparseable response body maps to FailureMalformedResponse, and anything
// else falls back to network/breaker errors.
func ClassifyHTTPFailure(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	if strings.HasPrefix(err.Error(), "malformed response from ") {
		return FailureMalformedResponse
	}
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return FailureNetworkTimeout
	}
	var statusErr *httpStatusError
	if asHTTPStatusError(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusTooManyRequests:
			return FailureRateLimited
		case http.StatusUnauthorized, http.StatusForbidden:
			return FailureFatalAuth
		case http.StatusPaymentRequired:
			return FailureQuotaExceeded
		default:
			return FailureMalformedResponse
		}
	}
	return FailureNetworkTimeout
}
