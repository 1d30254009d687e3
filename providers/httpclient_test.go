package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPAIClientCompleteParsesChatResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello from upstream"}}]}`))
	}))
	defer srv.Close()

	c := NewHTTPAIClient(srv.URL, "test-key", "qwen-max", "test/ep-1", nil)
	out, err := c.Complete(context.Background(), "hi", GenerateOptions{})
	require.NoError(t, err)
	require.Equal(t, "hello from upstream", out)
}

func TestHTTPAIClientClassifiesRateLimitStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	c := NewHTTPAIClient(srv.URL, "test-key", "qwen-max", "test/ep-2", nil)
	_, err := c.Complete(context.Background(), "hi", GenerateOptions{})
	require.Error(t, err)
	require.Equal(t, FailureRateLimited, ClassifyHTTPFailure(err))
}

func TestHTTPAIClientClassifiesAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer srv.Close()

	c := NewHTTPAIClient(srv.URL, "bad-key", "qwen-max", "test/ep-3", nil)
	_, err := c.Complete(context.Background(), "hi", GenerateOptions{})
	require.Error(t, err)
	require.Equal(t, FailureFatalAuth, ClassifyHTTPFailure(err))
}

func TestHTTPAIClientMalformedResponseIsClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := NewHTTPAIClient(srv.URL, "k", "m", "test/ep-4", nil)
	_, err := c.Complete(context.Background(), "hi", GenerateOptions{})
	require.Error(t, err)
	require.Equal(t, FailureMalformedResponse, ClassifyHTTPFailure(err))
}
