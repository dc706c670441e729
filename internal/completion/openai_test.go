package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/gregai-backend/internal/config"
)

type capturedRequest struct {
	Model    string `json:"model"`
	Stream   bool   `json:"stream"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func streamServer(t *testing.T, deltas []string, delay time.Duration, captured *capturedRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		if captured != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, d := range deltas {
			chunk := map[string]any{
				"id": "chatcmpl-1", "object": "chat.completion.chunk", "created": 1, "model": "gpt-4",
				"choices": []map[string]any{{"index": 0, "delta": map[string]string{"content": d}}},
			}
			b, _ := json.Marshal(chunk)
			_, _ = fmt.Fprintf(w, "data: %s\n\n", b)
			flusher.Flush()
			if delay > 0 {
				time.Sleep(delay)
			}
		}
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
}

func newTestClient(url string, timeout time.Duration) *Client {
	return New(config.Completion{
		APIKey:       "test",
		BaseURL:      url + "/v1",
		Model:        "gpt-4",
		Timeout:      timeout,
		SystemPrompt: "be nice",
	})
}

func TestStream_ForwardsDeltasInOrder(t *testing.T) {
	var captured capturedRequest
	srv := streamServer(t, []string{"Hel", "lo", " world"}, 0, &captured)
	defer srv.Close()

	c := newTestClient(srv.URL, 5*time.Second)
	var got []string
	full, err := c.Stream(context.Background(), []Message{{Role: "user", Content: "hi"}}, func(d string) error {
		got = append(got, d)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo", " world"}, got)
	assert.Equal(t, "Hello world", full)

	assert.True(t, captured.Stream)
	assert.Equal(t, "gpt-4", captured.Model)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "hi", captured.Messages[1].Content)
}

func TestStream_CallbackErrorStops(t *testing.T) {
	srv := streamServer(t, []string{"a", "b", "c"}, 0, nil)
	defer srv.Close()

	c := newTestClient(srv.URL, 5*time.Second)
	stop := errors.New("client gone")
	calls := 0
	_, err := c.Stream(context.Background(), nil, func(string) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestStream_Timeout(t *testing.T) {
	srv := streamServer(t, []string{"a", "b", "c"}, 300*time.Millisecond, nil)
	defer srv.Close()

	c := newTestClient(srv.URL, 100*time.Millisecond)
	_, err := c.Stream(context.Background(), nil, func(string) error { return nil })
	require.Error(t, err)
}

func TestStream_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, time.Second)
	_, err := c.Stream(context.Background(), nil, func(string) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "completion.Stream")
}

func TestComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req capturedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Equal(t, "summarize", req.Messages[0].Content)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","created":1,"model":"gpt-4",
			"choices":[{"index":0,"message":{"role":"assistant","content":"Summary: ok"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, time.Second)
	out, err := c.Complete(context.Background(), "summarize", "text")
	require.NoError(t, err)
	assert.Equal(t, "Summary: ok", out)
}

func TestComplete_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","created":1,"model":"gpt-4","choices":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, time.Second).Complete(context.Background(), "s", "p")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}
