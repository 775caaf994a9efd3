// ABOUTME: Tests for the remote completion client
// ABOUTME: Runs against a local HTTP stub of the OpenAI-compatible endpoint

package completion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxyhealth/praxy-gateway/internal/config"
	"github.com/praxyhealth/praxy-gateway/internal/conversation"
	"github.com/praxyhealth/praxy-gateway/internal/ledger"
)

type capturedRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// newStubBackend serves a minimal chat-completion response and records
// the last request body.
func newStubBackend(t *testing.T, reply string, status int) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "cmpl-test",
			"object": "chat.completion",
			"choices": []map[string]any{
				{
					"index":         0,
					"finish_reason": "stop",
					"message":       map[string]string{"role": "assistant", "content": reply},
				},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New(config.CompletionConfig{
		BaseURL:        baseURL,
		APIKey:         "test-key",
		SystemPrompt:   "You are an expert doctor on Sore Throat in Adults.",
		DefaultVariant: "default",
	}, config.DefaultModels(), nil)
	require.NoError(t, err)
	return c
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(config.CompletionConfig{}, config.DefaultModels(), nil)
	assert.Error(t, err)
}

func TestModelFor(t *testing.T) {
	c := newTestClient(t, "http://unused")

	models := config.DefaultModels()
	assert.Equal(t, models["t_tuned"], c.ModelFor("t_tuned"))
	assert.Equal(t, models["default"], c.ModelFor("default"))
	assert.Equal(t, models["default"], c.ModelFor("no-such-variant"), "unknown variants fall back to the default")
}

func TestComplete(t *testing.T) {
	srv, captured := newStubBackend(t, "Plenty of fluids and rest.", http.StatusOK)
	c := newTestClient(t, srv.URL)

	reply, err := c.Complete(context.Background(), "t_tuned", []conversation.Message{
		{Role: ledger.RoleUser, Content: "What helps a sore throat?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Plenty of fluids and rest.", reply)

	// system instruction is prepended, history follows
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "You are an expert doctor on Sore Throat in Adults.", captured.Messages[0].Content)
	assert.Equal(t, "user", captured.Messages[1].Role)
	assert.Equal(t, config.DefaultModels()["t_tuned"], captured.Model)
}

func TestCompleteCarriesFullHistory(t *testing.T) {
	srv, captured := newStubBackend(t, "ok", http.StatusOK)
	c := newTestClient(t, srv.URL)

	_, err := c.Complete(context.Background(), "default", []conversation.Message{
		{Role: ledger.RoleUser, Content: "hi"},
		{Role: ledger.RoleAssistant, Content: "hello"},
		{Role: ledger.RoleUser, Content: "what did you say?"},
	})
	require.NoError(t, err)
	require.Len(t, captured.Messages, 4)
	assert.Equal(t, "assistant", captured.Messages[2].Role)
}

func TestCompleteUpstreamError(t *testing.T) {
	srv, _ := newStubBackend(t, "", http.StatusServiceUnavailable)
	c := newTestClient(t, srv.URL)

	_, err := c.Complete(context.Background(), "default", []conversation.Message{
		{Role: ledger.RoleUser, Content: "hi"},
	})
	assert.Error(t, err)
}
