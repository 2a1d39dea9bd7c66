// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/ontoguide/pkg/types"
)

func TestMain(m *testing.M) {
	// Override backoff to avoid real sleeps in retry tests.
	backoffBase = time.Millisecond
	os.Exit(m.Run())
}

// --- mock backends ---

type mockBackend struct {
	answer   string
	requests []Request
}

func (m *mockBackend) Complete(_ context.Context, req Request) (string, error) {
	m.requests = append(m.requests, req)
	return m.answer, nil
}

// failNTimesBackend fails the first N calls, then succeeds.
type failNTimesBackend struct {
	failures  int
	callCount int
	answer    string
}

func (f *failNTimesBackend) Complete(_ context.Context, _ Request) (string, error) {
	f.callCount++
	if f.callCount <= f.failures {
		return "", fmt.Errorf("transient error (call %d)", f.callCount)
	}
	return f.answer, nil
}

// --- Conversation ---

func TestConversation_Ask(t *testing.T) {
	backend := &mockBackend{answer: `{"respuesta":["V1"]}`}
	conv := NewConversation(backend, "The victim V1 reported a theft.", types.OracleConfig{}, nil)

	got, err := conv.Ask(context.Background(), "Who is the victim?", "m1", json.RawMessage(`{"type":"object"}`))
	require.NoError(t, err)
	assert.Equal(t, `{"respuesta":["V1"]}`, got)

	require.Len(t, backend.requests, 1)
	req := backend.requests[0]
	assert.Equal(t, "m1", req.Model)
	assert.Contains(t, req.System, "The victim V1 reported a theft.")
	assert.Equal(t, []Message{{Role: RoleUser, Content: "Who is the victim?"}}, req.Messages)
	assert.JSONEq(t, `{"type":"object"}`, string(req.Schema))
	assert.Equal(t, 1, conv.Calls())
}

func TestConversation_History(t *testing.T) {
	backend := &mockBackend{answer: "A"}
	conv := NewConversation(backend, "doc", types.OracleConfig{KeepHistory: true}, nil)
	ctx := context.Background()

	_, err := conv.Ask(ctx, "Q1", "m", nil)
	require.NoError(t, err)
	_, err = conv.Ask(ctx, "Q2", "m", nil)
	require.NoError(t, err)

	require.Len(t, backend.requests, 2)
	assert.Equal(t, []Message{
		{Role: RoleUser, Content: "Q1"},
		{Role: RoleAssistant, Content: "A"},
		{Role: RoleUser, Content: "Q2"},
	}, backend.requests[1].Messages)
}

func TestConversation_NoHistoryByDefault(t *testing.T) {
	backend := &mockBackend{answer: "A"}
	conv := NewConversation(backend, "doc", types.OracleConfig{}, nil)

	for _, q := range []string{"Q1", "Q2"} {
		_, err := conv.Ask(context.Background(), q, "m", nil)
		require.NoError(t, err)
	}
	assert.Len(t, backend.requests[1].Messages, 1)
}

func TestConversation_Retry(t *testing.T) {
	backend := &failNTimesBackend{failures: 2, answer: "ok"}
	conv := NewConversation(backend, "doc", types.OracleConfig{MaxRetries: 3}, nil)

	got, err := conv.Ask(context.Background(), "Q", "m", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, backend.callCount)
	assert.Equal(t, 3, conv.Calls())
}

func TestConversation_RetriesExhausted(t *testing.T) {
	backend := &failNTimesBackend{failures: 10}
	conv := NewConversation(backend, "doc", types.OracleConfig{MaxRetries: 2}, nil)

	_, err := conv.Ask(context.Background(), "Q", "m", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOracle))

	var oe *Error
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, "m", oe.Model)
	assert.Equal(t, 3, oe.Attempts)
	assert.Equal(t, 3, backend.callCount)
}

func TestConversation_ContextCancelled(t *testing.T) {
	old := backoffBase
	backoffBase = time.Second
	defer func() { backoffBase = old }()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	conv := NewConversation(&failNTimesBackend{failures: 10}, "doc", types.OracleConfig{MaxRetries: 3}, nil)
	_, err := conv.Ask(ctx, "Q", "m", nil)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestConversation_RateLimited(t *testing.T) {
	backend := &mockBackend{answer: "A"}
	conv := NewConversation(backend, "doc", types.OracleConfig{RequestsPerSecond: 1000}, nil)
	for i := 0; i < 3; i++ {
		_, err := conv.Ask(context.Background(), "Q", "m", nil)
		require.NoError(t, err)
	}
	assert.Len(t, backend.requests, 3)
}

func TestNewBackend(t *testing.T) {
	_, err := NewBackend(types.OracleConfig{Backend: "gemini", APIKey: "k"})
	assert.Error(t, err)

	_, err = NewBackend(types.OracleConfig{Backend: types.BackendOpenRouter})
	assert.Error(t, err, "missing API key")

	b, err := NewBackend(types.OracleConfig{Backend: types.BackendClaude, APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &ClaudeBackend{}, b)

	b, err = NewBackend(types.OracleConfig{APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &OpenRouterBackend{}, b)
}

// --- HTTP backends ---

func TestOpenRouterBackend_Complete(t *testing.T) {
	var body map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &body))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "c1", "object": "chat.completion", "created": 1, "model": "m1",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "{\"respuesta\":[\"V1\"]}"}}]
		}`)
	}))
	defer ts.Close()

	b, err := NewOpenRouterBackend(types.OracleConfig{APIKey: "test-key", BaseURL: ts.URL})
	require.NoError(t, err)

	got, err := b.Complete(context.Background(), Request{
		Model:    "m1",
		System:   "sys",
		Messages: []Message{{Role: RoleUser, Content: "Who?"}},
		Schema:   json.RawMessage(`{"type":"object"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"respuesta":["V1"]}`, got)

	assert.Equal(t, "m1", body["model"])
	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 2)
	rf, ok := body["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_schema", rf["type"])
}

func TestClaudeBackend_Complete(t *testing.T) {
	var body map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"), r.URL.Path)
		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &body))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-test",
			"content": [{"type": "text", "text": "{\"respuesta\":[\"bicycle\"]}"}],
			"stop_reason": "end_turn", "usage": {"input_tokens": 1, "output_tokens": 1}
		}`)
	}))
	defer ts.Close()

	b, err := NewClaudeBackend(types.OracleConfig{APIKey: "k", BaseURL: ts.URL})
	require.NoError(t, err)

	got, err := b.Complete(context.Background(), Request{
		Model:  "claude-test",
		System: "sys",
		Messages: []Message{
			{Role: RoleUser, Content: "Q1"},
			{Role: RoleAssistant, Content: "A1"},
			{Role: RoleUser, Content: "Q2"},
		},
		Schema: json.RawMessage(`{"type":"object"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"respuesta":["bicycle"]}`, got)

	assert.Equal(t, "claude-test", body["model"])
	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 3)
	system, _ := json.Marshal(body["system"])
	assert.Contains(t, string(system), "JSON schema")
}
