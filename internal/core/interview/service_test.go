package interview

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/mediastudio/internal/infra/backend"
)

type interviewRequest struct {
	method  string
	rawPath string
	body    map[string]any
}

func newInterviewService(t *testing.T, response string) (*Service, *[]interviewRequest) {
	t.Helper()

	requests := &[]interviewRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := interviewRequest{method: r.Method, rawPath: r.URL.EscapedPath()}
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			_ = json.Unmarshal(data, &req.body)
		}
		*requests = append(*requests, req)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gateway := backend.NewGateway(server.URL, backend.WithGatewayLogger(logger))
	return NewService(gateway, WithInterviewLogger(logger)), requests
}

func TestCreateOrUpdateSession_OmitsEmptyFields(t *testing.T) {
	svc, requests := newInterviewService(t, `{"success":true,"session_id":"s1","chunks_count":7,"message":"ok"}`)

	resp, err := svc.CreateOrUpdateSession(context.Background(), SessionPayload{
		Files: []File{{Text: "Q: hello\nA: hi"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "s1", *resp.SessionID)
	assert.Equal(t, 7, resp.ChunksCount)

	body := (*requests)[0].body
	assert.NotContains(t, body, "session_id")
	assert.NotContains(t, body, "combined_text")
	assert.Equal(t, []any{map[string]any{"text": "Q: hello\nA: hi"}}, body["files"])
}

func TestChat(t *testing.T) {
	svc, requests := newInterviewService(t, `{"success":true,"answer":"42","used_context":true,"session_id":"s1","context_snippets":["a","b"]}`)

	resp, err := svc.Chat(context.Background(), ChatRequest{
		SessionID: "s1",
		Message:   "what is the answer?",
		History:   [][]string{{"hi", "hello"}},
		TopK:      4,
	})
	require.NoError(t, err)
	assert.Equal(t, "42", resp.Answer)
	assert.True(t, resp.UsedContext)
	assert.Len(t, resp.ContextSnippets, 2)

	req := (*requests)[0]
	assert.Equal(t, "/interview/chat", req.rawPath)
	assert.Equal(t, "what is the answer?", req.body["message"])
	assert.Equal(t, float64(4), req.body["top_k"])
	assert.NotContains(t, req.body, "model")
	assert.NotContains(t, req.body, "similarity_threshold")
	assert.NotContains(t, req.body, "ollama_base_url")
	assert.NotContains(t, req.body, "payload")
}

func TestChat_RequiresMessage(t *testing.T) {
	svc, requests := newInterviewService(t, `{}`)

	_, err := svc.Chat(context.Background(), ChatRequest{SessionID: "s1"})
	assert.ErrorIs(t, err, backend.ErrValidation)
	assert.Empty(t, *requests)
}

func TestSessionInfoAndClear_EscapeID(t *testing.T) {
	svc, requests := newInterviewService(t, `{"exists":true,"session_id":"a/b","chunks_count":3,"created_at":1700000000.5,"success":true,"message":"cleared"}`)
	ctx := context.Background()

	info, err := svc.SessionInfo(ctx, "a/b")
	require.NoError(t, err)
	assert.True(t, info.Exists)
	assert.Equal(t, 1700000000.5, *info.CreatedAt)

	cleared, err := svc.ClearSession(ctx, "a/b")
	require.NoError(t, err)
	assert.True(t, cleared.Success)

	require.Len(t, *requests, 2)
	assert.Equal(t, "/interview/session/a%2Fb", (*requests)[0].rawPath)
	assert.Equal(t, http.MethodGet, (*requests)[0].method)
	assert.Equal(t, http.MethodDelete, (*requests)[1].method)
}

func TestSessionInfoAndClear_RequireID(t *testing.T) {
	svc, requests := newInterviewService(t, `{}`)

	_, err := svc.SessionInfo(context.Background(), "")
	assert.ErrorIs(t, err, backend.ErrValidation)

	_, err = svc.ClearSession(context.Background(), "")
	assert.ErrorIs(t, err, backend.ErrValidation)

	assert.Empty(t, *requests)
}

func TestNewSessionID(t *testing.T) {
	id := NewSessionID()
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
	assert.NotEqual(t, id, NewSessionID())
}
