package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/mediastudio/internal/infra/backend"
)

type capturedRequest struct {
	method   string
	path     string
	query    map[string][]string
	fileName string
	file     string
	fields   map[string][]string
}

func newBackendService(t *testing.T, status int, response string) (*Service, *capturedRequest) {
	t.Helper()

	captured := &capturedRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.method = r.Method
		captured.path = r.URL.Path
		captured.query = r.URL.Query()

		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			if err := r.ParseMultipartForm(1 << 20); err == nil {
				captured.fields = r.MultipartForm.Value
				if file, header, err := r.FormFile("file"); err == nil {
					data, _ := io.ReadAll(file)
					file.Close()
					captured.file = string(data)
					captured.fileName = header.Filename
				}
			}
		}

		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gateway := backend.NewGateway(server.URL, backend.WithGatewayLogger(logger))
	return NewService(gateway, WithTaskLogger(logger)), captured
}

func TestSubmitTranscription_ParamsInQueryFileInBody(t *testing.T) {
	svc, captured := newBackendService(t, http.StatusCreated, `{"identifier":"abc-123","status":"queued","message":"Transcription task has queued"}`)

	upload := Upload{Name: "meeting.mp3", Content: strings.NewReader("audio-bytes")}
	params := TranscriptionParams{
		Whisper:     backend.Params{"model_size": "large-v3", "lang": "en", "initial_prompt": ""},
		VAD:         backend.Params{"vad_filter": true, "lang": "ja"},
		BGM:         backend.Params{"is_separate_bgm": false},
		Diarization: backend.Params{"is_diarize": nil},
	}

	submission, err := svc.SubmitTranscription(context.Background(), upload, params)
	require.NoError(t, err)

	assert.Equal(t, "abc-123", submission.Identifier)
	assert.Equal(t, "queued", submission.Status)

	assert.Equal(t, http.MethodPost, captured.method)
	assert.Equal(t, "/transcription/", captured.path)
	assert.Equal(t, []string{"large-v3"}, captured.query["model_size"])
	assert.Equal(t, []string{"ja"}, captured.query["lang"]) // 後のグループが優先
	assert.Equal(t, []string{"true"}, captured.query["vad_filter"])
	assert.Equal(t, []string{"false"}, captured.query["is_separate_bgm"])
	assert.NotContains(t, captured.query, "initial_prompt")
	assert.NotContains(t, captured.query, "is_diarize")

	// 本文にはファイルのみが含まれる
	assert.Equal(t, "meeting.mp3", captured.fileName)
	assert.Equal(t, "audio-bytes", captured.file)
	assert.Empty(t, captured.fields)
}

func TestSubmitVADAndBGM_Endpoints(t *testing.T) {
	svc, captured := newBackendService(t, http.StatusCreated, `{"identifier":"v1","status":"queued"}`)

	_, err := svc.SubmitVAD(context.Background(), Upload{Name: "a.wav", Content: strings.NewReader("x")}, backend.Params{"threshold": 0.5})
	require.NoError(t, err)
	assert.Equal(t, "/vad/", captured.path)
	assert.Equal(t, []string{"0.5"}, captured.query["threshold"])

	_, err = svc.SubmitBGMSeparation(context.Background(), Upload{Name: "a.wav", Content: strings.NewReader("x")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "/bgm-separation/", captured.path)
	assert.Empty(t, captured.query)
}

func TestSubmit_RequiresFileBeforeNetworkCall(t *testing.T) {
	api := &stubAPI{}
	svc := newTestService(api)

	cases := []Upload{
		{},
		{Name: "a.wav"},
		{Content: strings.NewReader("x")},
	}

	for _, upload := range cases {
		_, err := svc.SubmitTranscription(context.Background(), upload, TranscriptionParams{})
		assert.ErrorIs(t, err, backend.ErrValidation)

		_, err = svc.SubmitVAD(context.Background(), upload, nil)
		assert.ErrorIs(t, err, backend.ErrValidation)

		_, err = svc.SubmitBGMSeparation(context.Background(), upload, nil)
		assert.ErrorIs(t, err, backend.ErrValidation)
	}

	assert.Equal(t, 0, api.multipartCalls)
	assert.Equal(t, 0, api.requestCalls)
}

func TestSubmit_PropagatesRequestError(t *testing.T) {
	svc, _ := newBackendService(t, http.StatusUnsupportedMediaType, `{"detail":"unsupported file type"}`)

	_, err := svc.SubmitVAD(context.Background(), Upload{Name: "a.txt", Content: strings.NewReader("x")}, nil)

	var reqErr *backend.RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, http.StatusUnsupportedMediaType, reqErr.StatusCode)
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestGet_DecodesTask(t *testing.T) {
	svc, captured := newBackendService(t, http.StatusOK, `{"identifier":"abc","status":"in_progress","task_type":"transcription","progress":0.42,"duration":null}`)

	task, err := svc.Get(context.Background(), "abc")
	require.NoError(t, err)

	assert.Equal(t, "/task/abc", captured.path)
	assert.Equal(t, StatusInProgress, task.Status)
	assert.Equal(t, "transcription", task.TaskType)
	assert.Equal(t, 0.42, task.Progress.MustGet())
	assert.True(t, task.Duration.IsAbsent())
	assert.True(t, task.Error.IsAbsent())
}

func TestList_UsesQueryAndCount(t *testing.T) {
	svc, captured := newBackendService(t, http.StatusOK, `{"tasks":[{"identifier":"a","status":"completed"},{"identifier":"b","status":"queued"}],"count":12}`)

	list, err := svc.List(context.Background(), backend.Params{"status": "completed", "limit": 2, "task_type": ""})
	require.NoError(t, err)

	assert.Equal(t, "/tasks", captured.path)
	assert.Equal(t, []string{"completed"}, captured.query["status"])
	assert.Equal(t, []string{"2"}, captured.query["limit"])
	assert.NotContains(t, captured.query, "task_type")
	assert.Equal(t, 12, list.Count)
	require.Len(t, list.Tasks, 2)
	assert.Equal(t, StatusQueued, list.Tasks[1].Status)
}

func TestDelete(t *testing.T) {
	svc, captured := newBackendService(t, http.StatusOK, `{"message":"Task deleted"}`)

	ack, err := svc.Delete(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, captured.method)
	assert.Equal(t, "/task/abc", captured.path)
	assert.Equal(t, "Task deleted", ack.Message)

	_, err = svc.Delete(context.Background(), "")
	assert.ErrorIs(t, err, backend.ErrValidation)
}

func TestDownload(t *testing.T) {
	svc, captured := newBackendService(t, http.StatusOK, "PK\x03\x04zip")

	data, err := svc.Download(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "/task/file/abc", captured.path)
	assert.Equal(t, []byte("PK\x03\x04zip"), data)
}

func TestDownload_Failure(t *testing.T) {
	svc, _ := newBackendService(t, http.StatusNotFound, `{"detail":"file not found"}`)

	_, err := svc.Download(context.Background(), "abc")

	var dlErr *backend.DownloadError
	require.True(t, errors.As(err, &dlErr))
	assert.Equal(t, http.StatusNotFound, dlErr.StatusCode)
	assert.Contains(t, dlErr.Body, "file not found")
}

func TestParseStatus(t *testing.T) {
	assert.Equal(t, StatusQueued, ParseStatus("QUEUED"))
	assert.Equal(t, StatusInProgress, ParseStatus("IN_PROGRESS"))
	assert.Equal(t, StatusCompleted, ParseStatus(" completed "))
	assert.Equal(t, StatusFailed, ParseStatus("Failed"))
	assert.Equal(t, Status("paused"), ParseStatus("paused"))
	assert.False(t, ParseStatus("paused").IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
}
