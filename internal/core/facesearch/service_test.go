package facesearch

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/mediastudio/internal/infra/backend"
)

type faceRequest struct {
	method string
	path   string
	fields map[string]string
	body   map[string]any
}

func newFaceService(t *testing.T, response string) (*Service, *[]faceRequest) {
	t.Helper()

	requests := &[]faceRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := faceRequest{method: r.Method, path: r.URL.Path, fields: map[string]string{}}
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			if err := r.ParseMultipartForm(1 << 20); err == nil {
				for key, values := range r.MultipartForm.Value {
					req.fields[key] = values[0]
				}
			}
		} else if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			_ = json.Unmarshal(data, &req.body)
		}
		*requests = append(*requests, req)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gateway := backend.NewGateway(server.URL, backend.WithGatewayLogger(logger))
	return NewService(gateway, WithFaceSearchLogger(logger)), requests
}

func TestIndex(t *testing.T) {
	svc, requests := newFaceService(t, `{"success":true,"processed_images":1,"total_faces":2,"errors":[],"message":"indexed"}`)

	resp, err := svc.Index(context.Background(), backend.Upload{Name: "a.jpg", Content: strings.NewReader("img")})
	require.NoError(t, err)

	assert.Equal(t, 2, resp.TotalFaces)
	require.Len(t, *requests, 1)
	assert.Equal(t, "/face-search/index", (*requests)[0].path)
	assert.Empty(t, (*requests)[0].fields)
}

func TestQuery_SendsOptionalFields(t *testing.T) {
	svc, requests := newFaceService(t, `{"success":true,"matches":[{"image_path":"/data/b.jpg","distance":0.21}]}`)

	resp, err := svc.Query(context.Background(), backend.Upload{Name: "q.jpg", Content: strings.NewReader("img")}, QueryOptions{
		TopK:           mo.Some(3),
		ScoreThreshold: mo.Some(0.75),
	})
	require.NoError(t, err)
	require.Len(t, resp.Matches, 1)
	assert.Equal(t, "/data/b.jpg", resp.Matches[0].ImagePath)
	assert.Nil(t, resp.Matches[0].OriginalPath)

	assert.Equal(t, map[string]string{"top_k": "3", "score_threshold": "0.75"}, (*requests)[0].fields)
}

func TestQuery_OmitsAbsentFields(t *testing.T) {
	svc, requests := newFaceService(t, `{"success":true,"matches":[]}`)

	_, err := svc.Query(context.Background(), backend.Upload{Name: "q.jpg", Content: strings.NewReader("img")}, QueryOptions{})
	require.NoError(t, err)
	assert.Empty(t, (*requests)[0].fields)
}

func TestValidation(t *testing.T) {
	svc, requests := newFaceService(t, `{}`)
	ctx := context.Background()

	_, err := svc.Index(ctx, backend.Upload{})
	assert.ErrorIs(t, err, backend.ErrValidation)

	_, err = svc.Query(ctx, backend.Upload{Name: "q.jpg"}, QueryOptions{})
	assert.ErrorIs(t, err, backend.ErrValidation)

	_, err = svc.DeleteImages(ctx, nil)
	assert.ErrorIs(t, err, backend.ErrValidation)

	assert.Empty(t, *requests)
}

func TestManagementEndpoints(t *testing.T) {
	svc, requests := newFaceService(t, `{"success":true,"message":"done","deleted_faces":4,"total_faces":10,"total_images":8,"total_indexed_files":8}`)
	ctx := context.Background()

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, stats.TotalFaces)

	resp, err := svc.Reset(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 4, *resp.DeletedFaces)

	_, err = svc.DeleteImages(ctx, []string{"/data/a.jpg", "/data/b.jpg"})
	require.NoError(t, err)

	_, err = svc.CleanupOrphans(ctx)
	require.NoError(t, err)

	require.Len(t, *requests, 4)
	assert.Equal(t, http.MethodGet, (*requests)[0].method)
	assert.Equal(t, "/face-search/reset", (*requests)[1].path)
	assert.Equal(t, map[string]any{"confirm": true}, (*requests)[1].body)
	assert.Equal(t, map[string]any{"image_paths": []any{"/data/a.jpg", "/data/b.jpg"}}, (*requests)[2].body)
	assert.Equal(t, http.MethodPost, (*requests)[3].method)
	assert.Equal(t, "/face-search/cleanup-orphans", (*requests)[3].path)
}
