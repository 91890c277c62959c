// Package facesearch は顔検索（顔画像の登録・類似検索・インデックス管理）APIのラッパーです。
package facesearch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/samber/mo"

	"github.com/jinford/mediastudio/internal/infra/backend"
)

// API は顔検索の操作に必要なバックエンド通信インターフェース
type API interface {
	RequestJSON(ctx context.Context, path string, opts backend.RequestOptions, out any) error
	PostJSON(ctx context.Context, path string, payload any, out any) error
	PostMultipart(ctx context.Context, path string, form backend.MultipartForm, out any) error
}

// IndexResponse は顔画像登録のレスポンス
type IndexResponse struct {
	Success         bool     `json:"success"`
	ProcessedImages int      `json:"processed_images"`
	TotalFaces      int      `json:"total_faces"`
	Errors          []string `json:"errors"`
	Message         string   `json:"message"`
}

// Match は類似検索でヒットした画像
type Match struct {
	ImagePath    string  `json:"image_path"`
	Distance     float64 `json:"distance"`
	OriginalPath *string `json:"original_path"`
}

// SearchResponse は類似検索のレスポンス
type SearchResponse struct {
	Success bool    `json:"success"`
	Matches []Match `json:"matches"`
}

// Stats は顔データベースの統計
type Stats struct {
	TotalFaces        int `json:"total_faces"`
	TotalImages       int `json:"total_images"`
	TotalIndexedFiles int `json:"total_indexed_files"`
}

// BasicResponse はリセット・削除・クリーンアップのレスポンス
type BasicResponse struct {
	Success        bool     `json:"success"`
	Message        string   `json:"message"`
	DeletedFaces   *int     `json:"deleted_faces,omitempty"`
	DeletedRecords *int     `json:"deleted_records,omitempty"`
	Errors         []string `json:"errors,omitempty"`
}

// QueryOptions は類似検索のオプション。未指定の項目はバックエンドの既定値が使われる
type QueryOptions struct {
	TopK           mo.Option[int]
	ScoreThreshold mo.Option[float64]
}

// Service は顔検索APIのラッパー
type Service struct {
	api    API
	logger *slog.Logger
}

type ServiceOption func(*Service)

// WithFaceSearchLogger は Service にロガーを設定する
func WithFaceSearchLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService は新しい Service を作成する
func NewService(api API, opts ...ServiceOption) *Service {
	svc := &Service{
		api:    api,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}

// Index は顔画像1枚をデータベースに登録する
func (s *Service) Index(ctx context.Context, upload backend.Upload) (*IndexResponse, error) {
	if err := requireUpload(upload); err != nil {
		return nil, err
	}

	var resp IndexResponse
	if err := s.api.PostMultipart(ctx, "/face-search/index", backend.MultipartForm{File: upload}, &resp); err != nil {
		return nil, fmt.Errorf("failed to index face image %s: %w", upload.Name, err)
	}

	s.logger.Info("face image indexed",
		"file", upload.Name,
		"faces", resp.TotalFaces,
		"errors", len(resp.Errors),
	)
	return &resp, nil
}

// Query は画像に似た顔を検索する
func (s *Service) Query(ctx context.Context, upload backend.Upload, opts QueryOptions) (*SearchResponse, error) {
	if err := requireUpload(upload); err != nil {
		return nil, err
	}

	fields := map[string]string{}
	if topK, ok := opts.TopK.Get(); ok {
		fields["top_k"] = strconv.Itoa(topK)
	}
	if threshold, ok := opts.ScoreThreshold.Get(); ok {
		fields["score_threshold"] = strconv.FormatFloat(threshold, 'g', -1, 64)
	}

	var resp SearchResponse
	form := backend.MultipartForm{File: upload, Fields: fields}
	if err := s.api.PostMultipart(ctx, "/face-search/query", form, &resp); err != nil {
		return nil, fmt.Errorf("failed to query faces: %w", err)
	}
	return &resp, nil
}

// Stats は顔データベースの統計を取得する
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	if err := s.api.RequestJSON(ctx, "/face-search/stats", backend.RequestOptions{Method: http.MethodGet}, &stats); err != nil {
		return nil, fmt.Errorf("failed to fetch face search stats: %w", err)
	}
	return &stats, nil
}

// Reset は顔データベースを空にする。confirm が false の場合バックエンドは拒否する
func (s *Service) Reset(ctx context.Context, confirm bool) (*BasicResponse, error) {
	var resp BasicResponse
	payload := struct {
		Confirm bool `json:"confirm"`
	}{Confirm: confirm}
	if err := s.api.PostJSON(ctx, "/face-search/reset", payload, &resp); err != nil {
		return nil, fmt.Errorf("failed to reset face database: %w", err)
	}

	s.logger.Warn("face database reset requested", "confirm", confirm, "success", resp.Success)
	return &resp, nil
}

// DeleteImages は指定した画像に対応する顔レコードを削除する
func (s *Service) DeleteImages(ctx context.Context, imagePaths []string) (*BasicResponse, error) {
	if len(imagePaths) == 0 {
		return nil, fmt.Errorf("%w: image paths are required", backend.ErrValidation)
	}

	var resp BasicResponse
	payload := struct {
		ImagePaths []string `json:"image_paths"`
	}{ImagePaths: imagePaths}
	if err := s.api.PostJSON(ctx, "/face-search/delete-images", payload, &resp); err != nil {
		return nil, fmt.Errorf("failed to delete face images: %w", err)
	}
	return &resp, nil
}

// CleanupOrphans は元画像が存在しないインデックスレコードを削除する
func (s *Service) CleanupOrphans(ctx context.Context) (*BasicResponse, error) {
	var resp BasicResponse
	if err := s.api.RequestJSON(ctx, "/face-search/cleanup-orphans", backend.RequestOptions{Method: http.MethodPost}, &resp); err != nil {
		return nil, fmt.Errorf("failed to cleanup orphan records: %w", err)
	}
	return &resp, nil
}

func requireUpload(upload backend.Upload) error {
	if upload.Content == nil || upload.Name == "" {
		return fmt.Errorf("%w: image file is required", backend.ErrValidation)
	}
	return nil
}
