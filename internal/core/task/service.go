package task

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/jinford/mediastudio/internal/infra/backend"
)

const (
	// DefaultPollInterval はポーリング間隔のデフォルト
	DefaultPollInterval = 2 * time.Second

	// DefaultPollMaxAttempts はポーリング試行回数のデフォルト
	DefaultPollMaxAttempts = 60
)

// API はタスク関連の操作に必要なバックエンド通信インターフェース
type API interface {
	RequestJSON(ctx context.Context, path string, opts backend.RequestOptions, out any) error
	PostMultipart(ctx context.Context, path string, form backend.MultipartForm, out any) error
	Download(ctx context.Context, path string) ([]byte, error)
}

// Service はタスクの投入・状態確認・成果物取得を提供する
type Service struct {
	api          API
	logger       *slog.Logger
	pollDefaults PollOptions
}

type ServiceOption func(*Service)

// WithTaskLogger は Service にロガーを設定する
func WithTaskLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithPollDefaults は Poll に渡すオプションの既定値を設定する
func WithPollDefaults(interval time.Duration, maxAttempts int) ServiceOption {
	return func(s *Service) {
		s.pollDefaults = PollOptions{Interval: interval, MaxAttempts: maxAttempts}
	}
}

// NewService は新しい Service を作成する
func NewService(api API, opts ...ServiceOption) *Service {
	svc := &Service{
		api:          api,
		logger:       slog.Default(),
		pollDefaults: DefaultPollOptions(),
	}

	for _, opt := range opts {
		opt(svc)
	}

	if svc.logger == nil {
		svc.logger = slog.Default()
	}

	return svc
}

// SubmitTranscription は文字起こしタスクを作成する
func (s *Service) SubmitTranscription(ctx context.Context, upload Upload, params TranscriptionParams) (*Submission, error) {
	merged := backend.MergeParams(params.Whisper, params.VAD, params.BGM, params.Diarization)
	return s.submit(ctx, "/transcription/", upload, merged)
}

// SubmitVAD は音声区間検出タスクを作成する
func (s *Service) SubmitVAD(ctx context.Context, upload Upload, vadParams backend.Params) (*Submission, error) {
	return s.submit(ctx, "/vad/", upload, backend.MergeParams(vadParams))
}

// SubmitBGMSeparation はBGM分離タスクを作成する
func (s *Service) SubmitBGMSeparation(ctx context.Context, upload Upload, bgmParams backend.Params) (*Submission, error) {
	return s.submit(ctx, "/bgm-separation/", upload, backend.MergeParams(bgmParams))
}

// submit はパラメータをクエリ文字列に、ファイルのみを multipart 本文に載せて送信する
func (s *Service) submit(ctx context.Context, endpoint string, upload Upload, params backend.Params) (*Submission, error) {
	if upload.Content == nil || upload.Name == "" {
		return nil, fmt.Errorf("%w: file is required", backend.ErrValidation)
	}

	path := endpoint + backend.EncodeQuery(params)

	s.logger.Info("submitting task",
		"endpoint", endpoint,
		"file", upload.Name,
		"params", len(params),
	)

	var submission Submission
	if err := s.api.PostMultipart(ctx, path, backend.MultipartForm{File: upload}, &submission); err != nil {
		return nil, fmt.Errorf("failed to submit task to %s: %w", endpoint, err)
	}

	s.logger.Info("task submitted",
		"identifier", submission.Identifier,
		"status", submission.Status,
	)

	return &submission, nil
}

// Get はタスクの状態を1回取得する
func (s *Service) Get(ctx context.Context, id string) (Task, error) {
	if id == "" {
		return Task{}, fmt.Errorf("%w: task identifier is required", backend.ErrValidation)
	}

	var dto taskDTO
	if err := s.api.RequestJSON(ctx, taskPath(id), backend.RequestOptions{Method: http.MethodGet}, &dto); err != nil {
		return Task{}, err
	}

	t := dto.toTask()
	if t.Identifier == "" {
		t.Identifier = id
	}
	return t, nil
}

// List はタスク一覧を取得する
func (s *Service) List(ctx context.Context, params backend.Params) (*TaskList, error) {
	var dto taskListDTO
	if err := s.api.RequestJSON(ctx, "/tasks"+backend.EncodeQuery(params), backend.RequestOptions{Method: http.MethodGet}, &dto); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	list := &TaskList{
		Tasks: make([]Task, 0, len(dto.Tasks)),
		Count: len(dto.Tasks),
	}
	for _, item := range dto.Tasks {
		list.Tasks = append(list.Tasks, item.toTask())
	}
	if dto.Count != nil {
		list.Count = *dto.Count
	}

	return list, nil
}

// Delete はタスクを削除する
func (s *Service) Delete(ctx context.Context, id string) (*Ack, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: task identifier is required", backend.ErrValidation)
	}

	var ack Ack
	if err := s.api.RequestJSON(ctx, taskPath(id), backend.RequestOptions{Method: http.MethodDelete}, &ack); err != nil {
		return nil, fmt.Errorf("failed to delete task %s: %w", id, err)
	}

	s.logger.Info("task deleted", "identifier", id)
	return &ack, nil
}

// Download は完了したタスクの成果物（BGM分離のZIPなど）を取得する
func (s *Service) Download(ctx context.Context, id string) ([]byte, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: task identifier is required", backend.ErrValidation)
	}

	data, err := s.api.Download(ctx, "/task/file/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}

	s.logger.Info("task result downloaded", "identifier", id, "bytes", len(data))
	return data, nil
}

func taskPath(id string) string {
	return "/task/" + url.PathEscape(id)
}
