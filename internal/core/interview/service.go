package interview

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/jinford/mediastudio/internal/infra/backend"
)

// API はインタビューRAGの操作に必要なバックエンド通信インターフェース
type API interface {
	RequestJSON(ctx context.Context, path string, opts backend.RequestOptions, out any) error
	PostJSON(ctx context.Context, path string, payload any, out any) error
}

// File はセッションに取り込むインタビュー原稿
type File struct {
	ID   string `json:"id,omitempty"`
	Text string `json:"text"`
}

// SessionPayload はセッションの作成・更新に使う内容
// 空の項目は送信しない
type SessionPayload struct {
	SessionID    string `json:"session_id,omitempty"`
	CombinedText string `json:"combined_text,omitempty"`
	Files        []File `json:"files,omitempty"`
}

// SessionResponse はセッション作成・更新のレスポンス
type SessionResponse struct {
	Success     bool    `json:"success"`
	SessionID   *string `json:"session_id"`
	ChunksCount int     `json:"chunks_count"`
	Message     string  `json:"message"`
}

// ChatRequest は質問応答のリクエスト
// ゼロ値の項目は送信せず、バックエンドの既定値に任せる
type ChatRequest struct {
	SessionID           string          `json:"session_id,omitempty"`
	Payload             *SessionPayload `json:"payload,omitempty"`
	Message             string          `json:"message"`
	History             [][]string      `json:"history,omitempty"`
	Model               string          `json:"model,omitempty"`
	TopK                int             `json:"top_k,omitempty"`
	SimilarityThreshold float64         `json:"similarity_threshold,omitempty"`
	OllamaBaseURL       string          `json:"ollama_base_url,omitempty"`
}

// ChatResponse は質問応答のレスポンス
type ChatResponse struct {
	Success         bool     `json:"success"`
	Answer          string   `json:"answer"`
	UsedContext     bool     `json:"used_context"`
	SessionID       *string  `json:"session_id"`
	ContextSnippets []string `json:"context_snippets"`
}

// SessionInfo はセッション情報
type SessionInfo struct {
	Exists      bool     `json:"exists"`
	SessionID   *string  `json:"session_id"`
	ChunksCount int      `json:"chunks_count"`
	CreatedAt   *float64 `json:"created_at"` // UNIX秒
}

// BasicResponse はセッション削除のレスポンス
type BasicResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Service はインタビューRAG APIのラッパー
type Service struct {
	api    API
	logger *slog.Logger
}

type ServiceOption func(*Service)

// WithInterviewLogger は Service にロガーを設定する
func WithInterviewLogger(logger *slog.Logger) ServiceOption {
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

// NewSessionID はクライアント側でセッションIDを決めたい場合のIDを生成する
func NewSessionID() string {
	return uuid.NewString()
}

// CreateOrUpdateSession はインタビュー原稿からセッションを作成または更新する
func (s *Service) CreateOrUpdateSession(ctx context.Context, payload SessionPayload) (*SessionResponse, error) {
	var resp SessionResponse
	if err := s.api.PostJSON(ctx, "/interview/session", payload, &resp); err != nil {
		return nil, fmt.Errorf("failed to create or update interview session: %w", err)
	}

	s.logger.Info("interview session updated",
		"sessionID", derefString(resp.SessionID),
		"chunks", resp.ChunksCount,
		"files", len(payload.Files),
	)
	return &resp, nil
}

// Chat はセッションの原稿を根拠に質問へ回答させる
func (s *Service) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if req.Message == "" {
		return nil, fmt.Errorf("%w: message is required", backend.ErrValidation)
	}

	var resp ChatResponse
	if err := s.api.PostJSON(ctx, "/interview/chat", req, &resp); err != nil {
		return nil, fmt.Errorf("interview chat failed: %w", err)
	}

	s.logger.Info("interview chat answered",
		"sessionID", derefString(resp.SessionID),
		"usedContext", resp.UsedContext,
		"snippets", len(resp.ContextSnippets),
	)
	return &resp, nil
}

// SessionInfo はセッション情報を取得する
func (s *Service) SessionInfo(ctx context.Context, sessionID string) (*SessionInfo, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", backend.ErrValidation)
	}

	var info SessionInfo
	if err := s.api.RequestJSON(ctx, sessionPath(sessionID), backend.RequestOptions{Method: http.MethodGet}, &info); err != nil {
		return nil, fmt.Errorf("failed to fetch interview session %s: %w", sessionID, err)
	}
	return &info, nil
}

// ClearSession はセッションを削除する
func (s *Service) ClearSession(ctx context.Context, sessionID string) (*BasicResponse, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", backend.ErrValidation)
	}

	var resp BasicResponse
	if err := s.api.RequestJSON(ctx, sessionPath(sessionID), backend.RequestOptions{Method: http.MethodDelete}, &resp); err != nil {
		return nil, fmt.Errorf("failed to clear interview session %s: %w", sessionID, err)
	}
	return &resp, nil
}

func sessionPath(sessionID string) string {
	return "/interview/session/" + url.PathEscape(sessionID)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
