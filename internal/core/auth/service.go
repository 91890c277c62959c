package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jinford/mediastudio/internal/infra/backend"
)

var (
	// ErrRejected はバックエンドが success=false を返した場合のエラー
	ErrRejected = errors.New("rejected by server")
)

// API は認証系の操作に必要なバックエンド通信インターフェース
type API interface {
	RequestJSON(ctx context.Context, path string, opts backend.RequestOptions, out any) error
	PostJSON(ctx context.Context, path string, payload any, out any) error
}

// Service は /auth 系APIのラッパー
type Service struct {
	api     API
	session *Session
	logger  *slog.Logger
}

type ServiceOption func(*Service)

// WithAuthLogger は Service にロガーを設定する
func WithAuthLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithSession はログイン成功時にユーザー情報を書き込むセッションを設定する
func WithSession(session *Session) ServiceOption {
	return func(s *Service) {
		s.session = session
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

// Register はユーザー登録を申請する。管理者の承認までログインはできない
func (s *Service) Register(ctx context.Context, creds Credentials) (*BasicResponse, error) {
	if err := validateCredentials(creds); err != nil {
		return nil, err
	}

	var resp BasicResponse
	if err := s.api.PostJSON(ctx, "/auth/register", creds, &resp); err != nil {
		return nil, fmt.Errorf("failed to register user %s: %w", creds.Username, err)
	}
	return &resp, rejection(resp)
}

// Login はログインし、成功した場合はセッションにユーザーを書き込む
func (s *Service) Login(ctx context.Context, creds Credentials) (*LoginResponse, error) {
	if err := validateCredentials(creds); err != nil {
		return nil, err
	}

	var resp LoginResponse
	if err := s.api.PostJSON(ctx, "/auth/login", creds, &resp); err != nil {
		return nil, fmt.Errorf("failed to login as %s: %w", creds.Username, err)
	}
	if err := rejection(resp.BasicResponse); err != nil {
		return &resp, err
	}

	role := resp.Role
	if role == "" {
		role = RoleUser
	}
	if s.session != nil {
		s.session.Set(User{Username: creds.Username, Role: role})
	}

	s.logger.Info("logged in", "username", creds.Username, "role", role)
	return &resp, nil
}

// CurrentUser は現在のユーザー情報を取得する
func (s *Service) CurrentUser(ctx context.Context) (*CurrentUserResponse, error) {
	var resp CurrentUserResponse
	if err := s.api.RequestJSON(ctx, "/auth/current-user", backend.RequestOptions{Method: http.MethodGet}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PendingUsers は承認待ちユーザーの一覧を取得する
func (s *Service) PendingUsers(ctx context.Context) ([]string, error) {
	var resp pendingUsersResponse
	if err := s.api.RequestJSON(ctx, "/auth/pending", backend.RequestOptions{Method: http.MethodGet}, &resp); err != nil {
		return nil, fmt.Errorf("failed to list pending users: %w", err)
	}
	return resp.Pending, nil
}

// ApproveUser はユーザーを承認する
func (s *Service) ApproveUser(ctx context.Context, username string) (*BasicResponse, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", backend.ErrValidation)
	}

	var resp BasicResponse
	if err := s.api.PostJSON(ctx, "/auth/approve", approveRequest{Username: username}, &resp); err != nil {
		return nil, fmt.Errorf("failed to approve user %s: %w", username, err)
	}
	return &resp, rejection(resp)
}

// Users はユーザー一覧を取得する（既定の管理者アカウントは含まれない）
func (s *Service) Users(ctx context.Context) ([]UserItem, error) {
	var resp usersResponse
	if err := s.api.RequestJSON(ctx, "/auth/users", backend.RequestOptions{Method: http.MethodGet}, &resp); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return resp.Users, nil
}

// GrantAdmin は target に管理者権限を付与する
func (s *Service) GrantAdmin(ctx context.Context, target, current string) (*BasicResponse, error) {
	return s.changeAdmin(ctx, "/auth/grant-admin", target, current)
}

// RevokeAdmin は target の管理者権限を取り消す
func (s *Service) RevokeAdmin(ctx context.Context, target, current string) (*BasicResponse, error) {
	return s.changeAdmin(ctx, "/auth/revoke-admin", target, current)
}

func (s *Service) changeAdmin(ctx context.Context, path, target, current string) (*BasicResponse, error) {
	if target == "" {
		return nil, fmt.Errorf("%w: target username is required", backend.ErrValidation)
	}
	if current == "" {
		return nil, fmt.Errorf("%w: current username is required", backend.ErrValidation)
	}

	req := adminChangeRequest{TargetUsername: target, CurrentUsername: current}

	var resp BasicResponse
	if err := s.api.PostJSON(ctx, path, req, &resp); err != nil {
		return nil, fmt.Errorf("failed to change admin role of %s: %w", target, err)
	}

	s.logger.Info("admin role change requested",
		"path", path,
		"target", target,
		"success", resp.Success,
	)
	return &resp, rejection(resp)
}

func validateCredentials(creds Credentials) error {
	if creds.Username == "" {
		return fmt.Errorf("%w: username is required", backend.ErrValidation)
	}
	if creds.Password == "" {
		return fmt.Errorf("%w: password is required", backend.ErrValidation)
	}
	return nil
}

func rejection(resp BasicResponse) error {
	if resp.Success {
		return nil
	}
	if resp.Message == "" {
		return ErrRejected
	}
	return fmt.Errorf("%w: %s", ErrRejected, resp.Message)
}
