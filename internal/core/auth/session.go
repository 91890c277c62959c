package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/samber/mo"
)

var (
	// ErrMalformedUser は現在のユーザー取得APIが期待した形のユーザーを返さなかった場合のエラー
	ErrMalformedUser = errors.New("malformed current user response")
)

// CurrentUserFetcher は現在のユーザーを取得するインターフェース
type CurrentUserFetcher interface {
	CurrentUser(ctx context.Context) (*CurrentUserResponse, error)
}

// CurrentUserFunc は関数を CurrentUserFetcher として扱うアダプタ
type CurrentUserFunc func(ctx context.Context) (*CurrentUserResponse, error)

// CurrentUser は f を呼び出す
func (f CurrentUserFunc) CurrentUser(ctx context.Context) (*CurrentUserResponse, error) {
	return f(ctx)
}

// Session はクライアントが保持するログイン中ユーザーの状態
// 未認証（ユーザー無し）と認証済み（ユーザー有り）の2状態のみを持つ
type Session struct {
	mu      sync.RWMutex
	user    mo.Option[User]
	fetcher CurrentUserFetcher
	logger  *slog.Logger
}

// NewSession は未認証状態の Session を作成する
func NewSession(fetcher CurrentUserFetcher, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		user:    mo.None[User](),
		fetcher: fetcher,
		logger:  logger,
	}
}

// Refresh は現在のユーザーを取得してセッションを更新する
// 失敗した場合はセッションを未認証に戻し、エラーを返す
func (s *Session) Refresh(ctx context.Context) (User, error) {
	resp, err := s.fetcher.CurrentUser(ctx)
	if err == nil {
		err = validateCurrentUser(resp)
	}
	if err != nil {
		s.clear()
		s.logger.Error("failed to fetch current user", "error", err)
		return User{}, fmt.Errorf("failed to refresh session: %w", err)
	}

	user := *resp.User
	if user.Role == "" {
		user.Role = RoleUser
	}
	s.Set(user)
	return user, nil
}

// Set はユーザーを書き込み認証済みにする
func (s *Session) Set(user User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = mo.Some(user)
}

// Logout は通信を行わずにセッションを未認証に戻す
func (s *Session) Logout() {
	s.clear()
}

// User は認証済みの場合にユーザーを返す
func (s *Session) User() mo.Option[User] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// IsAuthenticated は認証済みかを返す
func (s *Session) IsAuthenticated() bool {
	return s.User().IsPresent()
}

// IsAdmin は認証済みかつ role が admin の場合のみ true を返す
func (s *Session) IsAdmin() bool {
	user, ok := s.User().Get()
	return ok && user.IsAdmin()
}

func (s *Session) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = mo.None[User]()
}

// validateCurrentUser は code が 0 または 200 で、ユーザー名を含むレスポンスのみを受け付ける
func validateCurrentUser(resp *CurrentUserResponse) error {
	if resp == nil {
		return ErrMalformedUser
	}
	if resp.Code != 0 && resp.Code != 200 {
		if resp.Msg != "" {
			return fmt.Errorf("%w: code %d: %s", ErrRejected, resp.Code, resp.Msg)
		}
		return fmt.Errorf("%w: code %d", ErrRejected, resp.Code)
	}
	if resp.User == nil || resp.User.Username == "" {
		return ErrMalformedUser
	}
	return nil
}
