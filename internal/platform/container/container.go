package container

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/jinford/mediastudio/internal/core/auth"
	"github.com/jinford/mediastudio/internal/core/facesearch"
	"github.com/jinford/mediastudio/internal/core/interview"
	"github.com/jinford/mediastudio/internal/core/task"
	"github.com/jinford/mediastudio/internal/infra/backend"
	"github.com/jinford/mediastudio/pkg/config"
)

// ServiceContainer はクライアントの依存関係を保持する
type ServiceContainer struct {
	Gateway          *backend.Gateway
	Session          *auth.Session
	AuthService      *auth.Service
	TaskService      *task.Service
	FaceSearch       *facesearch.Service
	InterviewService *interview.Service
	Config           *config.Config

	httpClient *http.Client
	logger     *slog.Logger
}

type containerOptions struct {
	logger     *slog.Logger
	httpClient *http.Client
	baseURL    string
}

// ContainerOption は ServiceContainer 構築時のオプション
type ContainerOption func(*containerOptions)

// WithContainerLogger はロガーを差し替える
func WithContainerLogger(logger *slog.Logger) ContainerOption {
	return func(opts *containerOptions) {
		opts.logger = logger
	}
}

// WithContainerHTTPClient は HTTP クライアントを差し替える
func WithContainerHTTPClient(client *http.Client) ContainerOption {
	return func(opts *containerOptions) {
		opts.httpClient = client
	}
}

// WithContainerBaseURL は設定のベースURLを上書きする（空文字は無視）
func WithContainerBaseURL(baseURL string) ContainerOption {
	return func(opts *containerOptions) {
		opts.baseURL = baseURL
	}
}

// NewContainer は設定からコンテナを生成する。
func NewContainer(ctx context.Context, cfg *config.Config, opts ...ContainerOption) (*ServiceContainer, error) {
	options := containerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	httpClient := options.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.API.Timeout}
	}

	// Gateway
	gateway := backend.NewGateway(
		cfg.API.BaseURL,
		backend.WithHTTPClient(httpClient),
		backend.WithToken(cfg.API.Token),
		backend.WithGatewayLogger(options.logger),
	)
	gateway.SetBaseURL(options.baseURL)

	// Session と AuthService は相互に参照する
	var authService *auth.Service
	session := auth.NewSession(auth.CurrentUserFunc(func(ctx context.Context) (*auth.CurrentUserResponse, error) {
		return authService.CurrentUser(ctx)
	}), options.logger)
	authService = auth.NewService(gateway, auth.WithSession(session), auth.WithAuthLogger(options.logger))

	// TaskService
	taskService := task.NewService(
		gateway,
		task.WithTaskLogger(options.logger),
		task.WithPollDefaults(cfg.Poll.Interval, cfg.Poll.MaxAttempts),
	)

	faceService := facesearch.NewService(gateway, facesearch.WithFaceSearchLogger(options.logger))
	interviewService := interview.NewService(gateway, interview.WithInterviewLogger(options.logger))

	options.logger.Debug("service container initialized", "baseURL", gateway.BaseURL())

	return &ServiceContainer{
		Gateway:          gateway,
		Session:          session,
		AuthService:      authService,
		TaskService:      taskService,
		FaceSearch:       faceService,
		InterviewService: interviewService,
		Config:           cfg,
		httpClient:       httpClient,
		logger:           options.logger,
	}, nil
}

// Logger はコンテナのロガーを返す
func (c *ServiceContainer) Logger() *slog.Logger {
	return c.logger
}

// Close は保持しているアイドル接続を解放する
func (c *ServiceContainer) Close() {
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
	}
}
