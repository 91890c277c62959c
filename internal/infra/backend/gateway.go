package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultBaseURL はバックエンドのデフォルトアドレス
	DefaultBaseURL = "http://localhost:8000"

	// DefaultTimeout は1リクエストあたりのデフォルトタイムアウト
	DefaultTimeout = 60 * time.Second

	// maxErrorBody はエラー本文として保持する最大バイト数
	maxErrorBody = 4096

	headerRequestID = "X-Request-ID"
)

// RequestOptions は1回のリクエストに付与するメソッド・本文・ヘッダー
type RequestOptions struct {
	Method      string
	Body        io.Reader
	ContentType string
	Headers     map[string]string
}

// Upload は multipart で送信するファイル
type Upload struct {
	Name    string
	Content io.Reader
}

// MultipartForm は file パートと追加フィールドからなるフォーム
type MultipartForm struct {
	File   Upload
	Fields map[string]string
}

// Gateway はバックエンドへのHTTPリクエストを一手に引き受ける
// ベースアドレスは生成後も SetBaseURL で差し替えられる
type Gateway struct {
	mu      sync.RWMutex
	baseURL string
	token   string

	httpClient *http.Client
	logger     *slog.Logger
}

// GatewayOption は Gateway 構築時のオプション
type GatewayOption func(*Gateway)

// WithHTTPClient は利用する http.Client を差し替える
func WithHTTPClient(client *http.Client) GatewayOption {
	return func(g *Gateway) {
		g.httpClient = client
	}
}

// WithToken は Authorization ヘッダーに付与するBearerトークンを設定する
func WithToken(token string) GatewayOption {
	return func(g *Gateway) {
		g.token = token
	}
}

// WithGatewayLogger はロガーを設定する
func WithGatewayLogger(logger *slog.Logger) GatewayOption {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// NewGateway は新しい Gateway を作成する
func NewGateway(baseURL string, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     slog.Default(),
	}
	g.SetBaseURL(baseURL)

	for _, opt := range opts {
		opt(g)
	}

	if g.logger == nil {
		g.logger = slog.Default()
	}
	if g.httpClient == nil {
		g.httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	return g
}

// SetBaseURL はベースアドレスを変更する。空文字列は無視する
func (g *Gateway) SetBaseURL(base string) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.baseURL = base
}

// BaseURL は現在のベースアドレスを返す
func (g *Gateway) BaseURL() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.baseURL
}

// URL はベースアドレスと相対パスを連結した完全なURLを返す
func (g *Gateway) URL(path string) string {
	return g.BaseURL() + path
}

// RequestJSON はリクエストを1回だけ送信し、レスポンスJSONを out にデコードする
// out が nil の場合は本文を読み捨てる
func (g *Gateway) RequestJSON(ctx context.Context, path string, opts RequestOptions, out any) error {
	resp, err := g.do(ctx, path, opts)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Method: resp.Request.Method, URL: resp.Request.URL.String(), Err: err}
	}

	if !isSuccess(resp.StatusCode) {
		return &RequestError{
			StatusCode: resp.StatusCode,
			Detail:     extractDetail(body),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &DecodeError{StatusCode: resp.StatusCode, Err: err}
	}
	return nil
}

// PostJSON は payload をJSONとして POST する
func (g *Gateway) PostJSON(ctx context.Context, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	return g.RequestJSON(ctx, path, RequestOptions{
		Method:      http.MethodPost,
		Body:        body,
		ContentType: "application/json",
	}, out)
}

// PostMultipart は file パートと追加フィールドを multipart/form-data で POST する
func (g *Gateway) PostMultipart(ctx context.Context, path string, form MultipartForm, out any) error {
	if form.File.Content == nil || form.File.Name == "" {
		return fmt.Errorf("%w: file is required", ErrValidation)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", form.File.Name)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, form.File.Content); err != nil {
		return fmt.Errorf("failed to read upload %s: %w", form.File.Name, err)
	}

	for key, value := range form.Fields {
		if err := writer.WriteField(key, value); err != nil {
			return fmt.Errorf("failed to write form field %s: %w", key, err)
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	return g.RequestJSON(ctx, path, RequestOptions{
		Method:      http.MethodPost,
		Body:        &buf,
		ContentType: writer.FormDataContentType(),
	}, out)
}

// Download はバイナリ成果物を取得する
func (g *Gateway) Download(ctx context.Context, path string) ([]byte, error) {
	resp, err := g.do(ctx, path, RequestOptions{Method: http.MethodGet})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &DownloadError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(text)),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Method: http.MethodGet, URL: resp.Request.URL.String(), Err: err}
	}
	return data, nil
}

func (g *Gateway) do(ctx context.Context, path string, opts RequestOptions) (*http.Response, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	target := g.URL(path)

	req, err := http.NewRequestWithContext(ctx, method, target, opts.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request %s %s: %w", method, target, err)
	}
	g.applyHeaders(req, opts)

	requestID := req.Header.Get(headerRequestID)
	g.logger.Debug("backend request",
		"method", method,
		"url", target,
		"requestID", requestID,
	)

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.Debug("backend request failed",
			"method", method,
			"url", target,
			"requestID", requestID,
			"error", err,
		)
		return nil, &NetworkError{Method: method, URL: target, Err: err}
	}

	g.logger.Debug("backend response",
		"method", method,
		"url", target,
		"requestID", requestID,
		"status", resp.StatusCode,
		"elapsed", time.Since(start),
	)
	return resp, nil
}

func (g *Gateway) applyHeaders(req *http.Request, opts RequestOptions) {
	req.Header.Set(headerRequestID, uuid.NewString())
	req.Header.Set("Accept", "application/json")
	if opts.ContentType != "" {
		req.Header.Set("Content-Type", opts.ContentType)
	}

	g.mu.RLock()
	token := g.token
	g.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// extractDetail はエラーレスポンスから detail フィールドを取り出す
// JSONでない本文や detail を含まない本文では空文字列を返す
func extractDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(payload.Detail, &text); err == nil {
		return text
	}
	if string(payload.Detail) == "null" {
		return ""
	}

	// FastAPI のバリデーションエラーは配列で返るためそのまま文字列化する
	var compact bytes.Buffer
	if err := json.Compact(&compact, payload.Detail); err != nil {
		return string(payload.Detail)
	}
	return compact.String()
}
