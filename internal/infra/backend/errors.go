package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation は送信前の入力検証に失敗した場合のエラー
	ErrValidation = errors.New("validation failed")
)

// RequestError はバックエンドが2xx以外のステータスを返した場合のエラー
type RequestError struct {
	StatusCode int
	Detail     string // レスポンスJSONの detail フィールド（存在しない場合は空）
}

func (e *RequestError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// NetworkError は通信レベルの失敗（接続不可、タイムアウト等）を表す
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// DecodeError は2xxレスポンスの本文を解釈できなかった場合のエラー
type DecodeError struct {
	StatusCode int
	Err        error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed response body (HTTP %d): %v", e.StatusCode, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// DownloadError は成果物のダウンロードに失敗した場合のエラー
type DownloadError struct {
	StatusCode int
	Body       string
}

func (e *DownloadError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("download failed: HTTP %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("download failed: HTTP %d", e.StatusCode)
}

// IsTransient は同じリクエストを後で再試行すれば成功しうるエラーかを判定する
// 呼び出し元コンテキストのキャンセルは呼び出し側で判定すること
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrValidation) {
		return false
	}

	var netErr *NetworkError
	var reqErr *RequestError
	var decErr *DecodeError
	return errors.As(err, &netErr) || errors.As(err, &reqErr) || errors.As(err, &decErr)
}
