package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// バックエンドAPI設定
	API APIConfig

	// タスクのポーリング設定
	Poll PollConfig

	// 処理結果のダウンロード先
	DownloadDir string

	// ログ設定
	Log LogConfig
}

// APIConfig はバックエンド接続設定
type APIConfig struct {
	BaseURL string
	Token   string // 空の場合は Authorization ヘッダを付与しない
	Timeout time.Duration
}

// PollConfig はタスク状態ポーリングの既定値
type PollConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

// LogConfig はロガー設定
type LogConfig struct {
	Level  string // debug / info / warn / error
	Format string // json / text
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		API: APIConfig{
			BaseURL: getEnv("MEDIASTUDIO_API_BASE", "http://localhost:8000"),
			Token:   getEnv("MEDIASTUDIO_API_TOKEN", ""),
			Timeout: time.Duration(getEnvAsInt("MEDIASTUDIO_HTTP_TIMEOUT", 60)) * time.Second,
		},
		Poll: PollConfig{
			Interval:    time.Duration(getEnvAsInt("MEDIASTUDIO_POLL_INTERVAL_MS", 2000)) * time.Millisecond,
			MaxAttempts: getEnvAsInt("MEDIASTUDIO_POLL_MAX_ATTEMPTS", 60),
		},
		DownloadDir: getEnv("MEDIASTUDIO_DOWNLOAD_DIR", "."),
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate は設定値の整合性を検証します
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("MEDIASTUDIO_API_BASE must not be empty")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("MEDIASTUDIO_HTTP_TIMEOUT must be positive")
	}
	if c.Poll.Interval < 0 {
		return fmt.Errorf("MEDIASTUDIO_POLL_INTERVAL_MS must not be negative")
	}
	if c.Poll.MaxAttempts <= 0 {
		return fmt.Errorf("MEDIASTUDIO_POLL_MAX_ATTEMPTS must be positive")
	}
	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
