package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/jinford/mediastudio/internal/infra/backend"
	"github.com/jinford/mediastudio/internal/platform/container"
	"github.com/jinford/mediastudio/internal/platform/logger"
	"github.com/jinford/mediastudio/pkg/config"
)

// AppContext はコマンド実行に必要な共通コンテキストを保持する
type AppContext struct {
	Container *container.ServiceContainer
}

// NewAppContext は設定ファイルを読み込み、バックエンドクライアント群を組み立てて AppContext を作成する
// baseURL が空でなければ設定のベースURLを上書きする
func NewAppContext(ctx context.Context, envFile, baseURL string) (*AppContext, error) {
	// 設定の読み込み
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	// ロガーの初期化
	appLogger := logger.New(logger.FromSettings(cfg.Log.Level, cfg.Log.Format))

	// コンテナの初期化
	cont, err := container.NewContainer(ctx, cfg,
		container.WithContainerLogger(appLogger),
		container.WithContainerBaseURL(baseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("コンテナの初期化に失敗: %w", err)
	}

	return &AppContext{
		Container: cont,
	}, nil
}

// newAppContextFromCommand はグローバルフラグ --env / --base-url から AppContext を作成する
func newAppContextFromCommand(ctx context.Context, cmd *cli.Command) (*AppContext, error) {
	return NewAppContext(ctx, cmd.String("env"), cmd.String("base-url"))
}

// Close はAppContextが保持するリソースをクリーンアップする
func (ac *AppContext) Close() {
	if ac.Container != nil {
		ac.Container.Close()
	}
}

// Logger はAppContextのロガーを返す
func (ac *AppContext) Logger() *slog.Logger {
	if ac.Container != nil {
		return ac.Container.Logger()
	}
	return slog.Default()
}

// parseParams は "key=value" 形式の指定を backend.Params に変換する
func parseParams(pairs []string) (backend.Params, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	params := backend.Params{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("パラメータの形式が不正です（key=value で指定）: %q", pair)
		}
		params[key] = strings.TrimSpace(value)
	}
	return params, nil
}

// truncateString は表示用に文字列を切り詰める
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
