package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/jinford/mediastudio/internal/core/interview"
)

// InterviewSessionAction はインタビュー原稿からセッションを作成・更新するコマンドのアクション
func InterviewSessionAction(ctx context.Context, cmd *cli.Command) error {
	payload := interview.SessionPayload{
		SessionID:    cmd.String("session-id"),
		CombinedText: cmd.String("text"),
	}
	if payload.SessionID == "" && cmd.Bool("new-id") {
		payload.SessionID = interview.NewSessionID()
	}

	for _, path := range cmd.StringSlice("file") {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("原稿ファイルの読み込みに失敗: %w", err)
		}
		payload.Files = append(payload.Files, interview.File{
			ID:   filepath.Base(path),
			Text: string(data),
		})
	}

	if payload.CombinedText == "" && len(payload.Files) == 0 {
		return fmt.Errorf("--text または --file のいずれかを指定してください")
	}

	appCtx, err := newAppContextFromCommand(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	resp, err := appCtx.Container.InterviewService.CreateOrUpdateSession(ctx, payload)
	if err != nil {
		return fmt.Errorf("セッションの作成に失敗: %w", err)
	}

	fmt.Printf("✓ %s\n", resp.Message)
	if resp.SessionID != nil {
		fmt.Printf("Session ID:  %s\n", *resp.SessionID)
	}
	fmt.Printf("Chunks:      %d\n", resp.ChunksCount)
	return nil
}

// InterviewChatAction はセッションの原稿を根拠に質問するコマンドのアクション
// --message を省略した場合は標準入力から対話的に質問を読み込み、履歴を引き継ぐ
func InterviewChatAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := newAppContextFromCommand(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	base := interview.ChatRequest{
		SessionID:           cmd.String("session-id"),
		Model:               cmd.String("model"),
		TopK:                int(cmd.Int("top-k")),
		SimilarityThreshold: cmd.Float("threshold"),
		OllamaBaseURL:       cmd.String("ollama-url"),
	}

	svc := appCtx.Container.InterviewService
	if message := cmd.String("message"); message != "" {
		base.Message = message
		resp, err := svc.Chat(ctx, base)
		if err != nil {
			return fmt.Errorf("質問応答に失敗: %w", err)
		}
		renderChatAnswer(os.Stdout, resp, cmd.Bool("show-context"))
		return nil
	}

	return chatLoop(ctx, os.Stdin, os.Stdout, svc, base, cmd.Bool("show-context"))
}

// chatLoop は空行か EOF まで質問を読み込み、回答と履歴を積み上げる
func chatLoop(ctx context.Context, in io.Reader, out io.Writer, svc *interview.Service, base interview.ChatRequest, showContext bool) error {
	scanner := bufio.NewScanner(in)
	history := [][]string{}

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		message := strings.TrimSpace(scanner.Text())
		if message == "" {
			break
		}

		req := base
		req.Message = message
		req.History = history

		resp, err := svc.Chat(ctx, req)
		if err != nil {
			return fmt.Errorf("質問応答に失敗: %w", err)
		}
		renderChatAnswer(out, resp, showContext)

		history = append(history, []string{message, resp.Answer})
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("入力の読み込みに失敗: %w", err)
	}
	return nil
}

// InterviewInfoAction はセッション情報を表示するコマンドのアクション
func InterviewInfoAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := newAppContextFromCommand(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	info, err := appCtx.Container.InterviewService.SessionInfo(ctx, cmd.String("session-id"))
	if err != nil {
		return fmt.Errorf("セッション情報の取得に失敗: %w", err)
	}

	renderSessionInfo(os.Stdout, info)
	return nil
}

// InterviewClearAction はセッションを削除するコマンドのアクション
func InterviewClearAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := newAppContextFromCommand(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	resp, err := appCtx.Container.InterviewService.ClearSession(ctx, cmd.String("session-id"))
	if err != nil {
		return fmt.Errorf("セッションの削除に失敗: %w", err)
	}

	fmt.Printf("✓ %s\n", resp.Message)
	return nil
}

// === ヘルパー関数 ===

// renderChatAnswer は回答を表示します
func renderChatAnswer(w io.Writer, resp *interview.ChatResponse, showContext bool) {
	fmt.Fprintf(w, "\n%s\n", resp.Answer)
	if !resp.UsedContext {
		fmt.Fprintln(w, "（原稿からの根拠は見つかりませんでした）")
	}
	if showContext && len(resp.ContextSnippets) > 0 {
		fmt.Fprintln(w, "\n参照した原稿:")
		for i, snippet := range resp.ContextSnippets {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, truncateString(snippet, 200))
		}
	}
	fmt.Fprintln(w)
}

// renderSessionInfo はセッション情報を表示します
func renderSessionInfo(w io.Writer, info *interview.SessionInfo) {
	fmt.Fprintf(w, "\n=== セッション情報 ===\n\n")
	if !info.Exists {
		fmt.Fprintln(w, "セッションは存在しません")
		return
	}
	if info.SessionID != nil {
		fmt.Fprintf(w, "Session ID:  %s\n", *info.SessionID)
	}
	fmt.Fprintf(w, "Chunks:      %d\n", info.ChunksCount)
	if info.CreatedAt != nil {
		sec := int64(*info.CreatedAt)
		nsec := int64((*info.CreatedAt - float64(sec)) * float64(time.Second))
		fmt.Fprintf(w, "Created At:  %s\n", time.Unix(sec, nsec).Format(time.RFC3339))
	}
}
