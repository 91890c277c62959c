package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/mo"
	"github.com/urfave/cli/v3"

	"github.com/jinford/mediastudio/internal/core/facesearch"
	"github.com/jinford/mediastudio/internal/infra/backend"
)

// FaceIndexAction は顔画像を登録するコマンドのアクション
// --file は複数指定でき、1枚ずつ順に登録する
func FaceIndexAction(ctx context.Context, cmd *cli.Command) error {
	files := cmd.StringSlice("file")
	if len(files) == 0 {
		return fmt.Errorf("--file は必須です")
	}

	appCtx, err := newAppContextFromCommand(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	svc := appCtx.Container.FaceSearch
	var failed int
	for _, path := range files {
		resp, err := indexFile(ctx, svc, path)
		if err != nil {
			failed++
			appCtx.Logger().Error("failed to index face image", "file", path, "error", err)
			fmt.Printf("✗ %s: %v\n", path, err)
			continue
		}
		fmt.Printf("✓ %s: %d 件の顔を登録しました\n", path, resp.TotalFaces)
	}

	if failed > 0 {
		return fmt.Errorf("%d/%d 件の登録に失敗しました", failed, len(files))
	}
	return nil
}

func indexFile(ctx context.Context, svc *facesearch.Service, path string) (*facesearch.IndexResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return svc.Index(ctx, backend.Upload{Name: filepath.Base(path), Content: f})
}

// FaceQueryAction は画像に似た顔を検索するコマンドのアクション
func FaceQueryAction(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("file")
	if path == "" {
		return fmt.Errorf("--file は必須です")
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("ファイルのオープンに失敗: %w", err)
	}
	defer f.Close()

	appCtx, err := newAppContextFromCommand(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	opts := facesearch.QueryOptions{}
	if cmd.IsSet("top-k") {
		opts.TopK = mo.Some(int(cmd.Int("top-k")))
	}
	if cmd.IsSet("threshold") {
		opts.ScoreThreshold = mo.Some(cmd.Float("threshold"))
	}

	resp, err := appCtx.Container.FaceSearch.Query(ctx, backend.Upload{Name: filepath.Base(path), Content: f}, opts)
	if err != nil {
		return fmt.Errorf("顔検索に失敗: %w", err)
	}

	if len(resp.Matches) == 0 {
		fmt.Println("一致する顔は見つかりませんでした")
		return nil
	}

	renderMatchesTable(os.Stdout, resp.Matches)
	return nil
}

// FaceStatsAction は顔データベースの統計を表示するコマンドのアクション
func FaceStatsAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := newAppContextFromCommand(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	stats, err := appCtx.Container.FaceSearch.Stats(ctx)
	if err != nil {
		return fmt.Errorf("統計の取得に失敗: %w", err)
	}

	renderFaceStats(os.Stdout, stats)
	return nil
}

// FaceResetAction は顔データベースを空にするコマンドのアクション
func FaceResetAction(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Bool("yes") {
		return fmt.Errorf("顔データベースを全削除します。実行する場合は --yes を指定してください")
	}

	appCtx, err := newAppContextFromCommand(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	resp, err := appCtx.Container.FaceSearch.Reset(ctx, true)
	if err != nil {
		return fmt.Errorf("顔データベースのリセットに失敗: %w", err)
	}

	printFaceResult(os.Stdout, resp)
	return nil
}

// FaceDeleteAction は指定画像の顔レコードを削除するコマンドのアクション
func FaceDeleteAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := newAppContextFromCommand(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	resp, err := appCtx.Container.FaceSearch.DeleteImages(ctx, cmd.StringSlice("path"))
	if err != nil {
		return fmt.Errorf("顔レコードの削除に失敗: %w", err)
	}

	printFaceResult(os.Stdout, resp)
	return nil
}

// FaceCleanupAction は元画像が存在しないレコードを削除するコマンドのアクション
func FaceCleanupAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := newAppContextFromCommand(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	resp, err := appCtx.Container.FaceSearch.CleanupOrphans(ctx)
	if err != nil {
		return fmt.Errorf("クリーンアップに失敗: %w", err)
	}

	printFaceResult(os.Stdout, resp)
	return nil
}

// === ヘルパー関数 ===

// renderMatchesTable はテーブル形式で検索結果を表示します
func renderMatchesTable(w io.Writer, matches []facesearch.Match) {
	table := tablewriter.NewWriter(w)
	table.Header("#", "Image", "Distance", "Original")

	for i, m := range matches {
		original := "-"
		if m.OriginalPath != nil {
			original = *m.OriginalPath
		}
		table.Append(
			fmt.Sprintf("%d", i+1),
			m.ImagePath,
			fmt.Sprintf("%.4f", m.Distance),
			original,
		)
	}

	table.Render()
}

// renderFaceStats は統計を表示します
func renderFaceStats(w io.Writer, stats *facesearch.Stats) {
	table := tablewriter.NewWriter(w)
	table.Header("メトリクス", "値")

	table.Append("登録顔数", fmt.Sprintf("%d", stats.TotalFaces))
	table.Append("画像数", fmt.Sprintf("%d", stats.TotalImages))
	table.Append("インデックス済みファイル数", fmt.Sprintf("%d", stats.TotalIndexedFiles))

	table.Render()
}

// printFaceResult はリセット・削除・クリーンアップの結果を表示します
func printFaceResult(w io.Writer, resp *facesearch.BasicResponse) {
	mark := "✓"
	if !resp.Success {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %s\n", mark, resp.Message)

	if resp.DeletedFaces != nil {
		fmt.Fprintf(w, "  削除した顔: %d\n", *resp.DeletedFaces)
	}
	if resp.DeletedRecords != nil {
		fmt.Fprintf(w, "  削除したレコード: %d\n", *resp.DeletedRecords)
	}
	for _, e := range resp.Errors {
		fmt.Fprintf(w, "  エラー: %s\n", e)
	}
}
