package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/jinford/mediastudio/internal/core/task"
	"github.com/jinford/mediastudio/internal/infra/backend"
)

// TaskTranscribeAction は文字起こしタスクを作成するコマンドのアクション
func TaskTranscribeAction(ctx context.Context, cmd *cli.Command) error {
	whisper, err := parseParams(cmd.StringSlice("whisper"))
	if err != nil {
		return err
	}
	vad, err := parseParams(cmd.StringSlice("vad"))
	if err != nil {
		return err
	}
	bgm, err := parseParams(cmd.StringSlice("bgm"))
	if err != nil {
		return err
	}
	diarization, err := parseParams(cmd.StringSlice("diarization"))
	if err != nil {
		return err
	}

	return submitTask(ctx, cmd, func(svc *task.Service, upload task.Upload) (*task.Submission, error) {
		return svc.SubmitTranscription(ctx, upload, task.TranscriptionParams{
			Whisper:     whisper,
			VAD:         vad,
			BGM:         bgm,
			Diarization: diarization,
		})
	})
}

// TaskVADAction は音声区間検出タスクを作成するコマンドのアクション
func TaskVADAction(ctx context.Context, cmd *cli.Command) error {
	params, err := parseParams(cmd.StringSlice("param"))
	if err != nil {
		return err
	}

	return submitTask(ctx, cmd, func(svc *task.Service, upload task.Upload) (*task.Submission, error) {
		return svc.SubmitVAD(ctx, upload, params)
	})
}

// TaskBGMAction はBGM分離タスクを作成するコマンドのアクション
func TaskBGMAction(ctx context.Context, cmd *cli.Command) error {
	params, err := parseParams(cmd.StringSlice("param"))
	if err != nil {
		return err
	}

	return submitTask(ctx, cmd, func(svc *task.Service, upload task.Upload) (*task.Submission, error) {
		return svc.SubmitBGMSeparation(ctx, upload, params)
	})
}

// submitTask はファイルを開いてタスクを作成し、--wait 指定時は完了まで待機する
func submitTask(ctx context.Context, cmd *cli.Command, submit func(*task.Service, task.Upload) (*task.Submission, error)) error {
	filePath := cmd.String("file")
	if filePath == "" {
		return fmt.Errorf("--file は必須です")
	}

	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("ファイルのオープンに失敗: %w", err)
	}
	defer f.Close()

	appCtx, err := newAppContextFromCommand(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	svc := appCtx.Container.TaskService
	submission, err := submit(svc, task.Upload{Name: filepath.Base(filePath), Content: f})
	if err != nil {
		return fmt.Errorf("タスクの作成に失敗: %w", err)
	}

	fmt.Printf("✓ タスクを作成しました: %s (%s)\n", submission.Identifier, submission.Status)

	if !cmd.Bool("wait") {
		return nil
	}
	return waitTask(ctx, cmd, svc, submission.Identifier)
}

// TaskStatusAction はタスクの状態を1回取得して表示するコマンドのアクション
func TaskStatusAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := newAppContextFromCommand(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	t, err := appCtx.Container.TaskService.Get(ctx, cmd.String("id"))
	if err != nil {
		return fmt.Errorf("タスク状態の取得に失敗: %w", err)
	}

	renderTaskDetail(os.Stdout, t)
	return nil
}

// TaskWaitAction はタスクが終了状態になるまで待機するコマンドのアクション
func TaskWaitAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := newAppContextFromCommand(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	return waitTask(ctx, cmd, appCtx.Container.TaskService, cmd.String("id"))
}

// waitTask はポーリングしながら進捗を表示し、最終状態を出力する
func waitTask(ctx context.Context, cmd *cli.Command, svc *task.Service, id string) error {
	opts := svc.PollDefaults()
	if cmd.IsSet("interval") {
		opts.Interval = cmd.Duration("interval")
	}
	if cmd.IsSet("max-attempts") {
		opts.MaxAttempts = int(cmd.Int("max-attempts"))
	}
	opts.OnUpdate = func(t task.Task) {
		fmt.Println(formatProgressLine(t))
	}

	result, err := svc.Poll(ctx, id, opts)
	if err != nil {
		var failed *task.TaskFailedError
		var timeout *task.TaskTimeoutError
		switch {
		case errors.As(err, &failed):
			return fmt.Errorf("タスクが失敗しました: %w", err)
		case errors.As(err, &timeout):
			return fmt.Errorf("タスクの完了待ちがタイムアウトしました: %w", err)
		default:
			return fmt.Errorf("タスクの完了待ちに失敗: %w", err)
		}
	}

	renderTaskDetail(os.Stdout, result)
	return nil
}

// TaskListAction はタスク一覧を表示するコマンドのアクション
func TaskListAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := newAppContextFromCommand(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	list, err := appCtx.Container.TaskService.List(ctx, backend.Params{
		"status":    cmd.String("status"),
		"task_type": cmd.String("type"),
	})
	if err != nil {
		return fmt.Errorf("タスク一覧の取得に失敗: %w", err)
	}

	if len(list.Tasks) == 0 {
		fmt.Println("タスクはありません")
		return nil
	}

	renderTasksTable(os.Stdout, list.Tasks)
	fmt.Printf("合計: %d 件\n", list.Count)
	return nil
}

// TaskDeleteAction はタスクを削除するコマンドのアクション
func TaskDeleteAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := newAppContextFromCommand(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	ack, err := appCtx.Container.TaskService.Delete(ctx, cmd.String("id"))
	if err != nil {
		return fmt.Errorf("タスクの削除に失敗: %w", err)
	}

	fmt.Printf("✓ %s\n", ack.Message)
	return nil
}

// TaskDownloadAction は完了したタスクの成果物を保存するコマンドのアクション
func TaskDownloadAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := newAppContextFromCommand(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	id := cmd.String("id")
	data, err := appCtx.Container.TaskService.Download(ctx, id)
	if err != nil {
		return fmt.Errorf("成果物のダウンロードに失敗: %w", err)
	}

	outPath := resolveDownloadPath(cmd.String("out"), appCtx.Container.Config.DownloadDir, id)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("出力ディレクトリの作成に失敗: %w", err)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("成果物の保存に失敗: %w", err)
	}

	fmt.Printf("✓ 保存しました: %s (%d bytes)\n", outPath, len(data))
	return nil
}

// === ヘルパー関数 ===

// resolveDownloadPath は出力先を決める。未指定の場合は <dir>/<id>.zip
func resolveDownloadPath(out, dir, id string) string {
	if out != "" {
		return out
	}
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, filepath.Base(id)+".zip")
}

// formatProgressLine はポーリング中の1行表示を組み立てる
func formatProgressLine(t task.Task) string {
	line := fmt.Sprintf("[%s] %s", t.Identifier, t.Status)
	if progress, ok := t.Progress.Get(); ok {
		line += fmt.Sprintf(" %5.1f%%", progress*100)
		if t.ProgressEstimated {
			line += " (推定)"
		}
	}
	if msg, ok := t.Error.Get(); ok {
		line += " - " + msg
	}
	return line
}

// renderTaskDetail はタスクの詳細を表示します
func renderTaskDetail(w io.Writer, t task.Task) {
	fmt.Fprintf(w, "\n=== タスク詳細 ===\n\n")
	fmt.Fprintf(w, "Identifier:   %s\n", t.Identifier)
	fmt.Fprintf(w, "Status:       %s\n", t.Status)
	if t.TaskType != "" {
		fmt.Fprintf(w, "Task Type:    %s\n", t.TaskType)
	}
	if progress, ok := t.Progress.Get(); ok {
		fmt.Fprintf(w, "Progress:     %.1f%%\n", progress*100)
	}
	if duration, ok := t.Duration.Get(); ok {
		fmt.Fprintf(w, "Duration:     %s\n", (time.Duration(duration * float64(time.Second))).Round(time.Millisecond))
	}
	if msg, ok := t.Error.Get(); ok {
		fmt.Fprintf(w, "Error:        %s\n", msg)
	}
	if len(t.Result) > 0 && string(t.Result) != "null" {
		fmt.Fprintf(w, "\n結果 (%s):\n%s\n", t.ResultType, truncateString(string(t.Result), 2000))
	}
}

// renderTasksTable はテーブル形式でタスク一覧を表示します
func renderTasksTable(w io.Writer, tasks []task.Task) {
	table := tablewriter.NewWriter(w)
	table.Header("Identifier", "Type", "Status", "Progress", "Error")

	for _, t := range tasks {
		progress := "-"
		if p, ok := t.Progress.Get(); ok {
			progress = strconv.FormatFloat(p*100, 'f', 1, 64) + "%"
		}
		table.Append(
			t.Identifier,
			t.TaskType,
			string(t.Status),
			progress,
			truncateString(t.Error.OrEmpty(), 40),
		)
	}

	table.Render()
}
