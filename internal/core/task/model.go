package task

import (
	"encoding/json"
	"strings"

	"github.com/samber/mo"

	"github.com/jinford/mediastudio/internal/infra/backend"
)

// Status はバックエンドが管理するタスクの状態
type Status string

const (
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ParseStatus はバックエンドの状態文字列を Status に正規化する
// 未知の値はそのまま保持し、非終端状態として扱われる
func ParseStatus(raw string) Status {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	switch normalized {
	case "queued", "pending":
		return StatusQueued
	case "in_progress", "in-progress", "running", "processing":
		return StatusInProgress
	case "completed", "success", "succeeded":
		return StatusCompleted
	case "failed", "error":
		return StatusFailed
	default:
		return Status(normalized)
	}
}

// IsTerminal は状態がこれ以上遷移しないかを返す
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Upload は送信する音声・動画ファイル
type Upload = backend.Upload

// Task はある時点でのタスク状態のスナップショット
// クライアントはタスクを読み取るだけで、状態を書き換えるのはバックエンドのみ
type Task struct {
	Identifier string
	Status     Status
	TaskType   string
	Progress   mo.Option[float64]
	Error      mo.Option[string]
	Result     json.RawMessage
	ResultType string
	Duration   mo.Option[float64]

	// ProgressEstimated はバックエンドが進捗を返さず、クライアントが推定値を入れたことを示す
	ProgressEstimated bool

	// Synthetic はポーリングのタイムアウト時にクライアント側で生成した FAILED であることを示す
	// バックエンドが報告した失敗ではない
	Synthetic bool
}

// Submission はタスク作成APIのレスポンス
type Submission struct {
	Identifier string `json:"identifier"`
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
}

// TranscriptionParams は文字起こしタスクに付与するパラメータグループ
// 同じキーが複数のグループにある場合は Whisper, VAD, BGM, Diarization の順に後勝ちでマージされる
type TranscriptionParams struct {
	Whisper     backend.Params
	VAD         backend.Params
	BGM         backend.Params
	Diarization backend.Params
}

// TaskList はタスク一覧APIのレスポンス
type TaskList struct {
	Tasks []Task
	Count int
}

// Ack は削除などの応答
type Ack struct {
	Message string `json:"message"`
}

type taskDTO struct {
	Identifier string          `json:"identifier"`
	Status     string          `json:"status"`
	TaskType   string          `json:"task_type"`
	Progress   *float64        `json:"progress"`
	Error      *string         `json:"error"`
	Result     json.RawMessage `json:"result"`
	ResultType string          `json:"result_type"`
	Duration   *float64        `json:"duration"`
}

func (d taskDTO) toTask() Task {
	t := Task{
		Identifier: d.Identifier,
		Status:     ParseStatus(d.Status),
		TaskType:   d.TaskType,
		Result:     d.Result,
		ResultType: d.ResultType,
		Progress:   mo.PointerToOption(d.Progress).Map(clampProgress),
		Duration:   mo.PointerToOption(d.Duration),
	}
	if d.Error != nil && *d.Error != "" {
		t.Error = mo.Some(*d.Error)
	}
	return t
}

type taskListDTO struct {
	Tasks []taskDTO `json:"tasks"`
	Count *int      `json:"count"`
}

func clampProgress(p float64) (float64, bool) {
	switch {
	case p < 0:
		return 0, true
	case p > 1:
		return 1, true
	default:
		return p, true
	}
}
