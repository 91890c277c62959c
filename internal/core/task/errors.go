package task

import "fmt"

const defaultFailureMessage = "task failed"

// TaskFailedError はバックエンドがタスクの FAILED を報告した場合のエラー
type TaskFailedError struct {
	TaskID  string
	Message string
	Task    Task
}

func (e *TaskFailedError) Error() string {
	return fmt.Sprintf("task %s failed: %s", e.TaskID, e.Message)
}

// TaskTimeoutError はポーリングの試行回数を使い切っても終端状態にならなかった場合のエラー
// クライアント側の判断であり、バックエンドはタスクを失敗とはみなしていない
type TaskTimeoutError struct {
	TaskID     string
	Attempts   int
	LastStatus Status
}

func (e *TaskTimeoutError) Error() string {
	last := string(e.LastStatus)
	if last == "" {
		last = "unknown"
	}
	return fmt.Sprintf("polling task %s timed out after %d attempts (last status: %s)", e.TaskID, e.Attempts, last)
}
