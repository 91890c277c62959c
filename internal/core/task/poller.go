package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/mo"

	"github.com/jinford/mediastudio/internal/infra/backend"
	"github.com/jinford/mediastudio/pkg/poll"
)

// estimatedProgressCeiling は推定進捗の上限。推定値だけで完了に見えないようにする
const estimatedProgressCeiling = 0.9

// PollOptions はポーリングの設定
// Interval が0の場合は待機せずに次の試行へ進む
type PollOptions struct {
	Interval    time.Duration
	MaxAttempts int

	// OnUpdate はスナップショットを取得するたびに呼ばれる。panic しても無視される
	// タイムアウト時には Synthetic=true の FAILED スナップショットで最後に1回呼ばれる
	OnUpdate func(Task)
}

// DefaultPollOptions は2秒間隔・60回のデフォルト設定を返す
func DefaultPollOptions() PollOptions {
	return PollOptions{
		Interval:    DefaultPollInterval,
		MaxAttempts: DefaultPollMaxAttempts,
	}
}

// PollDefaults は Service に設定されたポーリングの既定値を返す
func (s *Service) PollDefaults() PollOptions {
	return s.pollDefaults
}

// Poll はタスクが COMPLETED か FAILED になるまで状態を取得し続ける
//
// COMPLETED の場合は進捗を1.0にしたスナップショットを返す。
// FAILED の場合は *TaskFailedError を返す。
// 取得時の通信エラーやHTTPエラーはログに記録して1回分の試行を消費するだけで、ループは継続する。
// 試行回数を使い切ると *TaskTimeoutError を返す。
func (s *Service) Poll(ctx context.Context, id string, opts PollOptions) (Task, error) {
	if id == "" {
		return Task{}, fmt.Errorf("%w: task identifier is required", backend.ErrValidation)
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = s.pollDefaults.MaxAttempts
	}
	if opts.Interval < 0 {
		opts.Interval = 0
	}

	var (
		last         Task
		seen         bool
		lastProgress float64
	)

	step := func(ctx context.Context, attempt int) (Task, poll.Decision, error) {
		t, err := s.Get(ctx, id)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return last, poll.Stop, ctxErr
			}
			if !backend.IsTransient(err) {
				return last, poll.Stop, err
			}

			s.logger.Warn("task status fetch failed, retrying",
				"identifier", id,
				"attempt", attempt,
				"maxAttempts", opts.MaxAttempts,
				"error", err,
			)
			return last, poll.Continue, nil
		}

		switch t.Status {
		case StatusCompleted:
			t.Progress = mo.Some(1.0)
			t.ProgressEstimated = false
			s.notify(opts.OnUpdate, t)
			return t, poll.Stop, nil

		case StatusFailed:
			s.notify(opts.OnUpdate, t)
			return t, poll.Stop, &TaskFailedError{
				TaskID:  id,
				Message: t.Error.OrElse(defaultFailureMessage),
				Task:    t,
			}

		default:
			if progress, ok := t.Progress.Get(); ok {
				lastProgress = progress
			} else {
				lastProgress = estimateProgress(attempt, opts.MaxAttempts, lastProgress)
				t.Progress = mo.Some(lastProgress)
				t.ProgressEstimated = true
			}

			last, seen = t, true
			s.notify(opts.OnUpdate, t)
			return t, poll.Continue, nil
		}
	}

	result, attempts, err := poll.Until(ctx, poll.Options{
		Interval:    opts.Interval,
		MaxAttempts: opts.MaxAttempts,
	}, step)

	switch {
	case err == nil:
		s.logger.Info("task completed", "identifier", id, "attempts", attempts)
		return result, nil

	case errors.Is(err, poll.ErrAttemptsExhausted):
		timeoutErr := &TaskTimeoutError{TaskID: id, Attempts: attempts}
		if seen {
			timeoutErr.LastStatus = last.Status
		}

		synthetic := Task{
			Identifier: id,
			Status:     StatusFailed,
			TaskType:   last.TaskType,
			Progress:   mo.Some(lastProgress),
			Error:      mo.Some(timeoutErr.Error()),
			Synthetic:  true,
		}
		s.notify(opts.OnUpdate, synthetic)

		s.logger.Warn("task polling timed out",
			"identifier", id,
			"attempts", attempts,
			"lastStatus", timeoutErr.LastStatus,
		)
		return synthetic, timeoutErr

	default:
		var failed *TaskFailedError
		if errors.As(err, &failed) {
			s.logger.Warn("task failed", "identifier", id, "error", failed.Message)
			return result, err
		}
		return result, fmt.Errorf("polling task %s aborted: %w", id, err)
	}
}

// notify は observer を呼び出す。observer 内の panic はループを止めない
func (s *Service) notify(onUpdate func(Task), t Task) {
	if onUpdate == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("task update observer panicked",
				"identifier", t.Identifier,
				"status", t.Status,
				"panic", r,
			)
		}
	}()

	onUpdate(t)
}

// estimateProgress は試行回数から単調増加する推定進捗を計算する
func estimateProgress(attempt, maxAttempts int, previous float64) float64 {
	estimate := estimatedProgressCeiling * float64(attempt) / float64(maxAttempts)
	if estimate > estimatedProgressCeiling {
		estimate = estimatedProgressCeiling
	}
	if estimate < previous {
		return previous
	}
	return estimate
}
