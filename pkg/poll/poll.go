// Package poll は一定間隔で状態を確認し、終端条件を満たすまで待機する汎用ループを提供します。
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAttemptsExhausted は試行回数の上限に達しても終端状態にならなかった場合のエラー
	ErrAttemptsExhausted = errors.New("poll attempts exhausted")
)

// Decision は1回の試行結果に対する次の動作
type Decision int

const (
	// Continue は待機してから次の試行に進む
	Continue Decision = iota
	// Stop はループを終了して結果を返す
	Stop
)

// Options はポーリングの間隔と試行回数の上限
type Options struct {
	Interval    time.Duration
	MaxAttempts int
}

// Step は1回の試行。attempt は1始まり
// エラーを返すとループはそのエラーで即座に終了する
// 一時的な失敗として扱いたい場合は Continue を返すこと
type Step[T any] func(ctx context.Context, attempt int) (T, Decision, error)

// Until は step が Stop を返すまで Interval ごとに step を呼び出す
// 試行は常に逐次実行され、同時に2つの step が走ることはない
// コンテキストは各試行の前と待機中に確認される
func Until[T any](ctx context.Context, opts Options, step Step[T]) (T, int, error) {
	var zero T

	if opts.MaxAttempts <= 0 {
		return zero, 0, fmt.Errorf("max attempts must be positive: %d", opts.MaxAttempts)
	}
	if opts.Interval < 0 {
		opts.Interval = 0
	}

	var last T
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return last, attempt - 1, err
		}

		value, decision, err := step(ctx, attempt)
		if err != nil {
			return value, attempt, err
		}
		last = value

		if decision == Stop {
			return value, attempt, nil
		}

		if attempt == opts.MaxAttempts {
			break
		}

		if err := sleep(ctx, opts.Interval); err != nil {
			return last, attempt, err
		}
	}

	return last, opts.MaxAttempts, ErrAttemptsExhausted
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
