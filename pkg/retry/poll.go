// Package retry 提供了通用的“轮询直到完成”原语。
package retry

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout 表示轮询在达到终态之前耗尽了墙钟时间。
var ErrTimeout = errors.New("poll timed out")

// PollFunc 执行一次探测。done 为 true 表示已达终态；返回 error 时轮询立即终止。
type PollFunc func(ctx context.Context) (done bool, err error)

// Poll 以固定间隔调用 fn，直到 fn 报告完成、返回错误、ctx 被取消或超出 timeout。
// 第一次调用立即执行，不等待间隔。
func Poll(ctx context.Context, interval, timeout time.Duration, fn PollFunc) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrTimeout
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
