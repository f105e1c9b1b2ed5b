package util

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"NHK-Radio-GO/internal/entity"
)

// RetryFunc 重试函数类型
type RetryFunc func(ctx context.Context) error

// RetryNotify 每次重试前的回调
type RetryNotify func(attempt int, delay time.Duration, err error)

// RetryConfig 重试配置
type RetryConfig struct {
	MaxRetries int           // 负数表示无限重试
	RetryDelay time.Duration // 第一次重试前的等待
	MaxDelay   time.Duration // 等待上限，0 表示不设上限
	Backoff    float64       // 退避因子
}

// DefaultRetryConfig 默认重试配置
var DefaultRetryConfig = RetryConfig{
	MaxRetries: 3,
	RetryDelay: time.Second,
	MaxDelay:   30 * time.Second,
	Backoff:    2.0,
}

// Delay 第 attempt 次重试前的等待时间，随 attempt 单调不减且不超过 MaxDelay
func (c RetryConfig) Delay(attempt int) time.Duration {
	if attempt < 1 || c.RetryDelay <= 0 {
		return 0
	}
	backoff := c.Backoff
	if backoff < 1 {
		backoff = 1
	}
	delay := float64(c.RetryDelay) * math.Pow(backoff, float64(attempt-1))
	if c.MaxDelay > 0 && delay > float64(c.MaxDelay) {
		return c.MaxDelay
	}
	if delay > float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay)
}

// permanentError 标记为不可重试
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent 包装为不可重试错误
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsRetryable 判断错误是否是可恢复的网络错误
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var nonRetryable *NonRetryableHTTPError
	var permanent *permanentError
	var decryptErr *entity.DecryptionError
	var sinkErr *entity.SinkError
	switch {
	case errors.As(err, &nonRetryable),
		errors.As(err, &permanent),
		errors.As(err, &decryptErr),
		errors.As(err, &sinkErr),
		errors.Is(err, entity.ErrMalformedPlaylist),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

// DoRetry 执行带重试的操作，等待期间可被 ctx 取消
func DoRetry(ctx context.Context, fn RetryFunc, config RetryConfig, notify RetryNotify) error {
	var lastErr error

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			delay := config.Delay(attempt)
			if notify != nil {
				notify(attempt, delay, lastErr)
			} else {
				Logger.Warn("第 %d 次重试，延迟 %v: %s", attempt, delay, lastErr.Error())
			}
			if err := Sleep(ctx, delay); err != nil {
				return err
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		// 检查是否是不应重试的错误
		if !IsRetryable(err) {
			return err
		}
		lastErr = err

		if config.MaxRetries >= 0 && attempt >= config.MaxRetries {
			return fmt.Errorf("重试 %d 次后仍然失败: %w", config.MaxRetries, lastErr)
		}
	}
}

// Sleep 可被取消的等待
func Sleep(ctx context.Context, d time.Duration) error {
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
