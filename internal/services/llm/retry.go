package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// backoff is the retry policy for completions: exponential from base,
// capped at ceiling, with a server's Retry-After taking precedence.
type backoff struct {
	attempts int
	base     time.Duration
	ceiling  time.Duration
	sleeper  func(time.Duration)
}

func defaultBackoff() backoff {
	return backoff{attempts: 5, base: time.Second, ceiling: 10 * time.Second}
}

// delay reports whether err after attempt is worth retrying, and how long
// to wait first. Rate limits, server errors, timeouts and empty answers
// are retried; everything else is final.
func (b backoff) delay(ctx context.Context, err error, attempt int) (time.Duration, bool) {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	var status *httpStatusError
	if errors.As(err, &status) {
		code := status.StatusCode
		if code != http.StatusRequestTimeout && code != http.StatusTooManyRequests && code < 500 {
			return 0, false
		}
		if status.RetryAfter > 0 {
			return b.capped(status.RetryAfter), true
		}
		return b.exponential(attempt), true
	}
	var empty *emptyContentError
	var netErr net.Error
	if errors.As(err, &empty) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return b.exponential(attempt), true
	}
	return 0, false
}

// exponential is base for the first retry and doubles after that.
func (b backoff) exponential(attempt int) time.Duration {
	if b.base <= 0 {
		return 0
	}
	d := b.base
	for i := 1; i < attempt && d < b.limit(); i++ {
		d *= 2
	}
	return b.capped(d)
}

func (b backoff) limit() time.Duration {
	if b.ceiling > 0 {
		return b.ceiling
	}
	return defaultBackoff().ceiling
}

func (b backoff) capped(d time.Duration) time.Duration {
	return max(0, min(d, b.limit()))
}

func (b backoff) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	if b.sleeper != nil {
		b.sleeper(d)
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// parseRetryAfter reads delta-seconds or an HTTP date.
func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		if d := time.Until(when); d > 0 {
			return d, true
		}
	}
	return 0, false
}
