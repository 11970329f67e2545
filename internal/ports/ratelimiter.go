package ports

import (
	"context"
	"time"
)

// RateLimiter is a fixed-window counter used to throttle settings saves, each of which may
// trigger a remote self-test.
type RateLimiter interface {
	// Acquire attempts a slot in the given scope for the provided window.
	// ratePerWindow is the maximum allowed **successful** acquires in the window.
	// Returns (true,nil) if granted; (false,nil) if rate-limited.
	Acquire(ctx context.Context, scope string, ratePerWindow int, window time.Duration) (bool, error)
}

// WindowBucket returns the index of the fixed window of the given length that contains now.
// Windows shorter than a second count as one second.
func WindowBucket(now time.Time, window time.Duration) int64 {
	secs := max(int64(window/time.Second), 1)
	return now.Unix() / secs
}
