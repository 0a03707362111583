package redis

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// FixedWindowAllow counts a hit against scope in the current clock-aligned
// window and reports whether the count is still within limit. Each window
// gets its own counter key that expires shortly after the window closes.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	if c.store == nil {
		return false, 0, errNotInitialized
	}
	if window <= 0 {
		return false, 0, errors.New("rate limit window must be positive")
	}
	key := c.windowKey(scope, window)
	count, err := c.store.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if count == 1 {
		if err := c.store.Expire(ctx, key, window+time.Second).Err(); err != nil {
			return false, count, err
		}
	}
	return count <= limit, count, nil
}

func (c *Client) windowKey(scope string, window time.Duration) string {
	bucket := c.clock().UnixNano() / int64(window)
	return c.RateLimitKey(scope) + ":" + strconv.FormatInt(bucket, 10)
}
