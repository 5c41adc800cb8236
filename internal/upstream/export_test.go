package upstream

import (
	"context"
	"time"
)

// SetSleep replaces the delay function used between attempts.
func (c *Client) SetSleep(sleep func(ctx context.Context, d time.Duration) error) {
	c.sleep = sleep
}
