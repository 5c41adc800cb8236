package listing

import (
	"context"
	"time"
)

// SetSleep replaces the retry backoff sleep of a controller.
func SetSleep(c *Controller, sleep func(ctx context.Context, d time.Duration) error) {
	c.sleep = sleep
}
