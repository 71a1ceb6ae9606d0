package wizard

import (
	"context"
	"errors"
	"time"
)

// errWaitTimeout is returned by poll when its own bound elapsed.
var errWaitTimeout = errors.New("condition not met before timeout")

// poll evaluates cond immediately and then every interval until it returns
// true. It gives up with errWaitTimeout after timeout, or with ctx's error
// when ctx ends first.
func poll(ctx context.Context, timeout, interval time.Duration, cond func(context.Context) bool) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if cond(waitCtx) {
			return nil
		}
		select {
		case <-waitCtx.Done():
			if err := ctx.Err(); err != nil {
				return err
			}
			return errWaitTimeout
		case <-ticker.C:
		}
	}
}
