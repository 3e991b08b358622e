package middleware

import (
	"context"
	"time"

	core "github.com/voltframework/volt"
)

// Timeout wraps an action with a deadline: when the action has not
// produced a result within d, a 503 goes out and the connection
// closes. The action keeps running to completion off-path (a
// compute-bound handler is not preempted), so it must not touch the
// context after its deadline expired.
//
//	app.Get("/slow", middleware.Timeout(slowAction, 2*time.Second))
func Timeout(action core.Action, d time.Duration) core.Action {
	return func(c *core.Context) any {
		ctx, cancel := context.WithTimeout(c.Context(), d)
		defer cancel()

		done := make(chan any, 1)
		go func() {
			done <- action(c)
		}()

		select {
		case result := <-done:
			return result
		case <-ctx.Done():
			res := core.Text(503, "Service Unavailable")
			res.WithHeader("Connection", "close")
			return res
		}
	}
}
