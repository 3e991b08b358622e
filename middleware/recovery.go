package middleware

import (
	"fmt"
	"runtime/debug"

	core "github.com/voltframework/volt"
	"github.com/voltframework/volt/logstream"
)

// RecoveryConfig configures panic recovery.
type RecoveryConfig struct {
	// Stream receives the exception dump; nil discards it (the
	// dispatcher's own error log still sees unrecovered panics).
	Stream *logstream.LogStream

	// Handler builds the response for a recovered panic.
	// Default: plain 500.
	Handler func(c *core.Context, recovered any) *core.Response
}

// Recover wraps an action with panic recovery: a panicking action
// yields a 500 response (or the configured handler's) instead of
// reaching the dispatcher's exception path.
//
//	app.Get("/risky", middleware.Recover(riskyAction, middleware.RecoveryConfig{
//	    Stream: errorLog,
//	}))
func Recover(action core.Action, config RecoveryConfig) core.Action {
	return func(c *core.Context) (result any) {
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("panic: %v\n%s", r, debug.Stack())
				if config.Stream != nil {
					config.Stream.WriteException(err)
				}
				if config.Handler != nil {
					result = config.Handler(c, r)
					return
				}
				result = core.Text(500, "Internal Server Error")
			}
		}()
		return action(c)
	}
}
