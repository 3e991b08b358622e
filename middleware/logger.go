package middleware

import (
	"log"

	core "github.com/voltframework/volt"
	"github.com/voltframework/volt/logstream"
)

// LoggerConfig configures the request logger.
type LoggerConfig struct {
	// Stream receives the formatted lines; nil falls back to the
	// standard logger.
	Stream *logstream.LogStream

	// Format is the %-token access-log format. Empty uses a compact
	// method/path/status/elapsed line.
	Format string
}

// Logger returns an AfterResponse handler tracing every request,
// short-circuited or not. Attach with UsePre or UsePost; the phase
// guarantees it runs once the response is on the wire.
//
//	app.UsePost(middleware.Logger(middleware.LoggerConfig{
//	    Stream: accessLog,
//	}))
func Logger(config LoggerConfig) core.RequestHandler {
	format := config.Format
	if format == "" {
		format = "%rm %rz -> %sc (%lms ms)"
	}
	return core.AfterResponse(func(c *core.Context) *core.Response {
		record := logstream.AccessRecord{
			Time:            c.RequestTime(),
			RemoteIP:        c.RemoteAddr(),
			Method:          c.Method(),
			Scheme:          c.Scheme(),
			Authority:       c.Host(),
			Path:            c.Path(),
			Query:           c.RawQuery(),
			Status:          c.Status,
			BytesIn:         c.BytesIn,
			BytesOut:        c.BytesOut,
			ElapsedMs:       c.Elapsed.Milliseconds(),
			ExecutionResult: "executed",
			HeaderLookup:    func(name string) string { return c.Header(name) },
		}
		line := logstream.FormatAccessLog(format, record)
		if config.Stream != nil {
			config.Stream.WriteLine(line)
		} else {
			log.Println(line)
		}
		return nil
	})
}
