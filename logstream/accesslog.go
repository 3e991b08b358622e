package logstream

import (
	"fmt"
	"strconv"
	"time"

	"github.com/valyala/bytebufferpool"
)

// AccessRecord carries one request/response trace for access-log
// formatting.
type AccessRecord struct {
	Time time.Time

	RemoteIP  string
	Method    string
	Scheme    string
	Authority string
	Host      string
	Port      string
	Path      string
	Query     string // without the '?'

	Status            int
	StatusDescription string

	BytesIn  int64
	BytesOut int64

	ElapsedMs int64

	// ExecutionResult is the dispatch outcome ("executed",
	// "not-found", "exception", ...).
	ExecutionResult string

	// HeaderLookup resolves %{HeaderName} tokens to the first value
	// of the request header.
	HeaderLookup func(name string) string
}

// humanizeBytes renders byte counts the way the access log expects
// them ("13 B", "2.5 KB", "1.2 MB").
func humanizeBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return strconv.FormatInt(n, 10) + " B"
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

// FormatAccessLog expands the %-token format string against one
// record. Unknown tokens pass through verbatim.
//
// Tokens: %dd %dm %dy (date), %tH %ti %ts %tm %tz (time),
// %ri %rm %rs %ra %rh %rp %rz %rq (request), %sc %sd (status),
// %lin %lou (humanized bytes), %lms (elapsed), %ls (result),
// %{HeaderName} (request header).
func FormatAccessLog(format string, r AccessRecord) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	t := r.Time
	if t.IsZero() {
		t = time.Now()
	}

	i := 0
	for i < len(format) {
		c := format[i]
		if c != '%' {
			buf.WriteByte(c)
			i++
			continue
		}

		rest := format[i+1:]

		// %{HeaderName}
		if len(rest) > 0 && rest[0] == '{' {
			if end := indexByte(rest, '}'); end > 0 {
				name := rest[1:end]
				if r.HeaderLookup != nil {
					buf.WriteString(r.HeaderLookup(name))
				}
				i += end + 2
				continue
			}
		}

		// Three-letter tokens before two-letter ones (maximal munch).
		if len(rest) >= 3 {
			switch rest[:3] {
			case "lin":
				buf.WriteString(humanizeBytes(r.BytesIn))
				i += 4
				continue
			case "lou":
				buf.WriteString(humanizeBytes(r.BytesOut))
				i += 4
				continue
			case "lms":
				buf.WriteString(strconv.FormatInt(r.ElapsedMs, 10))
				i += 4
				continue
			}
		}

		if len(rest) >= 2 {
			handled := true
			switch rest[:2] {
			case "dd":
				buf.WriteString(fmt.Sprintf("%02d", t.Day()))
			case "dm":
				buf.WriteString(fmt.Sprintf("%02d", int(t.Month())))
			case "dy":
				buf.WriteString(strconv.Itoa(t.Year()))
			case "tH":
				buf.WriteString(fmt.Sprintf("%02d", t.Hour()))
			case "ti":
				buf.WriteString(fmt.Sprintf("%02d", t.Minute()))
			case "ts":
				buf.WriteString(fmt.Sprintf("%02d", t.Second()))
			case "tm":
				buf.WriteString(fmt.Sprintf("%03d", t.Nanosecond()/1e6))
			case "tz":
				buf.WriteString(t.Format("-07:00"))
			case "ri":
				buf.WriteString(r.RemoteIP)
			case "rm":
				buf.WriteString(r.Method)
			case "rs":
				buf.WriteString(r.Scheme)
			case "ra":
				buf.WriteString(r.Authority)
			case "rh":
				buf.WriteString(r.Host)
			case "rp":
				buf.WriteString(r.Port)
			case "rz":
				buf.WriteString(r.Path)
			case "rq":
				buf.WriteString(r.Query)
			case "sc":
				buf.WriteString(strconv.Itoa(r.Status))
			case "sd":
				buf.WriteString(r.StatusDescription)
			case "ls":
				buf.WriteString(r.ExecutionResult)
			default:
				handled = false
			}
			if handled {
				i += 3
				continue
			}
		}

		// Unknown token: pass through verbatim.
		buf.WriteByte('%')
		i++
	}

	return buf.String()
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}
