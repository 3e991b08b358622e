// Package multipart implements a streaming multipart/form-data parser
// and serializer. The parser is a boundary-driven state machine:
// discard bytes until the first boundary, read part headers until
// CRLFCRLF, capture content until the next boundary (the CRLF
// preceding a delimiter belongs to the framing, not the part), repeat
// until the closing sentinel.
package multipart

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
)

// ErrParse is the hard-failure kind for malformed multipart bodies:
// missing boundary parameter, malformed part header, or stream end
// before the closing sentinel. Maps to 400 at the dispatch layer.
var ErrParse = errors.New("multipart: malformed multipart body")

// Header is one verbatim part header field.
type Header struct {
	Name  string
	Value string
}

// Part is one named part of a multipart body.
type Part struct {
	// Name is the Content-Disposition name parameter.
	Name string

	// Filename is the Content-Disposition filename, decoded from
	// filename*=UTF-8''... when present, else the raw quoted value.
	// Empty for non-file fields.
	Filename string

	// Headers preserves the part's header fields verbatim, in order.
	Headers []Header

	// Content is the part's raw byte window. Boundary bytes never
	// occur inside it.
	Content []byte
}

// Header returns the first value of the named header, "" when absent.
func (p *Part) Header(name string) string {
	for i := range p.Headers {
		if strings.EqualFold(p.Headers[i].Name, name) {
			return p.Headers[i].Value
		}
	}
	return ""
}

// ContentType returns the part's Content-Type header, defaulting to
// text/plain for file-less fields and application/octet-stream for
// files, mirroring browser behavior.
func (p *Part) ContentType() string {
	if ct := p.Header("Content-Type"); ct != "" {
		return ct
	}
	if p.Filename != "" {
		return "application/octet-stream"
	}
	return "text/plain"
}

// BoundaryFromContentType extracts the boundary parameter from a
// multipart/form-data media type. A missing boundary is ErrParse.
func BoundaryFromContentType(contentType string) (string, error) {
	mediaType, params, ok := splitMediaType(contentType)
	if !ok || !strings.EqualFold(mediaType, "multipart/form-data") {
		return "", ErrParse
	}
	boundary := params["boundary"]
	if boundary == "" {
		return "", ErrParse
	}
	return boundary, nil
}

// splitMediaType parses "type/subtype; k=v; k2="v2"" without the
// stdlib mime package: parameter keys are lower-cased, values
// unquoted.
func splitMediaType(s string) (mediaType string, params map[string]string, ok bool) {
	params = make(map[string]string, 2)
	segs := strings.Split(s, ";")
	if len(segs) == 0 {
		return "", nil, false
	}
	mediaType = strings.TrimSpace(segs[0])
	if mediaType == "" {
		return "", nil, false
	}
	for _, seg := range segs[1:] {
		seg = strings.TrimSpace(seg)
		eq := strings.IndexByte(seg, '=')
		if eq <= 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(seg[:eq]))
		val := strings.TrimSpace(seg[eq+1:])
		val = strings.Trim(val, `"`)
		params[key] = val
	}
	return mediaType, params, true
}

// Reader streams parts out of a multipart body one at a time.
type Reader struct {
	r *bufio.Reader

	// delim is "\r\n--boundary"; the first boundary may appear
	// without the leading CRLF.
	delim      []byte
	firstDelim []byte

	started bool // past the first boundary
	done    bool // saw the closing sentinel

	// Delimiter-tail decisions made by discardPreamble, which consumes
	// whole lines and so already knows what follows the boundary.
	pendingOpen  bool
	pendingClose bool
}

// NewReader creates a streaming parser over r for the given boundary.
func NewReader(r io.Reader, boundary string) *Reader {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Reader{
		r:          br,
		delim:      []byte("\r\n--" + boundary),
		firstDelim: []byte("--" + boundary),
	}
}

// NextPart returns the next part, or io.EOF after the closing
// sentinel. Any framing violation returns ErrParse.
func (mr *Reader) NextPart() (*Part, error) {
	if mr.done {
		return nil, io.EOF
	}

	if !mr.started {
		if err := mr.discardPreamble(); err != nil {
			return nil, err
		}
		mr.started = true
	}

	// After a delimiter: "--" closes the body, CRLF opens a part.
	closed, err := mr.readDelimiterTail()
	if err != nil {
		return nil, err
	}
	if closed {
		mr.done = true
		return nil, io.EOF
	}

	part := &Part{}
	if err := mr.readPartHeaders(part); err != nil {
		return nil, err
	}

	content, err := mr.readUntilDelimiter()
	if err != nil {
		return nil, err
	}
	part.Content = content

	return part, nil
}

// ReadAll collects every part in order.
func ReadAll(r io.Reader, boundary string) ([]Part, error) {
	mr := NewReader(r, boundary)
	var parts []Part
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			return parts, nil
		}
		if err != nil {
			return nil, err
		}
		parts = append(parts, *p)
	}
}

// discardPreamble consumes bytes until the first boundary line.
func (mr *Reader) discardPreamble() error {
	for {
		line, err := mr.r.ReadBytes('\n')
		if err != nil {
			return ErrParse
		}
		trimmed := bytes.TrimRight(line, "\r\n")
		if bytes.Equal(trimmed, mr.firstDelim) {
			// Rewind conceptually: readDelimiterTail expects the bytes
			// after "--boundary"; the line terminator already told us
			// this opens a part. Push the state forward directly.
			mr.pendingOpen = true
			return nil
		}
		if bytes.Equal(trimmed, append(append([]byte{}, mr.firstDelim...), '-', '-')) {
			mr.pendingClose = true
			return nil
		}
	}
}

// pendingOpen/pendingClose carry the delimiter-tail decision made by
// discardPreamble, which consumes whole lines.
func (mr *Reader) readDelimiterTail() (closed bool, err error) {
	if mr.pendingClose {
		mr.pendingClose = false
		return true, nil
	}
	if mr.pendingOpen {
		mr.pendingOpen = false
		return false, nil
	}

	// Two bytes decide: "--" closes, "\r\n" (or lone "\n") opens.
	b0, err := mr.r.ReadByte()
	if err != nil {
		return false, ErrParse
	}
	if b0 == '-' {
		b1, err := mr.r.ReadByte()
		if err != nil || b1 != '-' {
			return false, ErrParse
		}
		// Trailing CRLF after the closing sentinel is optional.
		return true, nil
	}
	if b0 == '\n' {
		return false, nil
	}
	if b0 == '\r' {
		b1, err := mr.r.ReadByte()
		if err != nil || b1 != '\n' {
			return false, ErrParse
		}
		return false, nil
	}
	return false, ErrParse
}

// readPartHeaders reads field-lines up to the blank line and decodes
// Content-Disposition's name/filename parameters.
func (mr *Reader) readPartHeaders(part *Part) error {
	for {
		line, err := mr.r.ReadBytes('\n')
		if err != nil {
			return ErrParse
		}
		trimmed := bytes.TrimRight(line, "\r\n")
		if len(trimmed) == 0 {
			break
		}

		colon := bytes.IndexByte(trimmed, ':')
		if colon <= 0 {
			return ErrParse
		}
		name := string(bytes.TrimSpace(trimmed[:colon]))
		value := string(bytes.TrimSpace(trimmed[colon+1:]))
		part.Headers = append(part.Headers, Header{Name: name, Value: value})

		if strings.EqualFold(name, "Content-Disposition") {
			parseDisposition(value, part)
		}
	}
	return nil
}

// parseDisposition extracts name and filename from a
// Content-Disposition value. filename*=UTF-8''... takes precedence
// over the plain quoted filename.
func parseDisposition(value string, part *Part) {
	var plainFilename, extFilename string
	for _, seg := range strings.Split(value, ";") {
		seg = strings.TrimSpace(seg)
		eq := strings.IndexByte(seg, '=')
		if eq <= 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(seg[:eq]))
		val := strings.Trim(strings.TrimSpace(seg[eq+1:]), `"`)
		switch key {
		case "name":
			part.Name = val
		case "filename":
			plainFilename = val
		case "filename*":
			if dec, ok := decodeExtValue(val); ok {
				extFilename = dec
			}
		}
	}
	if extFilename != "" {
		part.Filename = extFilename
	} else {
		part.Filename = plainFilename
	}
}

// decodeExtValue decodes an RFC 5987 UTF-8''percent-encoded value.
func decodeExtValue(v string) (string, bool) {
	const prefix = "utf-8''"
	if len(v) < len(prefix) || !strings.EqualFold(v[:len(prefix)], prefix) {
		return "", false
	}
	enc := v[len(prefix):]
	var b strings.Builder
	for i := 0; i < len(enc); i++ {
		c := enc[i]
		if c == '%' && i+2 < len(enc) {
			hi, ok1 := unhex(enc[i+1])
			lo, ok2 := unhex(enc[i+2])
			if ok1 && ok2 {
				b.WriteByte(hi<<4 | lo)
				i += 2
				continue
			}
			return "", false
		}
		b.WriteByte(c)
	}
	return b.String(), true
}

func unhex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// readUntilDelimiter captures content bytes up to (excluding) the next
// "\r\n--boundary" delimiter. The preceding CRLF belongs to the
// framing, never to the part content.
func (mr *Reader) readUntilDelimiter() ([]byte, error) {
	var content []byte
	keep := len(mr.delim) - 1
	for {
		// Ensure at least one full delimiter could be buffered; a
		// short stream here means the body ended before the sentinel.
		if _, err := mr.r.Peek(len(mr.delim)); err != nil {
			return nil, ErrParse
		}
		window, _ := mr.r.Peek(mr.r.Buffered())

		if idx := bytes.Index(window, mr.delim); idx >= 0 {
			content = append(content, window[:idx]...)
			mr.r.Discard(idx + len(mr.delim))
			return content, nil
		}

		// No delimiter in the window: everything except a possible
		// partial-delimiter tail is part content.
		if len(window) <= keep {
			// Force the next fill past the current window.
			if _, err := mr.r.Peek(len(window) + 1); err != nil {
				return nil, ErrParse
			}
			continue
		}
		emit := len(window) - keep
		content = append(content, window[:emit]...)
		mr.r.Discard(emit)
	}
}

// Serialize renders parts to a complete multipart/form-data body with
// the given boundary. Round-trips with ReadAll for any valid boundary
// that does not occur in part content.
func Serialize(parts []Part, boundary string) []byte {
	var b bytes.Buffer
	for i := range parts {
		p := &parts[i]
		b.WriteString("--")
		b.WriteString(boundary)
		b.WriteString("\r\n")

		if p.Header("Content-Disposition") == "" {
			b.WriteString(`Content-Disposition: form-data; name="`)
			b.WriteString(p.Name)
			b.WriteString(`"`)
			if p.Filename != "" {
				b.WriteString(`; filename="`)
				b.WriteString(p.Filename)
				b.WriteString(`"`)
			}
			b.WriteString("\r\n")
		}
		for _, h := range p.Headers {
			b.WriteString(h.Name)
			b.WriteString(": ")
			b.WriteString(h.Value)
			b.WriteString("\r\n")
		}
		b.WriteString("\r\n")
		b.Write(p.Content)
		b.WriteString("\r\n")
	}
	b.WriteString("--")
	b.WriteString(boundary)
	b.WriteString("--\r\n")
	return b.Bytes()
}
