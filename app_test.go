package volt

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/voltframework/volt/wire"
)

// perform runs one raw request through the full dispatch path and
// returns the serialized response.
func perform(t *testing.T, app *App, raw string) string {
	t.Helper()
	parser := wire.NewParser()
	req, err := parser.Parse(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("request framing failed: %v", err)
	}
	defer wire.PutRequest(req)

	var buf bytes.Buffer
	rw := wire.NewResponseWriter(&buf)
	rw.SetKeepAlive(true)
	if req.IsHEAD() {
		rw.SetSuppressBody(true)
	}
	if err := app.serveWire(req, rw); err != nil {
		t.Fatalf("serve error: %v", err)
	}
	if err := rw.Flush(); err != nil {
		t.Fatalf("flush error: %v", err)
	}
	return buf.String()
}

func statusOf(t *testing.T, response string) string {
	t.Helper()
	line, _, ok := strings.Cut(response, "\r\n")
	if !ok {
		t.Fatalf("no status line in %q", response)
	}
	return line
}

func bodyOf(t *testing.T, response string) string {
	t.Helper()
	_, body, ok := strings.Cut(response, "\r\n\r\n")
	if !ok {
		t.Fatalf("no header/body split in %q", response)
	}
	return body
}

func TestSimpleGET(t *testing.T) {
	app := New()
	app.Get("/plaintext", func(c *Context) any {
		return "Hello, world!"
	})

	res := perform(t, app, "GET /plaintext HTTP/1.1\r\nHost: h\r\n\r\n")

	if got := statusOf(t, res); got != "HTTP/1.1 200 OK" {
		t.Errorf("status = %q", got)
	}
	if !strings.Contains(res, "Content-Type: text/plain; charset=utf-8\r\n") {
		t.Errorf("missing content type: %q", res)
	}
	if !strings.Contains(res, "Content-Length: 13\r\n") {
		t.Errorf("missing content length: %q", res)
	}
	if body := bodyOf(t, res); body != "Hello, world!" {
		t.Errorf("body = %q", body)
	}
}

func TestPathParameterBinding(t *testing.T) {
	app := New()
	app.Get("/items/<id>", func(c *Context) any {
		return c.PathParam("id")
	})

	res := perform(t, app, "GET /items/42 HTTP/1.1\r\nHost: h\r\n\r\n")
	if !strings.HasPrefix(res, "HTTP/1.1 200") {
		t.Fatalf("status: %q", statusOf(t, res))
	}
	if body := bodyOf(t, res); body != "42" {
		t.Errorf("body = %q, want 42", body)
	}
}

func TestCorsPreflight(t *testing.T) {
	app := New()
	host, err := NewListeningHost("api", "http://+:8080/")
	if err != nil {
		t.Fatal(err)
	}
	host.Cors = &CorsPolicy{
		AllowOrigins: []string{"https://a.example"},
		AllowMethods: []string{"POST"},
	}
	if err := app.AddHost(host); err != nil {
		t.Fatal(err)
	}
	app.Post("/x", func(c *Context) any { return Ok() })

	raw := "OPTIONS /x HTTP/1.1\r\n" +
		"Host: h\r\n" +
		"Origin: https://a.example\r\n" +
		"Access-Control-Request-Method: POST\r\n\r\n"
	res := perform(t, app, raw)

	if !strings.HasPrefix(res, "HTTP/1.1 204") {
		t.Fatalf("status = %q", statusOf(t, res))
	}
	if !strings.Contains(res, "Access-Control-Allow-Origin: https://a.example\r\n") {
		t.Errorf("missing allow-origin: %q", res)
	}
	if !strings.Contains(res, "Access-Control-Allow-Methods: POST\r\n") {
		t.Errorf("missing allow-methods: %q", res)
	}
}

func TestCorsPreflightRejected(t *testing.T) {
	app := New()
	host, _ := NewListeningHost("api", "http://+:8080/")
	host.Cors = &CorsPolicy{AllowOrigins: []string{"https://a.example"}}
	app.AddHost(host)
	app.Post("/x", func(c *Context) any { return Ok() })

	raw := "OPTIONS /x HTTP/1.1\r\n" +
		"Host: h\r\n" +
		"Origin: https://evil.example\r\n" +
		"Access-Control-Request-Method: POST\r\n\r\n"
	res := perform(t, app, raw)

	if !strings.HasPrefix(res, "HTTP/1.1 403") {
		t.Errorf("status = %q, want 403", statusOf(t, res))
	}
}

func TestChunkedResponse(t *testing.T) {
	chunks := []string{
		"This is the first chunk. ",
		"This is the second chunk. ",
		"This is the final chunk.",
	}

	app := New()
	app.Get("/stream", func(c *Context) any {
		readers := make([]io.Reader, len(chunks))
		for i, s := range chunks {
			readers[i] = strings.NewReader(s)
		}
		return Stream(200, io.MultiReader(readers...), LengthUnknown, "text/plain")
	})

	res := perform(t, app, "GET /stream HTTP/1.1\r\nHost: h\r\n\r\n")

	if !strings.Contains(res, "Transfer-Encoding: chunked\r\n") {
		t.Fatalf("missing chunked framing: %q", res)
	}
	if strings.Contains(res, "Content-Length:") {
		t.Errorf("chunked response must not carry Content-Length: %q", res)
	}

	body := bodyOf(t, res)
	reassembled, reads := decodeChunks(t, body)
	if reassembled != strings.Join(chunks, "") {
		t.Errorf("reassembled = %q", reassembled)
	}
	if reads < 2 {
		t.Errorf("expected more than one chunk, got %d", reads)
	}
	// Last chunk is the only zero-sized one.
	if !strings.HasSuffix(body, "0\r\n\r\n") {
		t.Errorf("missing terminal zero chunk: %q", body)
	}
}

// decodeChunks reassembles a chunked body, returning the payload and
// the number of non-zero chunks.
func decodeChunks(t *testing.T, body string) (string, int) {
	t.Helper()
	var out strings.Builder
	count := 0
	for {
		line, rest, ok := strings.Cut(body, "\r\n")
		if !ok {
			t.Fatalf("bad chunk framing near %q", body)
		}
		var size int
		if _, err := fmt.Sscanf(line, "%x", &size); err != nil {
			t.Fatalf("bad chunk size %q: %v", line, err)
		}
		if size == 0 {
			return out.String(), count
		}
		count++
		out.WriteString(rest[:size])
		body = rest[size+2:] // skip payload + CRLF
	}
}

func TestMultipartEcho(t *testing.T) {
	app := New()
	app.Post("/echo", func(c *Context) any {
		parts, err := c.ReadMultipart()
		if err != nil {
			return err
		}
		type echoed struct {
			Name           string `json:"name"`
			Value          string `json:"value,omitempty"`
			Filename       string `json:"filename,omitempty"`
			ContentType    string `json:"contentType,omitempty"`
			Length         int    `json:"length,omitempty"`
			ContentPreview string `json:"contentPreview,omitempty"`
		}
		out := make([]echoed, 0, len(parts))
		for _, p := range parts {
			if p.Filename == "" {
				out = append(out, echoed{Name: p.Name, Value: string(p.Content)})
				continue
			}
			out = append(out, echoed{
				Name:           p.Name,
				Filename:       p.Filename,
				ContentType:    p.ContentType(),
				Length:         len(p.Content),
				ContentPreview: string(p.Content),
			})
		}
		return JSON(200, out)
	})

	body := "--B\r\n" +
		"Content-Disposition: form-data; name=\"f\"\r\n\r\n" +
		"v\r\n" +
		"--B\r\n" +
		"Content-Disposition: form-data; name=\"file\"; filename=\"a.txt\"\r\n" +
		"Content-Type: text/plain\r\n\r\n" +
		"abc\r\n" +
		"--B--\r\n"
	raw := "POST /echo HTTP/1.1\r\n" +
		"Host: h\r\n" +
		"Content-Type: multipart/form-data; boundary=B\r\n" +
		fmt.Sprintf("Content-Length: %d\r\n", len(body)) +
		"\r\n" + body

	res := perform(t, app, raw)
	if !strings.HasPrefix(res, "HTTP/1.1 200") {
		t.Fatalf("status = %q, body %q", statusOf(t, res), bodyOf(t, res))
	}
	got := bodyOf(t, res)
	for _, want := range []string{
		`"name":"f"`, `"value":"v"`,
		`"name":"file"`, `"filename":"a.txt"`,
		`"contentType":"text/plain"`, `"length":3`, `"contentPreview":"abc"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("echo body %q missing %s", got, want)
		}
	}
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	app := New()
	app.Get("/only-get", func(c *Context) any { return Ok() })

	res := perform(t, app, "GET /nope HTTP/1.1\r\nHost: h\r\n\r\n")
	if !strings.HasPrefix(res, "HTTP/1.1 404") {
		t.Errorf("status = %q, want 404", statusOf(t, res))
	}

	res = perform(t, app, "POST /only-get HTTP/1.1\r\nHost: h\r\n\r\n")
	if !strings.HasPrefix(res, "HTTP/1.1 405") {
		t.Errorf("status = %q, want 405", statusOf(t, res))
	}
	if !strings.Contains(res, "Allow: GET\r\n") {
		t.Errorf("405 must carry Allow: %q", res)
	}
}

func TestHeadMatchesGetWithLengthParity(t *testing.T) {
	app := New()
	app.Get("/page", func(c *Context) any { return "hello" })

	getRes := perform(t, app, "GET /page HTTP/1.1\r\nHost: h\r\n\r\n")
	headRes := perform(t, app, "HEAD /page HTTP/1.1\r\nHost: h\r\n\r\n")

	if !strings.Contains(getRes, "Content-Length: 5\r\n") {
		t.Fatalf("GET response: %q", getRes)
	}
	if !strings.Contains(headRes, "Content-Length: 5\r\n") {
		t.Errorf("HEAD must carry the GET Content-Length: %q", headRes)
	}
	if body := bodyOf(t, headRes); body != "" {
		t.Errorf("HEAD body = %q, want empty", body)
	}
}

func TestPipelineShortCircuitAndAfterResponse(t *testing.T) {
	var order []string

	app := New()
	app.UsePre(HandlerFunc(func(c *Context) *Response {
		order = append(order, "global-pre")
		return nil
	}))
	app.UsePre(HandlerFunc(func(c *Context) *Response {
		order = append(order, "short-circuit")
		return Text(401, "denied")
	}))
	app.UsePost(AfterResponse(func(c *Context) *Response {
		order = append(order, "after-response")
		return nil
	}))
	app.Get("/x", func(c *Context) any {
		order = append(order, "action")
		return Ok()
	})

	res := perform(t, app, "GET /x HTTP/1.1\r\nHost: h\r\n\r\n")
	if !strings.HasPrefix(res, "HTTP/1.1 401") {
		t.Fatalf("status = %q", statusOf(t, res))
	}

	want := []string{"global-pre", "short-circuit", "after-response"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestActionPanicBecomes500(t *testing.T) {
	app := New()
	app.Get("/boom", func(c *Context) any {
		panic("kaboom")
	})

	res := perform(t, app, "GET /boom HTTP/1.1\r\nHost: h\r\n\r\n")
	if !strings.HasPrefix(res, "HTTP/1.1 500") {
		t.Errorf("status = %q, want 500", statusOf(t, res))
	}
	if strings.Contains(res, "kaboom") {
		t.Errorf("panic detail must not leak into the body: %q", res)
	}
}

func TestUnregisteredActionType(t *testing.T) {
	type odd struct{ X int }
	app := New()
	app.Get("/odd", func(c *Context) any { return odd{X: 1} })

	res := perform(t, app, "GET /odd HTTP/1.1\r\nHost: h\r\n\r\n")
	if !strings.HasPrefix(res, "HTTP/1.1 500") {
		t.Errorf("status = %q, want 500 for unregistered result type", statusOf(t, res))
	}
}

func TestRegisteredResultType(t *testing.T) {
	type user struct {
		Name string `json:"name"`
	}
	app := New()
	if err := RegisterResultType(app.Results(), func(u user) *Response {
		return JSON(201, u)
	}); err != nil {
		t.Fatal(err)
	}
	app.Get("/u", func(c *Context) any { return user{Name: "ada"} })

	res := perform(t, app, "GET /u HTTP/1.1\r\nHost: h\r\n\r\n")
	if !strings.HasPrefix(res, "HTTP/1.1 201") {
		t.Fatalf("status = %q", statusOf(t, res))
	}
	if !strings.Contains(bodyOf(t, res), `"name":"ada"`) {
		t.Errorf("body = %q", bodyOf(t, res))
	}
}

func TestRequestIdHeader(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IncludeRequestIdHeader = true
	app := NewWithConfig(cfg)
	app.Get("/id", func(c *Context) any { return Ok() })

	// Caller-supplied tokens are propagated verbatim.
	res := perform(t, app, "GET /id HTTP/1.1\r\nHost: h\r\nX-Request-Id: token-123\r\n\r\n")
	if !strings.Contains(res, "X-Request-Id: token-123\r\n") {
		t.Errorf("caller id not propagated: %q", res)
	}

	// Otherwise one is minted.
	res = perform(t, app, "GET /id HTTP/1.1\r\nHost: h\r\n\r\n")
	if !strings.Contains(res, "X-Request-Id: ") {
		t.Errorf("no request id minted: %q", res)
	}
}

func TestBasePathRouting(t *testing.T) {
	app := New()
	host, err := NewListeningHost("api", "http://+:8080/api/")
	if err != nil {
		t.Fatal(err)
	}
	app.AddHost(host)
	app.Get("/users", func(c *Context) any { return "inside" })

	res := perform(t, app, "GET /api/users HTTP/1.1\r\nHost: h\r\n\r\n")
	if !strings.HasPrefix(res, "HTTP/1.1 200") {
		t.Fatalf("base-path route: %q", statusOf(t, res))
	}

	res = perform(t, app, "GET /users HTTP/1.1\r\nHost: h\r\n\r\n")
	if !strings.HasPrefix(res, "HTTP/1.1 404") {
		t.Errorf("outside base path should 404: %q", statusOf(t, res))
	}
}

func TestStatusHandlerOverride(t *testing.T) {
	app := New()
	app.OnStatus(404, func(c *Context) *Response {
		return JSON(404, map[string]string{"error": "no such thing"})
	})

	res := perform(t, app, "GET /missing HTTP/1.1\r\nHost: h\r\n\r\n")
	if !strings.Contains(bodyOf(t, res), "no such thing") {
		t.Errorf("custom 404 body not used: %q", res)
	}
}

func TestForwardedResolver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolver = func(c *Context) (string, string, string, error) {
		if xf := c.Header("X-Forwarded-For"); xf != "" {
			return xf, "", "https", nil
		}
		return "", "", "", nil
	}
	app := NewWithConfig(cfg)
	app.Get("/who", func(c *Context) any {
		return c.RemoteAddr() + " " + c.Scheme()
	})

	res := perform(t, app, "GET /who HTTP/1.1\r\nHost: h\r\nX-Forwarded-For: 10.1.2.3\r\n\r\n")
	if body := bodyOf(t, res); body != "10.1.2.3 https" {
		t.Errorf("body = %q", body)
	}
}

func TestForwardedResolverFailureIsBadRequest(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolver = func(c *Context) (string, string, string, error) {
		return "", "", "", fmt.Errorf("spoofed header")
	}
	app := NewWithConfig(cfg)
	app.Get("/who", func(c *Context) any { return Ok() })

	res := perform(t, app, "GET /who HTTP/1.1\r\nHost: h\r\n\r\n")
	if !strings.HasPrefix(res, "HTTP/1.1 400") {
		t.Errorf("status = %q, want 400", statusOf(t, res))
	}
}
