package wire

import "errors"

// Parser errors - Pre-allocated for zero runtime allocation
var (
	// ErrInvalidRequestLine indicates the request line is malformed
	// Request line format: METHOD PATH PROTOCOL\r\n
	ErrInvalidRequestLine = errors.New("wire: invalid request line")

	// ErrInvalidMethod indicates an unsupported or malformed HTTP method
	ErrInvalidMethod = errors.New("wire: invalid HTTP method")

	// ErrInvalidPath indicates the request path is malformed
	ErrInvalidPath = errors.New("wire: invalid request path")

	// ErrInvalidProtocol indicates an unsupported protocol version
	// Only HTTP/1.1 is supported by this engine
	ErrInvalidProtocol = errors.New("wire: invalid or unsupported protocol version")

	// ErrInvalidHeader indicates a malformed header
	// Headers must be in format: Name: Value\r\n
	ErrInvalidHeader = errors.New("wire: invalid HTTP header")

	// ErrHeaderTooLarge indicates a header name or value exceeds size limits
	ErrHeaderTooLarge = errors.New("wire: header name or value too large")

	// ErrTooManyHeaders indicates the configured header-count limit was exceeded.
	// Maps to 431 Request Header Fields Too Large.
	ErrTooManyHeaders = errors.New("wire: too many headers")

	// ErrRequestLineTooLarge indicates the request line exceeds the configured limit
	ErrRequestLineTooLarge = errors.New("wire: request line too large")

	// ErrHeadersTooLarge indicates total headers size exceeds the configured limit.
	// Maps to 431 Request Header Fields Too Large.
	ErrHeadersTooLarge = errors.New("wire: headers too large")

	// ErrPayloadTooLarge indicates the declared or observed body size exceeds
	// the configured content-length cap. Maps to 413 Payload Too Large.
	ErrPayloadTooLarge = errors.New("wire: payload too large")

	// ErrChunkedEncoding indicates an error parsing chunked transfer encoding
	ErrChunkedEncoding = errors.New("wire: chunked encoding error")

	// ErrInvalidContentLength indicates Content-Length header is malformed
	ErrInvalidContentLength = errors.New("wire: invalid Content-Length")

	// ErrContentLengthWithTransferEncoding indicates a request has both headers.
	// RFC 7230 §3.3.3: This MUST be rejected to prevent smuggling attacks.
	ErrContentLengthWithTransferEncoding = errors.New("wire: request has both Content-Length and Transfer-Encoding")

	// ErrDuplicateContentLength indicates multiple Content-Length headers with different values.
	// RFC 7230 §3.3.3: This MUST be rejected to prevent smuggling attacks.
	ErrDuplicateContentLength = errors.New("wire: duplicate Content-Length headers with different values")

	// ErrURITooLong indicates the URI exceeds the maximum allowed length
	ErrURITooLong = errors.New("wire: URI too long")

	// ErrUnexpectedEOF indicates unexpected end of input
	ErrUnexpectedEOF = errors.New("wire: unexpected EOF")

	// ErrBufferTooSmall indicates the provided buffer is too small
	ErrBufferTooSmall = errors.New("wire: buffer too small")
)

// Connection errors
var (
	// ErrConnectionClosed indicates the connection has been closed
	ErrConnectionClosed = errors.New("wire: connection closed")

	// ErrTimeout indicates a read or write timeout occurred
	ErrTimeout = errors.New("wire: timeout")

	// ErrMaxRequestsExceeded indicates max requests per connection exceeded
	ErrMaxRequestsExceeded = errors.New("wire: max requests per connection exceeded")
)

// Response errors
var (
	// ErrHeadersAlreadyWritten indicates WriteHeader was called multiple times
	ErrHeadersAlreadyWritten = errors.New("wire: headers already written")

	// ErrWriteAfterFlush indicates an attempt to mutate the status line or
	// headers after the first response byte reached the wire.
	ErrWriteAfterFlush = errors.New("wire: header write after response flush")

	// ErrInvalidStatusCode indicates an invalid HTTP status code
	ErrInvalidStatusCode = errors.New("wire: invalid status code")
)

// StatusForError maps a framing error to the HTTP status code the
// connection loop answers with before closing.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, ErrPayloadTooLarge):
		return 413
	case errors.Is(err, ErrHeadersTooLarge), errors.Is(err, ErrTooManyHeaders):
		return 431
	case errors.Is(err, ErrRequestLineTooLarge), errors.Is(err, ErrURITooLong):
		return 414
	default:
		return 400
	}
}
