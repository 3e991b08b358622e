package ws

import (
	"bufio"
	"encoding/binary"
	"net"
	"sync"
	"time"
	"unicode/utf8"
)

// defaultMaxMessage caps assembled message size (32MB).
const defaultMaxMessage = 32 << 20

// Conn is one framed WebSocket connection over an upgraded socket.
//
// The read side runs single-threaded (one ReadMessage loop);
// concurrent writers are serialized by an internal lock so control
// replies never tear a data frame. A received close is echoed and the
// connection transitions to StateClosed; ping frames are answered
// with a pong automatically; an armed idle timeout closes with
// 1001 (going away).
type Conn struct {
	nc net.Conn
	br *bufio.Reader
	bw *bufio.Writer

	server      bool
	subprotocol string

	state stateVar

	// writeMu serializes frames; writeScratch backs client-side
	// masking and close payloads.
	writeMu      sync.Mutex
	writeScratch []byte
	closeSent    bool

	// Fragmented-message assembly state (read side only).
	fragOpcode byte
	fragBuf    []byte
	inFragment bool

	maxMessage  int64
	idleTimeout time.Duration
}

// newConn frames an upgraded socket. br may already hold buffered
// bytes from the handshake read; they belong to the frame stream.
func newConn(nc net.Conn, br *bufio.Reader, writeBufSize int, server bool, subprotocol string) *Conn {
	if br == nil {
		br = bufio.NewReader(nc)
	}
	if writeBufSize <= 0 {
		writeBufSize = 4096
	}
	return &Conn{
		nc:          nc,
		br:          br,
		bw:          bufio.NewWriterSize(nc, writeBufSize),
		server:      server,
		subprotocol: subprotocol,
		maxMessage:  defaultMaxMessage,
	}
}

// State returns the connection's lifecycle state.
func (c *Conn) State() State {
	return c.state.load()
}

// SetMaxMessageSize caps the assembled message size. Default 32MB.
func (c *Conn) SetMaxMessageSize(size int64) {
	c.maxMessage = size
}

// SetIdleTimeout arms the idle close: when no frame arrives within d,
// the connection closes with code 1001 (going away). 0 disables.
func (c *Conn) SetIdleTimeout(d time.Duration) {
	c.idleTimeout = d
}

// Subprotocol returns the negotiated subprotocol.
func (c *Conn) Subprotocol() string {
	return c.subprotocol
}

// LocalAddr returns the local network address.
func (c *Conn) LocalAddr() net.Addr { return c.nc.LocalAddr() }

// RemoteAddr returns the remote network address.
func (c *Conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

// ReadMessage returns the next complete data message, transparently
// handling fragmentation and control frames: pings are answered with
// pongs, pongs are absorbed, a close is echoed and surfaces as
// ErrConnClosed after the state moves to StateClosed.
func (c *Conn) ReadMessage() (MessageType, []byte, error) {
	for {
		if c.state.load() == StateClosed {
			return 0, nil, ErrConnClosed
		}

		if c.idleTimeout > 0 {
			c.nc.SetReadDeadline(time.Now().Add(c.idleTimeout))
		}

		h, err := readFrameHeader(c.br)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				// Idle peer: announce we are going away, then drop.
				c.closeWith(CloseGoingAway, "idle timeout")
				return 0, nil, err
			}
			c.abort()
			return 0, nil, err
		}

		// Masking direction is fixed by role (RFC 6455 §5.1): every
		// client frame masked, no server frame masked.
		if c.server && !h.masked {
			c.closeWith(CloseProtocolError, "unmasked client frame")
			return 0, nil, ErrMaskRequired
		}
		if !c.server && h.masked {
			c.closeWith(CloseProtocolError, "masked server frame")
			return 0, nil, ErrMaskNotAllowed
		}

		payload, err := readPayload(c.br, h, c.maxMessage)
		if err != nil {
			if err == ErrMessageTooLarge {
				c.closeWith(CloseMessageTooBig, "frame too large")
			} else {
				c.abort()
			}
			return 0, nil, err
		}

		if h.isControl() {
			if err := c.handleControl(h.opcode, payload); err != nil {
				return 0, nil, err
			}
			continue
		}

		msgType, data, complete, err := c.assemble(h, payload)
		if err != nil {
			c.closeWith(CloseProtocolError, err.Error())
			return 0, nil, err
		}
		if !complete {
			continue
		}

		if msgType == TextMessage && !utf8.Valid(data) {
			c.closeWith(CloseInvalidPayload, "invalid utf-8")
			return 0, nil, ErrInvalidUTF8
		}
		return msgType, data, nil
	}
}

// assemble folds one data frame into the fragmentation state and
// reports whether a message completed (RFC 6455 §5.4).
func (c *Conn) assemble(h frameHeader, payload []byte) (MessageType, []byte, bool, error) {
	switch h.opcode {
	case opContinuation:
		if !c.inFragment {
			return 0, nil, false, ErrUnexpectedContinuation
		}
		if int64(len(c.fragBuf))+int64(len(payload)) > c.maxMessage {
			return 0, nil, false, ErrMessageTooLarge
		}
		c.fragBuf = append(c.fragBuf, payload...)
		if !h.fin {
			return 0, nil, false, nil
		}
		data := c.fragBuf
		msgType := TextMessage
		if c.fragOpcode == opBinary {
			msgType = BinaryMessage
		}
		c.inFragment = false
		c.fragBuf = nil
		return msgType, data, true, nil

	case opText, opBinary:
		if c.inFragment {
			return 0, nil, false, ErrDataDuringFragment
		}
		msgType := TextMessage
		if h.opcode == opBinary {
			msgType = BinaryMessage
		}
		if h.fin {
			return msgType, payload, true, nil
		}
		// First fragment: remember the kind, keep collecting.
		c.fragOpcode = h.opcode
		c.fragBuf = append([]byte(nil), payload...)
		c.inFragment = true
		return 0, nil, false, nil
	}
	return 0, nil, false, ErrInvalidOpcode
}

// handleControl services ping/pong/close in the read loop.
func (c *Conn) handleControl(opcode byte, payload []byte) error {
	switch opcode {
	case opPing:
		// Auto-pong mirrors the ping payload (RFC 6455 §5.5.3).
		return c.writeControl(opPong, payload)

	case opPong:
		// Unsolicited pongs are permitted and absorbed.
		return nil

	case opClose:
		code := CloseNormal
		var reason string
		if len(payload) >= 2 {
			code = binary.BigEndian.Uint16(payload[:2])
			reason = string(payload[2:])
			if !validCloseCode(code) {
				c.closeWith(CloseProtocolError, "invalid close code")
				return ErrInvalidCloseCode
			}
			if !utf8.ValidString(reason) {
				c.closeWith(CloseInvalidPayload, "invalid close reason")
				return ErrInvalidUTF8
			}
		}

		// Echo the close (unless we initiated), then the handshake is
		// complete and the socket dies.
		c.closeWith(code, "")
		return ErrConnClosed
	}
	return ErrInvalidOpcode
}

// WriteMessage writes one complete data message as a single frame.
func (c *Conn) WriteMessage(messageType MessageType, data []byte) error {
	if c.state.load() != StateOpen {
		return ErrConnClosed
	}

	var opcode byte
	switch messageType {
	case TextMessage:
		if !utf8.Valid(data) {
			return ErrInvalidUTF8
		}
		opcode = opText
	case BinaryMessage:
		opcode = opBinary
	default:
		return ErrInvalidOpcode
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return writeFrame(c.bw, true, opcode, data, !c.server, &c.writeScratch)
}

// WritePing sends a ping control frame.
func (c *Conn) WritePing(data []byte) error {
	return c.writeControl(opPing, data)
}

// WritePong sends an unsolicited pong control frame.
func (c *Conn) WritePong(data []byte) error {
	return c.writeControl(opPong, data)
}

func (c *Conn) writeControl(opcode byte, payload []byte) error {
	if len(payload) > maxControlPayload {
		return ErrControlTooLong
	}
	if c.state.load() == StateClosed {
		return ErrConnClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return writeFrame(c.bw, true, opcode, payload, !c.server, &c.writeScratch)
}

// Close performs a clean shutdown with code 1000. Idempotent.
func (c *Conn) Close() error {
	return c.CloseWithCode(CloseNormal, "")
}

// CloseWithCode sends a close frame with the given code and reason,
// then closes the socket. Idempotent.
func (c *Conn) CloseWithCode(code uint16, reason string) error {
	return c.closeWith(code, reason)
}

// closeWith sends the close frame (once) and tears the socket down.
func (c *Conn) closeWith(code uint16, reason string) error {
	if !c.state.transition(StateOpen, StateClosing) &&
		!c.state.transition(StateClosing, StateClosing) {
		return nil // already closed
	}

	c.writeMu.Lock()
	if !c.closeSent {
		c.closeSent = true
		if len(reason) > maxControlPayload-2 {
			reason = reason[:maxControlPayload-2]
		}
		payload := make([]byte, 2+len(reason))
		binary.BigEndian.PutUint16(payload[:2], code)
		copy(payload[2:], reason)
		// Best effort: the socket may already be gone.
		_ = writeFrame(c.bw, true, opClose, payload, !c.server, &c.writeScratch)
	}
	c.writeMu.Unlock()

	c.state.store(StateClosed)
	return c.nc.Close()
}

// abort drops the socket without a close handshake (I/O fault paths).
func (c *Conn) abort() {
	c.state.store(StateClosed)
	c.nc.Close()
}
