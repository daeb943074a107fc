package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// headerTerminator separates the framing header from the JSON body.
var headerTerminator = []byte("\r\n\r\n")

// ErrNoMessage signals that no complete message was available: the deadline
// passed, the stream closed, or a frame was malformed. Callers treat all
// three the same way, so the codec does not distinguish them.
var ErrNoMessage = errors.New("wire: no message available")

// ErrEmptyFrame reports a complete header whose Content-Length was zero,
// absent or malformed. The frame carries no readable body, but the header
// terminator was seen, so the stream itself may still be usable. Wraps
// ErrNoMessage; most callers need not tell the two apart.
var ErrEmptyFrame = fmt.Errorf("%w: empty frame", ErrNoMessage)

// WriteMessage frames msg with a Content-Length header and writes header and
// body in a single write. The writer must be unbuffered (a pipe, not a
// bufio.Writer); round-trip latency is being measured, so nothing may sit in
// a buffer between the caller and the server.
func WriteMessage(w io.Writer, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	var frame bytes.Buffer
	fmt.Fprintf(&frame, "Content-Length: %d\r\n\r\n", len(body))
	frame.Write(body)
	if _, err := w.Write(frame.Bytes()); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// ReadMessage reads one framed message from r. The header is consumed one
// byte at a time until the blank line so that no body bytes are swallowed by
// read-ahead. A missing, malformed or zero Content-Length yields
// ErrEmptyFrame; a truncated header or a body shorter than declared yields
// ErrNoMessage. There is no partial-message fallback.
func ReadMessage(r io.Reader) (*Message, error) {
	header, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	length, ok := contentLength(header)
	if !ok || length <= 0 {
		return nil, ErrEmptyFrame
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, ErrNoMessage
	}
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("decode message body: %w", err)
	}
	return &msg, nil
}

func readHeader(r io.Reader) ([]byte, error) {
	var header []byte
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			header = append(header, buf[0])
			if bytes.HasSuffix(header, headerTerminator) {
				return header, nil
			}
		}
		if err != nil {
			return nil, ErrNoMessage
		}
	}
}

// contentLength extracts the Content-Length value from a raw header block.
// The key match is case-insensitive per the LSP base protocol.
func contentLength(header []byte) (int, bool) {
	for _, line := range strings.Split(strings.TrimSpace(string(header)), "\r\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(key), "Content-Length") {
			continue
		}
		length, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0, false
		}
		return length, true
	}
	return 0, false
}
