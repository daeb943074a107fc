package wire

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteMessage_Framing(t *testing.T) {
	msg, err := NewNotification(MethodInitialized, map[string]any{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, msg))

	framed := buf.String()
	header, body, found := strings.Cut(framed, "\r\n\r\n")
	require.True(t, found, "frame must contain a blank line")
	assert.Equal(t, fmt.Sprintf("Content-Length: %d", len(body)), header)
	assert.Contains(t, body, `"jsonrpc":"2.0"`)
	assert.Contains(t, body, `"method":"initialized"`)
}

func TestReadMessage_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  func() (*Message, error)
	}{
		{
			name: "request with params",
			msg: func() (*Message, error) {
				return NewRequest(1, MethodInitialize, map[string]any{
					"processId": 4242,
					"rootUri":   "file:///home/user/project",
				})
			},
		},
		{
			name: "notification with nested params",
			msg: func() (*Message, error) {
				return NewNotification(MethodTextDocumentDidOpen, map[string]any{
					"textDocument": map[string]any{
						"uri":        "file:///home/user/project/oos.r",
						"languageId": "r",
						"version":    1,
						"text":       "x <- 1\n",
					},
				})
			},
		},
		{
			name: "request without params",
			msg: func() (*Message, error) {
				return NewRequest(99, MethodShutdown, nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original, err := tt.msg()
			require.NoError(t, err)

			var buf bytes.Buffer
			require.NoError(t, WriteMessage(&buf, original))

			decoded, err := ReadMessage(&buf)
			require.NoError(t, err)

			assert.Equal(t, original.JSONRPC, decoded.JSONRPC)
			assert.Equal(t, original.Method, decoded.Method)
			assert.EqualValues(t, original.ID, decoded.ID)
			if original.Params == nil {
				assert.Nil(t, decoded.Params)
			} else {
				assert.JSONEq(t, string(original.Params), string(decoded.Params))
			}
		})
	}
}

func TestReadMessage_CaseInsensitiveHeader(t *testing.T) {
	body := `{"jsonrpc":"2.0","method":"initialized"}`
	framed := fmt.Sprintf("content-length: %d\r\n\r\n%s", len(body), body)

	msg, err := ReadMessage(strings.NewReader(framed))
	require.NoError(t, err)
	assert.Equal(t, MethodInitialized, msg.Method)
}

func TestReadMessage_ExtraHeaderFields(t *testing.T) {
	body := `{"jsonrpc":"2.0","method":"initialized"}`
	framed := fmt.Sprintf(
		"Content-Type: application/vscode-jsonrpc; charset=utf-8\r\nContent-Length: %d\r\n\r\n%s",
		len(body), body)

	msg, err := ReadMessage(strings.NewReader(framed))
	require.NoError(t, err)
	assert.Equal(t, MethodInitialized, msg.Method)
}

func TestReadMessage_MissingContentLength(t *testing.T) {
	framed := "Content-Type: application/vscode-jsonrpc\r\n\r\n{}"

	_, err := ReadMessage(strings.NewReader(framed))
	assert.ErrorIs(t, err, ErrNoMessage)
}

func TestReadMessage_ZeroContentLength(t *testing.T) {
	_, err := ReadMessage(strings.NewReader("Content-Length: 0\r\n\r\n"))
	assert.ErrorIs(t, err, ErrNoMessage)
}

func TestReadMessage_ShortBody(t *testing.T) {
	// Declares 100 bytes but the stream closes after 10.
	framed := "Content-Length: 100\r\n\r\n{\"jsonrpc\""

	_, err := ReadMessage(strings.NewReader(framed))
	assert.ErrorIs(t, err, ErrNoMessage)
}

func TestReadMessage_TruncatedHeader(t *testing.T) {
	_, err := ReadMessage(strings.NewReader("Content-Len"))
	assert.ErrorIs(t, err, ErrNoMessage)
}

func TestReceiver_DeliversMessagesInOrder(t *testing.T) {
	var buf bytes.Buffer
	for i := int64(1); i <= 3; i++ {
		msg, err := NewRequest(i, MethodInitialize, nil)
		require.NoError(t, err)
		require.NoError(t, WriteMessage(&buf, msg))
	}

	rc := NewReceiver(&buf)
	for i := int64(1); i <= 3; i++ {
		msg, err := rc.Receive(time.Second)
		require.NoError(t, err)
		assert.EqualValues(t, i, msg.ID)
	}

	_, err := rc.Receive(10 * time.Millisecond)
	assert.ErrorIs(t, err, ErrNoMessage)
}

func TestReceiver_SkipsEmptyFrames(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{"zero length", "Content-Length: 0\r\n\r\n"},
		{"malformed length", "Content-Length: banana\r\n\r\n"},
		{"absent length", "Content-Type: application/vscode-jsonrpc\r\n\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			buf.WriteString(tt.frame)
			msg, err := NewNotification(MethodInitialized, nil)
			require.NoError(t, err)
			require.NoError(t, WriteMessage(&buf, msg))

			// The bad frame must not kill the stream; the message behind
			// it still arrives.
			rc := NewReceiver(&buf)
			got, err := rc.Receive(time.Second)
			require.NoError(t, err)
			assert.Equal(t, MethodInitialized, got.Method)
		})
	}
}

func TestReceiver_CloseReleasesPump(t *testing.T) {
	// More framed messages than the channel buffers, then a stream that
	// never ends, so an unclosed pump would stay blocked forever.
	var buf bytes.Buffer
	for i := int64(1); i <= 40; i++ {
		msg, err := NewRequest(i, MethodInitialize, nil)
		require.NoError(t, err)
		require.NoError(t, WriteMessage(&buf, msg))
	}
	rc := NewReceiver(io.MultiReader(&buf, stalledReader{}))

	first, err := rc.Receive(time.Second)
	require.NoError(t, err)
	assert.EqualValues(t, 1, first.ID)

	rc.Close()
	rc.Close() // idempotent

	// Buffered messages drain; after the pump stops, receives fail fast
	// instead of hanging.
	for i := 0; i < 50; i++ {
		if _, err = rc.Receive(50 * time.Millisecond); err != nil {
			break
		}
	}
	assert.ErrorIs(t, err, ErrNoMessage)
}

func TestReceiver_RespectsDeadline(t *testing.T) {
	// A reader that produces nothing and never closes.
	rc := NewReceiver(stalledReader{})

	start := time.Now()
	_, err := rc.Receive(50 * time.Millisecond)
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrNoMessage)
	assert.Less(t, elapsed, 500*time.Millisecond, "receive must not block past its deadline")
}

func TestReceiver_ClosedStream(t *testing.T) {
	rc := NewReceiver(strings.NewReader(""))

	_, err := rc.Receive(time.Second)
	assert.ErrorIs(t, err, ErrNoMessage)
}

// stalledReader blocks forever, modeling a hung server.
type stalledReader struct{}

func (stalledReader) Read([]byte) (int, error) {
	select {}
}

var _ io.Reader = stalledReader{}
