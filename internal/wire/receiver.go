package wire

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// ErrStreamClosed reports that the underlying stream is gone for good. It
// wraps ErrNoMessage so callers that only care about "nothing arrived" keep
// working, while poll loops can stop retrying a dead stream.
var ErrStreamClosed = fmt.Errorf("%w: stream closed", ErrNoMessage)

// Receiver turns a blocking byte stream into deadline-bounded message
// receives. Pipes have no portable non-blocking read, so a single pump
// goroutine owns the stream and decodes frames into a channel; Receive then
// races the channel against a timer. Empty frames are skipped; the pump
// exits on EOF, a truncated frame or a decode failure, closing the channel,
// after which every receive reports ErrNoMessage. Call Close when done
// receiving so a still-talking server cannot leave the pump blocked on a
// full channel.
type Receiver struct {
	messages  chan *Message
	done      chan struct{}
	closeOnce sync.Once
}

// NewReceiver starts the frame pump over r.
func NewReceiver(r io.Reader) *Receiver {
	rc := &Receiver{
		messages: make(chan *Message, 16),
		done:     make(chan struct{}),
	}
	go rc.pump(r)
	return rc
}

func (rc *Receiver) pump(r io.Reader) {
	defer close(rc.messages)
	for {
		msg, err := ReadMessage(r)
		if errors.Is(err, ErrEmptyFrame) {
			// The header was complete but carried no readable body; the
			// stream is still positioned at a boundary, so keep reading.
			continue
		}
		if err != nil {
			return
		}
		select {
		case rc.messages <- msg:
		case <-rc.done:
			return
		}
	}
}

// Receive returns the next message, waiting at most timeout. A passed
// deadline and a closed stream both yield ErrNoMessage; the caller's loop
// decides whether that is fatal.
func (rc *Receiver) Receive(timeout time.Duration) (*Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case msg, open := <-rc.messages:
		if !open {
			return nil, ErrStreamClosed
		}
		return msg, nil
	case <-timer.C:
		return nil, ErrNoMessage
	}
}

// Close stops delivery and lets the pump goroutine exit once its current
// read completes. Messages already buffered remain receivable. Safe to call
// more than once.
func (rc *Receiver) Close() {
	rc.closeOnce.Do(func() { close(rc.done) })
}
