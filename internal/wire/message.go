// Package wire implements the JSON-RPC 2.0 envelope and the Content-Length
// framing that the Language Server Protocol uses over stdio.
package wire

import (
	"encoding/json"
	"fmt"
)

// LSP methods exchanged during a cold-start run.
const (
	MethodInitialize          = "initialize"
	MethodInitialized         = "initialized"
	MethodTextDocumentDidOpen = "textDocument/didOpen"
	MethodShutdown            = "shutdown"
	MethodExit                = "exit"
)

// Message is a JSON-RPC 2.0 envelope. A request carries ID, Method and
// Params; a notification carries Method and Params; a response carries ID
// and Result or Error. Params and Result stay raw so a received message can
// be inspected before committing to a payload type.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// ResponseError is the JSON-RPC 2.0 error object.
type ResponseError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// NewRequest builds a request message. Params are marshaled eagerly so that
// sending is a single write with no serialization surprises mid-flight.
func NewRequest(id int64, method string, params any) (*Message, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, fmt.Errorf("marshal %s params: %w", method, err)
	}
	return &Message{JSONRPC: "2.0", ID: id, Method: method, Params: raw}, nil
}

// NewNotification builds a notification message (no ID, no response expected).
func NewNotification(method string, params any) (*Message, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, fmt.Errorf("marshal %s params: %w", method, err)
	}
	return &Message{JSONRPC: "2.0", Method: method, Params: raw}, nil
}

func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	return json.Marshal(params)
}

// IsNotification reports whether the message is a server notification with
// the given method.
func (m *Message) IsNotification(method string) bool {
	return m.ID == nil && m.Method == method
}

// IsResponseTo reports whether the message is the response to the request
// with the given numeric ID. JSON decoding leaves the ID as float64 or
// json.Number depending on the decoder; both are accepted.
func (m *Message) IsResponseTo(id int64) bool {
	if m.Method != "" || m.ID == nil {
		return false
	}
	switch v := m.ID.(type) {
	case float64:
		return int64(v) == id
	case int64:
		return v == id
	case int:
		return int64(v) == id
	case json.Number:
		n, err := v.Int64()
		return err == nil && n == id
	default:
		return false
	}
}
