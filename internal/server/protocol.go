package server

import (
	"encoding/json"
	"fmt"
)

// MessageType names a viewer socket message.
type MessageType string

const (
	// Server → viewer.
	MsgDocument MessageType = "document" // rendered panel document
	MsgError    MessageType = "error"
	MsgPong     MessageType = "pong"

	// Viewer → server.
	MsgPointer  MessageType = "pointer"  // press or release on a button
	MsgKeyboard MessageType = "keyboard" // keyboard text
	MsgKeypad   MessageType = "keypad"   // keypad text
	MsgPing     MessageType = "ping"
)

// Message is the viewer socket envelope.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// DocumentPayload carries a full document render.
type DocumentPayload struct {
	Version uint64 `json:"version"`
	HTML    string `json:"html"`
}

// PointerPayload names the button element and the transition.
type PointerPayload struct {
	ID    string `json:"id"`
	Phase string `json:"phase"` // "down" or "up"
}

// TextPayload carries keyboard or keypad text.
type TextPayload struct {
	Text string `json:"text"`
}

// ErrorPayload reports a failed viewer request.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ParseMessage decodes an envelope. A message without a type is an error.
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("parse viewer message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("parse viewer message: missing type")
	}
	return &msg, nil
}

// NewMessage builds an envelope around payload.
func NewMessage(t MessageType, payload any) (*Message, error) {
	msg := &Message{Type: t}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", t, err)
		}
		msg.Payload = data
	}
	return msg, nil
}

// NewErrorMessage builds an error envelope.
func NewErrorMessage(code int, message string) (*Message, error) {
	return NewMessage(MsgError, ErrorPayload{Code: code, Message: message})
}

// decode unmarshals the payload into v.
func (m *Message) decode(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", m.Type)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("%s payload: %w", m.Type, err)
	}
	return nil
}
