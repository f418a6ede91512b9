// Package events contains the WebSocket message contract of streamed comparisons.
package events

import (
	"time"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	MessageTypeProgress MessageType = "progress"
	MessageTypeResult   MessageType = "result"
	MessageTypeError    MessageType = "error"
)

// BaseMessage represents the base structure for all WebSocket messages
type BaseMessage struct {
	ID        string      `json:"id,omitempty"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// WebSocketMessage represents a complete WebSocket message
type WebSocketMessage struct {
	BaseMessage
	Data any `json:"data,omitempty"`
}

// ProgressData is the payload of a progress message
type ProgressData struct {
	Processed int     `json:"processed"`
	Total     int     `json:"total"`
	Percent   float64 `json:"percent"`
}

// ErrorData is the payload of an error message
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// NewMessage stamps a message of the given type
func NewMessage(kind MessageType, traceID string, data any) WebSocketMessage {
	return WebSocketMessage{
		BaseMessage: BaseMessage{Type: kind, Timestamp: time.Now().UTC(), TraceID: traceID},
		Data:        data,
	}
}

// NewProgress builds a progress payload
func NewProgress(processed, total int) ProgressData {
	p := ProgressData{Processed: processed, Total: total}
	if total > 0 {
		p.Percent = float64(processed) / float64(total) * 100
	}
	return p
}
