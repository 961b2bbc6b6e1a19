// Package server provides the HTTP and WebSocket parse service. Clients post
// raw diffs and receive change dictionaries; WebSocket clients can also
// receive live updates from a watched diff file.
package server

import (
	"time"

	"github.com/pseudocoder/diffcore/internal/diff"
)

// MessageType identifies the kind of message being sent over WebSocket.
// Each type has a specific payload structure defined below.
type MessageType string

const (
	// MessageTypeServerStatus is sent once to every client after it connects.
	// Payload: ServerStatusPayload
	MessageTypeServerStatus MessageType = "server.status"

	// MessageTypeDiffParse is sent by clients to parse a raw diff.
	// Payload: ParseRequestPayload
	MessageTypeDiffParse MessageType = "diff.parse"

	// MessageTypeDiffParsed answers a diff.parse request. The envelope ID
	// echoes the request ID.
	// Payload: ParsedPayload
	MessageTypeDiffParsed MessageType = "diff.parsed"

	// MessageTypeDiffUpdated is broadcast when the watched diff file
	// changes.
	// Payload: DiffUpdatedPayload
	MessageTypeDiffUpdated MessageType = "diff.updated"

	// MessageTypeError sends error information to clients.
	// Payload: ErrorPayload
	MessageTypeError MessageType = "error"
)

// Message is the envelope for all WebSocket messages.
// Every message has a type and an optional ID for request/response correlation.
type Message struct {
	Type    MessageType `json:"type"`
	ID      string      `json:"id,omitempty"`
	Payload interface{} `json:"payload"`
}

// ServerStatusPayload describes the server to a newly connected client.
type ServerStatusPayload struct {
	// Watching is true when diff.updated messages will be broadcast.
	Watching bool `json:"watching"`

	// StoreEnabled is true when parse requests may ask for persistence.
	StoreEnabled bool `json:"store_enabled"`

	Timestamp int64 `json:"timestamp"`
}

// ParseRequestPayload is the body of a diff.parse message.
type ParseRequestPayload struct {
	// Diff is the raw diff text.
	Diff string `json:"diff"`

	// Store persists the result and returns its ID.
	Store bool `json:"store,omitempty"`

	// Source labels a stored diff. Defaults to "ws".
	Source string `json:"source,omitempty"`
}

// ParsedPayload is the result of a parse, shared by the HTTP and WebSocket
// APIs.
type ParsedPayload struct {
	// ID is set when the diff was stored.
	ID string `json:"id,omitempty"`

	Changes []diff.Dictionary `json:"changes"`
	Stats   *diff.Stats       `json:"stats"`

	// Large is true when the diff exceeds the size warning thresholds.
	Large bool `json:"large"`
}

// DiffUpdatedPayload carries the new state of the watched diff file.
type DiffUpdatedPayload struct {
	// Clean is true when the watched file holds no changes.
	Clean bool `json:"clean"`

	Changes []diff.Dictionary `json:"changes"`
	Stats   *diff.Stats       `json:"stats"`
	Large   bool              `json:"large"`

	Timestamp int64 `json:"timestamp"`
}

// ErrorPayload carries error information to the client.
type ErrorPayload struct {
	// Code is a stable error code for programmatic handling.
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// Line and Context locate parse failures in the submitted diff.
	Line    int    `json:"line,omitempty"`
	Context string `json:"context,omitempty"`
}

// NewParsedPayload builds the response body for a parsed change set.
// id is empty when the result was not stored.
func NewParsedPayload(id string, cs *diff.ChangeSet) ParsedPayload {
	stats := diff.CalculateStats(cs)
	return ParsedPayload{
		ID:      id,
		Changes: cs.ToDictionaries(),
		Stats:   stats,
		Large:   diff.IsLargeDiff(stats),
	}
}

// NewServerStatusMessage creates the greeting sent to new clients.
func NewServerStatusMessage(watching, storeEnabled bool) Message {
	return Message{
		Type: MessageTypeServerStatus,
		Payload: ServerStatusPayload{
			Watching:     watching,
			StoreEnabled: storeEnabled,
			Timestamp:    time.Now().UnixMilli(),
		},
	}
}

// NewParsedMessage answers the diff.parse request with the given ID.
func NewParsedMessage(requestID string, payload ParsedPayload) Message {
	return Message{
		Type:    MessageTypeDiffParsed,
		ID:      requestID,
		Payload: payload,
	}
}

// NewDiffUpdatedMessage creates a diff.updated broadcast. A nil cs means the
// watched file holds no changes.
func NewDiffUpdatedMessage(cs *diff.ChangeSet) Message {
	payload := DiffUpdatedPayload{
		Clean:     cs == nil || cs.Len() == 0,
		Changes:   []diff.Dictionary{},
		Stats:     &diff.Stats{},
		Timestamp: time.Now().UnixMilli(),
	}
	if cs != nil {
		payload.Changes = cs.ToDictionaries()
		payload.Stats = diff.CalculateStats(cs)
		payload.Large = diff.IsLargeDiff(payload.Stats)
	}
	return Message{Type: MessageTypeDiffUpdated, Payload: payload}
}

// NewErrorMessage creates an error message to send to clients.
// requestID correlates the error with a diff.parse request and may be empty.
func NewErrorMessage(requestID, code, message string) Message {
	return Message{
		Type: MessageTypeError,
		ID:   requestID,
		Payload: ErrorPayload{
			Code:    code,
			Message: message,
		},
	}
}

// newErrorMessageFromError is NewErrorMessage with the payload derived from
// err, including parse locations.
func newErrorMessageFromError(requestID string, err error) Message {
	return Message{
		Type:    MessageTypeError,
		ID:      requestID,
		Payload: errorPayload(err),
	}
}
