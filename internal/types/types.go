package types

import "time"

// HistoryEntry is one prior exchange as the relay receives it.
type HistoryEntry struct {
	User string `json:"user"`
	AI   string `json:"ai"`
}

type RelayRequest struct {
	Message string         `json:"message"`
	History []HistoryEntry `json:"history"`
}

type RelayResponse struct {
	Response string `json:"response"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Exchange is the wire form of a transcript entry.
type Exchange struct {
	User      string    `json:"user"`
	AI        string    `json:"ai"`
	Timestamp time.Time `json:"timestamp"`
}

type InputRequest struct {
	Text string `json:"text"`
}

type SubmitRequest struct {
	Message string `json:"message"`
}

type SubmitResponse struct {
	SessionID string   `json:"sessionId"`
	Exchange  Exchange `json:"exchange"`
	Fallback  bool     `json:"fallback,omitempty"`
}

type SessionResponse struct {
	SessionID string `json:"sessionId"`
	Typing    bool   `json:"typing"`
	Sending   bool   `json:"sending"`
	Draft     string `json:"draft"`
	Exchanges int    `json:"exchanges"`
}

type TranscriptResponse struct {
	SessionID string     `json:"sessionId"`
	Exchanges []Exchange `json:"exchanges"`
}

// Event is pushed over the session event stream. Exactly one of the payload
// fields is set, matching Type.
type Event struct {
	Type         string    `json:"type"`
	Typing       *bool     `json:"typing,omitempty"`
	Exchange     *Exchange `json:"exchange,omitempty"`
	Notification any       `json:"notification,omitempty"`
	Frame        any       `json:"frame,omitempty"`
}
