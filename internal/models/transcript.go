// Package models defines the data structures for transcript events.
package models

// Event types carried in the eventType field and the Kafka header.
const (
	EventTypeInterim = "speako.transcript.interim"
	EventTypeFinal   = "speako.transcript.final"
)

// TranscriptInterim represents an interim transcript hypothesis.
type TranscriptInterim struct {
	EventType string `json:"eventType"`
	SessionID string `json:"sessionId"`
	AttemptID string `json:"attemptId"`
	Language  string `json:"language"`
	Timestamp int64  `json:"timestamp"`
	Text      string `json:"text"`
}

// TranscriptFinal represents a finalized transcript chunk.
type TranscriptFinal struct {
	EventType string `json:"eventType"`
	SessionID string `json:"sessionId"`
	AttemptID string `json:"attemptId"`
	Language  string `json:"language"`
	Timestamp int64  `json:"timestamp"`
	Text      string `json:"text"`
	// Sequence is the 1-based index of the chunk within the session transcript.
	Sequence int `json:"sequence"`
}
