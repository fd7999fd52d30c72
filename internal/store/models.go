package store

import "time"

// Message is one turn of prior conversation used as prompt context.
type Message struct {
	Role    string
	Content string
}

// RunRecord summarizes one engine run for the conversation history.
type RunRecord struct {
	CorrelationID string
	SessionID     string
	Request       string
	State         string
	Summary       string
	CreatedAt     time.Time
}
