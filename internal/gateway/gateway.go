package gateway

import "context"

// Messenger defines the interface for front ends that carry requests to the
// agent and summaries back to the user.
type Messenger interface {
	// Start begins the message loop and returns when input ends or ctx is done.
	Start(ctx context.Context) error
	// Send delivers a message to a specific session.
	Send(sessionID string, text string) error
	// Stop gracefully shuts down the gateway.
	Stop() error
}
