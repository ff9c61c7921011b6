package verification

import "errors"

var (
	// ErrSessionNotFound means no session matches the given key or reference.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionClosed means a guarded write was refused because the session
	// already reached a terminal phase.
	ErrSessionClosed = errors.New("session already finalized")

	// ErrInvalidImage marks client input errors in image payloads.
	ErrInvalidImage = errors.New("invalid image payload")

	// ErrWebhookSignature means an inbound callback failed authentication.
	ErrWebhookSignature = errors.New("invalid webhook signature")
)
