package ports

import "context"

// Loader asks a participant's client to load a resource (the session map).
type Loader interface {
	// RequestLoad blocks until the participant acknowledges the load or rejects it.
	// Implementations need not honour ctx cancellation promptly; callers bound the wait themselves.
	RequestLoad(ctx context.Context, participantID, resourceID string) error
}
