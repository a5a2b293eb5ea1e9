package httpclient

import "fmt"

// AuthError indicates the platform rejected the session credentials (401/403).
// Callers should refresh credentials and retry once before giving up.
type AuthError struct {
	Status   int
	Endpoint string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth rejected (%d) for %s", e.Status, e.Endpoint)
}

// NetworkError wraps a connectivity failure (DNS, dial, timeout).
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "network failure: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ExhaustedRetriesError is returned once every attempt at a transient failure
// has been spent. Last carries the error from the final attempt.
type ExhaustedRetriesError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedRetriesError) Error() string {
	return fmt.Sprintf("request failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedRetriesError) Unwrap() error { return e.Last }
