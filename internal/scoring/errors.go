package scoring

import (
	"errors"
	"fmt"
)

// ErrInsufficientInput is returned when the candidate profile is too short to
// score. Rejected before any collaborator call.
var ErrInsufficientInput = errors.New("candidate profile has insufficient content to score")

// ErrCollaboratorUnavailable wraps transient reasoning-collaborator failures.
// Callers may retry with backoff.
var ErrCollaboratorUnavailable = errors.New("reasoning collaborator unavailable")

// MalformedResponseError reports a collaborator response that does not parse
// into the expected score shape. Non-retryable; it must surface as a hard
// failure, never be coerced into a default score.
type MalformedResponseError struct {
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed scoring response: %s", e.Reason)
}
