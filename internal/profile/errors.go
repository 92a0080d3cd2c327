package profile

import (
	"errors"
	"fmt"
)

// State-conflict and lookup errors surfaced to callers with specific
// messages. Anything else out of the repository is a backend fault and is
// wrapped generically.
var (
	ErrNotFound      = errors.New("profile not found")
	ErrAlreadyExists = errors.New("profile already exists for this identity")
	ErrSlugTaken     = errors.New("slug is already taken")
	ErrNotClaimable  = errors.New("profile is not claimable")
)

// ValidationError reports a field-level constraint violation. The message is
// user-correctable and safe to surface verbatim.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
