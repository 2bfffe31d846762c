// Package identity generates the opaque keys that correlate an entity's
// graph node and attribute document.
package identity

import "github.com/google/uuid"

// New returns a fresh 128-bit random identifier in canonical string form.
// It is stateless and safe for concurrent use; the value is independent of
// either storage engine's internal numbering and is never reused.
func New() string {
	return uuid.NewString()
}
