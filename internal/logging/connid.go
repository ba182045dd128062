package logging

import "github.com/google/uuid"

// NewConnID returns a random identifier for an accepted connection. It
// keeps no state between calls.
func NewConnID() string {
	return uuid.NewString()
}
