package workflow

import "github.com/google/uuid"

func newID() string {
	return uuid.NewString()
}

// shortID trims an id for log lines.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
