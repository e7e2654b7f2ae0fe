package util

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a dash-stripped UUIDv4, the ID format every entity and
// workflow record uses as its map key.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
