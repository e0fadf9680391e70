package api

import (
	"time"

	"github.com/google/uuid"
)

const completionIDPrefix = "chatcmpl-"

// NewCompletionID generates an opaque completion ID. IDs are unique per
// process and are not used for correlation, so collisions across restarts
// are tolerated.
func NewCompletionID() string {
	return completionIDPrefix + uuid.New().String()
}

// Now returns the current time as epoch seconds, the resolution of the
// created field on completions and chunks.
func Now() int64 {
	return time.Now().Unix()
}
