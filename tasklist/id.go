package tasklist

import (
	"time"

	"github.com/mjpery-beep/tasklist/internal/ids"
)

// NewLocalID creates an identifier for an optimistically created entity.
// The ID is derived from the seed text and timestamp; the portal's canonical
// entity replaces it once the create is confirmed.
func NewLocalID(seed string, timestamp time.Time) string {
	return ids.GenerateWithTimestamp(seed, timestamp, ids.DefaultLength)
}
