package response

import "github.com/nativecql/cqldriver/frame"

// Ready is the READY response: STARTUP succeeded, no authentication needed.
type Ready struct{}

// ParseReady decodes a READY body, which carries no fields.
func ParseReady(_ *frame.Buffer) *Ready {
	return &Ready{}
}
