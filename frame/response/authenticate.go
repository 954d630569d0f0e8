package response

import "github.com/nativecql/cqldriver/frame"

// Authenticate is the AUTHENTICATE response: the server names the
// org.apache.cassandra.auth authenticator class it requires the client to
// answer (§4.5).
type Authenticate struct {
	Authenticator string
}

// ParseAuthenticate decodes an AUTHENTICATE body. It never returns nil; a
// malformed buffer poisons buf and the zero-value Authenticator string is
// returned, matching the codec's sticky-error convention of deferring all
// error checking to buf.Error() after the full frame is parsed.
func ParseAuthenticate(buf *frame.Buffer) *Authenticate {
	return &Authenticate{Authenticator: buf.ReadString()}
}
