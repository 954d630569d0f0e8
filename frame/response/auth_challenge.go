package response

import "github.com/nativecql/cqldriver/frame"

// AuthChallenge is a server-to-client SASL challenge mid-handshake.
type AuthChallenge struct {
	Token []byte
}

func ParseAuthChallenge(buf *frame.Buffer) *AuthChallenge {
	return &AuthChallenge{Token: buf.ReadBytes()}
}
