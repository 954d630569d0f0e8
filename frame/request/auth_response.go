package request

import (
	"github.com/nativecql/cqldriver/frame"
)

var _ frame.Request = (*AuthResponse)(nil)

// AuthResponse carries a SASL token in reply to AUTHENTICATE/AUTH_CHALLENGE.
// For PasswordAuthenticator, the token is the well-known
// "authzid\x00username\x00password" SASL PLAIN layout with an empty
// authzid, i.e. "\x00username\x00password".
type AuthResponse struct {
	Token []byte
}

func (a *AuthResponse) WriteTo(buf *frame.Buffer) {
	buf.WriteBytes(a.Token)
}

func (*AuthResponse) OpCode() frame.OpCode {
	return frame.OpAuthResponse
}
