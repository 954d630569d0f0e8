package response

import "github.com/nativecql/cqldriver/frame"

// AuthSuccess ends the SASL exchange successfully, optionally carrying a
// final token from the authenticator.
type AuthSuccess struct {
	Token []byte
}

func ParseAuthSuccess(buf *frame.Buffer) *AuthSuccess {
	return &AuthSuccess{Token: buf.ReadBytes()}
}
