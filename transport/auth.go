package transport

import "fmt"

// Authenticator answers a server's AUTHENTICATE/AUTH_CHALLENGE exchange with
// SASL tokens (§4.5). InitialResponse builds the first AUTH_RESPONSE token,
// sent without having seen a server challenge; Challenge answers any
// subsequent AUTH_CHALLENGE. Name reports the fully qualified class name of
// the server-side authenticator this Authenticator knows how to answer, so
// authenticate can sanity-check it against AUTHENTICATE's advertised class
// before sending anything.
type Authenticator interface {
	Name() string
	InitialResponse() ([]byte, error)
	Challenge(serverChallenge []byte) ([]byte, error)
}

// PasswordAuthenticator implements org.apache.cassandra.auth.PasswordAuthenticator's
// SASL PLAIN exchange: a single token of the form
// "\x00username\x00password", with no further challenge round-trips.
type PasswordAuthenticator struct {
	Username string
	Password string
}

func (a PasswordAuthenticator) Name() string {
	return "org.apache.cassandra.auth.PasswordAuthenticator"
}

func (a PasswordAuthenticator) InitialResponse() ([]byte, error) {
	token := make([]byte, 0, len(a.Username)+len(a.Password)+2)
	token = append(token, 0)
	token = append(token, a.Username...)
	token = append(token, 0)
	token = append(token, a.Password...)
	return token, nil
}

func (a PasswordAuthenticator) Challenge(_ []byte) ([]byte, error) {
	return nil, fmt.Errorf("transport: password authenticator does not support a follow-up challenge")
}
