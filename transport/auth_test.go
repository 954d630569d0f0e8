package transport

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPasswordAuthenticatorInitialResponse(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name     string
		auth     PasswordAuthenticator
		expected []byte
	}{
		{
			name:     "Should build a SASL PLAIN token",
			auth:     PasswordAuthenticator{Username: "cassandra", Password: "cassandra"},
			expected: append(append([]byte{0}, "cassandra"...), append([]byte{0}, "cassandra"...)...),
		},
		{
			name:     "Should work with empty credentials",
			auth:     PasswordAuthenticator{},
			expected: []byte{0, 0},
		},
	}

	for i := 0; i < len(testCases); i++ {
		tc := testCases[i]
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			token, err := tc.auth.InitialResponse()
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(token, tc.expected); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestPasswordAuthenticatorChallenge(t *testing.T) {
	t.Parallel()
	auth := PasswordAuthenticator{Username: "u", Password: "p"}
	if _, err := auth.Challenge([]byte("anything")); err == nil {
		t.Fatal("expected an error, PasswordAuthenticator does not support AUTH_CHALLENGE")
	}
}

func TestPasswordAuthenticatorName(t *testing.T) {
	t.Parallel()
	auth := PasswordAuthenticator{Username: "u", Password: "p"}
	const want = "org.apache.cassandra.auth.PasswordAuthenticator"
	if got := auth.Name(); got != want {
		t.Fatalf("Name() = %q, want %q", got, want)
	}
}
