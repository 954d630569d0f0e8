package transport

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain guards the package's test suite against goroutine leaks: every
// Conn spawns a connWriter.loop and connReader.loop for its lifetime, and a
// test that forgets to Close one would otherwise leak silently.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
