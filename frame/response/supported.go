package response

import "github.com/nativecql/cqldriver/frame"

// Supported is the SUPPORTED response: a [string multimap] advertising the
// server's allowed STARTUP option values (e.g. COMPRESSION, CQL_VERSION).
// It answers the OPTIONS frame sent in the [Fresh] -> [AwaitSupported] step
// of the handshake (§4.4).
type Supported struct {
	Options map[string]frame.StringList
}

func ParseSupported(buf *frame.Buffer) *Supported {
	return &Supported{Options: buf.ReadStringMultiMap()}
}
