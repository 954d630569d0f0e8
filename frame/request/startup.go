package request

import (
	"github.com/nativecql/cqldriver/frame"
)

var _ frame.Request = (*Startup)(nil)

// Startup is the first frame a client sends after OPTIONS/SUPPORTED; body is
// a [string map] carrying CQL_VERSION and optionally COMPRESSION (§6).
type Startup struct {
	Options frame.StartupOptions
}

func (s *Startup) WriteTo(buf *frame.Buffer) {
	buf.WriteStringMap(s.Options)
}

func (*Startup) OpCode() frame.OpCode {
	return frame.OpStartup
}
