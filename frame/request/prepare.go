package request

import "github.com/nativecql/cqldriver/frame"

var _ frame.Request = (*Prepare)(nil)

// Prepare is PREPARE: a CQL string to be parsed and cached server-side,
// returning a statement id in the RESULT::Prepared response (§4.4, §4.6).
type Prepare struct {
	QueryString string
}

func (p *Prepare) WriteTo(buf *frame.Buffer) {
	buf.WriteLongString(p.QueryString)
}

func (*Prepare) OpCode() frame.OpCode {
	return frame.OpPrepare
}
