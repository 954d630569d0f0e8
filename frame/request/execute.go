package request

import "github.com/nativecql/cqldriver/frame"

var _ frame.Request = (*Execute)(nil)

// Execute is EXECUTE: a prepared statement id plus bound <query_params>.
type Execute struct {
	ID     []byte // statement id returned by RESULT::Prepared
	Params QueryParams
}

func (e *Execute) WriteTo(buf *frame.Buffer) {
	buf.WriteShortBytes(e.ID)
	e.Params.writeTo(buf)
}

func (*Execute) OpCode() frame.OpCode {
	return frame.OpExecute
}
