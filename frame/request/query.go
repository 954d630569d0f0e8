package request

import "github.com/nativecql/cqldriver/frame"

var _ frame.Request = (*Query)(nil)

// Query is QUERY: a plain CQL string plus <query_params> (§4.4).
type Query struct {
	QueryString string
	Params      QueryParams
}

func (q *Query) WriteTo(buf *frame.Buffer) {
	buf.WriteLongString(q.QueryString)
	q.Params.writeTo(buf)
}

func (*Query) OpCode() frame.OpCode {
	return frame.OpQuery
}
