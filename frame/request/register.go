package request

import "github.com/nativecql/cqldriver/frame"

var _ frame.Request = (*Register)(nil)

// Register is REGISTER: subscribes the connection to the named server event
// types (TOPOLOGY_CHANGE, STATUS_CHANGE, SCHEMA_CHANGE). The connection must
// not be used for anything but EVENT frames afterwards (§4.7).
type Register struct {
	EventTypes frame.StringList
}

func (r Register) WriteTo(buf *frame.Buffer) {
	buf.WriteStringList(r.EventTypes)
}

func (Register) OpCode() frame.OpCode {
	return frame.OpRegister
}
