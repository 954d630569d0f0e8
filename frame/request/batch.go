package request

import "github.com/nativecql/cqldriver/frame"

// BatchType selects LOGGED (default, uses the batchlog), UNLOGGED, or COUNTER
// batch semantics (§4.4).
type BatchType byte

const (
	BatchLogged   BatchType = 0x00
	BatchUnlogged BatchType = 0x01
	BatchCounter  BatchType = 0x02
)

// BatchStatement is one <query_i> entry: either a plain CQL string or a
// prepared statement id, each with its own bound values.
type BatchStatement struct {
	QueryString string      // set for a plain-string entry
	ID          []byte      // set for a prepared-statement entry; mutually exclusive with QueryString
	Values      []frame.Value
}

func (s BatchStatement) writeTo(buf *frame.Buffer) {
	if s.ID != nil {
		_ = buf.WriteByte(0x01)
		buf.WriteShortBytes(s.ID)
	} else {
		_ = buf.WriteByte(0x00)
		buf.WriteLongString(s.QueryString)
	}
	buf.WriteShort(uint16(len(s.Values)))
	for _, v := range s.Values {
		v.WriteTo(buf)
	}
}

var _ frame.Request = (*Batch)(nil)

// Batch is BATCH: a sequence of statements executed atomically (within one
// partition, for LOGGED) under a single consistency level.
type Batch struct {
	Type              BatchType
	Statements        []BatchStatement
	Consistency       frame.Consistency
	HasSerialConsistency bool
	SerialConsistency frame.Consistency
	HasDefaultTimestamp bool
	DefaultTimestamp  int64
}

func (b *Batch) flags() byte {
	var f byte
	if b.HasSerialConsistency {
		f |= flagWithSerialConsistency
	}
	if b.HasDefaultTimestamp {
		f |= flagWithDefaultTimestamp
	}
	return f
}

func (b *Batch) WriteTo(buf *frame.Buffer) {
	_ = buf.WriteByte(byte(b.Type))
	buf.WriteShort(uint16(len(b.Statements)))
	for _, s := range b.Statements {
		s.writeTo(buf)
	}
	buf.WriteConsistency(b.Consistency)
	_ = buf.WriteByte(b.flags())
	if b.HasSerialConsistency {
		buf.WriteConsistency(b.SerialConsistency)
	}
	if b.HasDefaultTimestamp {
		buf.WriteLong(b.DefaultTimestamp)
	}
}

func (*Batch) OpCode() frame.OpCode {
	return frame.OpBatch
}
