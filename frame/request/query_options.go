package request

import "github.com/nativecql/cqldriver/frame"

// Flag bits for <query_params>, shared by QUERY, EXECUTE and the per-query
// portion of BATCH.
const (
	flagValues            byte = 0x01
	flagSkipMetadata       byte = 0x02
	flagPageSize           byte = 0x04
	flagWithPagingState    byte = 0x08
	flagWithSerialConsistency byte = 0x10
	flagWithDefaultTimestamp  byte = 0x20
	flagWithNamesForValues byte = 0x40
)

// QueryParams is <query_params>, shared verbatim by QUERY and EXECUTE (§4.4).
// BATCH reuses the same fields minus Values/Names, which it encodes per
// sub-query instead (see batch.go).
type QueryParams struct {
	Consistency       frame.Consistency
	Values            []frame.Value
	Names             []string // parallel to Values; nil unless named binding is used
	SkipMetadata      bool
	PageSize          int32 // <= 0 means omitted
	PagingState       []byte
	SerialConsistency frame.Consistency // written only if HasSerialConsistency; callers must not pass ANY here
	HasSerialConsistency bool
	DefaultTimestamp  int64
	HasDefaultTimestamp bool
}

func (q QueryParams) flags() byte {
	var f byte
	if len(q.Values) > 0 {
		f |= flagValues
		if len(q.Names) > 0 {
			f |= flagWithNamesForValues
		}
	}
	if q.SkipMetadata {
		f |= flagSkipMetadata
	}
	if q.PageSize > 0 {
		f |= flagPageSize
	}
	if q.PagingState != nil {
		f |= flagWithPagingState
	}
	if q.HasSerialConsistency {
		f |= flagWithSerialConsistency
	}
	if q.HasDefaultTimestamp {
		f |= flagWithDefaultTimestamp
	}
	return f
}

// writeTo serializes <query_params> onto buf.
func (q QueryParams) writeTo(buf *frame.Buffer) {
	buf.WriteConsistency(q.Consistency)
	_ = buf.WriteByte(q.flags())

	if len(q.Values) > 0 {
		buf.WriteShort(uint16(len(q.Values)))
		for i, v := range q.Values {
			if len(q.Names) > 0 {
				buf.WriteString(q.Names[i])
			}
			v.WriteTo(buf)
		}
	}
	if q.PageSize > 0 {
		buf.WriteInt(q.PageSize)
	}
	if q.PagingState != nil {
		buf.WriteBytes(q.PagingState)
	}
	if q.HasSerialConsistency {
		buf.WriteConsistency(q.SerialConsistency)
	}
	if q.HasDefaultTimestamp {
		buf.WriteLong(q.DefaultTimestamp)
	}
}
