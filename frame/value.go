package frame

import (
	"fmt"
	"math"
	"math/big"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/inf.v0"
)

// OptionID is the CQL protocol's type id, as sent in the [option] structure
// that prefixes column specs and in RESULT/Rows metadata.
type OptionID Short

const (
	CustomID   OptionID = 0x0000
	AsciiID    OptionID = 0x0001
	BigintID   OptionID = 0x0002
	BlobID     OptionID = 0x0003
	BooleanID  OptionID = 0x0004
	CounterID  OptionID = 0x0005
	DecimalID  OptionID = 0x0006
	DoubleID   OptionID = 0x0007
	FloatID    OptionID = 0x0008
	IntID      OptionID = 0x0009
	TimestampID OptionID = 0x000B
	UUIDID     OptionID = 0x000C
	VarcharID  OptionID = 0x000D
	VarintID   OptionID = 0x000E
	TimeUUIDID OptionID = 0x000F
	InetID     OptionID = 0x0010
	DateID     OptionID = 0x0011
	TimeID     OptionID = 0x0012
	SmallintID OptionID = 0x0013
	TinyintID  OptionID = 0x0014
	DurationID OptionID = 0x0015
	ListID     OptionID = 0x0020
	MapID      OptionID = 0x0021
	SetID      OptionID = 0x0022
	UDTID      OptionID = 0x0030
	TupleID    OptionID = 0x0031
)

// Option is the column type descriptor: a recursive structure over CQL's
// primitive and composite types (§3).
type Option struct {
	ID OptionID

	// Custom carries the class name when ID == CustomID.
	Custom string

	// List/Set element type, valid when ID is ListID or SetID.
	Elem *Option

	// Map key/value types, valid when ID == MapID.
	Key   *Option
	Value *Option

	// Tuple element types, valid when ID == TupleID.
	Elements []Option

	// UDT fields, valid when ID == UDTID.
	UDTKeyspace string
	UDTName     string
	FieldNames  []string
	FieldTypes  []Option
}

func (o *Option) String() string {
	if o == nil {
		return "<nil>"
	}
	switch o.ID {
	case CustomID:
		return fmt.Sprintf("custom(%s)", o.Custom)
	case ListID:
		return fmt.Sprintf("list<%s>", o.Elem)
	case SetID:
		return fmt.Sprintf("set<%s>", o.Elem)
	case MapID:
		return fmt.Sprintf("map<%s, %s>", o.Key, o.Value)
	case TupleID:
		parts := make([]string, len(o.Elements))
		for i := range o.Elements {
			parts[i] = o.Elements[i].String()
		}
		return fmt.Sprintf("tuple<%s>", strings.Join(parts, ", "))
	case UDTID:
		return fmt.Sprintf("%s.%s", o.UDTKeyspace, o.UDTName)
	default:
		if n, ok := optionIDNames[o.ID]; ok {
			return n
		}
		return fmt.Sprintf("Option(0x%04x)", Short(o.ID))
	}
}

var optionIDNames = map[OptionID]string{
	AsciiID: "ascii", BigintID: "bigint", BlobID: "blob", BooleanID: "boolean",
	CounterID: "counter", DecimalID: "decimal", DoubleID: "double", FloatID: "float",
	IntID: "int", TimestampID: "timestamp", UUIDID: "uuid", VarcharID: "varchar",
	VarintID: "varint", TimeUUIDID: "timeuuid", InetID: "inet", DateID: "date",
	TimeID: "time", SmallintID: "smallint", TinyintID: "tinyint", DurationID: "duration",
}

// WriteOption serializes a column type descriptor as found in RESULT
// metadata and PREPARE responses.
func WriteOption(buf *Buffer, o Option) {
	buf.WriteShort(Short(o.ID))
	switch o.ID {
	case CustomID:
		buf.WriteString(o.Custom)
	case ListID, SetID:
		WriteOption(buf, *o.Elem)
	case MapID:
		WriteOption(buf, *o.Key)
		WriteOption(buf, *o.Value)
	case TupleID:
		buf.WriteShort(Short(len(o.Elements)))
		for _, e := range o.Elements {
			WriteOption(buf, e)
		}
	case UDTID:
		buf.WriteString(o.UDTKeyspace)
		buf.WriteString(o.UDTName)
		buf.WriteShort(Short(len(o.FieldNames)))
		for i := range o.FieldNames {
			buf.WriteString(o.FieldNames[i])
			WriteOption(buf, o.FieldTypes[i])
		}
	}
}

// ReadOption is the inverse of WriteOption.
func ReadOption(buf *Buffer) Option {
	var o Option
	o.ID = OptionID(buf.ReadShort())
	if buf.Error() != nil {
		return o
	}
	switch o.ID {
	case CustomID:
		o.Custom = buf.ReadString()
	case ListID, SetID:
		e := ReadOption(buf)
		o.Elem = &e
	case MapID:
		k := ReadOption(buf)
		v := ReadOption(buf)
		o.Key, o.Value = &k, &v
	case TupleID:
		n := buf.ReadShort()
		o.Elements = make([]Option, 0, n)
		for i := Short(0); i < n; i++ {
			o.Elements = append(o.Elements, ReadOption(buf))
		}
	case UDTID:
		o.UDTKeyspace = buf.ReadString()
		o.UDTName = buf.ReadString()
		n := buf.ReadShort()
		o.FieldNames = make([]string, 0, n)
		o.FieldTypes = make([]Option, 0, n)
		for i := Short(0); i < n; i++ {
			o.FieldNames = append(o.FieldNames, buf.ReadString())
			o.FieldTypes = append(o.FieldTypes, ReadOption(buf))
		}
	}
	return o
}

// ValueKind distinguishes a normally-encoded value from the two sentinels
// (§3). NotSet is only legal in request direction.
type ValueKind uint8

const (
	Normal ValueKind = iota
	Null
	NotSet
)

// Value is a tagged variant over a CQL value: its raw encoded bytes plus the
// column type descriptor that gives those bytes meaning.
type Value struct {
	Kind ValueKind
	Type *Option
	Raw  Bytes
}

func NewValue(t *Option, raw Bytes) Value  { return Value{Kind: Normal, Type: t, Raw: raw} }
func NullValue(t *Option) Value            { return Value{Kind: Null, Type: t} }
func NotSetValue(t *Option) Value          { return Value{Kind: NotSet, Type: t} }
func (v Value) IsNull() bool               { return v.Kind == Null }
func (v Value) IsNotSet() bool             { return v.Kind == NotSet }

// WriteTo writes the value's [bytes]-shaped wire form: a length prefix of
// -1 for Null, -2 for NotSet, or the real length followed by the raw bytes.
func (v Value) WriteTo(buf *Buffer) {
	switch v.Kind {
	case Null:
		buf.WriteInt(-1)
	case NotSet:
		buf.WriteInt(-2)
	default:
		buf.WriteInt(Int(len(v.Raw)))
		_, _ = buf.Write(v.Raw)
	}
}

// ReadValue reads a value off the wire. requestDirection must be true to
// accept a NotSet sentinel (§4.1: "only valid in request values").
func ReadValue(t *Option, buf *Buffer, requestDirection bool) Value {
	n := buf.ReadInt()
	if buf.Error() != nil {
		return Value{}
	}
	switch {
	case n == -1:
		return NullValue(t)
	case n == -2:
		if !requestDirection {
			buf.Poison(fmt.Errorf("frame: NotSet is not valid in response direction"))
			return Value{}
		}
		return NotSetValue(t)
	case n < -2:
		buf.Poison(fmt.Errorf("frame: value has invalid length %d", n))
		return Value{}
	default:
		raw := buf.ReadRaw(int(n))
		return NewValue(t, raw)
	}
}

// --- primitive encodings -------------------------------------------------

func EncodeAscii(s string) (Bytes, error) {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7F {
			return nil, InvalidValue{Reason: "ascii value contains a non-ASCII byte"}
		}
	}
	return Bytes(s), nil
}

func DecodeAscii(b Bytes) (string, error) { return string(b), nil }

func EncodeVarchar(s string) (Bytes, error) { return Bytes(s), nil }
func DecodeVarchar(b Bytes) (string, error) { return string(b), nil }

func EncodeBoolean(v bool) Bytes {
	if v {
		return Bytes{1}
	}
	return Bytes{0}
}

func DecodeBoolean(b Bytes) (bool, error) {
	if len(b) != 1 {
		return false, InvalidValue{Reason: "boolean value must be exactly 1 byte"}
	}
	return b[0] != 0, nil
}

func EncodeTinyint(v int8) Bytes { return Bytes{byte(v)} }

func DecodeTinyint(b Bytes) (int8, error) {
	if len(b) != 1 {
		return 0, InvalidValue{Reason: "tinyint value must be exactly 1 byte"}
	}
	return int8(b[0]), nil
}

func EncodeSmallint(v int16) Bytes {
	return Bytes{byte(v >> 8), byte(v)}
}

func DecodeSmallint(b Bytes) (int16, error) {
	if len(b) != 2 {
		return 0, InvalidValue{Reason: "smallint value must be exactly 2 bytes"}
	}
	return int16(uint16(b[0])<<8 | uint16(b[1])), nil
}

func EncodeInt(v int32) Bytes {
	return Bytes{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

func DecodeInt(b Bytes) (int32, error) {
	if len(b) != 4 {
		return 0, InvalidValue{Reason: "int value must be exactly 4 bytes"}
	}
	return int32(uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])), nil
}

func EncodeBigint(v int64) Bytes {
	out := make(Bytes, 8)
	for i := 0; i < 8; i++ {
		out[i] = byte(v >> uint(8*(7-i)))
	}
	return out
}

func DecodeBigint(b Bytes) (int64, error) {
	if len(b) != 8 {
		return 0, InvalidValue{Reason: "bigint value must be exactly 8 bytes"}
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return int64(v), nil
}

// Counter shares bigint's wire encoding.
func EncodeCounter(v int64) Bytes             { return EncodeBigint(v) }
func DecodeCounter(b Bytes) (int64, error)    { return DecodeBigint(b) }

func EncodeFloat(v float32) Bytes { return EncodeInt(int32(math.Float32bits(v))) }

func DecodeFloat(b Bytes) (float32, error) {
	i, err := DecodeInt(b)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(uint32(i)), nil
}

func EncodeDouble(v float64) Bytes { return EncodeBigint(int64(math.Float64bits(v))) }

func DecodeDouble(b Bytes) (float64, error) {
	i, err := DecodeBigint(b)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(uint64(i)), nil
}

func EncodeBlob(v []byte) Bytes { return v }
func DecodeBlob(b Bytes) ([]byte, error) { return b, nil }

func EncodeUUID(u uuid.UUID) Bytes { return Bytes(u[:]) }

func DecodeUUID(b Bytes) (uuid.UUID, error) {
	if len(b) != 16 {
		return uuid.UUID{}, InvalidValue{Reason: "uuid value must be exactly 16 bytes"}
	}
	var u uuid.UUID
	copy(u[:], b)
	return u, nil
}

// TimeUUID shares uuid's wire encoding; NewTimeUUID generates a version-1
// (time-based) id suitable for binding a timeuuid column.
func EncodeTimeUUID(u uuid.UUID) Bytes          { return EncodeUUID(u) }
func DecodeTimeUUID(b Bytes) (uuid.UUID, error) { return DecodeUUID(b) }

func NewTimeUUID() (uuid.UUID, error) { return uuid.NewUUID() }

// Inet column encoding: 4 or 16 raw bytes, no port (unlike the [inet]
// primitive in frame.go).
func EncodeInetAddr(ip net.IP) (Bytes, error) {
	if v4 := ip.To4(); v4 != nil {
		return Bytes(v4), nil
	}
	if v6 := ip.To16(); v6 != nil {
		return Bytes(v6), nil
	}
	return nil, InvalidValue{Reason: "not a valid IPv4 or IPv6 address"}
}

func DecodeInetAddr(b Bytes) (net.IP, error) {
	switch len(b) {
	case 4, 16:
		return net.IP(b), nil
	default:
		return nil, InvalidValue{Reason: "inet value must be 4 or 16 bytes"}
	}
}

// Timestamp: i64 milliseconds since Unix epoch.
func EncodeTimestamp(t time.Time) Bytes {
	return EncodeBigint(t.UnixNano() / int64(time.Millisecond))
}

func DecodeTimestamp(b Bytes) (time.Time, error) {
	ms, err := DecodeBigint(b)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

// Date: u32 days, offset by 2^31 so the epoch sits mid-range.
const dateEpochOffset = uint32(1) << 31

func EncodeDate(t time.Time) Bytes {
	days := t.Unix() / int64(24*time.Hour/time.Second)
	return EncodeInt(int32(uint32(days) + dateEpochOffset))
}

func DecodeDate(b Bytes) (time.Time, error) {
	v, err := DecodeInt(b)
	if err != nil {
		return time.Time{}, err
	}
	days := int64(uint32(v) - dateEpochOffset)
	return time.Unix(days*24*3600, 0).UTC(), nil
}

// Time: i64 nanoseconds since midnight.
func EncodeTime(d time.Duration) Bytes { return EncodeBigint(int64(d)) }

func DecodeTime(b Bytes) (time.Duration, error) {
	v, err := DecodeBigint(b)
	if err != nil {
		return 0, err
	}
	return time.Duration(v), nil
}

// Varint: signed, minimum-length two's-complement big-endian.
func EncodeVarint(v *big.Int) Bytes    { return encodeVarint(v) }
func DecodeVarint(b Bytes) *big.Int    { return decodeVarint(b) }

// Decimal: [int scale][varint unscaled], represented in memory as *inf.Dec
// for correct arbitrary-precision scaled-integer arithmetic.
func EncodeDecimal(d *inf.Dec) Bytes {
	var out Bytes
	scale := int32(d.Scale())
	out = append(out, byte(scale>>24), byte(scale>>16), byte(scale>>8), byte(scale))
	out = append(out, encodeVarint(d.UnscaledBig())...)
	return out
}

func DecodeDecimal(b Bytes) (*inf.Dec, error) {
	if len(b) < 4 {
		return nil, InvalidValue{Reason: "decimal value must be at least 4 bytes"}
	}
	scale := int32(uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]))
	unscaled := decodeVarint(b[4:])
	return inf.NewDecBig(unscaled, inf.Scale(scale)), nil
}

// Duration: three zigzag-vint fields (months, days, nanoseconds).
type Duration struct {
	Months      int32
	Days        int32
	Nanoseconds int64
}

func EncodeDuration(d Duration) Bytes {
	var buf Buffer
	writeVInt(&buf, int64(d.Months))
	writeVInt(&buf, int64(d.Days))
	writeVInt(&buf, d.Nanoseconds)
	return buf.Bytes()
}

func DecodeDuration(b Bytes) (Duration, error) {
	var buf Buffer
	_, _ = buf.Write(b)
	months := readVInt(&buf)
	days := readVInt(&buf)
	nanos := readVInt(&buf)
	if buf.Error() != nil {
		return Duration{}, buf.Error()
	}
	return Duration{Months: int32(months), Days: int32(days), Nanoseconds: nanos}, nil
}

// --- composite encodings --------------------------------------------------

// EncodeCollection writes a `list`/`set` body: [int n] then n * [bytes].
func EncodeCollection(elems []Bytes) Bytes {
	var buf Buffer
	buf.WriteInt(Int(len(elems)))
	for _, e := range elems {
		buf.WriteBytes(e)
	}
	return buf.Bytes()
}

// DecodeCollection is the inverse of EncodeCollection, used for both `list`
// and `set`.
func DecodeCollection(b Bytes) ([]Bytes, error) {
	var buf Buffer
	_, _ = buf.Write(b)
	n := buf.ReadInt()
	if buf.Error() != nil {
		return nil, buf.Error()
	}
	out := make([]Bytes, 0, n)
	for i := Int(0); i < n; i++ {
		out = append(out, buf.ReadBytes())
	}
	if err := buf.Error(); err != nil {
		return nil, err
	}
	return out, nil
}

// MapEntry is one (key, value) pair of an encoded `map`.
type MapEntry struct {
	Key   Bytes
	Value Bytes
}

func EncodeMap(entries []MapEntry) Bytes {
	var buf Buffer
	buf.WriteInt(Int(len(entries)))
	for _, e := range entries {
		buf.WriteBytes(e.Key)
		buf.WriteBytes(e.Value)
	}
	return buf.Bytes()
}

func DecodeMap(b Bytes) ([]MapEntry, error) {
	var buf Buffer
	_, _ = buf.Write(b)
	n := buf.ReadInt()
	if buf.Error() != nil {
		return nil, buf.Error()
	}
	out := make([]MapEntry, 0, n)
	for i := Int(0); i < n; i++ {
		k := buf.ReadBytes()
		v := buf.ReadBytes()
		out = append(out, MapEntry{Key: k, Value: v})
	}
	if err := buf.Error(); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeTuple concatenates a [bytes] per declared field, in order.
func EncodeTuple(fields []Bytes) Bytes {
	var buf Buffer
	for _, f := range fields {
		buf.WriteBytes(f)
	}
	return buf.Bytes()
}

// DecodeTuple reads exactly n fields, treating any trailing fields the
// server omitted as Null (§4.2: "missing trailing fields decode as Null").
func DecodeTuple(b Bytes, n int) ([]Bytes, error) {
	var buf Buffer
	_, _ = buf.Write(b)
	out := make([]Bytes, n)
	for i := 0; i < n; i++ {
		if buf.Len() == 0 {
			break
		}
		out[i] = buf.ReadBytes()
	}
	if err := buf.Error(); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeUDT and DecodeUDT share tuple's wire shape: an ordered [bytes] per
// declared field.
func EncodeUDT(fields []Bytes) Bytes { return EncodeTuple(fields) }

func DecodeUDT(b Bytes, n int) ([]Bytes, error) { return DecodeTuple(b, n) }
