// Package frame implements the CQL binary protocol v4 wire format: the byte
// primitives (§4.1), the typed value codec (§4.2), and frame assembly with
// optional compression (§4.3). Opcode body schemas live in the request and
// response subpackages.
package frame

import "fmt"

// Wire primitive aliases, named the way the protocol spec names them so a
// reader can match this code against the spec section by section.
type (
	Short      = uint16
	Int        = int32
	Long       = int64
	Bytes      = []byte
	StringList = []string
)

// UUID is the raw 16-byte [uuid] primitive.
type UUID [16]byte

// Inet is the [inet] primitive: an IPv4/IPv6 address plus a port. Unlike the
// inet *column type* (frame/value.go), the primitive always carries a port.
type Inet struct {
	IP   []byte
	Port Int
}

// Consistency is the [consistency] primitive.
type Consistency Short

const (
	ANY         Consistency = 0x0000
	ONE         Consistency = 0x0001
	TWO         Consistency = 0x0002
	THREE       Consistency = 0x0003
	QUORUM      Consistency = 0x0004
	ALL         Consistency = 0x0005
	LOCALQUORUM Consistency = 0x0006
	EACHQUORUM  Consistency = 0x0007
	SERIAL      Consistency = 0x0008
	LOCALSERIAL Consistency = 0x0009
	LOCALONE    Consistency = 0x000A
)

var consistencyNames = map[Consistency]string{
	ANY:         "ANY",
	ONE:         "ONE",
	TWO:         "TWO",
	THREE:       "THREE",
	QUORUM:      "QUORUM",
	ALL:         "ALL",
	LOCALQUORUM: "LOCAL_QUORUM",
	EACHQUORUM:  "EACH_QUORUM",
	SERIAL:      "SERIAL",
	LOCALSERIAL: "LOCAL_SERIAL",
	LOCALONE:    "LOCAL_ONE",
}

func (c Consistency) String() string {
	if s, ok := consistencyNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Consistency(0x%04x)", Short(c))
}

// OpCode identifies both the body schema and, combined with the version
// byte's direction bit, which side of the handshake sent the frame.
type OpCode byte

const (
	OpError        OpCode = 0x00
	OpStartup      OpCode = 0x01
	OpReady        OpCode = 0x02
	OpAuthenticate OpCode = 0x03
	OpOptions      OpCode = 0x05
	OpSupported    OpCode = 0x06
	OpQuery        OpCode = 0x07
	OpResult       OpCode = 0x08
	OpPrepare      OpCode = 0x09
	OpExecute      OpCode = 0x0A
	OpRegister     OpCode = 0x0B
	OpEvent        OpCode = 0x0C
	OpBatch        OpCode = 0x0D
	OpAuthChallenge OpCode = 0x0E
	OpAuthResponse OpCode = 0x0F
	OpAuthSuccess  OpCode = 0x10
)

var opCodeNames = map[OpCode]string{
	OpError: "ERROR", OpStartup: "STARTUP", OpReady: "READY",
	OpAuthenticate: "AUTHENTICATE", OpOptions: "OPTIONS", OpSupported: "SUPPORTED",
	OpQuery: "QUERY", OpResult: "RESULT", OpPrepare: "PREPARE", OpExecute: "EXECUTE",
	OpRegister: "REGISTER", OpEvent: "EVENT", OpBatch: "BATCH",
	OpAuthChallenge: "AUTH_CHALLENGE", OpAuthResponse: "AUTH_RESPONSE", OpAuthSuccess: "AUTH_SUCCESS",
}

func (op OpCode) String() string {
	if s, ok := opCodeNames[op]; ok {
		return s
	}
	return fmt.Sprintf("OpCode(0x%02x)", byte(op))
}

// StreamID correlates a request with its response on one connection. Stream
// 0 is reserved for unsolicited EVENT frames.
type StreamID int16

// Protocol version bytes: request direction vs. response direction.
const (
	CQLv4         byte = 0x04
	CQLv4Response byte = 0x84
)

// Flag bits, OR-ed into the header's flags byte.
const (
	FlagCompression  byte = 0x01
	FlagTracing      byte = 0x02
	FlagCustomPayload byte = 0x04
	FlagWarning      byte = 0x08
)

// HeaderSize is the fixed size, in bytes, of every frame header.
const HeaderSize = 9

// Header is the fixed 9-byte frame header.
type Header struct {
	Version  byte
	Flags    byte
	StreamID StreamID
	OpCode   OpCode
	Length   Int
}

// WriteTo serializes the header. The caller sets Length before calling it,
// once the body has been assembled (see transport/conn.go's connWriter.send,
// which builds the header only after it knows the compressed size).
func (h Header) WriteTo(buf *Buffer) {
	_ = buf.WriteByte(h.Version)
	_ = buf.WriteByte(h.Flags)
	buf.WriteShort(uint16(h.StreamID))
	_ = buf.WriteByte(byte(h.OpCode))
	buf.WriteInt(h.Length)
}

// ParseHeader reads a 9-byte header from buf and validates the version byte.
// An unexpected version, like any other malformed read, poisons buf; callers
// check buf.Error() once after parsing the full frame.
func ParseHeader(buf *Buffer) Header {
	var h Header
	h.Version = buf.ReadByte()
	if buf.Error() == nil && h.Version != CQLv4Response && h.Version != CQLv4 {
		buf.Poison(fmt.Errorf("frame: unexpected protocol version byte 0x%02x", h.Version))
	}
	h.Flags = buf.ReadByte()
	h.StreamID = StreamID(buf.ReadShort())
	h.OpCode = OpCode(buf.ReadByte())
	h.Length = buf.ReadInt()
	return h
}

// StartupOptions is the [string map] body of STARTUP: a required
// CQL_VERSION key and an optional COMPRESSION key.
type StartupOptions map[string]string

// NewStartupOptions builds the STARTUP option map for the given compression
// choice (CompressionNone omits the COMPRESSION key entirely).
func NewStartupOptions(compression Compression) StartupOptions {
	opts := StartupOptions{"CQL_VERSION": "3.0.0"}
	if compression != CompressionNone {
		opts["COMPRESSION"] = string(compression)
	}
	return opts
}

// Request is implemented by every opcode body that the client can send.
type Request interface {
	WriteTo(buf *Buffer)
	OpCode() OpCode
}

// Response is implemented by every opcode body the client can receive. It is
// an empty marker interface: decoding dispatches on the frame's OpCode, and
// callers then type-switch on the concrete value; see frame/response for the
// concrete types and transport/conn.go's parseBody for the dispatch.
type Response interface{}
