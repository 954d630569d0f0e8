package frame

import (
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf8"
)

// Buffer is a sticky-error byte cursor shared by both directions of the
// protocol: connWriter builds a frame by calling the Write* methods in
// sequence, connReader fills it with raw bytes read off the wire and then
// drains it with the Read* methods. Once a Read/Write call fails, every
// subsequent call is a no-op that returns the zero value; callers check
// Error() once at the end of a parse instead of threading an error through
// every primitive call.
type Buffer struct {
	buf []byte
	off int
	err error
}

// Write appends p to the buffer and satisfies io.Writer, so a *Buffer can be
// handed directly to io.CopyN as the destination when filling it from a
// connection.
func (b *Buffer) Write(p []byte) (int, error) {
	if b.err != nil {
		return 0, b.err
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// Reset clears the buffer for reuse, dropping any sticky error.
func (b *Buffer) Reset() {
	b.buf = b.buf[:0]
	b.off = 0
	b.err = nil
}

// Bytes returns the full underlying slice written so far (ignores the read
// cursor) so the writer side can flush a built frame to the wire.
func (b *Buffer) Bytes() []byte {
	return b.buf
}

// Len reports how many unread bytes remain.
func (b *Buffer) Len() int {
	return len(b.buf) - b.off
}

// Error returns the first error recorded by a Read/Write call, if any.
func (b *Buffer) Error() error {
	return b.err
}

func (b *Buffer) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Poison records err as the buffer's sticky error if one isn't already set.
// Used to report a validation failure discovered after the raw bytes were
// already read successfully (frame.ParseHeader, the typed value codec); it is
// exported so transport's parseBody can poison a body buffer as well.
func (b *Buffer) Poison(err error) {
	b.fail(err)
}

func (b *Buffer) read(n int) []byte {
	if b.err != nil {
		return nil
	}
	if b.Len() < n {
		b.fail(fmt.Errorf("frame: short read: need %d bytes, have %d", n, b.Len()))
		return nil
	}
	p := b.buf[b.off : b.off+n]
	b.off += n
	return p
}

// ReadRaw consumes and returns the next n bytes verbatim, advancing the
// cursor. Used by callers (the typed value codec) that have already
// consumed a length prefix themselves.
func (b *Buffer) ReadRaw(n int) []byte {
	p := b.read(n)
	if p == nil {
		return nil
	}
	out := make([]byte, len(p))
	copy(out, p)
	return out
}

// WriteByte satisfies io.ByteWriter.
func (b *Buffer) WriteByte(v byte) error {
	if b.err != nil {
		return b.err
	}
	b.buf = append(b.buf, v)
	return nil
}

func (b *Buffer) ReadByte() byte {
	p := b.read(1)
	if p == nil {
		return 0
	}
	return p[0]
}

func (b *Buffer) WriteShort(v Short) {
	if b.err != nil {
		return
	}
	b.buf = binary.BigEndian.AppendUint16(b.buf, v)
}

func (b *Buffer) ReadShort() Short {
	p := b.read(2)
	if p == nil {
		return 0
	}
	return binary.BigEndian.Uint16(p)
}

func (b *Buffer) WriteInt(v Int) {
	if b.err != nil {
		return
	}
	b.buf = binary.BigEndian.AppendUint32(b.buf, uint32(v))
}

func (b *Buffer) ReadInt() Int {
	p := b.read(4)
	if p == nil {
		return 0
	}
	return Int(binary.BigEndian.Uint32(p))
}

func (b *Buffer) WriteLong(v Long) {
	if b.err != nil {
		return
	}
	b.buf = binary.BigEndian.AppendUint64(b.buf, uint64(v))
}

func (b *Buffer) ReadLong() Long {
	p := b.read(8)
	if p == nil {
		return 0
	}
	return Long(binary.BigEndian.Uint64(p))
}

// [string] = [short] length, UTF-8 bytes.
func (b *Buffer) WriteString(s string) {
	b.WriteShort(Short(len(s)))
	if b.err == nil {
		b.buf = append(b.buf, s...)
	}
}

func (b *Buffer) ReadString() string {
	n := b.ReadShort()
	p := b.read(int(n))
	if p == nil {
		return ""
	}
	if !utf8.Valid(p) {
		b.fail(fmt.Errorf("frame: [string] is not valid UTF-8"))
		return ""
	}
	return string(p)
}

// [long string] = [int] length, UTF-8 bytes.
func (b *Buffer) WriteLongString(s string) {
	b.WriteInt(Int(len(s)))
	if b.err == nil {
		b.buf = append(b.buf, s...)
	}
}

func (b *Buffer) ReadLongString() string {
	n := b.ReadInt()
	if n < 0 {
		b.fail(fmt.Errorf("frame: [long string] has negative length %d", n))
		return ""
	}
	p := b.read(int(n))
	if p == nil {
		return ""
	}
	if !utf8.Valid(p) {
		b.fail(fmt.Errorf("frame: [long string] is not valid UTF-8"))
		return ""
	}
	return string(p)
}

func (b *Buffer) WriteUUID(u UUID) {
	if b.err != nil {
		return
	}
	b.buf = append(b.buf, u[:]...)
}

func (b *Buffer) ReadUUID() UUID {
	var u UUID
	p := b.read(16)
	if p == nil {
		return u
	}
	copy(u[:], p)
	return u
}

// [string list] = [short] n, n * [string].
func (b *Buffer) WriteStringList(l StringList) {
	b.WriteShort(Short(len(l)))
	for _, s := range l {
		b.WriteString(s)
	}
}

func (b *Buffer) ReadStringList() StringList {
	n := b.ReadShort()
	l := make(StringList, 0, n)
	for i := Short(0); i < n; i++ {
		l = append(l, b.ReadString())
	}
	return l
}

// [bytes] = [int] length, bytes; length -1 means Null (nil slice returned).
func (b *Buffer) WriteBytes(v Bytes) {
	if v == nil {
		b.WriteInt(-1)
		return
	}
	b.WriteInt(Int(len(v)))
	if b.err == nil {
		b.buf = append(b.buf, v...)
	}
}

func (b *Buffer) ReadBytes() Bytes {
	n := b.ReadInt()
	if b.err != nil {
		return nil
	}
	if n < 0 {
		return nil
	}
	p := b.read(int(n))
	if p == nil {
		return nil
	}
	out := make(Bytes, len(p))
	copy(out, p)
	return out
}

// [short bytes] = [short] length, bytes.
func (b *Buffer) WriteShortBytes(v []byte) {
	b.WriteShort(Short(len(v)))
	if b.err == nil {
		b.buf = append(b.buf, v...)
	}
}

func (b *Buffer) ReadShortBytes() []byte {
	n := b.ReadShort()
	p := b.read(int(n))
	if p == nil {
		return nil
	}
	out := make([]byte, len(p))
	copy(out, p)
	return out
}

// [inet] = [byte] address length (4 or 16), address bytes, [int] port.
func (b *Buffer) WriteInet(addr Inet) {
	if b.err != nil {
		return
	}
	if err := b.WriteByte(byte(len(addr.IP))); err != nil {
		return
	}
	b.buf = append(b.buf, addr.IP...)
	b.WriteInt(addr.Port)
}

func (b *Buffer) ReadInet() Inet {
	n := b.ReadByte()
	if b.err != nil {
		return Inet{}
	}
	if n != 4 && n != 16 {
		b.fail(fmt.Errorf("frame: [inet] has invalid address length %d", n))
		return Inet{}
	}
	ip := b.read(int(n))
	if ip == nil {
		return Inet{}
	}
	addr := make([]byte, len(ip))
	copy(addr, ip)
	port := b.ReadInt()
	return Inet{IP: addr, Port: port}
}

// [consistency] = [short] mapped onto the eleven standard levels.
func (b *Buffer) WriteConsistency(c Consistency) {
	b.WriteShort(Short(c))
}

func (b *Buffer) ReadConsistency() Consistency {
	v := b.ReadShort()
	if b.err != nil {
		return 0
	}
	if _, ok := consistencyNames[Consistency(v)]; !ok {
		b.fail(fmt.Errorf("frame: unknown consistency level 0x%04x", v))
		return 0
	}
	return Consistency(v)
}

// [string map] = [short] n, n * ([string], [string]).
func (b *Buffer) WriteStringMap(m map[string]string) {
	b.WriteShort(Short(len(m)))
	for k, v := range m {
		b.WriteString(k)
		b.WriteString(v)
	}
}

func (b *Buffer) ReadStringMap() map[string]string {
	n := b.ReadShort()
	m := make(map[string]string, n)
	for i := Short(0); i < n; i++ {
		k := b.ReadString()
		v := b.ReadString()
		m[k] = v
	}
	return m
}

// [string multimap] = [short] n, n * ([string], [string list]).
func (b *Buffer) WriteStringMultiMap(m map[string]StringList) {
	b.WriteShort(Short(len(m)))
	for k, v := range m {
		b.WriteString(k)
		b.WriteStringList(v)
	}
}

func (b *Buffer) ReadStringMultiMap() map[string]StringList {
	n := b.ReadShort()
	m := make(map[string]StringList, n)
	for i := Short(0); i < n; i++ {
		k := b.ReadString()
		v := b.ReadStringList()
		m[k] = v
	}
	return m
}

// [bytes map] = [short] n, n * ([string], [bytes]) -- used for custom payload.
func (b *Buffer) WriteBytesMap(m map[string]Bytes) {
	b.WriteShort(Short(len(m)))
	for k, v := range m {
		b.WriteString(k)
		b.WriteBytes(v)
	}
}

func (b *Buffer) ReadBytesMap() map[string]Bytes {
	n := b.ReadShort()
	m := make(map[string]Bytes, n)
	for i := Short(0); i < n; i++ {
		k := b.ReadString()
		v := b.ReadBytes()
		m[k] = v
	}
	return m
}

// BufferWriter adapts a *Buffer to io.Writer explicitly, mirroring the
// reference driver's connReader.bufw field that io.CopyN writes into.
func BufferWriter(b *Buffer) io.Writer {
	return b
}

// CopyBuffer flushes everything written to buf to w, used by the writer
// goroutine to push a fully assembled frame onto the socket.
func CopyBuffer(buf *Buffer, w io.Writer) (int64, error) {
	n, err := w.Write(buf.Bytes())
	return int64(n), err
}
