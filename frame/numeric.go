package frame

import "math/big"

// encodeVarint produces the signed, two's-complement, minimum-length
// big-endian representation the CQL `varint` type requires (§4.2). This is
// the representation the `decimal` type's unscaled value also uses.
func encodeVarint(v *big.Int) []byte {
	if v.Sign() == 0 {
		return []byte{0}
	}
	if v.Sign() > 0 {
		b := v.Bytes()
		if b[0]&0x80 != 0 {
			b = append([]byte{0}, b...)
		}
		return b
	}

	mag := new(big.Int).Neg(v).Bytes()
	tc := make([]byte, len(mag))
	carry := byte(1)
	for i := len(mag) - 1; i >= 0; i-- {
		sum := int(^mag[i]) + int(carry)
		tc[i] = byte(sum)
		if sum > 0xFF {
			carry = 1
		} else {
			carry = 0
		}
	}
	if tc[0]&0x80 == 0 {
		tc = append([]byte{0xFF}, tc...)
	}
	return tc
}

// decodeVarint is the inverse of encodeVarint; it accepts any legal
// two's-complement encoding, not only minimum-length ones (a server is free
// to send non-minimal encodings and the client must still parse them).
func decodeVarint(b []byte) *big.Int {
	if len(b) == 0 {
		return new(big.Int)
	}
	if b[0]&0x80 == 0 {
		return new(big.Int).SetBytes(b)
	}

	inv := make([]byte, len(b))
	for i, v := range b {
		inv[i] = ^v
	}
	mag := new(big.Int).SetBytes(inv)
	mag.Add(mag, big.NewInt(1))
	return mag.Neg(mag)
}

// The `duration` type's three fields use Cassandra's own "vint" encoding:
// an unsigned, variable-length integer whose first byte's leading run of
// 1-bits counts the number of extra bytes that follow, combined with
// zigzag encoding to represent signed values.

func zigzagEncode(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

func zigzagDecode(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

func vintSize(v uint64) int {
	for i := 1; i < 9; i++ {
		if v>>uint(7*i) == 0 {
			return i
		}
	}
	return 9
}

func writeUnsignedVInt(buf *Buffer, v uint64) {
	size := vintSize(v)
	if size == 1 {
		_ = buf.WriteByte(byte(v))
		return
	}
	extra := size - 1
	first := byte(0xFF<<uint(8-extra)) & 0xFF
	if extra < 8 {
		first |= byte(v >> uint(8*extra))
	}
	_ = buf.WriteByte(first)
	for i := extra - 1; i >= 0; i-- {
		_ = buf.WriteByte(byte(v >> uint(8*i)))
	}
}

func readUnsignedVInt(buf *Buffer) uint64 {
	first := buf.ReadByte()
	if buf.Error() != nil {
		return 0
	}
	extra := leadingOnes(first)
	if extra == 0 {
		return uint64(first)
	}
	val := uint64(first) & (0xFF >> uint(extra))
	for i := 0; i < extra; i++ {
		b := buf.ReadByte()
		val = (val << 8) | uint64(b)
	}
	return val
}

func leadingOnes(b byte) int {
	n := 0
	for i := 7; i >= 0; i-- {
		if b&(1<<uint(i)) == 0 {
			break
		}
		n++
	}
	return n
}

func writeVInt(buf *Buffer, v int64) {
	writeUnsignedVInt(buf, zigzagEncode(v))
}

func readVInt(buf *Buffer) int64 {
	return zigzagDecode(readUnsignedVInt(buf))
}
