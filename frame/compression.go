package frame

import (
	"fmt"

	"github.com/golang/snappy"
	"github.com/pierrec/lz4/v4"
)

// Compression names the STARTUP-negotiated algorithm (§4.3).
type Compression string

const (
	CompressionNone   Compression = ""
	CompressionLZ4    Compression = "lz4"
	CompressionSnappy Compression = "snappy"
)

// Compressor wraps/unwraps a frame body. It is a property of a connection,
// fixed for that connection's lifetime once negotiated at STARTUP -- never
// of the Session, because two connections (even to the same node) may in
// principle negotiate independently.
type Compressor interface {
	Name() Compression
	Compress(body []byte) ([]byte, error)
	Decompress(body []byte) ([]byte, error)
}

// NoCompression is the always-valid identity compressor.
type NoCompression struct{}

func (NoCompression) Name() Compression                  { return CompressionNone }
func (NoCompression) Compress(b []byte) ([]byte, error)   { return b, nil }
func (NoCompression) Decompress(b []byte) ([]byte, error) { return b, nil }

// LZ4Compressor implements the "lz4" STARTUP option. Cassandra's framing
// prefixes the compressed payload with a 4-byte big-endian uncompressed
// length, which pierrec/lz4's block API doesn't add on its own.
type LZ4Compressor struct{}

func (LZ4Compressor) Name() Compression { return CompressionLZ4 }

func (LZ4Compressor) Compress(body []byte) ([]byte, error) {
	buf := make([]byte, lz4.CompressBlockBound(len(body))+4)
	buf[0] = byte(len(body) >> 24)
	buf[1] = byte(len(body) >> 16)
	buf[2] = byte(len(body) >> 8)
	buf[3] = byte(len(body))

	var c lz4.Compressor
	n, err := c.CompressBlock(body, buf[4:])
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	if n == 0 && len(body) > 0 {
		return nil, fmt.Errorf("lz4 compress: incompressible input reported as empty")
	}
	return buf[:4+n], nil
}

func (LZ4Compressor) Decompress(body []byte) ([]byte, error) {
	if len(body) < 4 {
		return nil, fmt.Errorf("lz4 decompress: body too short for length prefix")
	}
	n := int(body[0])<<24 | int(body[1])<<16 | int(body[2])<<8 | int(body[3])
	out := make([]byte, n)
	if n == 0 {
		return out, nil
	}
	if _, err := lz4.UncompressBlock(body[4:], out); err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	return out, nil
}

// SnappyCompressor implements the "snappy" STARTUP option.
type SnappyCompressor struct{}

func (SnappyCompressor) Name() Compression { return CompressionSnappy }

func (SnappyCompressor) Compress(body []byte) ([]byte, error) {
	return snappy.Encode(nil, body), nil
}

func (SnappyCompressor) Decompress(body []byte) ([]byte, error) {
	out, err := snappy.Decode(nil, body)
	if err != nil {
		return nil, fmt.Errorf("snappy decompress: %w", err)
	}
	return out, nil
}

// NewCompressor resolves a STARTUP COMPRESSION option value to a Compressor.
func NewCompressor(name Compression) (Compressor, error) {
	switch name {
	case CompressionNone:
		return NoCompression{}, nil
	case CompressionLZ4:
		return LZ4Compressor{}, nil
	case CompressionSnappy:
		return SnappyCompressor{}, nil
	default:
		return nil, fmt.Errorf("frame: unknown compression %q", name)
	}
}
