package response

import (
	"testing"

	"github.com/nativecql/cqldriver/frame"

	"github.com/google/go-cmp/cmp"
)

func TestParseError(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name     string
		build    func(buf *frame.Buffer)
		expected *Error
	}{
		{
			name: "Should parse a plain invalid error",
			build: func(buf *frame.Buffer) {
				buf.WriteInt(frame.Int(frame.ErrInvalid))
				buf.WriteString("bad query")
			},
			expected: &Error{ErrorCode: frame.ErrInvalid, Message: "bad query"},
		},
		{
			name: "Should parse an unavailable error",
			build: func(buf *frame.Buffer) {
				buf.WriteInt(frame.Int(frame.ErrUnavailable))
				buf.WriteString("not enough replicas")
				buf.WriteConsistency(frame.QUORUM)
				buf.WriteInt(3)
				buf.WriteInt(1)
			},
			expected: &Error{
				ErrorCode:   frame.ErrUnavailable,
				Message:     "not enough replicas",
				Consistency: frame.QUORUM,
				Required:    3,
				Alive:       1,
			},
		},
		{
			name: "Should parse a write timeout error",
			build: func(buf *frame.Buffer) {
				buf.WriteInt(frame.Int(frame.ErrWriteTimeout))
				buf.WriteString("timed out")
				buf.WriteConsistency(frame.ONE)
				buf.WriteInt(0)
				buf.WriteInt(1)
				buf.WriteString("SIMPLE")
			},
			expected: &Error{
				ErrorCode:   frame.ErrWriteTimeout,
				Message:     "timed out",
				Consistency: frame.ONE,
				Received:    0,
				BlockFor:    1,
				WriteType:   "SIMPLE",
			},
		},
		{
			name: "Should parse an unprepared error",
			build: func(buf *frame.Buffer) {
				buf.WriteInt(frame.Int(frame.ErrUnprepared))
				buf.WriteString("no prepared statement")
				buf.WriteShortBytes([]byte{0x01, 0x02, 0x03, 0x04})
			},
			expected: &Error{
				ErrorCode:    frame.ErrUnprepared,
				Message:      "no prepared statement",
				UnpreparedID: []byte{0x01, 0x02, 0x03, 0x04},
			},
		},
	}

	for i := 0; i < len(testCases); i++ {
		tc := testCases[i]
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var buf frame.Buffer
			tc.build(&buf)
			if err := buf.Error(); err != nil {
				t.Fatal(err)
			}

			in := frame.Buffer{}
			_, _ = in.Write(buf.Bytes())
			got := ParseError(&in)
			if diff := cmp.Diff(got, tc.expected); diff != "" {
				t.Fatal(diff)
			}
			if got.Code() != tc.expected.ErrorCode {
				t.Fatalf("Code() = %v, want %v", got.Code(), tc.expected.ErrorCode)
			}
		})
	}
}
