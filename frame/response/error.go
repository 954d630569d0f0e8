package response

import (
	"fmt"

	"github.com/nativecql/cqldriver/frame"
)

// Error is the ERROR response: [int] code, [string] message, then a
// code-specific payload (§6, code catalog). The payload fields are grouped
// on a single struct rather than one Go type per code, because the client
// only ever switches on Code(), never on Go type.
type Error struct {
	ErrorCode frame.ErrorCode
	Message   string

	// Unavailable, ReadTimeout, ReadFailure, WriteTimeout, WriteFailure.
	Consistency frame.Consistency
	Required    int32 // Unavailable
	Alive       int32 // Unavailable
	Received    int32 // {Read,Write}{Timeout,Failure}
	BlockFor    int32 // {Read,Write}{Timeout,Failure}
	NumFailures int32 // ReadFailure, WriteFailure
	DataPresent bool  // ReadTimeout, ReadFailure
	WriteType   string // WriteTimeout, WriteFailure

	// FunctionFailure.
	Keyspace  string
	Function  string
	Arguments []string

	// AlreadyExists.
	Table string

	// Unprepared.
	UnpreparedID []byte
}

var _ frame.CodedError = (*Error)(nil)

func (e *Error) Code() frame.ErrorCode { return e.ErrorCode }

func (e *Error) Error() string {
	return fmt.Sprintf("cql error %s: %s", e.ErrorCode, e.Message)
}

// ParseError decodes an ERROR body, reading the code-specific tail based on
// the code just read (§6).
func ParseError(buf *frame.Buffer) *Error {
	e := &Error{
		ErrorCode: frame.ErrorCode(buf.ReadInt()),
		Message:   buf.ReadString(),
	}

	switch e.ErrorCode {
	case frame.ErrUnavailable:
		e.Consistency = buf.ReadConsistency()
		e.Required = buf.ReadInt()
		e.Alive = buf.ReadInt()
	case frame.ErrWriteTimeout:
		e.Consistency = buf.ReadConsistency()
		e.Received = buf.ReadInt()
		e.BlockFor = buf.ReadInt()
		e.WriteType = buf.ReadString()
	case frame.ErrReadTimeout:
		e.Consistency = buf.ReadConsistency()
		e.Received = buf.ReadInt()
		e.BlockFor = buf.ReadInt()
		e.DataPresent = buf.ReadByte() != 0
	case frame.ErrReadFailure:
		e.Consistency = buf.ReadConsistency()
		e.Received = buf.ReadInt()
		e.BlockFor = buf.ReadInt()
		e.NumFailures = buf.ReadInt()
		e.DataPresent = buf.ReadByte() != 0
	case frame.ErrWriteFailure:
		e.Consistency = buf.ReadConsistency()
		e.Received = buf.ReadInt()
		e.BlockFor = buf.ReadInt()
		e.NumFailures = buf.ReadInt()
		e.WriteType = buf.ReadString()
	case frame.ErrFuncFailure:
		e.Keyspace = buf.ReadString()
		e.Function = buf.ReadString()
		e.Arguments = buf.ReadStringList()
	case frame.ErrAlreadyExists:
		e.Keyspace = buf.ReadString()
		e.Table = buf.ReadString()
	case frame.ErrUnprepared:
		e.UnpreparedID = buf.ReadShortBytes()
	}
	return e
}
