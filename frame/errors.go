package frame

import "fmt"

// ErrorCode is the [int] code carried by an ERROR body (§6, code catalog).
type ErrorCode Int

const (
	ErrServer            ErrorCode = 0x0000
	ErrProtocol          ErrorCode = 0x000A
	ErrAuth              ErrorCode = 0x0100
	ErrUnavailable       ErrorCode = 0x1000
	ErrOverloaded        ErrorCode = 0x1001
	ErrIsBootstrapping   ErrorCode = 0x1002
	ErrTruncate          ErrorCode = 0x1003
	ErrWriteTimeout      ErrorCode = 0x1100
	ErrReadTimeout       ErrorCode = 0x1200
	ErrReadFailure       ErrorCode = 0x1300
	ErrFuncFailure       ErrorCode = 0x1400
	ErrWriteFailure      ErrorCode = 0x1500
	ErrSyntax            ErrorCode = 0x2000
	ErrUnauthorized      ErrorCode = 0x2100
	ErrInvalid           ErrorCode = 0x2200
	ErrConfig            ErrorCode = 0x2300
	ErrAlreadyExists     ErrorCode = 0x2400
	ErrUnprepared        ErrorCode = 0x2500
)

var errorCodeNames = map[ErrorCode]string{
	ErrServer: "server", ErrProtocol: "protocol", ErrAuth: "auth",
	ErrUnavailable: "unavailable", ErrOverloaded: "overloaded",
	ErrIsBootstrapping: "is_bootstrapping", ErrTruncate: "truncate",
	ErrWriteTimeout: "write_timeout", ErrReadTimeout: "read_timeout",
	ErrReadFailure: "read_failure", ErrFuncFailure: "func_failure",
	ErrWriteFailure: "write_failure", ErrSyntax: "syntax",
	ErrUnauthorized: "unauthorized", ErrInvalid: "invalid",
	ErrConfig: "config", ErrAlreadyExists: "already_exists", ErrUnprepared: "unprepared",
}

func (c ErrorCode) String() string {
	if s, ok := errorCodeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("ErrorCode(0x%04x)", Int(c))
}

// CodedError is implemented by every response.Error-shaped body so
// transport.responseAsError can recognize a server ERROR frame without an
// import cycle back into frame/response.
type CodedError interface {
	error
	Code() ErrorCode
}

// UnknownOpCode is returned by the frame codec when a header names an opcode
// with no registered body decoder; the frame is dropped (§4.3).
type UnknownOpCode struct {
	OpCode OpCode
}

func (e UnknownOpCode) Error() string {
	return fmt.Sprintf("frame: unknown opcode %s", e.OpCode)
}

// InvalidValue is returned by the typed value codec when the caller tries to
// encode a Go value that doesn't fit the target CQL type (§7).
type InvalidValue struct {
	Type   *Option
	Reason string
}

func (e InvalidValue) Error() string {
	if e.Type == nil {
		return fmt.Sprintf("frame: invalid value: %s", e.Reason)
	}
	return fmt.Sprintf("frame: invalid value for type %s: %s", e.Type, e.Reason)
}
