package transport

import (
	"errors"
	"io"
	"syscall"

	"github.com/nativecql/cqldriver/frame"
	"github.com/nativecql/cqldriver/frame/response"
)

// RetryDecision tells the executor what to do after a request failed (§4.6).
type RetryDecision int

const (
	DontRetry RetryDecision = iota
	RetrySameNode
	RetryNextNode
)

// RetryInfo carries what a RetryDecider needs to decide: the error observed,
// whether the statement is idempotent, and the consistency level requested.
type RetryInfo struct {
	Error       error
	Idempotent  bool
	Consistency frame.Consistency
}

// RetryDecider is per-query mutable state (an attempt counter, typically);
// a fresh one is created per logical operation via RetryPolicy.NewRetryDecider.
type RetryDecider interface {
	Decide(RetryInfo) RetryDecision
	Reset()
}

// RetryPolicy is the pluggable retry strategy a Session is configured with
// (§6 library surface: RetryPolicy ∈ {Never, Default, Downgrading}).
type RetryPolicy interface {
	NewRetryDecider() RetryDecider
}

// IsTransient reports whether err is one of the transient server errors the
// spec names as retry-eligible (§4.6 step 6): Unavailable, Overloaded,
// IsBootstrapping, TruncateError, or a {Write,Read}Timeout that did not
// satisfy the requested consistency level.
func IsTransient(err error) bool {
	var ce *response.Error
	if errors.As(err, &ce) {
		switch ce.Code() {
		case frame.ErrUnavailable, frame.ErrOverloaded, frame.ErrIsBootstrapping, frame.ErrTruncate:
			return true
		case frame.ErrWriteTimeout:
			return ce.Received < ce.BlockFor
		case frame.ErrReadTimeout:
			return ce.Received < ce.BlockFor
		}
		return false
	}
	// A bare I/O error (connection reset, EOF) is also transient. No
	// distinction is made between an I/O error while writing the request and
	// one while awaiting the response: both are classified the same way.
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, syscall.ECONNRESET)
}

// isNoRetryServerError reports the error codes the spec says must surface to
// the caller untouched (§4.6 step 8, §7).
func isNoRetryServerError(err error) bool {
	var ce *response.Error
	if !errors.As(err, &ce) {
		return false
	}
	switch ce.Code() {
	case frame.ErrAuth, frame.ErrSyntax, frame.ErrInvalid, frame.ErrAlreadyExists, frame.ErrUnauthorized:
		return true
	}
	return false
}

// NeverRetryPolicy never retries: every failure surfaces to the caller.
type NeverRetryPolicy struct{}

func (NeverRetryPolicy) NewRetryDecider() RetryDecider { return &neverDecider{} }

type neverDecider struct{}

func (*neverDecider) Decide(RetryInfo) RetryDecision { return DontRetry }
func (*neverDecider) Reset()                         {}

// DefaultRetryPolicy implements the spec's default: one retry against a
// different node for any transient error, and no retry otherwise (§4.6).
type DefaultRetryPolicy struct{}

func (DefaultRetryPolicy) NewRetryDecider() RetryDecider { return &defaultDecider{} }

type defaultDecider struct {
	retried bool
}

func (d *defaultDecider) Decide(ri RetryInfo) RetryDecision {
	if isNoRetryServerError(ri.Error) {
		return DontRetry
	}
	if d.retried || !IsTransient(ri.Error) {
		return DontRetry
	}
	d.retried = true
	return RetryNextNode
}

func (d *defaultDecider) Reset() { d.retried = false }

// DowngradingRetryPolicy retries once on the same node for a read/write
// timeout that nonetheless achieved a usable (non-zero) ack count, on the
// theory the coordinator may just be slow; falls back to DefaultRetryPolicy
// semantics otherwise.
type DowngradingRetryPolicy struct{}

func (DowngradingRetryPolicy) NewRetryDecider() RetryDecider { return &downgradingDecider{} }

type downgradingDecider struct {
	retried bool
}

func (d *downgradingDecider) Decide(ri RetryInfo) RetryDecision {
	if isNoRetryServerError(ri.Error) {
		return DontRetry
	}
	if d.retried {
		return DontRetry
	}
	var ce *response.Error
	if errors.As(ri.Error, &ce) && ri.Idempotent {
		switch ce.Code() {
		case frame.ErrWriteTimeout, frame.ErrReadTimeout:
			if ce.Received > 0 {
				d.retried = true
				return RetrySameNode
			}
		}
	}
	if !d.retried && IsTransient(ri.Error) {
		d.retried = true
		return RetryNextNode
	}
	return DontRetry
}

func (d *downgradingDecider) Reset() { d.retried = false }
