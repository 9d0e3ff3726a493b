// Package rlcerr defines the error codes the RLC-AM core produces.
//
// Every error kind is recovered locally by the entity except MaxRetxReached,
// which is surfaced upward to RRC. The entity never aborts the process on
// any of these.
package rlcerr

import "fmt"

// Code identifies the kind of error a Tx/Rx operation failed with.
type Code int

const (
	// QueueFull: try_push on a full SDU queue. Returned to the caller, who
	// may drop the SDU or retry.
	QueueFull Code = iota + 1

	// BufferPoolExhausted: no byte buffer available. Logged; the PDU or
	// SDU involved is silently dropped. No state corruption follows.
	BufferPoolExhausted

	// MalformedPdu: header decode failed or a declared length did not
	// match the bytes available. The PDU is dropped; the Rx window is not
	// updated.
	MalformedPdu

	// OutOfWindow: SN outside the receive window. The PDU is dropped; if
	// its poll bit was set, a STATUS is still armed.
	OutOfWindow

	// DuplicatePdu: SN already present in the Rx window. The PDU is
	// dropped; the poll bit is still honored.
	DuplicatePdu

	// MaxRetxReached: retx_count reached the configured threshold for an
	// SN. Surfaced asynchronously to RRC; the entity continues running.
	MaxRetxReached

	// InvalidConfig: an illegal configuration value was supplied.
	// Config.Validate (and so New) returns failure and no entity is built.
	InvalidConfig
)

// String returns a human-readable name for the code.
func (c Code) String() string {
	switch c {
	case QueueFull:
		return "QueueFull"
	case BufferPoolExhausted:
		return "BufferPoolExhausted"
	case MalformedPdu:
		return "MalformedPdu"
	case OutOfWindow:
		return "OutOfWindow"
	case DuplicatePdu:
		return "DuplicatePdu"
	case MaxRetxReached:
		return "MaxRetxReached"
	case InvalidConfig:
		return "InvalidConfig"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// Error is the concrete error type returned by the core. It carries the
// Code plus context useful for logging (SN, LCID) without requiring
// callers to parse the message string.
type Error struct {
	Code    Code
	Message string
	SN      int32 // -1 when not applicable
	Cause   error
}

func (e *Error) Error() string {
	if e.SN >= 0 {
		return fmt.Sprintf("%s: %s (sn=%d)", e.Code, e.Message, e.SN)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, rlcerr.ErrQueueFull) style comparisons by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func newErr(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, SN: -1}
}

// New constructs an *Error with no SN context.
func New(code Code, msg string) *Error { return newErr(code, msg) }

// Newf constructs an *Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return newErr(code, fmt.Sprintf(format, args...))
}

// WithSN returns a copy of the error annotated with the offending SN.
func (e *Error) WithSN(sn uint32) *Error {
	cp := *e
	cp.SN = int32(sn)
	return &cp
}

// Sentinel values for errors.Is comparisons against a bare code without
// constructing a message (e.g. `errors.Is(err, rlcerr.ErrQueueFull)`).
var (
	ErrQueueFull           = New(QueueFull, "sdu queue is full")
	ErrBufferPoolExhausted = New(BufferPoolExhausted, "buffer pool exhausted")
	ErrMalformedPdu        = New(MalformedPdu, "malformed pdu")
	ErrOutOfWindow         = New(OutOfWindow, "sn outside receive window")
	ErrDuplicatePdu        = New(DuplicatePdu, "duplicate pdu")
	ErrMaxRetxReached      = New(MaxRetxReached, "max retransmissions reached")
	ErrInvalidConfig       = New(InvalidConfig, "invalid configuration")
)
