// Package dicomerr provides typed errors for the association, DIMSE, and
// codec layers so callers can distinguish failure classes with errors.As
// instead of string matching.
package dicomerr

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions that don't need any payload beyond "this
// happened".
var (
	ErrConnectionClosed = errors.New("netdicom: connection closed")
	ErrUnknownContextID  = errors.New("netdicom: unknown presentation context id")
	ErrOperationCanceled = errors.New("netdicom: operation canceled")
)

// TransportError wraps a TCP read/write failure or unexpected EOF.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func NewTransportError(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err}
}

// ProtocolError covers a malformed PDU, unknown PDU type, bad length, or a
// command/data type mismatch found while parsing the wire stream.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string { return "protocol error: " + e.Msg }

func NewProtocolError(format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{Msg: fmt.Sprintf(format, args...)}
}

// NegotiationError covers a called-AE mismatch, no acceptable presentation
// context, or a max-PDU size too small to negotiate. Source/Reason map
// directly onto the A-ASSOCIATE-RJ PDU fields the acceptor sends back.
type NegotiationError struct {
	Source byte
	Reason byte
	Msg    string
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("association rejected: %s (source=0x%02x reason=0x%02x)", e.Msg, e.Source, e.Reason)
}

func NewNegotiationError(source, reason byte, msg string) *NegotiationError {
	return &NegotiationError{Source: source, Reason: reason, Msg: msg}
}

// ServiceError is a handler-reported DIMSE status outside Success. Status is
// the wire status code that gets copied into the operation's RSP.
type ServiceError struct {
	Operation string
	Status    uint16
	Msg       string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s failed: %s (status=0x%04x)", e.Operation, e.Msg, e.Status)
}

func NewServiceError(operation string, status uint16, msg string) *ServiceError {
	return &ServiceError{Operation: operation, Status: status, Msg: msg}
}

// CodecError covers pixel codec failures: bad parameters, an unsupported
// transfer syntax, or an encode/decode failure.
type CodecError struct {
	Kind CodecErrorKind
	Msg  string
}

type CodecErrorKind int

const (
	InvalidParameters CodecErrorKind = iota
	UnsupportedTransferSyntax
	EncodingFailed
	DecodingFailed
)

func (k CodecErrorKind) String() string {
	switch k {
	case InvalidParameters:
		return "InvalidParameters"
	case UnsupportedTransferSyntax:
		return "UnsupportedTransferSyntax"
	case EncodingFailed:
		return "EncodingFailed"
	case DecodingFailed:
		return "DecodingFailed"
	default:
		return "Unknown"
	}
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("codec error (%s): %s", e.Kind, e.Msg)
}

func NewCodecError(kind CodecErrorKind, format string, args ...interface{}) *CodecError {
	return &CodecError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
