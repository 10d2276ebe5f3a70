// Package caerr defines the error kinds the Channel Access core raises.
// State machines and the database return these as plain Go errors;
// driver code distinguishes them with errors.As.
package caerr

import "github.com/pkg/errors"

// EncodeError reports that a value could not be serialized onto the wire
// (a field exceeded the width the wire format allows). Always fatal to
// the circuit that raised it.
type EncodeError struct {
	Field string
	Err   error
}

func (e *EncodeError) Error() string {
	return errors.Wrapf(e.Err, "encode %s", e.Field).Error()
}

func (e *EncodeError) Unwrap() error { return e.Err }

func NewEncodeError(field string, cause error) *EncodeError {
	return &EncodeError{Field: field, Err: cause}
}

// DecodeError reports malformed bytes on the wire. Always fatal to the
// circuit that raised it.
type DecodeError struct {
	Context string
	Err     error
}

func (e *DecodeError) Error() string {
	return errors.Wrapf(e.Err, "decode %s", e.Context).Error()
}

func (e *DecodeError) Unwrap() error { return e.Err }

func NewDecodeError(context string, cause error) *DecodeError {
	return &DecodeError{Context: context, Err: cause}
}

// LocalProtocolError reports that the local caller tried something
// illegal in the state machine's current state (e.g. issuing a read
// before the channel is CONNECTED). Never touches the wire.
type LocalProtocolError struct {
	Msg string
}

func (e *LocalProtocolError) Error() string { return "local protocol error: " + e.Msg }

func NewLocalProtocolError(format string, args ...interface{}) *LocalProtocolError {
	return &LocalProtocolError{Msg: errors.Errorf(format, args...).Error()}
}

// RemoteProtocolError reports that the peer sent a command illegal in
// the circuit's current state. Fatal to the circuit.
type RemoteProtocolError struct {
	Msg string
}

func (e *RemoteProtocolError) Error() string { return "remote protocol error: " + e.Msg }

func NewRemoteProtocolError(format string, args ...interface{}) *RemoteProtocolError {
	return &RemoteProtocolError{Msg: errors.Errorf(format, args...).Error()}
}

// ConvertError reports that a value could not be coerced between dbr
// types. Surfaces as an ErrorResponse server-side, as a plain error
// client-side.
type ConvertError struct {
	From, To string
	Msg      string
}

func (e *ConvertError) Error() string {
	return errors.Errorf("convert %s -> %s: %s", e.From, e.To, e.Msg).Error()
}

func NewConvertError(from, to, format string, args ...interface{}) *ConvertError {
	return &ConvertError{From: from, To: to, Msg: errors.Errorf(format, args...).Error()}
}

// Forbidden reports that an access-control check rejected the request.
type Forbidden struct {
	Host, User string
	Op         string
}

func (e *Forbidden) Error() string {
	return errors.Errorf("forbidden: %s cannot %s from %s", e.User, e.Op, e.Host).Error()
}

func NewForbidden(host, user, op string) *Forbidden {
	return &Forbidden{Host: host, User: user, Op: op}
}

// Timeout reports that a caller-supplied budget expired before the
// expected state transition occurred. The pending operation remains in
// the circuit's table.
type Timeout struct {
	Op string
}

func (e *Timeout) Error() string { return "timeout waiting for " + e.Op }

func NewTimeout(op string) *Timeout { return &Timeout{Op: op} }

// Disconnected reports that the peer closed the connection. Every
// pending operation on the affected circuit fails with this kind.
type Disconnected struct {
	Reason string
}

func (e *Disconnected) Error() string {
	if e.Reason == "" {
		return "disconnected"
	}
	return "disconnected: " + e.Reason
}

func NewDisconnected(reason string) *Disconnected { return &Disconnected{Reason: reason} }
