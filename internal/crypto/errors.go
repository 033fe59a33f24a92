package crypto

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so callers can branch on the class of
// problem without parsing messages.
type ErrorKind string

const (
	// KindValidation indicates malformed caller input.
	KindValidation ErrorKind = "validation"
	// KindAsymmetric indicates a KEM contract violation (wrong key length,
	// decapsulation failure).
	KindAsymmetric ErrorKind = "algorithm-asymmetric"
	// KindSymmetric indicates an AEAD failure, including authentication
	// failures on open.
	KindSymmetric ErrorKind = "algorithm-symmetric"
	// KindKDF indicates a key-derivation failure.
	KindKDF ErrorKind = "algorithm-kdf"
	// KindOperation indicates a higher-level operation failed, wrapping a cause.
	KindOperation ErrorKind = "operation"
	// KindFormat indicates malformed wire data such as bad base64 or
	// missing fields.
	KindFormat ErrorKind = "format"
	// KindConfig indicates invalid configuration.
	KindConfig ErrorKind = "config"
	// KindKeyManager indicates a key lifecycle, rotation or storage failure.
	KindKeyManager ErrorKind = "keymanager"
)

// Error is the typed error returned by every component in this service.
// Messages never contain key material.
type Error struct {
	Kind ErrorKind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Kind, e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a typed error without a cause.
func NewError(kind ErrorKind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Errorf creates a typed error with a formatted message.
func Errorf(kind ErrorKind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// WrapError creates a typed error wrapping a cause.
func WrapError(kind ErrorKind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

// IsKind reports whether err or any error in its chain carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the kind of the first typed error in the chain, or the
// empty string if the chain carries none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
