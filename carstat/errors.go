package carstat

import "errors"

// Kind is a stable category for programmatic error handling.
type Kind string

const (
	// KindMalformed marks client input that is not an acceptable archive.
	// Retrying the same bytes always fails the same way.
	KindMalformed Kind = "Malformed"
	KindInternal  Kind = "Internal"
)

// Reason names the violated archive rule. Callers should branch on Reason
// rather than matching error strings.
type Reason string

const (
	ReasonBadHeader        Reason = "bad-header"
	ReasonBadSection       Reason = "bad-section"
	ReasonNoRoots          Reason = "no-roots"
	ReasonTooManyRoots     Reason = "too-many-roots"
	ReasonBlockTooBig      Reason = "block-too-big"
	ReasonEmpty            Reason = "empty-car"
	ReasonMissingRootBlock Reason = "missing-root-block"
	ReasonRootLinksAlone   Reason = "root-links-without-blocks"
	ReasonUndecodableBlock Reason = "undecodable-block"
)

// Error is the validator's structured error type.
//
// Message is intended for humans; do not match on it.
type Error struct {
	Kind    Kind
	Reason  Reason
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func malformed(reason Reason, msg string, cause error) error {
	return &Error{Kind: KindMalformed, Reason: reason, Message: msg, Cause: cause}
}

// IsMalformed reports whether err is (or wraps) a malformed-archive error.
func IsMalformed(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == KindMalformed
}

// ReasonOf returns the Reason of a structured error, or "" if unknown.
func ReasonOf(err error) Reason {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Reason
}
