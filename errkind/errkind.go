// Package errkind defines the typed error kinds surfaced across the core:
// callers dispatch on kind with errors.Is, never on message text.
package errkind

import "errors"

type Kind int

const (
	PermissionDenied Kind = iota
	BindFailed
	DiscoveryFailed
	HandshakeRejected
	HandshakeTimeout
	FrameMalformed
	DecryptFailed
	SequenceGap
	SendFailed
	ReceiveClosed
	PeerSilent
	ClipboardTooLarge
)

func (k Kind) String() string {
	switch k {
	case PermissionDenied:
		return "permission-denied"
	case BindFailed:
		return "bind-failed"
	case DiscoveryFailed:
		return "discovery-failed"
	case HandshakeRejected:
		return "handshake-rejected"
	case HandshakeTimeout:
		return "handshake-timeout"
	case FrameMalformed:
		return "frame-malformed"
	case DecryptFailed:
		return "decrypt-failed"
	case SequenceGap:
		return "sequence-gap"
	case SendFailed:
		return "send-failed"
	case ReceiveClosed:
		return "receive-closed"
	case PeerSilent:
		return "peer-silent"
	case ClipboardTooLarge:
		return "clipboard-too-large"
	default:
		return "unknown"
	}
}

// Error pairs a Kind with an optional underlying cause and message.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Kind.String() + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Kind.String() + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error carrying the same Kind, so
// callers can write errors.Is(err, errkind.New(errkind.PeerSilent, "")).
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// Of reports whether err's chain contains an *Error of the given Kind.
func Of(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
