package core

import "fmt"

// Kind classifies a core error, per spec §7.
type Kind string

const (
	// KindValidationError is a bad argument to Use/Queue/Connect.
	KindValidationError Kind = "ValidationError"
	// KindAlreadyExists is a duplicate queue registration.
	KindAlreadyExists Kind = "AlreadyExists"
	// KindSchemaViolation is a queue not known to the schema collaborator, or
	// queueOpts supplied while a schema collaborator is configured.
	KindSchemaViolation Kind = "SchemaViolation"
	// KindTransportError wraps a failure returned by the transport collaborator.
	KindTransportError Kind = "TransportError"
	// KindCancelledByPeer is connect cancelled by close, or vice versa.
	KindCancelledByPeer Kind = "CancelledByPeer"
	// KindPipelineMisuse is next invoked more than once by one middleware.
	KindPipelineMisuse Kind = "PipelineMisuse"
)

// Error is the error type every core operation returns or emits. Peer carries the
// cancelling operation's own error for KindCancelledByPeer; Unwrap exposes cause so
// callers can still errors.Is/As through to the transport's underlying error.
type Error struct {
	Kind    Kind
	Message string
	Peer    error
	cause   error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.cause != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.cause)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.cause }

func validationErrorf(format string, args ...any) *Error {
	return &Error{Kind: KindValidationError, Message: fmt.Sprintf(format, args...)}
}

func alreadyExistsErrorf(format string, args ...any) *Error {
	return &Error{Kind: KindAlreadyExists, Message: fmt.Sprintf(format, args...)}
}

func schemaViolationErrorf(format string, args ...any) *Error {
	return &Error{Kind: KindSchemaViolation, Message: fmt.Sprintf(format, args...)}
}

func transportError(cause error) *Error {
	return &Error{Kind: KindTransportError, cause: cause}
}

func cancelledByPeer(message string, peer error) *Error {
	return &Error{Kind: KindCancelledByPeer, Message: message, Peer: peer}
}

func pipelineMisuse() *Error {
	return &Error{Kind: KindPipelineMisuse, Message: "next invoked more than once by the same middleware"}
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind == kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
