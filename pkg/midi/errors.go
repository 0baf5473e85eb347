package midi

import "fmt"

// ErrorKind enumerates the error categories from spec.md §7. Mirrors the
// small exception hierarchy in the Python original (ymidi/errors.py)
// rather than ad-hoc sentinel strings, so callers can branch on kind via
// errors.As without string matching.
type ErrorKind uint8

const (
	ErrInvalidHeader ErrorKind = iota
	ErrUnexpectedEOF
	ErrOverlongVarlen
	ErrLengthMismatch
	ErrUnknownStatus
	ErrDispatchError
	ErrPlaybackEnded
)

func (k ErrorKind) String() string {
	switch k {
	case ErrInvalidHeader:
		return "InvalidHeader"
	case ErrUnexpectedEOF:
		return "UnexpectedEof"
	case ErrOverlongVarlen:
		return "OverlongVarlen"
	case ErrLengthMismatch:
		return "LengthMismatch"
	case ErrUnknownStatus:
		return "UnknownStatus"
	case ErrDispatchError:
		return "DispatchError"
	case ErrPlaybackEnded:
		return "PlaybackEnded"
	default:
		return "Unknown"
	}
}

// Error is the error type returned for every failure kind named in
// spec.md §7. Kind supports errors.As-based branching; Err, when set,
// is the underlying cause and participates in errors.Is/As via Unwrap.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("midi: %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("midi: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, midi.ErrKind(SomeKind)) style comparisons by
// kind alone (ignoring Message/Err).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// NewError constructs an *Error of the given kind with a formatted
// message, optionally wrapping a cause.
func NewError(kind ErrorKind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// ErrKind returns a sentinel *Error of the given kind with no message,
// suitable as the target of errors.Is.
func ErrKind(kind ErrorKind) *Error {
	return &Error{Kind: kind}
}
