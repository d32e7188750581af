package errors

import stderrors "errors"

// Error is the concrete type every flashkv public function returns on
// failure. It embeds baseError to get chaining, a stable Code and
// structured details, then adds the storage-specific context (key, area
// address, offset) that makes a failure actionable without re-deriving it
// from a stack trace.
type Error struct {
	*baseError
	key    string
	offset uint32
}

// New creates a new *Error with the given underlying cause, code and
// message.
func New(cause error, code Code, msg string) *Error {
	return &Error{baseError: NewBaseError(cause, code, msg)}
}

// WithDetail adds contextual information while preserving the *Error type.
func (e *Error) WithDetail(key string, value any) *Error {
	e.baseError.WithDetail(key, value)
	return e
}

// WithKey records which key the failing operation targeted.
func (e *Error) WithKey(key string) *Error {
	e.key = key
	return e
}

// WithOffset records the on-media byte offset involved in the failure, when
// one is known (e.g. where a bad CRC was found).
func (e *Error) WithOffset(offset uint32) *Error {
	e.offset = offset
	return e
}

// Key returns the key the failing operation targeted, or "" if none.
func (e *Error) Key() string { return e.key }

// Offset returns the on-media offset involved in the failure, or 0 if none.
func (e *Error) Offset() uint32 { return e.offset }

// Is lets errors.Is(err, errors.ErrItemNotFound) style comparisons work by
// comparing codes when the target is also an *Error.
func (e *Error) Is(target error) bool {
	var t *Error
	if stderrors.As(target, &t) {
		return e.Code() == t.Code()
	}
	return false
}

// Sentinel errors for the common no-detail cases, so callers can write
// `errors.Is(err, errors.ErrItemNotFound)` without constructing a Code
// comparison by hand.
var (
	ErrBadParam           = New(nil, CodeBadParam, "invalid argument")
	ErrAlignment          = New(nil, CodeAlignment, "address or length not aligned to erase-sector granularity")
	ErrMemAlloc           = New(nil, CodeMemAlloc, "allocation failed")
	ErrInvalidData        = New(nil, CodeInvalidData, "record failed CRC or magic validation")
	ErrErasedData         = New(nil, CodeErasedData, "reached erased region")
	ErrItemNotFound       = New(nil, CodeItemNotFound, "key not found")
	ErrStorageFull        = New(nil, CodeStorageFull, "live data does not fit the area")
	ErrAlreadyInitialized = New(nil, CodeAlreadyInitialized, "store already initialized")
	ErrClosed             = New(nil, CodeClosed, "store is closed")
)

// Wrap classifies a block-device error as a flashkv *Error with CodeDevice,
// preserving it as the cause so errors.Unwrap still reaches it.
func Wrap(cause error, msg string) *Error {
	return New(cause, CodeDevice, msg)
}

// CodeOf returns the Code of err if it is (or wraps) an *Error, and ""
// otherwise.
func CodeOf(err error) Code {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code()
	}
	return ""
}
