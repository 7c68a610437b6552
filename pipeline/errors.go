package pipeline

import (
	"errors"
	"fmt"

	"github.com/jed1boy/anyfile/security"
)

// Kind classifies an operation failure for the caller. Classification
// is structural, via errors.Is against the engine sentinels; message
// text is never inspected.
type Kind int

const (
	KindUnknown Kind = iota
	// KindMalformedSource marks unparsable input.
	KindMalformedSource
	// KindIndexOutOfRange marks an invalid page index. Defensive;
	// callers validate against the page count first.
	KindIndexOutOfRange
	// KindUnsupportedImage marks a non PNG/JPEG image input.
	KindUnsupportedImage
	// KindPrecondition marks input rejected before any engine ran.
	KindPrecondition
	// KindIncorrectPassword marks a user-correctable password failure.
	KindIncorrectPassword
	// KindDecryptionFailed marks an unexpected failure opening an
	// encrypted document.
	KindDecryptionFailed
	// KindEncryptionFailed marks an unexpected handler failure while
	// protecting a document.
	KindEncryptionFailed
)

func (k Kind) String() string {
	switch k {
	case KindMalformedSource:
		return "malformed source"
	case KindIndexOutOfRange:
		return "index out of range"
	case KindUnsupportedImage:
		return "unsupported image"
	case KindPrecondition:
		return "precondition failed"
	case KindIncorrectPassword:
		return "incorrect password"
	case KindDecryptionFailed:
		return "decryption failed"
	case KindEncryptionFailed:
		return "encryption failed"
	}
	return "unknown"
}

// Precondition sentinels. They surface inside an *Error with
// KindPrecondition; operations check them before touching any engine.
var (
	ErrTooFewFiles        = errors.New("at least two files are required")
	ErrNoPagesSelected    = errors.New("no pages selected")
	ErrEmptyWatermarkText = errors.New("watermark text is empty")
	ErrNoValidImages      = errors.New("no valid images")
	ErrPasswordMismatch   = errors.New("password confirmation does not match")
	ErrInvalidAngle       = errors.New("rotation angle must be 90, 180 or 270")
)

// Error is a classified operation failure.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func opError(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

func precondition(op string, err error) *Error {
	return opError(op, KindPrecondition, err)
}

// classifyLoad maps a document load failure to its kind.
func classifyLoad(op string, err error) *Error {
	if errors.Is(err, security.ErrIncorrectPassword) {
		return opError(op, KindIncorrectPassword, err)
	}
	return opError(op, KindMalformedSource, err)
}
