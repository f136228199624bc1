package imaputf7

import (
	"errors"
	"fmt"
)

// Validation failure kinds. Match them with errors.Is.
var (
	ErrNonASCII             = errors.New("non-ASCII character")
	ErrUnterminatedSequence = errors.New("unterminated encoded sequence")
	ErrInvalidBase64Char    = errors.New("invalid base64 character")
	ErrInvalidBase64Length  = errors.New("invalid base64 length")
	ErrInvalidUTF16Length   = errors.New("invalid UTF-16 length")
	ErrInvalidUTF16         = errors.New("invalid UTF-16 sequence")
)

// ValidationError reports why a string is not valid modified UTF-7.
// Offset is a byte offset into the input; it is -1 for ErrInvalidUTF16,
// which is not tied to a single position.
type ValidationError struct {
	Kind   error
	Offset int
}

func (e *ValidationError) Error() string {
	if e.Offset < 0 {
		return "imaputf7: " + e.Kind.Error()
	}
	return fmt.Sprintf("imaputf7: %v at byte offset %d", e.Kind, e.Offset)
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}
