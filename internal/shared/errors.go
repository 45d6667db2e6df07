package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a uniqueness violation.
	ErrConflict = errors.New("conflict")
	// ErrValidation indicates malformed caller input.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized indicates authentication was refused.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnprocessable indicates the input was understood but could not be used.
	ErrUnprocessable = errors.New("unprocessable")
	// ErrUpstream indicates a remote dependency failed.
	ErrUpstream = errors.New("upstream unavailable")
)

// Error pairs an error category with a stable machine readable code.
type Error struct {
	Kind error
	Code string
}

// NewError builds a coded error of the given kind.
func NewError(kind error, code string) *Error {
	return &Error{Kind: kind, Code: code}
}

func (e *Error) Error() string {
	return e.Code
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// CodeOf returns the code of the first coded error in err's chain.
func CodeOf(err error) string {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}
