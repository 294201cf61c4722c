package types

import "strings"

// MultiError collects independent failures, for example every invalid config field or every
// resource that could not be released while tearing down a handle.
type MultiError struct {
	Errors []error
}

// Add appends err unless it is nil.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// ErrOrNil returns nil if nothing was collected so the result can be returned as an error directly.
func (e *MultiError) ErrOrNil() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

func (e *MultiError) Error() string {
	var errs []string
	for _, err := range e.Errors {
		errs = append(errs, err.Error())
	}
	return strings.Join(errs, "; ")
}

// Unwrap allows errors.Is and errors.As to look at every collected error.
func (e *MultiError) Unwrap() []error {
	return e.Errors
}
