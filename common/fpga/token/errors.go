package token

import (
	"fmt"

	"github.com/thinkparq/fpgakit/common/fpga"
	"github.com/thinkparq/fpgakit/common/fpga/sysfs"
)

// ErrorInfo describes an error register of a resource.
type ErrorInfo struct {
	Name     string
	CanClear bool
}

func (r *Registry) errorEntry(t *Token, index int) (sysfs.ErrorEntry, error) {
	if err := t.Validate(); err != nil {
		return sysfs.ErrorEntry{}, err
	}
	if t.errors == nil {
		return sysfs.ErrorEntry{}, fmt.Errorf("%w: token has no error registers", fpga.NotFound)
	}
	return t.errors.Get(index)
}

// NumErrors returns the number of error registers of the resource.
func (r *Registry) NumErrors(t *Token) (int, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	return t.errors.Len(), nil
}

// GetErrorInfo describes the error register at index.
func (r *Registry) GetErrorInfo(t *Token, index int) (ErrorInfo, error) {
	e, err := r.errorEntry(t, index)
	if err != nil {
		return ErrorInfo{}, err
	}
	return ErrorInfo{Name: e.Name, CanClear: e.CanClear}, nil
}

// ReadError returns the current value of the error register at index.
func (r *Registry) ReadError(t *Token, index int) (uint64, error) {
	e, err := r.errorEntry(t, index)
	if err != nil {
		return 0, err
	}
	return e.Read(r.fsys)
}

// ClearError clears the error register at index. Returns NotSupported if the register cannot be
// cleared.
func (r *Registry) ClearError(t *Token, index int) error {
	e, err := r.errorEntry(t, index)
	if err != nil {
		return err
	}
	return e.Clear(r.fsys)
}

// ClearAllErrors clears every clearable error register of the resource and stops at the first
// register that cannot be cleared.
func (r *Registry) ClearAllErrors(t *Token) error {
	if err := t.Validate(); err != nil {
		return err
	}
	for _, e := range t.errors.Entries() {
		if !e.CanClear {
			continue
		}
		if err := e.Clear(r.fsys); err != nil {
			return err
		}
	}
	return nil
}
