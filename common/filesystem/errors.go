package filesystem

import "errors"

var (
	ErrPathTooLong    = errors.New("path exceeds the maximum supported length")
	ErrNotImplemented = errors.New("operation is not supported by this file system provider")
)
