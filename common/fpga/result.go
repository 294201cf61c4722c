package fpga

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"
)

// Result is the error taxonomy returned across the SDK. Results implement error so they can be
// wrapped with fmt.Errorf and tested with errors.Is.
type Result int32

const (
	OK Result = iota
	InvalidParam
	Busy
	Exception
	NotFound
	NoMemory
	NotSupported
	NoDriver
	NoDaemon
	NoAccess
	Reconf
)

func (r Result) Error() string {
	return r.String()
}

func (r Result) String() string {
	switch r {
	case OK:
		return "Success"
	case InvalidParam:
		return "Invalid parameter"
	case Busy:
		return "Resource busy"
	case Exception:
		return "Exception"
	case NotFound:
		return "Not found"
	case NoMemory:
		return "No memory"
	case NotSupported:
		return "Not supported"
	case NoDriver:
		return "No driver available"
	case NoDaemon:
		return "No daemon available"
	case NoAccess:
		return "No access"
	case Reconf:
		return "Reconfiguration error"
	default:
		return fmt.Sprintf("Unknown result (%d)", int(r))
	}
}

// Is allows a Result to match the closest syscall errno or io/fs sentinel so callers that only know
// about the standard library errors can still classify SDK failures.
func (r Result) Is(target error) bool {
	switch t := target.(type) {
	case Result:
		return r == t
	case syscall.Errno:
		return r.Errno() == t && t != 0
	}
	switch target {
	case fs.ErrNotExist:
		return r == NotFound
	case fs.ErrPermission:
		return r == NoAccess
	}
	return false
}

// Errno returns the errno that most closely describes the Result, or 0 if there is none.
func (r Result) Errno() syscall.Errno {
	switch r {
	case InvalidParam:
		return syscall.EINVAL
	case Busy:
		return syscall.EBUSY
	case NotFound:
		return syscall.ENOENT
	case NoMemory:
		return syscall.ENOMEM
	case NotSupported:
		return syscall.ENOTSUP
	case NoDriver:
		return syscall.ENODEV
	case NoAccess:
		return syscall.EACCES
	default:
		return 0
	}
}

// ResultOf extracts the Result from err. A nil error is OK and errors that do not wrap a Result are
// classified as Exception.
func ResultOf(err error) Result {
	if err == nil {
		return OK
	}
	var r Result
	if errors.As(err, &r) {
		return r
	}
	return Exception
}
