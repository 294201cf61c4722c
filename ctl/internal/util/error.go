package util

import (
	"errors"

	"github.com/thinkparq/fpgakit/common/fpga"
)

// Contains an actual error and extra information on how to exit the cmd app
type CtlError struct {
	inner    error
	exitCode CtlExitCode
}

type CtlExitCode int

const (
	Success CtlExitCode = iota
	GeneralError
	PartialSuccess
	InvalidArgument
	ResourceBusy
	ResourceNotFound
	NoDriver
	PermissionDenied
)

func (c CtlExitCode) String() string {
	switch c {
	case Success:
		return "Success"
	case GeneralError:
		return "General Error"
	case PartialSuccess:
		return "Partial Success"
	case InvalidArgument:
		return "Invalid Argument"
	case ResourceBusy:
		return "Resource Busy"
	case ResourceNotFound:
		return "Resource Not Found"
	case NoDriver:
		return "No Driver"
	case PermissionDenied:
		return "Permission Denied"
	default:
		return "Unknown"
	}
}

// Wraps the given error together with the exit code - meant to be returned from a command to the
// caller on error. The app then exits with the given exit code.
func NewCtlError(err error, exitCode CtlExitCode) CtlError {
	return CtlError{inner: err, exitCode: exitCode}
}

func (err *CtlError) GetExitCode() int {
	return int(err.exitCode)
}

func (err CtlError) Error() string {
	return err.inner.Error()
}

func (err CtlError) Unwrap() error {
	return err.inner
}

// ExitCodeFor determines the exit code for an error returned by a command. CtlErrors keep their
// exit code, otherwise the result code of the SDK is mapped so scripts can tell a busy device from
// a missing one.
func ExitCodeFor(err error) int {
	if err == nil {
		return int(Success)
	}
	var ctlError CtlError
	if errors.As(err, &ctlError) {
		return ctlError.GetExitCode()
	}
	switch fpga.ResultOf(err) {
	case fpga.InvalidParam:
		return int(InvalidArgument)
	case fpga.Busy:
		return int(ResourceBusy)
	case fpga.NotFound:
		return int(ResourceNotFound)
	case fpga.NoDriver:
		return int(NoDriver)
	case fpga.NoAccess:
		return int(PermissionDenied)
	default:
		return int(GeneralError)
	}
}
