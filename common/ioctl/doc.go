// Package ioctl provides functions for interacting with the FPGA port ioctls of the intel-fpga and
// DFL kernel drivers.
//
// General notes on error handling:
//
// Where possible meaningful errors will be returned, but sometimes we just have to just directly
// return an error from a syscall, which can be vague, for example: "invalid argument (errno: 22)".
// Callers can use errors.Is with the syscall errno values to classify failures.
package ioctl
