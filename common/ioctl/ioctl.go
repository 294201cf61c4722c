package ioctl

// Go equivalents of the command number macros from the kernel's asm-generic/ioctl.h.

const (
	_ioc_nrbits   = 8
	_ioc_typebits = 8
	// Valid for x86_64 and arm64, which are the only architectures the FPGA drivers ship on.
	_ioc_sizebits = 14
	_ioc_dirbits  = 2

	_ioc_nrshift   = 0
	_ioc_typeshift = _ioc_nrshift + _ioc_nrbits
	_ioc_sizeshift = _ioc_typeshift + _ioc_typebits
	_ioc_dirshift  = _ioc_sizeshift + _ioc_sizebits

	// _ioc_read means the kernel writes and user space reads.
	_ioc_none = 0
	_ioc_read = 2
)

// _ioc builds a command number from a direction, the driver magic (type), the command number
// and the size of the argument.
func _ioc(dir, t, nr, size uintptr) uintptr {
	return (dir << _ioc_dirshift) | (t << _ioc_typeshift) | (nr << _ioc_nrshift) | (size << _ioc_sizeshift)
}

// _io is the _IO macro. The FPGA drivers define almost all of their commands this way and
// instead carry the structure length in the argsz field of each argument.
func _io(t, nr uintptr) uintptr {
	return _ioc(_ioc_none, t, nr, 0)
}

// _ior is the _IOR macro, used for commands where the kernel fills in an argument of the given
// size.
//
//	cmd := _ior(dflFPGAMagic, ioctlNumPortGetIRQNum, unsafe.Sizeof(uint32(0)))
func _ior(t, nr, size uintptr) uintptr {
	return _ioc(_ioc_read, t, nr, size)
}
