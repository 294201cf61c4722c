package filesystem

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// MaxPathLen mirrors PATH_MAX. Longer paths are rejected before touching the file system.
const MaxPathLen = 4096

// The use of an interface is mostly to allow file system operations to be mocked for tests. All
// paths are absolute.
type Provider interface {
	// Returns the equivalent of an stat(2) with -L flag. Caution: Follows symbolic links (use lstat if needed).
	Stat(name string) (os.FileInfo, error)
	// Returns the equivalent of stat(2) without the -L flag. Does not follow symbolic links.
	Lstat(name string) (os.FileInfo, error)
	// Returns the directory entries of name sorted by file name.
	ReadDir(name string) ([]fs.DirEntry, error)
	// Returns the destination of the symbolic link name.
	Readlink(name string) (string, error)
	// Returns the canonical path of name after following all symbolic links.
	EvalSymlinks(name string) (string, error)
	// Reads the full contents of name.
	ReadFile(name string) ([]byte, error)
	// Writes buf to the existing file name without truncating or creating it, which is how sysfs
	// attributes expect to be written.
	WriteFile(name string, buf []byte) error
	// Returns all paths matching the doublestar pattern. Patterns are absolute.
	Glob(pattern string) ([]string, error)
}

// OSFS is a Provider backed by the local file system.
type OSFS struct{}

// Verify all interfaces that depend on OSFS are satisfied:
var _ Provider = OSFS{}

func (OSFS) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

func (OSFS) Lstat(name string) (os.FileInfo, error) {
	return os.Lstat(name)
}

func (OSFS) ReadDir(name string) ([]fs.DirEntry, error) {
	return os.ReadDir(name)
}

func (OSFS) Readlink(name string) (string, error) {
	return os.Readlink(name)
}

func (OSFS) EvalSymlinks(name string) (string, error) {
	return filepath.EvalSymlinks(name)
}

func (OSFS) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

func (OSFS) WriteFile(name string, buf []byte) error {
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return err
	}
	_, err = f.Write(buf)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return err
}

func (OSFS) Glob(pattern string) ([]string, error) {
	return doublestar.FilepathGlob(pattern)
}

// ReadString reads name and returns its contents with surrounding white space removed.
func ReadString(p Provider, name string) (string, error) {
	if len(name) > MaxPathLen {
		return "", fmt.Errorf("%s: %w", name, ErrPathTooLong)
	}
	buf, err := p.ReadFile(name)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(buf)), nil
}

// ReadUint reads an unsigned integer attribute. The base is inferred from the prefix the same way
// strtoull(3) does with base 0, so "0x1234", "017" and "42" are all accepted.
func ReadUint(p Provider, name string, bitSize int) (uint64, error) {
	s, err := ReadString(p, name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(s, 0, bitSize)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

// ReadHex reads an attribute that is always hexadecimal, with or without a "0x" prefix, such as the
// PCI vendor and device ids.
func ReadHex(p Provider, name string, bitSize int) (uint64, error) {
	s, err := ReadString(p, name)
	if err != nil {
		return 0, err
	}
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, bitSize)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

// ReadUintPair reads attributes in the "a:b" format such as the major:minor of a device node.
func ReadUintPair(p Provider, name string) (uint32, uint32, error) {
	s, err := ReadString(p, name)
	if err != nil {
		return 0, 0, err
	}
	a, b, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("%s: expected format <a>:<b> but got %q", name, s)
	}
	x, err := strconv.ParseUint(a, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", name, err)
	}
	y, err := strconv.ParseUint(b, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", name, err)
	}
	return uint32(x), uint32(y), nil
}

// WriteUint writes v as a "0x" prefixed hexadecimal number, which all error registers accept.
func WriteUint(p Provider, name string, v uint64) error {
	if len(name) > MaxPathLen {
		return fmt.Errorf("%s: %w", name, ErrPathTooLong)
	}
	return p.WriteFile(name, []byte(fmt.Sprintf("0x%x", v)))
}
