package filesystem

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
)

func NewMockFS() MockFS {
	return MockFS{Fs: afero.NewMemMapFs()}
}

// MockFS is an in-memory Provider. It does not support symbolic links so Readlink always fails and
// EvalSymlinks only cleans the path.
type MockFS struct {
	Fs afero.Fs
}

var _ Provider = MockFS{}

func (m MockFS) Stat(path string) (os.FileInfo, error) {
	return m.Fs.Stat(path)
}

func (m MockFS) Lstat(path string) (os.FileInfo, error) {
	if l, ok := m.Fs.(afero.Lstater); ok {
		fi, _, err := l.LstatIfPossible(path)
		return fi, err
	}
	return m.Fs.Stat(path)
}

func (m MockFS) ReadDir(path string) ([]fs.DirEntry, error) {
	infos, err := afero.ReadDir(m.Fs, path)
	if err != nil {
		return nil, err
	}
	entries := make([]fs.DirEntry, 0, len(infos))
	for _, fi := range infos {
		entries = append(entries, fs.FileInfoToDirEntry(fi))
	}
	return entries, nil
}

func (m MockFS) Readlink(path string) (string, error) {
	return "", &os.PathError{Op: "readlink", Path: path, Err: ErrNotImplemented}
}

func (m MockFS) EvalSymlinks(path string) (string, error) {
	if _, err := m.Fs.Stat(path); err != nil {
		return "", err
	}
	return filepath.Clean(path), nil
}

func (m MockFS) ReadFile(path string) ([]byte, error) {
	return afero.ReadFile(m.Fs, path)
}

func (m MockFS) WriteFile(path string, buf []byte) error {
	f, err := m.Fs.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(buf)
	return err
}

func (m MockFS) Glob(pattern string) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, doublestar.ErrBadPattern
	}
	base, _ := doublestar.SplitPattern(pattern)
	matches := []string{}
	err := afero.Walk(m.Fs, base, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// Globbing ignores paths that cannot be read, same as filepath.Glob.
			return nil
		}
		if ok, _ := doublestar.Match(pattern, path); ok {
			matches = append(matches, path)
		}
		return nil
	})
	return matches, err
}

// CreateWriteClose creates the file specified by path along with any missing parent directories
// and writes buf as the file contents. It is intended for setting up test trees.
func (m MockFS) CreateWriteClose(path string, buf []byte) error {
	if err := m.Fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return afero.WriteFile(m.Fs, path, buf, 0644)
}
