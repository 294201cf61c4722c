package sysfs

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"github.com/thinkparq/fpgakit/common/filesystem"
	"github.com/thinkparq/fpgakit/common/fpga"
)

// Names below an errors directory that are never error registers.
var excludedErrorNames = map[string]struct{}{
	"revision": {},
	"uevent":   {},
	"power":    {},
	"clear":    {},
}

// Registers that can be cleared.
var clearableErrorNames = map[string]struct{}{
	"pcie0_errors":   {},
	"pcie1_errors":   {},
	"warning_errors": {},
	"inject_error":   {},
	"fme_errors":     {},
	"errors":         {},
}

const (
	genericClearName = "clear"
	clearSuffix      = "_clear"
	// Writing the current value back is how registers are cleared, except for the error injection
	// register which must be reset to zero.
	injectErrorName = "inject_error"
)

// ErrorEntry describes one error register. Entries are immutable after creation.
type ErrorEntry struct {
	Name      string
	ErrorFile string
	ClearFile string
	CanClear  bool
}

// ErrorList is the error register inventory of one resource. It is shared (not copied) between a
// token and its clones.
type ErrorList struct {
	mu      sync.RWMutex
	entries []ErrorEntry
}

func (l *ErrorList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Get returns the entry at index i or NotFound if the index is out of range.
func (l *ErrorList) Get(i int) (ErrorEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i < 0 || i >= len(l.entries) {
		return ErrorEntry{}, fmt.Errorf("%w: error register index %d (have %d)", fpga.NotFound, i, len(l.entries))
	}
	return l.entries[i], nil
}

// Entries returns a copy of all entries in discovery order.
func (l *ErrorList) Entries() []ErrorEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]ErrorEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *ErrorList) append(e ErrorEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

// BuildErrorList walks path recursively and appends one entry per error register to list. It
// returns the number of entries appended. Missing or over-long paths append nothing. Building
// into the same list twice appends the registers twice. A nil list only counts.
func BuildErrorList(fsys filesystem.Provider, path string, list *ErrorList) int {
	if len(path) > filesystem.MaxPathLen {
		return 0
	}
	dirEntries, err := fsys.ReadDir(path)
	if err != nil {
		return 0
	}

	n := 0
	for _, de := range dirEntries {
		name := de.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if _, skip := excludedErrorNames[name]; skip {
			continue
		}

		full := filepath.Join(path, name)
		if len(full) > filesystem.MaxPathLen {
			continue
		}
		fi, err := fsys.Lstat(full)
		if err != nil {
			continue
		}
		if fi.Mode()&fs.ModeSymlink != 0 {
			continue
		}
		if fi.IsDir() {
			n += BuildErrorList(fsys, full, list)
			continue
		}

		entry := ErrorEntry{Name: name, ErrorFile: full}
		if clearFile, ok := findClearFile(fsys, path, fi); ok {
			entry.CanClear = true
			entry.ClearFile = clearFile
		}
		if list != nil {
			list.append(entry)
		}
		n++
	}
	return n
}

// CountErrors returns the number of error registers below path without keeping them.
func CountErrors(fsys filesystem.Provider, path string) int {
	return BuildErrorList(fsys, path, nil)
}

// findClearFile determines where a register in dir is cleared. The aggregated "errors" register
// uses the generic "clear" attribute. The other clearable registers use a "<name>_clear" sibling if
// the driver provides one and are otherwise cleared by writing to the register itself, which
// requires the register to be writable.
func findClearFile(fsys filesystem.Provider, dir string, fi fs.FileInfo) (string, bool) {
	name := fi.Name()
	if name == "errors" {
		clear := filepath.Join(dir, genericClearName)
		if _, err := fsys.Stat(clear); err == nil {
			return clear, true
		}
	}
	if _, ok := clearableErrorNames[name]; !ok {
		return "", false
	}
	clear := filepath.Join(dir, name+clearSuffix)
	if _, err := fsys.Stat(clear); err == nil {
		return clear, true
	}
	if fi.Mode().Perm()&0222 != 0 {
		return filepath.Join(dir, name), true
	}
	return "", false
}

// Read returns the current value of the register. Returns Exception if the register vanished since
// it was discovered.
func (e ErrorEntry) Read(fsys filesystem.Provider) (uint64, error) {
	if _, err := fsys.Stat(e.ErrorFile); err != nil {
		return 0, fmt.Errorf("%w: error register %s: %w", fpga.Exception, e.Name, err)
	}
	v, err := filesystem.ReadUint(fsys, e.ErrorFile, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: reading error register %s: %w", fpga.Exception, e.Name, err)
	}
	return v, nil
}

// Clear resets the register by writing its current value (or zero for the injection register) to
// the clear file.
func (e ErrorEntry) Clear(fsys filesystem.Provider) error {
	if !e.CanClear {
		return fmt.Errorf("%w: error register %s cannot be cleared", fpga.NotSupported, e.Name)
	}
	var value uint64
	if e.Name != injectErrorName {
		var err error
		if value, err = e.Read(fsys); err != nil {
			return err
		}
	}
	if err := filesystem.WriteUint(fsys, e.ClearFile, value); err != nil {
		return fmt.Errorf("%w: clearing error register %s: %w", fpga.Exception, e.Name, err)
	}
	return nil
}
