package sysfs

import (
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thinkparq/fpgakit/common/filesystem"
	"github.com/thinkparq/fpgakit/common/fpga"
)

const errDir = "/sys/class/fpga_region/region0/dfl-fme.0/errors"

func mockErrors(t *testing.T, files map[string]string) filesystem.MockFS {
	t.Helper()
	m := filesystem.NewMockFS()
	for name, contents := range files {
		require.NoError(t, m.CreateWriteClose(errDir+"/"+name, []byte(contents)))
	}
	return m
}

func TestBuildErrorListExclusions(t *testing.T) {
	m := mockErrors(t, map[string]string{
		"errors":   "0x0\n",
		"clear":    "0x0\n",
		"revision": "1\n",
	})
	assert.Equal(t, 1, CountErrors(m, errDir))

	list := &ErrorList{}
	assert.Equal(t, 1, BuildErrorList(m, errDir, list))
	e, err := list.Get(0)
	require.NoError(t, err)
	assert.Equal(t, ErrorEntry{Name: "errors", ErrorFile: errDir + "/errors", ClearFile: errDir + "/clear", CanClear: true}, e)
}

func TestBuildErrorListRecursesAndSkips(t *testing.T) {
	m := mockErrors(t, map[string]string{
		"errors":                 "0x0\n",
		".hidden":                "0x0\n",
		"uevent":                 "",
		"power/runtime_status":   "active",
		"fme-errors/errors":      "0x1\n",
		"fme-errors/first_error": "0x1\n",
		"pcie0_errors":           "0x0\n",
		"pcie0_errors_clear":     "0x0\n",
		"nonfatal_errors":        "0x0\n",
	})
	list := &ErrorList{}
	// errors, fme-errors/errors, fme-errors/first_error, pcie0_errors, pcie0_errors_clear,
	// nonfatal_errors
	assert.Equal(t, 6, BuildErrorList(m, errDir, list))

	byName := map[string]ErrorEntry{}
	for _, e := range list.Entries() {
		byName[e.ErrorFile] = e
	}
	pcie := byName[errDir+"/pcie0_errors"]
	assert.True(t, pcie.CanClear)
	assert.Equal(t, errDir+"/pcie0_errors_clear", pcie.ClearFile)

	// Not in the clearable set.
	assert.False(t, byName[errDir+"/nonfatal_errors"].CanClear)
	// No generic clear file, but writable so it is cleared in place.
	nested := byName[errDir+"/fme-errors/errors"]
	assert.True(t, nested.CanClear)
	assert.Equal(t, errDir+"/fme-errors/errors", nested.ClearFile)
}

func TestBuildErrorListKeepsClearSuffixedRegisters(t *testing.T) {
	m := mockErrors(t, map[string]string{
		"errors":         "0x0\n",
		"clear":          "0x0\n",
		"catfatal_clear": "0x0\n",
	})
	assert.Equal(t, 2, CountErrors(m, errDir))

	list := &ErrorList{}
	require.Equal(t, 2, BuildErrorList(m, errDir, list))
	names := []string{}
	for _, e := range list.Entries() {
		names = append(names, e.Name)
	}
	assert.ElementsMatch(t, []string{"errors", "catfatal_clear"}, names)
}

func TestBuildErrorListSkipsOverlongNames(t *testing.T) {
	m := mockErrors(t, map[string]string{"errors": "0x0\n", "clear": "0x0\n"})
	// Sorts before its siblings so the walk has to carry on past it.
	long := strings.Repeat("a", filesystem.MaxPathLen)
	require.NoError(t, afero.WriteFile(m.Fs, errDir+"/"+long, []byte("0x0\n"), 0644))

	assert.Equal(t, 1, CountErrors(m, errDir))
}

func TestBuildErrorListReadOnlyRegister(t *testing.T) {
	m := mockErrors(t, map[string]string{"warning_errors": "0x0\n"})
	require.NoError(t, m.Fs.Chmod(errDir+"/warning_errors", 0444))

	list := &ErrorList{}
	require.Equal(t, 1, BuildErrorList(m, errDir, list))
	e, err := list.Get(0)
	require.NoError(t, err)
	assert.False(t, e.CanClear)
	assert.Empty(t, e.ClearFile)
}

func TestBuildErrorListIsNotIdempotent(t *testing.T) {
	m := mockErrors(t, map[string]string{"errors": "0x0\n", "clear": "0x0\n", "inject_error": "0x0\n"})
	list := &ErrorList{}
	first := BuildErrorList(m, errDir, list)
	BuildErrorList(m, errDir, list)
	assert.Equal(t, 2*first, list.Len())
}

func TestBuildErrorListMissingPath(t *testing.T) {
	m := filesystem.NewMockFS()
	list := &ErrorList{}
	assert.Equal(t, 0, BuildErrorList(m, "/does/not/exist", list))
	assert.Equal(t, 0, list.Len())

	long := "/" + string(make([]byte, filesystem.MaxPathLen+1))
	assert.Equal(t, 0, CountErrors(m, long))

	_, err := list.Get(0)
	assert.ErrorIs(t, err, fpga.NotFound)
}

func TestErrorEntryReadAndClear(t *testing.T) {
	m := mockErrors(t, map[string]string{
		"errors":       "0x11\n",
		"clear":        "0x0\n",
		"inject_error": "0x3\n",
		"catfatal":     "0x1\n",
	})
	list := &ErrorList{}
	BuildErrorList(m, errDir, list)

	entries := map[string]ErrorEntry{}
	for _, e := range list.Entries() {
		entries[e.Name] = e
	}

	v, err := entries["errors"].Read(m)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x11), v)

	// The current value is written to the generic clear file.
	require.NoError(t, entries["errors"].Clear(m))
	cleared, err := filesystem.ReadUint(m, errDir+"/clear", 64)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x11), cleared)

	// The injection register is reset to zero.
	require.NoError(t, entries["inject_error"].Clear(m))
	v, err = entries["inject_error"].Read(m)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), v)

	assert.ErrorIs(t, entries["catfatal"].Clear(m), fpga.NotSupported)

	require.NoError(t, m.Fs.Remove(errDir+"/catfatal"))
	_, err = entries["catfatal"].Read(m)
	assert.ErrorIs(t, err, fpga.Exception)
}
