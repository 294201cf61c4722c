package enum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thinkparq/fpgakit/common/filesystem"
	"github.com/thinkparq/fpgakit/common/fpga"
	"github.com/thinkparq/fpgakit/common/fpga/sysfs"
	"github.com/thinkparq/fpgakit/common/fpga/sysfs/sysfstest"
	"github.com/thinkparq/fpgakit/common/fpga/token"
)

const (
	fmeGUID = "bfac4d851ee856fe8c95865ce1bbaa2d"
	afuGUID = "d8424dc4a4a3c413f89e433683f9040b"
)

type prober struct{}

func (prober) ProbePort(string) sysfs.PortStatus {
	return sysfs.PortStatus{Available: true, HasInfo: true, NumMMIO: 2, NumIRQs: 1}
}

func device(instance int, pci string, vendor uint16, afuID string) sysfstest.Device {
	return sysfstest.Device{
		Instance: instance,
		PCI:      pci,
		Vendor:   vendor,
		DeviceID: 0xbcc0,
		FME: &sysfstest.FME{
			Instance:    instance,
			InterfaceID: fmeGUID,
			PortsNum:    1,
			BitstreamID: 0x6400002fc614bc9,
			Errors:      map[string]string{"errors": "0x0\n", "clear": "0x0\n", "revision": "1\n"},
		},
		Ports: []sysfstest.Port{{Instance: instance, AFUID: afuID}},
	}
}

func newEnumerator(t *testing.T, tree *sysfstest.Tree) (*Enumerator, *token.Registry) {
	t.Helper()
	fsys := filesystem.OSFS{}
	r := token.NewRegistry(fsys, tree.Profile(), nil)
	t.Cleanup(r.Close)
	return NewEnumerator(sysfs.NewScanner(fsys, tree.Profile(), prober{}, nil), r, nil), r
}

func paths(tokens []*token.Token) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, t.SysfsPath())
	}
	return out
}

func TestIncludeAccelerators(t *testing.T) {
	devOnly := fpga.NewProperties()
	devOnly.SetObjType(fpga.Device)
	accel := fpga.NewProperties()
	accel.SetObjType(fpga.Accelerator)
	unset := fpga.NewProperties()
	unset.SetBus(0x5e)

	tests := []struct {
		name    string
		filters []*fpga.Properties
		want    bool
	}{
		{name: "no filters", filters: nil, want: true},
		{name: "devices only", filters: []*fpga.Properties{devOnly}, want: false},
		{name: "accelerators", filters: []*fpga.Properties{devOnly, accel}, want: true},
		{name: "no object type", filters: []*fpga.Properties{devOnly, unset}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IncludeAccelerators(tt.filters))
		})
	}
}

func TestEnumerateVendorFilter(t *testing.T) {
	tree := sysfstest.Build(t, sysfs.DFL,
		device(0, "0000:5e:00.0", 0x8086, afuGUID),
		device(1, "0000:be:00.0", 0x1c2c, afuGUID),
	)
	e, r := newEnumerator(t, tree)

	f := fpga.NewProperties()
	f.SetObjType(fpga.Device)
	f.SetVendorID(0x8086)
	tokens, n, err := e.Enumerate([]*fpga.Properties{f}, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, tokens, 1)
	assert.Equal(t, fpga.Device, tokens[0].ObjType())
	assert.Equal(t, uint8(0x5e), tokens[0].Record().Address.Bus)

	// Ports are registered even though no filter asked for them.
	assert.Equal(t, 2, r.Len())
}

func TestEnumerateSubsetOfUnfiltered(t *testing.T) {
	tree := sysfstest.Build(t, sysfs.Classic,
		device(0, "0000:5e:00.0", 0x8086, afuGUID),
		device(1, "0000:be:00.0", 0x1c2c, fmeGUID),
	)
	e, r := newEnumerator(t, tree)

	all, n, err := e.Enumerate(nil, 100)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	allPaths := paths(all)

	fmeTokens, _, err := e.Enumerate([]*fpga.Properties{func() *fpga.Properties {
		p := fpga.NewProperties()
		p.SetObjType(fpga.Device)
		return p
	}()}, 100)
	require.NoError(t, err)

	newFilter := func(set func(p *fpga.Properties)) *fpga.Properties {
		p := fpga.NewProperties()
		set(p)
		return p
	}
	afu, err := fpga.ParseGUID(afuGUID)
	require.NoError(t, err)

	filterSets := [][]*fpga.Properties{
		{newFilter(func(p *fpga.Properties) { p.SetObjType(fpga.Accelerator) })},
		{newFilter(func(p *fpga.Properties) { p.SetGUID(afu) })},
		{newFilter(func(p *fpga.Properties) { p.SetBus(0xbe) })},
		{newFilter(func(p *fpga.Properties) { p.SetNumErrors(1) })},
		{newFilter(func(p *fpga.Properties) { p.SetSocketID(3) })},
		{newFilter(func(p *fpga.Properties) { p.SetParent(fmeTokens[0]) })},
		{
			newFilter(func(p *fpga.Properties) { p.SetVendorID(0x1c2c) }),
			newFilter(func(p *fpga.Properties) { p.SetObjType(fpga.Device); p.SetNumSlots(1) }),
		},
	}
	for _, filters := range filterSets {
		tokens, n, err := e.Enumerate(filters, 100)
		require.NoError(t, err)
		assert.Equal(t, len(tokens), n)
		assert.Subset(t, allPaths, paths(tokens))
		for _, tok := range tokens {
			require.NoError(t, r.Destroy(tok))
		}
	}
}

func TestEnumerateMaxTokens(t *testing.T) {
	tree := sysfstest.Build(t, sysfs.DFL,
		device(0, "0000:5e:00.0", 0x8086, afuGUID),
		device(1, "0000:be:00.0", 0x8086, afuGUID),
	)
	e, _ := newEnumerator(t, tree)

	tokens, n, err := e.Enumerate(nil, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Empty(t, tokens)

	tokens, n, err = e.Enumerate(nil, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Len(t, tokens, 3)

	_, _, err = e.Enumerate(nil, -1)
	assert.ErrorIs(t, err, fpga.InvalidParam)
	_, _, err = e.Enumerate([]*fpga.Properties{nil}, 1)
	assert.ErrorIs(t, err, fpga.InvalidParam)
}

func TestEnumerateDropsUnreadableAFU(t *testing.T) {
	tree := sysfstest.Build(t, sysfs.DFL, device(0, "0000:5e:00.0", 0x8086, ""))
	e, _ := newEnumerator(t, tree)

	tokens, n, err := e.Enumerate(nil, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, tokens, 1)
	assert.Equal(t, fpga.Device, tokens[0].ObjType())

	f := fpga.NewProperties()
	f.SetObjType(fpga.Accelerator)
	_, n, err = e.Enumerate([]*fpga.Properties{f}, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestEnumerateNumErrors(t *testing.T) {
	tree := sysfstest.Build(t, sysfs.DFL, device(0, "0000:5e:00.0", 0x8086, afuGUID))
	e, _ := newEnumerator(t, tree)

	f := fpga.NewProperties()
	f.SetObjType(fpga.Device)
	f.SetNumErrors(1)
	tokens, n, err := e.Enumerate([]*fpga.Properties{f}, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, fpga.Device, tokens[0].ObjType())

	f.SetNumErrors(2)
	_, n, err = e.Enumerate([]*fpga.Properties{f}, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestEnumerateParentFilter(t *testing.T) {
	for _, kind := range []sysfs.ProfileKind{sysfs.Classic, sysfs.DFL} {
		t.Run(kind.String(), func(t *testing.T) {
			tree := sysfstest.Build(t, kind,
				device(0, "0000:5e:00.0", 0x8086, afuGUID),
				device(1, "0000:be:00.0", 0x8086, afuGUID),
			)
			e, r := newEnumerator(t, tree)

			devFilter := fpga.NewProperties()
			devFilter.SetObjType(fpga.Device)
			devFilter.SetBus(0xbe)
			fmes, _, err := e.Enumerate([]*fpga.Properties{devFilter}, 1)
			require.NoError(t, err)
			require.Len(t, fmes, 1)

			f := fpga.NewProperties()
			f.SetParent(fmes[0])
			ports, n, err := e.Enumerate([]*fpga.Properties{f}, 10)
			require.NoError(t, err)
			assert.Equal(t, 1, n)
			require.Len(t, ports, 1)
			assert.Equal(t, fpga.Accelerator, ports[0].ObjType())
			assert.Equal(t, uint8(0xbe), ports[0].Record().Address.Bus)

			parent, err := r.GetParent(ports[0])
			require.NoError(t, err)
			assert.Equal(t, fmes[0].SysfsPath(), parent.SysfsPath())

			// A destroyed parent token never matches.
			require.NoError(t, r.Destroy(fmes[0]))
			_, n, err = e.Enumerate([]*fpga.Properties{f}, 10)
			require.NoError(t, err)
			assert.Equal(t, 0, n)
		})
	}
}

func TestMatchesSubFields(t *testing.T) {
	tree := sysfstest.Build(t, sysfs.DFL, device(0, "0000:5e:00.0", 0x8086, afuGUID))
	s := sysfs.NewScanner(filesystem.OSFS{}, tree.Profile(), prober{}, nil)
	records, err := s.Scan(true)
	require.NoError(t, err)
	require.Len(t, records, 2)
	fme, port := records[0], records[1]
	m := NewMatcher(filesystem.OSFS{}, tree.Profile())

	// Without an object type the FME specific fields are not compared.
	f := fpga.NewProperties()
	f.SetNumSlots(7)
	assert.True(t, m.Matches(fme, f))
	assert.True(t, m.Matches(port, f))

	f.SetObjType(fpga.Device)
	assert.False(t, m.Matches(fme, f))
	f.SetNumSlots(1)
	assert.True(t, m.Matches(fme, f))
	assert.False(t, m.Matches(port, f))
	f.SetBBSVersion(fpga.Version{Major: 0, Minor: 6, Patch: 4})
	assert.True(t, m.Matches(fme, f))

	f = fpga.NewProperties()
	f.SetObjType(fpga.Accelerator)
	f.SetAcceleratorState(fpga.Unassigned)
	f.SetNumMMIO(2)
	assert.True(t, m.Matches(port, f))
	f.SetNumInterrupts(4)
	assert.False(t, m.Matches(port, f))

	// A parent filter never matches an FME.
	f = fpga.NewProperties()
	f.SetParent(parentPath(fme.SysfsPath))
	assert.False(t, m.Matches(fme, f))
	assert.True(t, m.Matches(port, f))

	assert.True(t, m.MatchesAny(fme, nil))
	assert.True(t, m.Matches(fme, nil))
}

func TestEnumerateNoResources(t *testing.T) {
	tree := sysfstest.Build(t, sysfs.DFL)
	e, _ := newEnumerator(t, tree)
	_, _, err := e.Enumerate(nil, 1)
	assert.ErrorIs(t, err, fpga.NotFound)
}

// parentPath is a fpga.ParentRef that is not a token.
type parentPath string

func (p parentPath) SysfsPath() string { return string(p) }
func (p parentPath) Valid() bool       { return true }
