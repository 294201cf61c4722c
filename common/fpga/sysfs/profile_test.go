package sysfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thinkparq/fpgakit/common/fpga"
)

func TestParseInstances(t *testing.T) {
	tests := []struct {
		profile   *Profile
		path      string
		device    uint32
		subdevice uint32
		wantErr   bool
	}{
		{profile: NewClassicProfile("/sys", "/dev"), path: "/sys/class/fpga/intel-fpga-dev.0/intel-fpga-fme.0", device: 0, subdevice: 0},
		{profile: NewClassicProfile("/sys", "/dev"), path: "/sys/class/fpga/intel-fpga-dev.3/intel-fpga-port.12", device: 3, subdevice: 12},
		{profile: NewDFLProfile("/sys", "/dev"), path: "/sys/class/fpga_region/region2/dfl-port.5", device: 2, subdevice: 5},
		{profile: NewDFLProfile("/sys", "/dev"), path: "/sys/class/fpga/intel-fpga-dev.0/intel-fpga-fme.0", wantErr: true},
		{profile: NewClassicProfile("/sys", "/dev"), path: "/sys/class/fpga", wantErr: true},
	}
	for _, tt := range tests {
		d, s, err := tt.profile.ParseInstances(tt.path)
		if tt.wantErr {
			assert.ErrorIs(t, err, fpga.InvalidParam, tt.path)
			continue
		}
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.device, d, tt.path)
		assert.Equal(t, tt.subdevice, s, tt.path)
	}
}

func TestNamePatterns(t *testing.T) {
	classic := NewClassicProfile("/sys", "/dev")
	assert.True(t, classic.IsFME("intel-fpga-fme.0"))
	assert.True(t, classic.IsPort("intel-fpga-port.1"))
	assert.False(t, classic.IsPort("dfl-port.1"))

	dfl := NewDFLProfile("/sys", "/dev")
	assert.True(t, dfl.IsFME("dfl-fme.0"))
	assert.False(t, dfl.IsFME("dfl-fme-region.0"))
	assert.True(t, dfl.IsPort("dfl-port.0"))
}

func TestObjectIDFromDevNum(t *testing.T) {
	assert.Equal(t, uint64(236<<20|1), ObjectIDFromDevNum(236, 1))
	assert.Equal(t, uint64(0xfff<<20|0xfffff), ObjectIDFromDevNum(0xffff, 0xffffff))
}
