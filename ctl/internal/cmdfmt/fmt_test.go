package cmdfmt

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thinkparq/fpgakit/ctl/pkg/config"
)

func setOutput(t *testing.T, output config.OutputType, pageSize uint, columns ...string) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set(config.OutputKey, output.String())
	viper.Set(config.PageSizeKey, pageSize)
	if len(columns) > 0 {
		viper.Set(config.ColumnsKey, columns)
	}
}

func TestPrintomaticTable(t *testing.T) {
	setOutput(t, config.OutputTable, 100)
	var out bytes.Buffer
	p := NewPrintomatic([]string{"address", "guid", "sysfs path"}, []string{"address", "guid"}, WithWriter(&out))
	p.AddItem("0000:5e:00.0", "guid-a", "/sys/class/fpga/intel-fpga-dev.0")
	p.AddItem("0000:be:00.0", "guid-b", "/sys/class/fpga/intel-fpga-dev.1")
	p.PrintRemaining()

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "ADDRESS")
	assert.Contains(t, lines[0], "GUID")
	assert.NotContains(t, lines[0], "SYSFS_PATH")
	assert.Contains(t, lines[1], "0000:5e:00.0")
	assert.NotContains(t, out.String(), "/sys/class")
}

func TestPrintomaticColumnsAll(t *testing.T) {
	setOutput(t, config.OutputTable, 100, "all")
	var out bytes.Buffer
	p := NewPrintomatic([]string{"address", "sysfs path"}, []string{"address"}, WithWriter(&out))
	p.AddItem("0000:5e:00.0", "/sys/class/fpga/intel-fpga-dev.0")
	p.PrintRemaining()
	assert.Contains(t, out.String(), "SYSFS_PATH")
	assert.Contains(t, out.String(), "/sys/class/fpga/intel-fpga-dev.0")
}

func TestPrintomaticPages(t *testing.T) {
	setOutput(t, config.OutputTable, 2)
	var out bytes.Buffer
	p := NewPrintomatic([]string{"index"}, []string{"index"}, WithWriter(&out))
	for i := 0; i < 3; i++ {
		p.AddItem(i)
	}
	// The first page is printed once it is full.
	assert.Equal(t, 1, strings.Count(out.String(), "INDEX"))
	p.PrintRemaining()
	assert.Equal(t, 2, strings.Count(out.String(), "INDEX"))
}

func TestPrintomaticJSON(t *testing.T) {
	setOutput(t, config.OutputJSON, 100)
	var out bytes.Buffer
	p := NewPrintomatic([]string{"address", "errors"}, []string{"address", "errors"}, WithWriter(&out))
	p.AddItem("0000:5e:00.0", 2)
	p.AddItem("0000:be:00.0", 0)
	p.PrintRemaining()

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(out.Bytes()), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "0000:5e:00.0", rows[0]["address"])
	assert.Equal(t, float64(2), rows[0]["errors"])
}

func TestPrintomaticNDJSON(t *testing.T) {
	setOutput(t, config.OutputJSON, 0)
	var out bytes.Buffer
	p := NewPrintomatic([]string{"address"}, []string{"address"}, WithWriter(&out))
	p.AddItem("0000:5e:00.0")
	p.AddItem("0000:be:00.0")
	p.PrintRemaining()

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	for _, l := range lines {
		var row map[string]any
		assert.NoError(t, json.Unmarshal([]byte(l), &row))
	}
}

type pageClass int

func (c pageClass) String() string {
	return [...]string{"native", "2MiB"}[c]
}

func TestPrintomaticJSONStringers(t *testing.T) {
	setOutput(t, config.OutputJSON, 100)
	var out bytes.Buffer
	p := NewPrintomatic([]string{"pages"}, []string{"pages"}, WithWriter(&out))
	p.AddItem(pageClass(1))
	p.PrintRemaining()

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(out.Bytes()), &rows))
	assert.Equal(t, "2MiB", rows[0]["pages"])
}

func TestPrintomaticFixedColumns(t *testing.T) {
	setOutput(t, config.OutputTable, 100, "value")
	var out bytes.Buffer
	p := NewPrintomatic([]string{"property", "value"}, []string{"property", "value"}, WithWriter(&out), WithFixedColumns())
	p.AddItem("socket", 1)
	p.PrintRemaining()
	assert.Contains(t, out.String(), "PROPERTY")
}
