package device

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/thinkparq/fpgakit/common/fpga"
)

// Unset is used for numeric Selector fields that should not be used to filter resources.
const Unset = -1

// Selector describes which resources a command operates on. Numeric fields set to Unset and empty
// strings act as wildcards. Everything except Expr is translated into an enumeration filter, Expr
// is evaluated against the Resource view of each match afterwards.
type Selector struct {
	ObjType fpga.ObjType
	// Address in the "ssss:bb:dd.f" format. Mutually exclusive with the individual PCI fields.
	Address  string
	Segment  int
	Bus      int
	Device   int
	Function int
	SocketID int
	VendorID int
	DeviceID int
	GUID     string
	// NumErrors only selects resources with exactly this many error registers.
	NumErrors int
	// Expr is an expression over the fields of Resource, for example
	// `ObjType == "accelerator" && glob(GUID, "d8424dc4*")`.
	Expr string
}

// NewSelector returns a Selector that matches every resource.
func NewSelector() Selector {
	return Selector{
		ObjType:   fpga.InvalidObjType,
		Segment:   Unset,
		Bus:       Unset,
		Device:    Unset,
		Function:  Unset,
		SocketID:  Unset,
		VendorID:  Unset,
		DeviceID:  Unset,
		NumErrors: Unset,
	}
}

// Filter translates the selector into enumeration filter properties.
func (s Selector) Filter() (*fpga.Properties, error) {
	p := fpga.NewProperties()

	if s.ObjType != fpga.InvalidObjType {
		p.SetObjType(s.ObjType)
	}

	if s.Address != "" {
		if s.Segment != Unset || s.Bus != Unset || s.Device != Unset || s.Function != Unset {
			return nil, fmt.Errorf("%w: a PCI address cannot be combined with the segment, bus, device or function", fpga.InvalidParam)
		}
		addr, err := fpga.ParsePCIAddress(s.Address)
		if err != nil {
			return nil, err
		}
		p.SetSegment(addr.Segment)
		p.SetBus(addr.Bus)
		p.SetDevice(addr.Device)
		p.SetFunction(addr.Function)
	}

	type numeric struct {
		name string
		val  int
		max  int
		set  func(int)
	}
	for _, n := range []numeric{
		{"segment", s.Segment, 0xffff, func(v int) { p.SetSegment(uint16(v)) }},
		{"bus", s.Bus, 0xff, func(v int) { p.SetBus(uint8(v)) }},
		{"device", s.Device, 0x1f, func(v int) { p.SetDevice(uint8(v)) }},
		{"function", s.Function, 0x7, func(v int) { p.SetFunction(uint8(v)) }},
		{"socket id", s.SocketID, 0xff, func(v int) { p.SetSocketID(uint8(v)) }},
		{"vendor id", s.VendorID, 0xffff, func(v int) { p.SetVendorID(uint16(v)) }},
		{"device id", s.DeviceID, 0xffff, func(v int) { p.SetDeviceID(uint16(v)) }},
		{"number of errors", s.NumErrors, 1<<32 - 1, func(v int) { p.SetNumErrors(uint32(v)) }},
	} {
		if n.val == Unset {
			continue
		}
		if n.val < 0 || n.val > n.max {
			return nil, fmt.Errorf("%w: %s %d is out of range (0-%d)", fpga.InvalidParam, n.name, n.val, n.max)
		}
		n.set(n.val)
	}

	if s.GUID != "" {
		guid, err := fpga.ParseGUID(s.GUID)
		if err != nil {
			return nil, err
		}
		p.SetGUID(guid)
	}
	return p, nil
}

// compileExpr turns a filter expression into a function that reports if a Resource matches. An
// empty expression matches everything.
func compileExpr(query string) (func(*Resource) (bool, error), error) {
	if strings.TrimSpace(query) == "" {
		return func(*Resource) (bool, error) { return true, nil }, nil
	}

	prog, err := expr.Compile(query,
		expr.Env(Resource{}),
		expr.AsBool(),
		expr.Function("glob", func(params ...any) (any, error) { return globMatch(params[0].(string), params[1].(string)) },
			new(func(string, string) bool)),
		expr.Function("regex", func(params ...any) (any, error) { return regexp.MatchString(params[1].(string), params[0].(string)) },
			new(func(string, string) bool)),
		expr.Function("hex", func(params ...any) (any, error) { return fmt.Sprintf("%x", params[0]), nil },
			new(func(uint64) string), new(func(int) string)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid filter expression: %w", fpga.InvalidParam, err)
	}

	return func(r *Resource) (bool, error) {
		return runExpr(prog, r)
	}, nil
}

func runExpr(prog *vm.Program, r *Resource) (bool, error) {
	out, err := expr.Run(prog, *r)
	if err != nil {
		return false, fmt.Errorf("evaluating filter expression for %s: %w", r.Address, err)
	}
	return out.(bool), nil
}

// globMatch supports "**" so sysfs paths can be matched regardless of their depth.
func globMatch(s string, pattern string) (bool, error) {
	return doublestar.Match(pattern, filepath.ToSlash(s))
}
