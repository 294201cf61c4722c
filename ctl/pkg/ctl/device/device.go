package device

import (
	"context"
	"errors"
	"fmt"

	"github.com/thinkparq/fpgakit/common/fpga"
	"github.com/thinkparq/fpgakit/common/fpga/runtime"
	"github.com/thinkparq/fpgakit/common/fpga/token"
	"github.com/thinkparq/fpgakit/ctl/pkg/config"
	"go.uber.org/zap"
)

// Resource is a flattened, printable view of an FME or port. It is also the environment filter
// expressions are evaluated against, so field names are part of the user interface.
type Resource struct {
	ObjType   string
	Address   string
	Segment   int
	Bus       int
	Device    int
	Function  int
	SocketID  int
	VendorID  int
	DeviceID  int
	GUID      string
	NumErrors int
	ObjectID  uint64
	SysfsPath string
	DevPath   string
	// FME only.
	NumSlots    int
	BitstreamID uint64
	BBSVersion  string
	// Port only.
	State         string
	NumMMIO       int
	NumInterrupts int
	// Parent is the PCI address of the FME managing a port. Empty for FMEs and for ports whose FME
	// could not be found.
	Parent          string
	ParentSysfsPath string
}

type GetResources_Config struct {
	Selector Selector
	// Limit the number of returned resources. Zero returns all of them.
	Limit int
}

// GetResources enumerates the resources matching the selector and returns a view of each.
func GetResources(ctx context.Context, cfg GetResources_Config) ([]*Resource, error) {
	if cfg.Limit < 0 {
		return nil, fmt.Errorf("%w: the limit cannot be negative", fpga.InvalidParam)
	}
	rt, err := config.Runtime()
	if err != nil {
		return nil, err
	}
	tokens, resources, err := resolve(ctx, rt, cfg.Selector)
	if err != nil {
		return nil, err
	}
	Release(rt, tokens)

	if cfg.Limit > 0 && len(resources) > cfg.Limit {
		resources = resources[:cfg.Limit]
	}
	return resources, nil
}

// Resolve returns the tokens of every resource matching the selector together with their views.
// The tokens belong to the caller and must be handed to Release once they are no longer needed.
func Resolve(ctx context.Context, sel Selector) ([]*token.Token, []*Resource, error) {
	rt, err := config.Runtime()
	if err != nil {
		return nil, nil, err
	}
	return resolve(ctx, rt, sel)
}

func resolve(ctx context.Context, rt *runtime.Runtime, sel Selector) ([]*token.Token, []*Resource, error) {
	log, _ := config.GetLogger()

	filter, err := sel.Filter()
	if err != nil {
		return nil, nil, err
	}
	match, err := compileExpr(sel.Expr)
	if err != nil {
		return nil, nil, err
	}
	candidates, err := rt.EnumerateAll([]*fpga.Properties{filter})
	if err != nil {
		return nil, nil, err
	}

	tokens := make([]*token.Token, 0, len(candidates))
	resources := make([]*Resource, 0, len(candidates))
	for i, t := range candidates {
		if ctx.Err() != nil {
			Release(rt, candidates[i:])
			Release(rt, tokens)
			return nil, nil, ctx.Err()
		}
		r, err := NewResource(rt, t)
		if err == nil {
			var ok bool
			if ok, err = match(r); err == nil && !ok {
				rt.Destroy(t)
				continue
			}
		}
		if err != nil {
			Release(rt, candidates[i:])
			Release(rt, tokens)
			return nil, nil, err
		}
		log.Debug("selected resource", zap.String("sysfsPath", r.SysfsPath), zap.String("objType", r.ObjType))
		tokens = append(tokens, t)
		resources = append(resources, r)
	}
	return tokens, resources, nil
}

// Release destroys tokens returned by Resolve.
func Release(rt *runtime.Runtime, tokens []*token.Token) {
	for _, t := range tokens {
		rt.Destroy(t)
	}
}

// NewResource builds the view of the resource t refers to.
func NewResource(rt *runtime.Runtime, t *token.Token) (*Resource, error) {
	props, err := rt.Properties(t)
	if err != nil {
		return nil, err
	}
	rec := t.Record()

	numErrors, err := props.NumErrors()
	if err != nil {
		return nil, err
	}
	r := &Resource{
		ObjType:   rec.ObjType.String(),
		Address:   rec.Address.String(),
		Segment:   int(rec.Address.Segment),
		Bus:       int(rec.Address.Bus),
		Device:    int(rec.Address.Device),
		Function:  int(rec.Address.Function),
		SocketID:  int(rec.SocketID),
		VendorID:  int(rec.VendorID),
		DeviceID:  int(rec.DeviceID),
		GUID:      rec.GUID.String(),
		NumErrors: int(numErrors),
		ObjectID:  rec.ObjectID,
		SysfsPath: t.SysfsPath(),
		DevPath:   t.DevPath(),
	}

	switch rec.ObjType {
	case fpga.Device:
		numSlots, err := props.NumSlots()
		if err != nil {
			return nil, err
		}
		bbsID, err := props.BBSID()
		if err != nil {
			return nil, err
		}
		version, err := props.BBSVersion()
		if err != nil {
			return nil, err
		}
		r.NumSlots = int(numSlots)
		r.BitstreamID = bbsID
		r.BBSVersion = version.String()
	case fpga.Accelerator:
		state, err := props.AcceleratorState()
		if err != nil {
			return nil, err
		}
		numMMIO, err := props.NumMMIO()
		if err != nil {
			return nil, err
		}
		numIRQs, err := props.NumInterrupts()
		if err != nil {
			return nil, err
		}
		r.State = state.String()
		r.NumMMIO = int(numMMIO)
		r.NumInterrupts = int(numIRQs)

		parent, err := rt.Parent(t)
		if err != nil && !errors.Is(err, fpga.NotFound) {
			return nil, err
		}
		if parent != nil {
			r.Parent = parent.Record().Address.String()
			r.ParentSysfsPath = parent.SysfsPath()
			rt.Destroy(parent)
		}
	}
	return r, nil
}
