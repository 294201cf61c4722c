// Package runtime wires the scanner, token registry, enumerator and handle manager together for
// one driver profile. Applications create a Runtime once and close it on shutdown, which
// invalidates every registry token.
package runtime

import (
	"fmt"
	"path"
	"path/filepath"
	"reflect"

	"github.com/thinkparq/fpgakit/common/filesystem"
	"github.com/thinkparq/fpgakit/common/fpga"
	"github.com/thinkparq/fpgakit/common/fpga/driver"
	"github.com/thinkparq/fpgakit/common/fpga/enum"
	"github.com/thinkparq/fpgakit/common/fpga/handle"
	"github.com/thinkparq/fpgakit/common/fpga/sysfs"
	"github.com/thinkparq/fpgakit/common/fpga/token"
	"github.com/thinkparq/fpgakit/common/types"
	"go.uber.org/zap"
)

// ProfileAuto selects the profile based on which class directory exists.
const ProfileAuto = "auto"

// maxEnumerateAttempts bounds how often EnumerateAll rescans while devices keep appearing.
const maxEnumerateAttempts = 5

type Config struct {
	SysfsRoot string `mapstructure:"sysfs-root"`
	DevDir    string `mapstructure:"dev-dir"`
	// Profile is "auto", "classic" or "dfl".
	Profile string `mapstructure:"profile"`
	// The following are optional and default to the real system.
	FS     filesystem.Provider `mapstructure:"-"`
	Opener driver.Opener       `mapstructure:"-"`
	Memory driver.Memory       `mapstructure:"-"`
}

func DefaultConfig() Config {
	return Config{
		SysfsRoot: "/sys",
		DevDir:    "/dev",
		Profile:   ProfileAuto,
	}
}

// Validate performs static checks. It does not look at the file system.
func (c *Config) Validate() error {
	var multiErr types.MultiError

	if c.SysfsRoot == "" || !filepath.IsAbs(c.SysfsRoot) {
		multiErr.Add(fmt.Errorf("the sysfs root must be an absolute path (got %q)", c.SysfsRoot))
	}
	if c.DevDir == "" || !filepath.IsAbs(c.DevDir) {
		multiErr.Add(fmt.Errorf("the device directory must be an absolute path (got %q)", c.DevDir))
	}
	if _, ok := sysfs.ProfileKindFromString(c.Profile); !ok && c.Profile != ProfileAuto {
		multiErr.Add(fmt.Errorf("unknown profile %q (must be auto, classic or dfl)", c.Profile))
	}

	return multiErr.ErrOrNil()
}

type Runtime struct {
	profile    *sysfs.Profile
	scanner    *sysfs.Scanner
	registry   *token.Registry
	enumerator *enum.Enumerator
	manager    *handle.Manager
	log        *zap.Logger
}

func New(cfg Config, log *zap.Logger) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", fpga.InvalidParam, err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("component", path.Base(reflect.TypeOf(Runtime{}).PkgPath())))

	fsys := cfg.FS
	if fsys == nil {
		fsys = filesystem.OSFS{}
	}

	var profile *sysfs.Profile
	if kind, ok := sysfs.ProfileKindFromString(cfg.Profile); ok {
		profile = sysfs.NewProfile(kind, cfg.SysfsRoot, cfg.DevDir)
	} else {
		var err error
		if profile, err = sysfs.DetectProfile(fsys, cfg.SysfsRoot, cfg.DevDir); err != nil {
			return nil, err
		}
	}

	opener := cfg.Opener
	if opener == nil {
		opener = driver.Linux{Driver: driver.DriverFor(profile.Kind)}
	}
	memory := cfg.Memory
	if memory == nil {
		memory = driver.HostMemory{}
	}
	var prober sysfs.DeviceProber
	if p, ok := opener.(sysfs.DeviceProber); ok {
		prober = p
	}

	scanner := sysfs.NewScanner(fsys, profile, prober, log)
	registry := token.NewRegistry(fsys, profile, log)
	r := &Runtime{
		profile:    profile,
		scanner:    scanner,
		registry:   registry,
		enumerator: enum.NewEnumerator(scanner, registry, log),
		manager:    handle.NewManager(registry, opener, memory, log),
		log:        log,
	}
	log.Debug("initialized runtime", zap.Stringer("profile", profile.Kind), zap.String("classPath", profile.ClassPath))
	return r, nil
}

func (r *Runtime) Profile() *sysfs.Profile {
	return r.profile
}

func (r *Runtime) Registry() *token.Registry {
	return r.registry
}

func (r *Runtime) Manager() *handle.Manager {
	return r.manager
}

// Enumerate returns clones of up to maxTokens tokens matching any of the filters and the total
// number of matches. See enum.Enumerator.Enumerate.
func (r *Runtime) Enumerate(filters []*fpga.Properties, maxTokens int) ([]*token.Token, int, error) {
	return r.enumerator.Enumerate(filters, maxTokens)
}

// EnumerateAll returns clones of the tokens of every resource matching any of the filters.
func (r *Runtime) EnumerateAll(filters []*fpga.Properties) ([]*token.Token, error) {
	_, n, err := r.enumerator.Enumerate(filters, 0)
	if err != nil {
		return nil, err
	}
	// Resources may appear between two scans. Rescan with the larger count until a scan returns
	// every match it found.
	for attempt := 0; ; attempt++ {
		tokens, total, err := r.enumerator.Enumerate(filters, n)
		if err != nil || len(tokens) >= total || attempt == maxEnumerateAttempts-1 {
			return tokens, err
		}
		for _, t := range tokens {
			if err := r.registry.Destroy(t); err != nil {
				r.log.Debug("unable to destroy token", zap.Stringer("token", t), zap.Error(err))
			}
		}
		n = total
	}
}

func (r *Runtime) Open(t *token.Token, flags handle.OpenFlags) (*handle.Handle, error) {
	return r.manager.Open(t, flags)
}

func (r *Runtime) Properties(t *token.Token) (*fpga.Properties, error) {
	return r.registry.Properties(t)
}

// Parent returns a clone of the token of the FME managing the port t or NotFound.
func (r *Runtime) Parent(t *token.Token) (*token.Token, error) {
	parent, err := r.registry.GetParent(t)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, fmt.Errorf("%w: %s has no parent", fpga.NotFound, t.SysfsPath())
	}
	return r.registry.Clone(parent)
}

// Destroy releases a token returned by Enumerate or Parent.
func (r *Runtime) Destroy(t *token.Token) error {
	return r.registry.Destroy(t)
}

// Close invalidates all registry tokens. Handles should be closed first.
func (r *Runtime) Close() {
	r.registry.Close()
	r.log.Debug("closed runtime")
}
