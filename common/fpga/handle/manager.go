// Package handle opens tokens into handles and manages the resources of an open handle: mapped
// MMIO regions and host buffers pinned for DMA.
package handle

import (
	"fmt"
	"path"
	"reflect"
	"sync"

	"github.com/thinkparq/fpgakit/common/fpga"
	"github.com/thinkparq/fpgakit/common/fpga/driver"
	"github.com/thinkparq/fpgakit/common/fpga/token"
	"go.uber.org/zap"
)

// OpenFlags modify how a token is opened.
type OpenFlags uint32

const (
	// OpenShared allows other handles to the same resource. Without it the device node is
	// opened exclusively.
	OpenShared OpenFlags = 1 << iota
)

// openState is what the manager knows about a device node opened through it.
type openState struct {
	exclusive bool
	count     int
}

// Manager opens tokens. When the profile enforces exclusive opens, the manager refuses a second
// open of a device node that is open exclusively (or an exclusive open of a node that is open at
// all) with Busy. Otherwise the decision is left to the driver.
type Manager struct {
	registry         *token.Registry
	opener           driver.Opener
	memory           driver.Memory
	enforceExclusive bool
	log              *zap.Logger

	mu   sync.Mutex
	open map[string]*openState
}

func NewManager(registry *token.Registry, opener driver.Opener, memory driver.Memory, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		registry:         registry,
		opener:           opener,
		memory:           memory,
		enforceExclusive: registry.Profile().EnforceExclusiveOpen,
		log:              log.With(zap.String("component", path.Base(reflect.TypeOf(Manager{}).PkgPath()))),
		open:             map[string]*openState{},
	}
}

// Open opens the device node of tok. The only valid flag is OpenShared.
func (m *Manager) Open(tok *token.Token, flags OpenFlags) (*Handle, error) {
	if err := tok.Validate(); err != nil {
		return nil, err
	}
	if flags&^OpenShared != 0 {
		return nil, fmt.Errorf("%w: unsupported open flags 0x%x", fpga.InvalidParam, uint32(flags&^OpenShared))
	}
	exclusive := flags&OpenShared == 0

	if err := m.acquire(tok.DevPath(), exclusive); err != nil {
		return nil, err
	}
	dev, err := m.opener.Open(tok.DevPath(), exclusive)
	if err != nil {
		m.release(tok.DevPath())
		return nil, err
	}
	owner, err := m.registry.Clone(tok)
	if err != nil {
		m.release(tok.DevPath())
		dev.Close()
		return nil, err
	}

	h := &Handle{
		manager:    m,
		token:      owner,
		dev:        dev,
		flags:      flags,
		mmio:       newTable[*mmioRegion](mmioBuckets),
		workspaces: newTable[*workspace](workspaceBuckets),
		log:        m.log.With(zap.String("dev", tok.DevPath())),
	}
	h.magic.Store(handleMagic)
	h.log.Debug("opened handle", zap.Bool("exclusive", exclusive))
	return h, nil
}

func (m *Manager) acquire(devPath string, exclusive bool) error {
	if !m.enforceExclusive {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.open[devPath]
	if ok && (s.exclusive || exclusive) {
		return fmt.Errorf("%w: %s is already open", fpga.Busy, devPath)
	}
	if !ok {
		s = &openState{}
		m.open[devPath] = s
	}
	s.exclusive = exclusive
	s.count++
	return nil
}

func (m *Manager) release(devPath string) {
	if !m.enforceExclusive {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.open[devPath]
	if !ok {
		return
	}
	s.count--
	if s.count <= 0 {
		delete(m.open, devPath)
	}
}
