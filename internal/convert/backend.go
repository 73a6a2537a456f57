package convert

import (
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sys/cpu"
)

// Backend is one conversion implementation. Availability is a hardware
// capability, detected independently of any enable/disable override; the
// engine's policy decides which available backend actually runs.
type Backend struct {
	// Name identifies the backend in policies and diagnostics.
	Name string
	// Available reports hardware capability on the current OS/CPU.
	Available func() bool
	// Priority orders automatic selection; higher wins. Vendor-accelerated
	// backends register above the general tier, which sits above scalar.
	Priority int
	// Run executes a validated YUV→RGB job.
	Run func(job *Job) error
}

// Priority tiers for registration.
const (
	PriorityScalar = 0
	PriorityCPU    = 50
	PriorityVendor = 100
)

// ScalarName is the portable reference backend, always available.
const ScalarName = "scalar"

var (
	registryMu sync.RWMutex
	registry   []Backend
	disabled   = map[string]bool{}
)

func init() {
	Register(Backend{
		Name:      ScalarName,
		Available: func() bool { return true },
		Priority:  PriorityScalar,
		Run:       scalarRun,
	})
	Register(Backend{
		Name:      "paired",
		Available: pairedCapable,
		Priority:  PriorityCPU,
		Run:       pairedRun,
	})
}

// pairedCapable gates the general accelerated tier on a wide-vector CPU.
func pairedCapable() bool {
	return cpu.X86.HasSSSE3 || cpu.ARM64.HasASIMD
}

// Register adds a backend. Vendor-accelerated implementations register
// themselves from build-tagged files at init time.
func Register(b Backend) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = append(registry, b)
	sort.SliceStable(registry, func(i, j int) bool {
		return registry[i].Priority > registry[j].Priority
	})
}

// SetEnabled overrides a backend's eligibility for selection. The override
// does not affect what Available reports.
func SetEnabled(name string, enabled bool) {
	registryMu.Lock()
	defer registryMu.Unlock()
	disabled[name] = !enabled
}

// Info describes a registered backend for diagnostics.
type Info struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Enabled   bool   `json:"enabled"`
	Priority  int    `json:"priority"`
}

// Backends lists all registered backends in selection order.
func Backends() []Info {
	registryMu.RLock()
	defer registryMu.RUnlock()
	infos := make([]Info, 0, len(registry))
	for _, b := range registry {
		infos = append(infos, Info{
			Name:      b.Name,
			Available: b.Available(),
			Enabled:   !disabled[b.Name],
			Priority:  b.Priority,
		})
	}
	return infos
}

// BackendRun returns the named backend's kernel for direct invocation,
// bypassing policy. Used by the bench command.
func BackendRun(name string) (func(*Job) error, bool) {
	b, ok := lookup(name)
	if !ok {
		return nil, false
	}
	return b.Run, true
}

// lookup returns a backend by name.
func lookup(name string) (Backend, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	for _, b := range registry {
		if b.Name == name {
			return b, true
		}
	}
	return Backend{}, false
}

// selectAuto picks the best available, enabled backend: vendor tier first,
// then the general CPU tier, then scalar.
func selectAuto() Backend {
	registryMu.RLock()
	defer registryMu.RUnlock()
	for _, b := range registry {
		if !disabled[b.Name] && b.Available() {
			return b
		}
	}
	// Scalar is registered unconditionally; reaching here means it was
	// disabled, which still must not leave the engine without a kernel.
	for _, b := range registry {
		if b.Name == ScalarName {
			return b
		}
	}
	panic("convert: scalar backend not registered")
}

// PolicyMode selects how the engine picks its backend.
type PolicyMode uint8

// Policy modes.
const (
	PolicyAuto PolicyMode = iota
	PolicyForceScalar
	PolicyForceBackend
)

// Policy is the runtime backend selection policy.
type Policy struct {
	Mode    PolicyMode
	Backend string // backend name, for PolicyForceBackend
}

// String returns the policy in the form accepted by ParsePolicy.
func (p Policy) String() string {
	switch p.Mode {
	case PolicyForceScalar:
		return ScalarName
	case PolicyForceBackend:
		return p.Backend
	default:
		return "auto"
	}
}

// ParsePolicy resolves "auto", "scalar", or a backend name.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "auto":
		return Policy{Mode: PolicyAuto}, nil
	case ScalarName:
		return Policy{Mode: PolicyForceScalar}, nil
	}
	if _, ok := lookup(s); !ok {
		return Policy{}, fmt.Errorf("unknown backend %q", s)
	}
	return Policy{Mode: PolicyForceBackend, Backend: s}, nil
}
