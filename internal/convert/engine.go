package convert

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/smazurov/framegrab/internal/observer"
)

// ErrUnsupportedConversion marks a direction the engine refuses by policy:
// RGB→YUV and YUV-layout→YUV-layout. Callers deliver the frame unchanged.
var ErrUnsupportedConversion = errors.New("unsupported conversion direction")

// Engine binds the backend registry to a selection policy. Conversion
// functions themselves are stateless; the engine only decides which one
// runs.
type Engine struct {
	mu      sync.RWMutex
	policy  Policy
	backend Backend

	sink   observer.Sink
	logger *slog.Logger
}

// NewEngine creates an engine with the automatic policy.
func NewEngine(sink observer.Sink, logger *slog.Logger) *Engine {
	if sink == nil {
		sink = observer.Nop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{sink: sink, logger: logger}
	e.SetPolicy(Policy{Mode: PolicyAuto})
	return e
}

// SetPolicy applies a backend selection policy. Forcing a backend that is
// not available on this hardware reports BACKEND_UNAVAILABLE and falls back
// to the automatic policy instead of failing.
func (e *Engine) SetPolicy(p Policy) {
	var chosen Backend
	switch p.Mode {
	case PolicyForceScalar:
		chosen, _ = lookup(ScalarName)
	case PolicyForceBackend:
		b, ok := lookup(p.Backend)
		if ok && b.Available() {
			chosen = b
			break
		}
		e.sink.Observe(observer.New(observer.KindBackendUnavailable,
			"requested backend not supported on current hardware, using automatic selection",
			map[string]any{"backend": p.Backend}))
		p = Policy{Mode: PolicyAuto}
		chosen = selectAuto()
	default:
		p = Policy{Mode: PolicyAuto}
		chosen = selectAuto()
	}

	e.mu.Lock()
	e.policy = p
	e.backend = chosen
	e.mu.Unlock()
	e.logger.Info("Conversion backend selected", "backend", chosen.Name, "policy", p.String())
}

// Policy returns the active policy.
func (e *Engine) Policy() Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.policy
}

// BackendName returns the name of the backend the engine currently runs.
func (e *Engine) BackendName() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.backend.Name
}

// Convert executes one job. Supported directions: every YUV layout into
// every RGB-family output, and RGB-family channel reorders. RGB→YUV is
// refused by policy, not as a missing feature.
func (e *Engine) Convert(job *Job) error {
	switch {
	case job.SrcFormat.IsRGB() && job.DstFormat.IsRGB():
		return shuffleRun(job)
	case job.SrcFormat.IsYUV() && job.DstFormat.IsRGB():
		if err := job.validate(); err != nil {
			return err
		}
		e.mu.RLock()
		run := e.backend.Run
		e.mu.RUnlock()
		return run(job)
	default:
		return ErrUnsupportedConversion
	}
}
