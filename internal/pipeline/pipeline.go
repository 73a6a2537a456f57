// Package pipeline coordinates the frame lifecycle: a bounded reuse pool, a
// bounded available queue, and the per-frame conversion orchestration
// between the capture thread and consumers.
//
// The capture source is the sole producer. Consumers pull with Grab
// (blocking, timeout-bounded) or receive frames synchronously through a
// push callback invoked on the capture thread. Both queues are hard
// bounded; once over, the oldest entry is sacrificed — at most N
// outstanding frames, trading frame loss for bounded memory.
package pipeline

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/framegrab/internal/convert"
	"github.com/smazurov/framegrab/internal/events"
	"github.com/smazurov/framegrab/internal/frame"
	"github.com/smazurov/framegrab/internal/metrics"
	"github.com/smazurov/framegrab/internal/observer"
	"github.com/smazurov/framegrab/internal/pixel"
	"github.com/smazurov/framegrab/internal/source"
)

// Defaults for the queue bounds.
const (
	DefaultMaxAvailableFrames = 8
	DefaultMaxCachedFrames    = 16
)

// PushFunc is the synchronous push callback, invoked on the capture thread
// for every published frame. Returning false means the callback fully
// consumed the frame and it must not also be buffered for Grab.
type PushFunc func(f *frame.Frame) bool

// Config carries initial pipeline settings.
type Config struct {
	// OutputFormat is the requested delivery format. FormatNone delivers
	// frames as captured.
	OutputFormat pixel.Format
	// OutputOrientation is the requested row order of delivered frames.
	OutputOrientation frame.Orientation
	// Matrix selects the YUV→RGB colorimetry matrix for conversions.
	Matrix convert.Matrix
	// MaxAvailableFrames bounds the queue of frames awaiting Grab.
	MaxAvailableFrames int
	// MaxCachedFrames bounds the frame reuse pool.
	MaxCachedFrames int
}

// Pipeline is the delivery core for one capture session.
type Pipeline struct {
	engine *convert.Engine
	sink   observer.Sink
	logger *slog.Logger
	bus    *events.Bus

	// Pool and queue use separate locks so a pool scan on the capture
	// thread never contends with a consumer draining the queue.
	poolMu    sync.Mutex
	pool      []*frame.Frame
	maxCached int

	queueMu  sync.Mutex
	queue    []*frame.Frame
	maxAvail int
	running  bool
	stopC    chan struct{}
	wake     chan struct{}

	outMu     sync.RWMutex
	outFormat pixel.Format
	outOrient frame.Orientation
	matrix    convert.Matrix
	pushCB    PushFunc

	nextIndex atomic.Uint64

	published   atomic.Uint64
	delivered   atomic.Uint64
	dropped     atomic.Uint64
	converted   atomic.Uint64
	convertFail atomic.Uint64
	leakEvicts  atomic.Uint64
}

// New creates a pipeline. Bus may be nil; sink and logger fall back to
// no-op and the default logger.
func New(cfg Config, eng *convert.Engine, sink observer.Sink, logger *slog.Logger, bus *events.Bus) *Pipeline {
	if sink == nil {
		sink = observer.Nop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if eng == nil {
		eng = convert.NewEngine(sink, logger)
	}
	maxAvail := cfg.MaxAvailableFrames
	if maxAvail <= 0 {
		maxAvail = DefaultMaxAvailableFrames
	}
	maxCached := cfg.MaxCachedFrames
	if maxCached <= 0 {
		maxCached = DefaultMaxCachedFrames
	}
	return &Pipeline{
		engine:    eng,
		sink:      sink,
		logger:    logger,
		bus:       bus,
		maxCached: maxCached,
		maxAvail:  maxAvail,
		outFormat: cfg.OutputFormat,
		outOrient: cfg.OutputOrientation,
		matrix:    cfg.Matrix,
		wake:      make(chan struct{}, 1),
	}
}

// Start begins accepting frames from the capture source.
func (p *Pipeline) Start() {
	p.queueMu.Lock()
	if p.running {
		p.queueMu.Unlock()
		return
	}
	p.running = true
	p.stopC = make(chan struct{})
	p.queueMu.Unlock()

	format, _ := p.outputSpec()
	p.publishEvent(events.CaptureStartedEvent{
		OutputFormat: format.String(),
		Timestamp:    eventTime(),
	})
	p.logger.Info("Pipeline started", "output_format", format.String())
}

// Stop stops delivery and drains the available queue, releasing every
// buffered frame.
func (p *Pipeline) Stop() {
	p.queueMu.Lock()
	if !p.running {
		p.queueMu.Unlock()
		return
	}
	p.running = false
	close(p.stopC)
	drained := p.queue
	p.queue = nil
	p.queueMu.Unlock()

	for _, f := range drained {
		f.Release()
	}
	metrics.SetQueueDepth(0)

	p.publishEvent(events.CaptureStoppedEvent{
		FramesDelivered: p.delivered.Load(),
		FramesDropped:   p.dropped.Load(),
		Timestamp:       eventTime(),
	})
	p.logger.Info("Pipeline stopped",
		"published", p.published.Load(),
		"delivered", p.delivered.Load(),
		"dropped", p.dropped.Load())
}

// Running reports whether the pipeline accepts frames.
func (p *Pipeline) Running() bool {
	p.queueMu.Lock()
	defer p.queueMu.Unlock()
	return p.running
}

// SetPushCallback registers the synchronous push callback. A nil fn
// removes it.
func (p *Pipeline) SetPushCallback(fn PushFunc) {
	p.outMu.Lock()
	p.pushCB = fn
	p.outMu.Unlock()
}

// SetOutputFormat sets the requested delivery format and orientation for
// subsequent frames.
func (p *Pipeline) SetOutputFormat(format pixel.Format, orientation frame.Orientation) {
	p.outMu.Lock()
	p.outFormat = format
	p.outOrient = orientation
	p.outMu.Unlock()
}

// SetBackendPolicy applies a conversion backend policy and announces the
// selection.
func (p *Pipeline) SetBackendPolicy(policy convert.Policy) {
	p.engine.SetPolicy(policy)
	p.publishEvent(events.BackendChangedEvent{
		Backend:   p.engine.BackendName(),
		Policy:    p.engine.Policy().String(),
		Timestamp: eventTime(),
	})
}

// SetMaxAvailableFrames adjusts the available-queue bound, evicting oldest
// entries if the queue already exceeds it.
func (p *Pipeline) SetMaxAvailableFrames(n int) {
	if n <= 0 {
		n = DefaultMaxAvailableFrames
	}
	var evicted []*frame.Frame
	p.queueMu.Lock()
	p.maxAvail = n
	for len(p.queue) > n {
		evicted = append(evicted, p.queue[0])
		p.queue = p.queue[1:]
	}
	depth := len(p.queue)
	p.queueMu.Unlock()

	for _, f := range evicted {
		p.dropFrame(f, depth)
	}
}

// SetMaxCachedFrames adjusts the reuse-pool bound. Free frames beyond the
// bound are discarded immediately; held frames age out on eviction.
func (p *Pipeline) SetMaxCachedFrames(n int) {
	if n <= 0 {
		n = DefaultMaxCachedFrames
	}
	p.poolMu.Lock()
	p.maxCached = n
	for len(p.pool) > n {
		if i := p.freeIndex(); i >= 0 {
			p.pool = append(p.pool[:i], p.pool[i+1:]...)
			continue
		}
		break
	}
	metrics.SetPoolSize(len(p.pool))
	p.poolMu.Unlock()
}

// Deliver accepts one raw buffer from the capture source, runs the
// conversion orchestration, and publishes the result. Called on the
// capture thread.
func (p *Pipeline) Deliver(buf source.Buffer) {
	if !p.Running() {
		if buf.Release != nil {
			buf.Release()
		}
		return
	}

	f := p.acquireReusable()
	f.AdoptExternal(buf.Planes, buf.Strides, buf.Width, buf.Height,
		buf.Format, buf.Orientation, buf.TimestampNanos,
		buf.Handle, buf.Release, buf.Session)

	p.orchestrate(f)
	p.publish(f)
}

// Grab returns the oldest available frame, blocking up to timeout. It
// returns nil on timeout, and immediately when the pipeline is not
// running (a usage error, reported in the log). The caller owns one
// reference to the returned frame and must Release it.
func (p *Pipeline) Grab(timeout time.Duration) *frame.Frame {
	p.queueMu.Lock()
	if !p.running {
		p.queueMu.Unlock()
		p.logger.Error("Grab called while capture is not running")
		return nil
	}
	stopC := p.stopC
	p.queueMu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		p.queueMu.Lock()
		if !p.running {
			p.queueMu.Unlock()
			return nil
		}
		if len(p.queue) > 0 {
			f := p.queue[0]
			p.queue = p.queue[1:]
			depth := len(p.queue)
			p.queueMu.Unlock()
			metrics.SetQueueDepth(depth)
			metrics.FrameDelivered()
			p.delivered.Add(1)
			return f
		}
		p.queueMu.Unlock()

		// Re-armed wait: a wake token may have been claimed by another
		// consumer, so the queue is re-checked after every wakeup until
		// the caller's total timeout elapses.
		select {
		case <-p.wake:
		case <-stopC:
			return nil
		case <-timer.C:
			return nil
		}
	}
}

// publish assigns the frame's delivery index, runs the push callback, and
// enqueues the frame for Grab unless the callback consumed it.
func (p *Pipeline) publish(f *frame.Frame) {
	f.FrameIndex = p.nextIndex.Add(1) - 1
	p.published.Add(1)
	metrics.FramePublished()

	p.outMu.RLock()
	cb := p.pushCB
	p.outMu.RUnlock()

	f.Ref() // delivery reference, transferred to the queue below
	enqueue := true
	if cb != nil {
		enqueue = cb(f)
		p.delivered.Add(1)
		metrics.FrameDelivered()
	}
	if !enqueue {
		f.Release()
		return
	}

	var evicted *frame.Frame
	p.queueMu.Lock()
	if !p.running {
		p.queueMu.Unlock()
		f.Release()
		return
	}
	if len(p.queue) >= p.maxAvail {
		evicted = p.queue[0]
		p.queue = p.queue[1:]
	}
	p.queue = append(p.queue, f)
	depth := len(p.queue)
	p.queueMu.Unlock()

	metrics.SetQueueDepth(depth)
	select {
	case p.wake <- struct{}{}:
	default:
	}

	if evicted != nil {
		p.dropFrame(evicted, depth)
	}
}

// dropFrame releases an evicted frame and accounts for the drop. Dropping
// is backpressure, not an error.
func (p *Pipeline) dropFrame(f *frame.Frame, depth int) {
	index := f.FrameIndex
	f.Release()
	p.dropped.Add(1)
	metrics.FrameDropped()
	p.logger.Debug("Frame dropped under backpressure", "frame_index", index, "queue_depth", depth)
	p.publishEvent(events.FrameDroppedEvent{
		FrameIndex: index,
		QueueDepth: depth,
		Timestamp:  eventTime(),
	})
}

func (p *Pipeline) outputSpec() (pixel.Format, frame.Orientation) {
	p.outMu.RLock()
	defer p.outMu.RUnlock()
	return p.outFormat, p.outOrient
}

func (p *Pipeline) publishEvent(ev events.Event) {
	if p.bus != nil {
		p.bus.Publish(ev)
	}
}

func eventTime() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// Stats is a point-in-time snapshot of pipeline counters.
type Stats struct {
	Running            bool   `json:"running"`
	FramesPublished    uint64 `json:"frames_published"`
	FramesDelivered    uint64 `json:"frames_delivered"`
	FramesDropped      uint64 `json:"frames_dropped"`
	Conversions        uint64 `json:"conversions"`
	ConversionFailures uint64 `json:"conversion_failures"`
	LeakEvictions      uint64 `json:"leak_evictions"`
	QueueDepth         int    `json:"queue_depth"`
	PoolSize           int    `json:"pool_size"`
	Backend            string `json:"backend"`
	OutputFormat       string `json:"output_format"`
	Orientation        string `json:"orientation"`
}

// Stats returns current counters and configuration.
func (p *Pipeline) Stats() Stats {
	p.queueMu.Lock()
	depth := len(p.queue)
	running := p.running
	p.queueMu.Unlock()
	p.poolMu.Lock()
	poolSize := len(p.pool)
	p.poolMu.Unlock()
	format, orient := p.outputSpec()

	return Stats{
		Running:            running,
		FramesPublished:    p.published.Load(),
		FramesDelivered:    p.delivered.Load(),
		FramesDropped:      p.dropped.Load(),
		Conversions:        p.converted.Load(),
		ConversionFailures: p.convertFail.Load(),
		LeakEvictions:      p.leakEvicts.Load(),
		QueueDepth:         depth,
		PoolSize:           poolSize,
		Backend:            p.engine.BackendName(),
		OutputFormat:       format.String(),
		Orientation:        orient.String(),
	}
}

// Engine exposes the conversion engine for diagnostics.
func (p *Pipeline) Engine() *convert.Engine { return p.engine }
