// Package frame defines the unit of image data moving through the pipeline
// and its ownership model.
//
// A Frame is at any moment in one of two states: allocator-owned, meaning
// its planes live in the frame's own Allocator and may be mutated in place
// and reused from the pool, or externally-owned, meaning its planes point
// into a buffer the capture subsystem controls. Externally-owned frames are
// immutable from this side and carry a release obligation that fires exactly
// once, when the last outside reference to the frame disappears.
package frame

import (
	"log/slog"
	"sync/atomic"

	"github.com/smazurov/framegrab/internal/buffer"
	"github.com/smazurov/framegrab/internal/observer"
	"github.com/smazurov/framegrab/internal/pixel"
)

// Orientation describes row order in memory.
type Orientation int8

// Orientation values.
const (
	TopDown  Orientation = iota // first row in memory is the top row
	BottomUp                    // first row in memory is the bottom row
)

// String returns the orientation name.
func (o Orientation) String() string {
	if o == BottomUp {
		return "bottom-up"
	}
	return "top-down"
}

// Frame is the central entity: up to three plane slices with strides,
// dimensions, format, orientation, and delivery metadata. Frames are
// repopulated in place by the capture path and recycled through the pool;
// consumers treat them as read-only and call Release when done.
type Frame struct {
	Data   [3][]byte
	Stride [3]int
	Width  int
	Height int
	Format pixel.Format
	// Orientation of the rows in Data.
	Orientation Orientation
	// TimestampNanos is the capture source's monotonic timestamp.
	TimestampNanos int64
	// FrameIndex is assigned exactly once, at publish time, and is
	// strictly monotonic in delivery order.
	FrameIndex uint64
	// SizeBytes is the total payload size across planes.
	SizeBytes int
	// NativeHandle is the capture subsystem's opaque token for
	// externally-owned buffers; nil otherwise.
	NativeHandle any

	alloc   *buffer.Allocator
	payload payload
	refs    atomic.Int32

	sink   observer.Sink
	logger *slog.Logger
}

// New constructs an empty frame. Errors raised while releasing external
// buffers are reported through sink.
func New(sink observer.Sink, logger *slog.Logger) *Frame {
	if sink == nil {
		sink = observer.Nop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Frame{payload: ownedBuffer{}, sink: sink, logger: logger}
}

// Allocator returns the frame's backing allocator, created lazily on first
// use. The allocator persists across external adoptions so conversions can
// keep reusing the same storage.
func (f *Frame) Allocator() *buffer.Allocator {
	if f.alloc == nil {
		f.alloc = &buffer.Allocator{}
	}
	return f.alloc
}

// ExternallyOwned reports whether the frame currently borrows a buffer the
// capture subsystem controls.
func (f *Frame) ExternallyOwned() bool {
	return !f.payload.owned()
}

// Ref adds an outside holder. Every Ref is balanced by exactly one Release.
func (f *Frame) Ref() *Frame {
	f.refs.Add(1)
	return f
}

// Release drops one outside holder. When the count reaches zero the frame
// becomes free for pool reuse and any external release obligation fires.
func (f *Frame) Release() {
	n := f.refs.Add(-1)
	if n < 0 {
		f.refs.Store(0)
		f.logger.Error("frame released more times than referenced", "frame_index", f.FrameIndex)
		return
	}
	if n == 0 {
		f.dropExternal()
	}
}

// Refs returns the current outside-holder count. A frame with zero refs is
// free for reuse; only the pool holds it.
func (f *Frame) Refs() int32 { return f.refs.Load() }

// AdoptExternal points the frame at a capture-subsystem buffer. The frame
// becomes externally-owned; release fires once, when the last outside
// reference drops, and is skipped with a benign report if session has
// already expired by then.
func (f *Frame) AdoptExternal(planes [3][]byte, strides [3]int, width, height int,
	format pixel.Format, orientation Orientation, timestampNanos int64,
	handle any, release func(), session *Token,
) {
	f.dropExternal() // a leftover obligation must not leak
	f.Data = planes
	f.Stride = strides
	f.Width = width
	f.Height = height
	f.Format = format
	f.Orientation = orientation
	f.TimestampNanos = timestampNanos
	f.SizeBytes = totalSize(planes)
	f.NativeHandle = handle
	f.payload = &borrowedBuffer{handle: handle, releaseFn: release, session: session}
}

// AdoptOwned points the frame at planes inside its own allocator, making it
// allocator-owned. Any previous external obligation has already been
// detached by the caller.
func (f *Frame) AdoptOwned(planes [3][]byte, strides [3]int, width, height int,
	format pixel.Format, orientation Orientation, timestampNanos int64,
) {
	f.Data = planes
	f.Stride = strides
	f.Width = width
	f.Height = height
	f.Format = format
	f.Orientation = orientation
	f.TimestampNanos = timestampNanos
	f.SizeBytes = totalSize(planes)
	f.NativeHandle = nil
	f.payload = ownedBuffer{}
}

// DetachExternal fires the frame's external release obligation now and
// reverts the frame to allocator ownership. Used after a conversion has
// copied the borrowed pixels out: the go-forward owner is the allocator,
// but the original buffer's obligation is honored independently.
func (f *Frame) DetachExternal() {
	f.dropExternal()
}

func (f *Frame) dropExternal() {
	if b, ok := f.payload.(*borrowedBuffer); ok {
		b.release(f.sink, f.logger)
		f.payload = ownedBuffer{}
		f.NativeHandle = nil
	}
}

func totalSize(planes [3][]byte) int {
	n := 0
	for _, p := range planes {
		n += len(p)
	}
	return n
}
