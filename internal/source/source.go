// Package source defines the Capture Source contract: the single interface
// through which platform capture code hands raw buffers to the pipeline.
//
// Device enumeration, session negotiation, and the OS delivery mechanism
// all live behind this contract. A source periodically supplies a Buffer;
// the pipeline calls the buffer's Release function exactly once, when the
// last frame reference to it drops.
package source

import (
	"context"

	"github.com/smazurov/framegrab/internal/frame"
	"github.com/smazurov/framegrab/internal/pixel"
)

// Buffer is one raw capture buffer description.
type Buffer struct {
	// Planes and Strides describe up to three planes of pixel data. For
	// externally-owned buffers the slices alias storage the capture
	// subsystem controls and must not be written.
	Planes  [3][]byte
	Strides [3]int
	Width   int
	Height  int
	Format  pixel.Format
	// Orientation of the rows as delivered.
	Orientation frame.Orientation
	// TimestampNanos is a monotonic capture timestamp.
	TimestampNanos int64

	// Handle is the capture subsystem's opaque release token. Nil together
	// with Release means the buffer is a plain copy the pipeline may keep.
	Handle any
	// Release returns the buffer to the capture subsystem. Called exactly
	// once, when the last frame reference drops; skipped if Session has
	// expired by then.
	Release func()
	// Session is the liveness token of the owning capture session.
	Session *frame.Token
}

// External reports whether the buffer carries a release obligation.
func (b *Buffer) External() bool { return b.Release != nil }

// DeliverFunc accepts one buffer on the capture thread.
type DeliverFunc func(Buffer)

// Source produces buffers until its context is canceled.
type Source interface {
	// Run delivers buffers to deliver from a single producer goroutine,
	// blocking until ctx is done or the source fails.
	Run(ctx context.Context, deliver DeliverFunc) error
}
