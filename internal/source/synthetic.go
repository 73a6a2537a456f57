package source

import (
	"context"
	"fmt"
	"time"

	"github.com/smazurov/framegrab/internal/frame"
	"github.com/smazurov/framegrab/internal/pixel"
)

// Synthetic generates deterministic test-pattern frames at a fixed rate.
// It behaves like a real device source: buffers are "externally owned" by
// the generator's ring, carry release obligations, and are recycled only
// after the pipeline releases them.
type Synthetic struct {
	Width  int
	Height int
	Format pixel.Format
	// FPS is the target frame rate; 30 when zero.
	FPS int
	// Ring is the number of in-flight buffers; 4 when zero.
	Ring int

	session *frame.Token
}

// Session returns the source's liveness token, creating it on first use.
func (s *Synthetic) Session() *frame.Token {
	if s.session == nil {
		s.session = frame.NewToken()
	}
	return s.session
}

// Run generates frames until ctx is done. Each buffer comes from a small
// ring; an exhausted ring (consumers holding everything) skips the tick the
// way a device driver starves when its queue is empty.
func (s *Synthetic) Run(ctx context.Context, deliver DeliverFunc) error {
	if !s.Format.Valid() {
		return fmt.Errorf("synthetic source: invalid format %s", s.Format)
	}
	fps := s.FPS
	if fps <= 0 {
		fps = 30
	}
	ringSize := s.Ring
	if ringSize <= 0 {
		ringSize = 4
	}
	session := s.Session()
	defer session.Expire()

	size := s.Format.FrameSize(s.Width, s.Height)
	ring := make(chan []byte, ringSize)
	for i := 0; i < ringSize; i++ {
		ring <- make([]byte, size)
	}

	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	start := time.Now()
	for seq := 0; ; seq++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		var buf []byte
		select {
		case buf = <-ring:
		default:
			continue // ring exhausted, drop the tick
		}

		s.paint(buf, seq)
		planes, strides := splitPlanes(s.Format, buf, s.Width, s.Height)
		deliver(Buffer{
			Planes:         planes,
			Strides:        strides,
			Width:          s.Width,
			Height:         s.Height,
			Format:         s.Format,
			Orientation:    frame.TopDown,
			TimestampNanos: time.Since(start).Nanoseconds(),
			Handle:         seq,
			Release:        func() { ring <- buf },
			Session:        session,
		})
	}
}

// paint fills the buffer with a moving-bar pattern: neutral chroma with a
// bright luma bar stepping one column per frame, so consumers can verify
// motion and ordering visually.
func (s *Synthetic) paint(buf []byte, seq int) {
	w, h := s.Width, s.Height
	bar := seq % w
	switch s.Format.Base() {
	case pixel.NV12, pixel.I420:
		ySize := w * h
		for i := 0; i < ySize; i++ {
			if i%w == bar {
				buf[i] = 235
			} else {
				buf[i] = 16
			}
		}
		for i := ySize; i < len(buf); i++ {
			buf[i] = 128
		}
	case pixel.YUYV:
		s.paintPacked(buf, bar, 0, 1, 3)
	case pixel.UYVY:
		s.paintPacked(buf, bar, 1, 0, 2)
	default: // RGB family
		bpp := s.Format.BytesPerPixel()
		lit := byte(0)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				lit = 0
				if x == bar {
					lit = 255
				}
				p := (y*w + x) * bpp
				buf[p], buf[p+1], buf[p+2] = lit, lit, lit
				if bpp == 4 {
					buf[p+3] = 255
				}
			}
		}
	}
}

func (s *Synthetic) paintPacked(buf []byte, bar, yOff, uOff, vOff int) {
	stride := s.Format.PlaneStride(0, s.Width)
	for y := 0; y < s.Height; y++ {
		row := buf[y*stride:]
		for g := 0; g*2 < s.Width; g++ {
			p := g * 4
			row[p+uOff] = 128
			row[p+vOff] = 128
			row[p+yOff] = luma(g*2, bar)
			row[p+yOff+2] = luma(g*2+1, bar)
		}
	}
}

func luma(x, bar int) byte {
	if x == bar {
		return 235
	}
	return 16
}

// splitPlanes slices one contiguous buffer into tightly packed planes.
func splitPlanes(f pixel.Format, buf []byte, w, h int) ([3][]byte, [3]int) {
	var planes [3][]byte
	var strides [3]int
	off := 0
	for p := 0; p < f.PlaneCount(); p++ {
		strides[p] = f.PlaneStride(p, w)
		n := strides[p] * f.PlaneHeight(p, h)
		planes[p] = buf[off : off+n : off+n]
		off += n
	}
	return planes, strides
}
