package pipeline

import (
	"errors"
	"time"

	"github.com/smazurov/framegrab/internal/convert"
	"github.com/smazurov/framegrab/internal/events"
	"github.com/smazurov/framegrab/internal/frame"
	"github.com/smazurov/framegrab/internal/metrics"
	"github.com/smazurov/framegrab/internal/observer"
	"github.com/smazurov/framegrab/internal/pixel"
)

// orchestrate decides, per incoming frame, whether the requested output
// can be satisfied by zero-copy reference, a flip-only row copy, or a full
// conversion into the frame's own allocator. Conversion failures are never
// fatal: the frame is delivered unchanged in its source format.
func (p *Pipeline) orchestrate(f *frame.Frame) {
	want, orient := p.outputSpec()

	// No-op: as-captured delivery, or format and orientation already match.
	if want == pixel.FormatNone || (want == f.Format && orient == f.Orientation) {
		return
	}

	if want == f.Format {
		// Flip-only. A row-reversing copy needs no pixel math but does
		// need a mutable destination, so it applies to the RGB family
		// only; packed chroma cannot be row-copied into a new orientation
		// without resampling.
		if !want.IsRGB() {
			p.conversionFailed(f, want, convert.ErrUnsupportedConversion,
				observer.KindUnsupportedConversion,
				"orientation flip without conversion requires an RGB-family format")
			return
		}
		p.flipInPlace(f, orient)
		return
	}

	p.convertInPlace(f, want, orient)
}

// flipInPlace copies the frame's rows in reverse order into its allocator
// and retargets the frame. The original external buffer's obligation fires
// once the copy is done.
func (p *Pipeline) flipInPlace(f *frame.Frame, orient frame.Orientation) {
	rowBytes := f.Format.PlaneStride(0, f.Width)
	size := rowBytes * f.Height
	alloc := f.Allocator()
	if err := alloc.Resize(size); err != nil {
		p.conversionFailed(f, f.Format, err, observer.KindAllocationFailure,
			"flip buffer allocation failed")
		return
	}

	convert.FlipRows(alloc.Data(), rowBytes, f.Data[0], f.Stride[0], rowBytes, f.Height)

	f.DetachExternal()
	f.AdoptOwned([3][]byte{alloc.Data()}, [3]int{rowBytes},
		f.Width, f.Height, f.Format, orient, f.TimestampNanos)
}

// convertInPlace runs the conversion engine into the frame's allocator and
// retargets the frame's format, planes, and strides on success.
func (p *Pipeline) convertInPlace(f *frame.Frame, want pixel.Format, orient frame.Orientation) {
	size := want.FrameSize(f.Width, f.Height)
	if size == 0 {
		p.conversionFailed(f, want, convert.ErrUnsupportedConversion,
			observer.KindUnsupportedConversion, "requested format has no layout for these dimensions")
		return
	}
	alloc := f.Allocator()
	if err := alloc.Resize(size); err != nil {
		p.conversionFailed(f, want, err, observer.KindAllocationFailure,
			"conversion buffer allocation failed")
		return
	}

	height := f.Height
	if orient != f.Orientation {
		// Fold the flip into the conversion pass.
		height = -height
	}
	job := &convert.Job{
		Src:       f.Data,
		SrcStride: f.Stride,
		Dst:       alloc.Data(),
		DstStride: want.PlaneStride(0, f.Width),
		Width:     f.Width,
		Height:    height,
		Color: convert.Colorimetry{
			Matrix:    p.matrix,
			FullRange: f.Format.FullRange(),
		},
		SrcFormat: f.Format,
		DstFormat: want,
	}

	start := time.Now()
	if err := p.engine.Convert(job); err != nil {
		kind := observer.KindUnsupportedConversion
		if !errors.Is(err, convert.ErrUnsupportedConversion) {
			kind = observer.KindAllocationFailure
		}
		p.conversionFailed(f, want, err, kind, "conversion failed, delivering source format")
		return
	}
	elapsed := time.Since(start).Seconds()

	src := f.Format
	f.DetachExternal()
	f.AdoptOwned([3][]byte{alloc.Data()}, [3]int{job.DstStride},
		f.Width, f.Height, want, orient, f.TimestampNanos)

	p.converted.Add(1)
	metrics.ConversionDone(src.String(), want.String(), p.engine.BackendName(), elapsed)
}

// conversionFailed reports a downgraded delivery. The frame stays in its
// source format and orientation; the consumer still receives a fully valid
// frame.
func (p *Pipeline) conversionFailed(f *frame.Frame, want pixel.Format, err error, kind observer.Kind, msg string) {
	p.convertFail.Add(1)
	metrics.ConversionFailed(string(kind))
	p.sink.Observe(observer.Wrap(kind, msg, err, map[string]any{
		"source_format":    f.Format.String(),
		"requested_format": want.String(),
	}))
	p.publishEvent(events.ConversionFailedEvent{
		SourceFormat:    f.Format.String(),
		RequestedFormat: want.String(),
		Reason:          err.Error(),
		Timestamp:       eventTime(),
	})
}
