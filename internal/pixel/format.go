// Package pixel defines the pixel format descriptor shared by the capture,
// conversion, and delivery layers. A Format is a plain bitfield value: it
// carries no behavior beyond geometry derived from its bits.
package pixel

import "fmt"

// Format encodes color model, plane layout, channel order, alpha presence,
// and value range as independent bits. Exactly one color-model bit is set on
// a valid format, and layout bits are mutually exclusive within a model.
type Format uint32

const (
	// Color model. Exactly one of these is set.
	modelYUV Format = 1 << 0
	modelRGB Format = 1 << 1

	// YUV plane layouts. Mutually exclusive, only valid with modelYUV.
	layoutNV12 Format = 1 << 4 // semi-planar 4:2:0, interleaved UV plane
	layoutI420 Format = 1 << 5 // planar 4:2:0, separate U and V planes
	layoutYUYV Format = 1 << 6 // packed 4:2:2, luma first
	layoutUYVY Format = 1 << 7 // packed 4:2:2, chroma first

	// RGB channel order and alpha. Only valid with modelRGB.
	orderBGR Format = 1 << 8
	hasAlpha Format = 1 << 9

	// Value range. Applies to YUV sample interpretation; full range when
	// set, video (limited) range otherwise.
	fullRange Format = 1 << 10
)

// Canonical formats.
const (
	// FormatNone is the zero value and never describes real data.
	FormatNone Format = 0

	NV12 = modelYUV | layoutNV12
	I420 = modelYUV | layoutI420
	YUYV = modelYUV | layoutYUYV
	UYVY = modelYUV | layoutUYVY

	RGB24  = modelRGB
	BGR24  = modelRGB | orderBGR
	RGBA32 = modelRGB | hasAlpha
	BGRA32 = modelRGB | orderBGR | hasAlpha
)

// Formats lists every canonical format, YUV first.
var Formats = []Format{NV12, I420, YUYV, UYVY, RGB24, BGR24, RGBA32, BGRA32}

// IsYUV reports whether the format's color model is YUV.
func (f Format) IsYUV() bool { return f&modelYUV != 0 }

// IsRGB reports whether the format's color model is RGB-family.
func (f Format) IsRGB() bool { return f&modelRGB != 0 }

// FullRange reports whether samples use the full [0,255] range rather than
// the video (limited) range.
func (f Format) FullRange() bool { return f&fullRange != 0 }

// WithFullRange returns the format with the full-range bit set or cleared.
func (f Format) WithFullRange(full bool) Format {
	if full {
		return f | fullRange
	}
	return f &^ fullRange
}

// BGRFirst reports whether an RGB-family format stores blue first.
func (f Format) BGRFirst() bool { return f&orderBGR != 0 }

// HasAlpha reports whether an RGB-family format carries an alpha channel.
func (f Format) HasAlpha() bool { return f&hasAlpha != 0 }

// Base strips the value-range bit, leaving the layout identity. Two formats
// with equal Base describe the same byte layout.
func (f Format) Base() Format { return f &^ fullRange }

// Valid reports whether the format is well formed: exactly one color-model
// bit, a single layout for YUV, and no YUV layout bits on RGB formats.
func (f Format) Valid() bool {
	model := f & (modelYUV | modelRGB)
	if model != modelYUV && model != modelRGB {
		return false
	}
	layout := f & (layoutNV12 | layoutI420 | layoutYUYV | layoutUYVY)
	if f.IsYUV() {
		if f&(orderBGR|hasAlpha) != 0 {
			return false
		}
		return layout == layoutNV12 || layout == layoutI420 ||
			layout == layoutYUYV || layout == layoutUYVY
	}
	return layout == 0
}

// PlaneCount returns the number of planes the format occupies.
func (f Format) PlaneCount() int {
	switch f.Base() {
	case NV12:
		return 2
	case I420:
		return 3
	default:
		return 1
	}
}

// BytesPerPixel returns the packed pixel width for single-plane formats.
// For planar YUV formats it returns 0; plane geometry rules apply instead.
func (f Format) BytesPerPixel() int {
	switch f.Base() {
	case YUYV, UYVY:
		return 2
	case RGB24, BGR24:
		return 3
	case RGBA32, BGRA32:
		return 4
	default:
		return 0
	}
}

// PlaneStride returns the tightly packed stride of the given plane for an
// image of the given width. Chroma planes of 4:2:0 layouts round width up
// so odd sizes still cover every pixel.
func (f Format) PlaneStride(plane, width int) int {
	switch f.Base() {
	case NV12:
		if plane == 0 {
			return width
		}
		// Interleaved UV: two samples per pixel pair.
		return (width + 1) &^ 1
	case I420:
		if plane == 0 {
			return width
		}
		return (width + 1) / 2
	case YUYV, UYVY:
		// Four bytes per two-pixel group.
		return ((width + 1) / 2) * 4
	default:
		return width * f.BytesPerPixel()
	}
}

// PlaneHeight returns the number of rows in the given plane.
func (f Format) PlaneHeight(plane, height int) int {
	switch f.Base() {
	case NV12, I420:
		if plane == 0 {
			return height
		}
		return (height + 1) / 2
	default:
		return height
	}
}

// FrameSize returns the total number of bytes a tightly packed frame of the
// given dimensions occupies in this format.
func (f Format) FrameSize(width, height int) int {
	if width <= 0 || height <= 0 {
		return 0
	}
	total := 0
	for p := 0; p < f.PlaneCount(); p++ {
		total += f.PlaneStride(p, width) * f.PlaneHeight(p, height)
	}
	return total
}

// String returns the conventional fourcc-style name plus the range suffix
// for YUV formats.
func (f Format) String() string {
	name := ""
	switch f.Base() {
	case NV12:
		name = "nv12"
	case I420:
		name = "i420"
	case YUYV:
		name = "yuyv"
	case UYVY:
		name = "uyvy"
	case RGB24:
		name = "rgb24"
	case BGR24:
		name = "bgr24"
	case RGBA32:
		name = "rgba32"
	case BGRA32:
		name = "bgra32"
	default:
		return fmt.Sprintf("pixel.Format(%#x)", uint32(f))
	}
	if f.IsYUV() && f.FullRange() {
		name += "-full"
	}
	return name
}

// Parse resolves a format name as produced by String. The "-full" suffix
// selects full range on YUV formats.
func Parse(name string) (Format, error) {
	full := false
	base := name
	if n := len(name); n > 5 && name[n-5:] == "-full" {
		full = true
		base = name[:n-5]
	}
	var f Format
	switch base {
	case "nv12":
		f = NV12
	case "i420":
		f = I420
	case "yuyv":
		f = YUYV
	case "uyvy":
		f = UYVY
	case "rgb24":
		f = RGB24
	case "bgr24":
		f = BGR24
	case "rgba32":
		f = RGBA32
	case "bgra32":
		f = BGRA32
	default:
		return FormatNone, fmt.Errorf("unknown pixel format %q", name)
	}
	if full {
		if !f.IsYUV() {
			return FormatNone, fmt.Errorf("range suffix is only valid on YUV formats: %q", name)
		}
		f = f.WithFullRange(true)
	}
	return f, nil
}
