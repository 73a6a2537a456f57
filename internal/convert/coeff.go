// Package convert implements the YUV→RGB and RGB↔RGB conversion engine: a
// portable scalar reference kernel plus interchangeable accelerated
// backends selected at runtime by hardware capability.
//
// Every backend reproduces the exact fixed-point arithmetic of the scalar
// kernel. Backends may differ in throughput, never in output bytes.
package convert

import (
	"fmt"
	"math"
)

// Matrix selects the YUV→RGB colorimetry matrix.
type Matrix uint8

// Matrix values.
const (
	BT601 Matrix = iota
	BT709
)

// String returns the matrix name.
func (m Matrix) String() string {
	if m == BT709 {
		return "bt709"
	}
	return "bt601"
}

// ParseMatrix converts a matrix name to its value.
func ParseMatrix(name string) (Matrix, error) {
	switch name {
	case "", "bt601", "601":
		return BT601, nil
	case "bt709", "709":
		return BT709, nil
	}
	return BT601, fmt.Errorf("unknown colorimetry matrix %q", name)
}

// Colorimetry pairs a matrix with a sample range.
type Colorimetry struct {
	Matrix    Matrix
	FullRange bool
}

// Coefficients are the five fixed-point matrix coefficients, derived from
// the real-valued matrix scaled by 64 and rounded to nearest. Per pixel:
//
//	y' = Y - Offset, u' = U - 128, v' = V - 128
//	R = clamp((CY·y' + CR·v'          + 32) >> 6)
//	G = clamp((CY·y' - CGU·u' - CGV·v' + 32) >> 6)
//	B = clamp((CY·y' + CB·u'          + 32) >> 6)
//
// This arithmetic is the numeric contract shared by every backend,
// including their scalar remainder paths.
type Coefficients struct {
	CY, CR, CGU, CGV, CB int32
	Offset               int32
}

const fixedShift = 6

var coeffTable [4]Coefficients

func init() {
	for _, m := range []Matrix{BT601, BT709} {
		for _, full := range []bool{false, true} {
			coeffTable[coeffIndex(Colorimetry{m, full})] = derive(m, full)
		}
	}
}

func coeffIndex(c Colorimetry) int {
	i := 0
	if c.Matrix == BT709 {
		i = 2
	}
	if c.FullRange {
		i++
	}
	return i
}

// Coefficients returns the fixed-point coefficients for the colorimetry.
func (c Colorimetry) Coefficients() Coefficients {
	return coeffTable[coeffIndex(c)]
}

// String returns e.g. "bt601/video" or "bt709/full".
func (c Colorimetry) String() string {
	r := "video"
	if c.FullRange {
		r = "full"
	}
	return c.Matrix.String() + "/" + r
}

// derive computes coefficients from the ITU constants. Kr and Kb are the
// luma weights of red and blue; video range scales luma by 255/219 and
// chroma by 255/224.
func derive(m Matrix, full bool) Coefficients {
	kr, kb := 0.299, 0.114
	if m == BT709 {
		kr, kb = 0.2126, 0.0722
	}
	kg := 1 - kr - kb

	lumaScale, chromaScale, offset := 255.0/219.0, 255.0/224.0, int32(16)
	if full {
		lumaScale, chromaScale, offset = 1, 1, 0
	}

	fix := func(v float64) int32 {
		return int32(math.Round(v * (1 << fixedShift)))
	}
	return Coefficients{
		CY:     fix(lumaScale),
		CR:     fix(2 * (1 - kr) * chromaScale),
		CGU:    fix(2 * kb * (1 - kb) / kg * chromaScale),
		CGV:    fix(2 * kr * (1 - kr) / kg * chromaScale),
		CB:     fix(2 * (1 - kb) * chromaScale),
		Offset: offset,
	}
}

func clamp8(v int32) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

// yuvPixel applies the numeric contract to one sample triple.
func yuvPixel(c Coefficients, y, u, v int32) (byte, byte, byte) {
	y1 := (y - c.Offset) * c.CY
	u1 := u - 128
	v1 := v - 128
	r := (y1 + c.CR*v1 + 32) >> fixedShift
	g := (y1 - c.CGU*u1 - c.CGV*v1 + 32) >> fixedShift
	b := (y1 + c.CB*u1 + 32) >> fixedShift
	return clamp8(r), clamp8(g), clamp8(b)
}
