package convert

import (
	"fmt"

	"github.com/smazurov/framegrab/internal/pixel"
)

// The paired kernel is the general accelerated tier: it amortizes the
// chroma arithmetic over the 2×2 (4:2:0) or 1×2 (4:2:2) pixel group that
// shares each chroma sample, and walks two luma rows per chroma row for the
// planar layouts. The per-pixel sums are term-for-term those of the scalar
// kernel, so output bytes are identical; odd trailing columns and rows fall
// through to the same arithmetic in tail loops.

// chromaTerms precomputes the chroma contribution of one (U,V) sample,
// rounding bias included.
type chromaTerms struct {
	r, g, b int32
}

func chroma(c Coefficients, u, v int32) chromaTerms {
	u1 := u - 128
	v1 := v - 128
	return chromaTerms{
		r: c.CR*v1 + 32,
		g: -c.CGU*u1 - c.CGV*v1 + 32,
		b: c.CB*u1 + 32,
	}
}

func (t chromaTerms) pixel(c Coefficients, y int32) (byte, byte, byte) {
	y1 := (y - c.Offset) * c.CY
	return clamp8((y1 + t.r) >> fixedShift),
		clamp8((y1 + t.g) >> fixedShift),
		clamp8((y1 + t.b) >> fixedShift)
}

func pairedRun(job *Job) error {
	switch job.SrcFormat.Base() {
	case pixel.NV12:
		paired420(job, nv12Chroma)
	case pixel.I420:
		paired420(job, i420Chroma)
	case pixel.YUYV:
		paired422(job, 0, 1, 3)
	case pixel.UYVY:
		paired422(job, 1, 0, 2)
	default:
		return fmt.Errorf("paired backend: unsupported source %s", job.SrcFormat)
	}
	return nil
}

// chromaAt fetches the chroma sample pair covering pixel column x*2 of
// chroma row cy.
type chromaAt func(job *Job, cy, pair int) (int32, int32)

func nv12Chroma(job *Job, cy, pair int) (int32, int32) {
	row := job.Src[1][cy*job.SrcStride[1]:]
	return int32(row[pair*2]), int32(row[pair*2+1])
}

func i420Chroma(job *Job, cy, pair int) (int32, int32) {
	return int32(job.Src[1][cy*job.SrcStride[1]+pair]),
		int32(job.Src[2][cy*job.SrcStride[2]+pair])
}

func paired420(job *Job, at chromaAt) {
	c := job.Color.Coefficients()
	lay := layoutOf(job.DstFormat)
	h, _ := job.rows()
	w := job.Width
	pairs := w / 2

	for y := 0; y < h; y += 2 {
		rows := 2
		if y+1 >= h {
			rows = 1 // odd-height tail row
		}
		cy := y / 2
		for row := 0; row < rows; row++ {
			yRow := job.Src[0][(y+row)*job.SrcStride[0]:]
			dst := job.dstRow(y + row)
			x := 0
			for pair := 0; pair < pairs; pair++ {
				u, v := at(job, cy, pair)
				t := chroma(c, u, v)
				r0, g0, b0 := t.pixel(c, int32(yRow[x]))
				lay.store(dst[x*lay.bpp:], r0, g0, b0)
				r1, g1, b1 := t.pixel(c, int32(yRow[x+1]))
				lay.store(dst[(x+1)*lay.bpp:], r1, g1, b1)
				x += 2
			}
			if x < w {
				// Odd-width tail column, same arithmetic.
				u, v := at(job, cy, x/2)
				t := chroma(c, u, v)
				r0, g0, b0 := t.pixel(c, int32(yRow[x]))
				lay.store(dst[x*lay.bpp:], r0, g0, b0)
			}
		}
	}
}

func paired422(job *Job, yOff, uOff, vOff int) {
	c := job.Color.Coefficients()
	lay := layoutOf(job.DstFormat)
	h, _ := job.rows()
	w := job.Width

	for y := 0; y < h; y++ {
		row := job.Src[0][y*job.SrcStride[0]:]
		dst := job.dstRow(y)
		x := 0
		for ; x+1 < w; x += 2 {
			group := x * 2
			t := chroma(c, int32(row[group+uOff]), int32(row[group+vOff]))
			r0, g0, b0 := t.pixel(c, int32(row[group+yOff]))
			lay.store(dst[x*lay.bpp:], r0, g0, b0)
			r1, g1, b1 := t.pixel(c, int32(row[group+yOff+2]))
			lay.store(dst[(x+1)*lay.bpp:], r1, g1, b1)
		}
		if x < w {
			group := x * 2
			t := chroma(c, int32(row[group+uOff]), int32(row[group+vOff]))
			r0, g0, b0 := t.pixel(c, int32(row[group+yOff]))
			lay.store(dst[x*lay.bpp:], r0, g0, b0)
		}
	}
}
