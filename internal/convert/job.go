package convert

import (
	"fmt"

	"github.com/smazurov/framegrab/internal/pixel"
)

// Job describes one conversion: source planes in, one packed destination
// plane out. Height may be negative, meaning the source is read
// top-to-bottom and the destination written bottom-to-top, folding an
// orientation flip into the conversion pass.
type Job struct {
	Src       [3][]byte
	SrcStride [3]int
	Dst       []byte
	DstStride int
	Width     int
	Height    int
	Color     Colorimetry
	SrcFormat pixel.Format
	DstFormat pixel.Format
}

// rows returns the absolute height and whether destination rows are
// written bottom-up.
func (j *Job) rows() (int, bool) {
	if j.Height < 0 {
		return -j.Height, true
	}
	return j.Height, false
}

// dstRow returns the destination slice for logical source row y.
func (j *Job) dstRow(y int) []byte {
	h, flip := j.rows()
	r := y
	if flip {
		r = h - 1 - y
	}
	return j.Dst[r*j.DstStride:]
}

// validate checks plane geometry before a kernel touches memory. Kernels
// assume a validated job.
func (j *Job) validate() error {
	w := j.Width
	h, _ := j.rows()
	if w <= 0 || h <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d", j.Width, j.Height)
	}
	if !j.DstFormat.IsRGB() {
		return fmt.Errorf("destination %s is not RGB-family", j.DstFormat)
	}
	if need := (h-1)*j.DstStride + w*j.DstFormat.BytesPerPixel(); len(j.Dst) < need {
		return fmt.Errorf("destination buffer %d bytes, need %d", len(j.Dst), need)
	}
	for p := 0; p < j.SrcFormat.PlaneCount(); p++ {
		ph := j.SrcFormat.PlaneHeight(p, h)
		ps := j.SrcFormat.PlaneStride(p, w)
		if j.SrcStride[p] < ps {
			return fmt.Errorf("source plane %d stride %d below minimum %d", p, j.SrcStride[p], ps)
		}
		if need := (ph-1)*j.SrcStride[p] + ps; len(j.Src[p]) < need {
			return fmt.Errorf("source plane %d is %d bytes, need %d", p, len(j.Src[p]), need)
		}
	}
	return nil
}

// rgbLayout gives the byte offsets of each channel inside a packed
// RGB-family pixel. alpha is -1 when the format has no alpha channel.
type rgbLayout struct {
	r, g, b, alpha int
	bpp            int
}

func layoutOf(f pixel.Format) rgbLayout {
	switch f.Base() {
	case pixel.BGR24:
		return rgbLayout{r: 2, g: 1, b: 0, alpha: -1, bpp: 3}
	case pixel.RGBA32:
		return rgbLayout{r: 0, g: 1, b: 2, alpha: 3, bpp: 4}
	case pixel.BGRA32:
		return rgbLayout{r: 2, g: 1, b: 0, alpha: 3, bpp: 4}
	default:
		return rgbLayout{r: 0, g: 1, b: 2, alpha: -1, bpp: 3}
	}
}

func (l rgbLayout) store(dst []byte, r, g, b byte) {
	dst[l.r] = r
	dst[l.g] = g
	dst[l.b] = b
	if l.alpha >= 0 {
		dst[l.alpha] = 255
	}
}
