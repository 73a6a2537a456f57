package convert

import (
	"fmt"

	"github.com/smazurov/framegrab/internal/pixel"
)

// The scalar kernel is the correctness reference: one pixel at a time,
// straight from the numeric contract in coeff.go. It is always available
// and every accelerated backend must match it byte for byte.

func scalarRun(job *Job) error {
	switch job.SrcFormat.Base() {
	case pixel.NV12:
		scalarNV12(job)
	case pixel.I420:
		scalarI420(job)
	case pixel.YUYV:
		scalarPacked422(job, 0, 1, 3)
	case pixel.UYVY:
		scalarPacked422(job, 1, 0, 2)
	default:
		return fmt.Errorf("scalar backend: unsupported source %s", job.SrcFormat)
	}
	return nil
}

func scalarNV12(job *Job) {
	c := job.Color.Coefficients()
	lay := layoutOf(job.DstFormat)
	h, _ := job.rows()

	for y := 0; y < h; y++ {
		yRow := job.Src[0][y*job.SrcStride[0]:]
		uvRow := job.Src[1][(y/2)*job.SrcStride[1]:]
		dst := job.dstRow(y)
		for x := 0; x < job.Width; x++ {
			u := int32(uvRow[(x&^1)+0])
			v := int32(uvRow[(x&^1)+1])
			r, g, b := yuvPixel(c, int32(yRow[x]), u, v)
			lay.store(dst[x*lay.bpp:], r, g, b)
		}
	}
}

func scalarI420(job *Job) {
	c := job.Color.Coefficients()
	lay := layoutOf(job.DstFormat)
	h, _ := job.rows()

	for y := 0; y < h; y++ {
		yRow := job.Src[0][y*job.SrcStride[0]:]
		uRow := job.Src[1][(y/2)*job.SrcStride[1]:]
		vRow := job.Src[2][(y/2)*job.SrcStride[2]:]
		dst := job.dstRow(y)
		for x := 0; x < job.Width; x++ {
			u := int32(uRow[x/2])
			v := int32(vRow[x/2])
			r, g, b := yuvPixel(c, int32(yRow[x]), u, v)
			lay.store(dst[x*lay.bpp:], r, g, b)
		}
	}
}

// scalarPacked422 handles both packed 4:2:2 orders. yOff/uOff/vOff are the
// byte positions inside a four-byte two-pixel group; the second luma sits
// at yOff+2.
func scalarPacked422(job *Job, yOff, uOff, vOff int) {
	c := job.Color.Coefficients()
	lay := layoutOf(job.DstFormat)
	h, _ := job.rows()

	for y := 0; y < h; y++ {
		row := job.Src[0][y*job.SrcStride[0]:]
		dst := job.dstRow(y)
		for x := 0; x < job.Width; x++ {
			group := (x &^ 1) * 2
			lum := group + yOff
			if x&1 == 1 {
				lum += 2
			}
			u := int32(row[group+uOff])
			v := int32(row[group+vOff])
			r, g, b := yuvPixel(c, int32(row[lum]), u, v)
			lay.store(dst[x*lay.bpp:], r, g, b)
		}
	}
}
