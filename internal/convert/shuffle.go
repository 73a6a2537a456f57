package convert

import "github.com/smazurov/framegrab/internal/pixel"

// Channel-reorder-only conversions (RGB family ↔ RGB family) bypass the
// colorimetry backends entirely: they permute or duplicate channels per a
// small per-pixel index map. Alpha is synthesized as opaque when the
// destination adds a channel the source lacks, and dropped silently when
// it removes one.

const synthAlpha = -1

// shuffleMap returns, per destination channel position, the source byte
// index to copy from, or synthAlpha to write 255.
func shuffleMap(src, dst pixel.Format) [4]int {
	s := layoutOf(src)
	d := layoutOf(dst)
	var m [4]int
	m[d.r] = s.r
	m[d.g] = s.g
	m[d.b] = s.b
	if d.alpha >= 0 {
		if s.alpha >= 0 {
			m[d.alpha] = s.alpha
		} else {
			m[d.alpha] = synthAlpha
		}
	}
	return m
}

// shuffleRun performs an RGB→RGB reorder. Height follows the signed
// convention of Job.
func shuffleRun(job *Job) error {
	if err := job.validate(); err != nil {
		return err
	}
	m := shuffleMap(job.SrcFormat, job.DstFormat)
	sbpp := job.SrcFormat.BytesPerPixel()
	dbpp := job.DstFormat.BytesPerPixel()
	h, _ := job.rows()

	for y := 0; y < h; y++ {
		src := job.Src[0][y*job.SrcStride[0]:]
		dst := job.dstRow(y)
		for x := 0; x < job.Width; x++ {
			sp := src[x*sbpp:]
			dp := dst[x*dbpp:]
			for ch := 0; ch < dbpp; ch++ {
				if m[ch] == synthAlpha {
					dp[ch] = 255
				} else {
					dp[ch] = sp[m[ch]]
				}
			}
		}
	}
	return nil
}

// FlipRows performs a row-reversing copy: row i of src becomes row
// height-1-i of dst. No pixel math; used for flip-only delivery of
// RGB-family frames.
func FlipRows(dst []byte, dstStride int, src []byte, srcStride, rowBytes, height int) {
	for y := 0; y < height; y++ {
		d := dst[(height-1-y)*dstStride:]
		copy(d[:rowBytes], src[y*srcStride:])
	}
}
