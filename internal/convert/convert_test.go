package convert

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/smazurov/framegrab/internal/observer"
	"github.com/smazurov/framegrab/internal/pixel"
)

func TestCoefficientDerivation(t *testing.T) {
	tests := []struct {
		color Colorimetry
		want  Coefficients
	}{
		{Colorimetry{BT601, false}, Coefficients{CY: 75, CR: 102, CGU: 25, CGV: 52, CB: 129, Offset: 16}},
		{Colorimetry{BT601, true}, Coefficients{CY: 64, CR: 90, CGU: 22, CGV: 46, CB: 113, Offset: 0}},
		{Colorimetry{BT709, false}, Coefficients{CY: 75, CR: 115, CGU: 14, CGV: 34, CB: 135, Offset: 16}},
		{Colorimetry{BT709, true}, Coefficients{CY: 64, CR: 101, CGU: 12, CGV: 30, CB: 119, Offset: 0}},
	}
	for _, tt := range tests {
		if got := tt.color.Coefficients(); got != tt.want {
			t.Errorf("%s: coefficients = %+v, want %+v", tt.color, got, tt.want)
		}
	}
}

// fillYUV populates tightly packed source planes with deterministic
// pseudo-random samples.
func fillYUV(t *testing.T, format pixel.Format, w, h int, seed int64) ([3][]byte, [3]int) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	var planes [3][]byte
	var strides [3]int
	for p := 0; p < format.PlaneCount(); p++ {
		strides[p] = format.PlaneStride(p, w)
		planes[p] = make([]byte, strides[p]*format.PlaneHeight(p, h))
		rng.Read(planes[p])
	}
	return planes, strides
}

func runBackend(t *testing.T, name string, job Job) []byte {
	t.Helper()
	b, ok := lookup(name)
	if !ok {
		t.Fatalf("backend %q not registered", name)
	}
	job.Dst = make([]byte, job.DstFormat.FrameSize(job.Width, abs(job.Height)))
	job.DstStride = job.DstFormat.PlaneStride(0, job.Width)
	if err := job.validate(); err != nil {
		t.Fatalf("invalid job: %v", err)
	}
	if err := b.Run(&job); err != nil {
		t.Fatalf("backend %s: %v", name, err)
	}
	return job.Dst
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Every backend must reproduce the scalar kernel byte for byte, for every
// matrix/range combination, every source layout, every RGB output, and
// widths that leave a remainder tail.
func TestBackendsMatchScalar(t *testing.T) {
	sources := []pixel.Format{pixel.NV12, pixel.I420, pixel.YUYV, pixel.UYVY}
	dests := []pixel.Format{pixel.RGB24, pixel.BGR24, pixel.RGBA32, pixel.BGRA32}
	colors := []Colorimetry{
		{BT601, false}, {BT601, true}, {BT709, false}, {BT709, true},
	}
	sizes := []struct{ w, h int }{{16, 8}, {17, 8}, {16, 7}, {5, 3}, {1, 1}}

	for _, info := range Backends() {
		if info.Name == ScalarName || !info.Available {
			continue
		}
		for _, src := range sources {
			for _, dst := range dests {
				for _, color := range colors {
					for _, size := range sizes {
						for _, height := range []int{size.h, -size.h} {
							planes, strides := fillYUV(t, src, size.w, size.h, 7)
							job := Job{
								Src: planes, SrcStride: strides,
								Width: size.w, Height: height,
								Color: color, SrcFormat: src, DstFormat: dst,
							}
							want := runBackend(t, ScalarName, job)
							got := runBackend(t, info.Name, job)
							if !bytes.Equal(want, got) {
								t.Errorf("%s: %s→%s %s %dx%d: output differs from scalar",
									info.Name, src, dst, color, size.w, height)
							}
						}
					}
				}
			}
		}
	}
}

// A black NV12 image in video range must convert to all-zero RGB bytes
// under every backend.
func TestVideoRangeBlack(t *testing.T) {
	y := bytes.Repeat([]byte{16}, 4*2)
	uv := bytes.Repeat([]byte{128}, 4)
	job := Job{
		Src:       [3][]byte{y, uv, nil},
		SrcStride: [3]int{4, 4, 0},
		Width:     4, Height: 2,
		Color:     Colorimetry{BT601, false},
		SrcFormat: pixel.NV12,
		DstFormat: pixel.RGB24,
	}
	for _, info := range Backends() {
		if !info.Available {
			continue
		}
		out := runBackend(t, info.Name, job)
		for i, b := range out {
			if b != 0 {
				t.Fatalf("%s: byte %d = %d, want 0", info.Name, i, b)
			}
		}
	}
}

func TestNegativeHeightFlips(t *testing.T) {
	const w, h = 6, 4
	planes, strides := fillYUV(t, pixel.I420, w, h, 11)
	job := Job{
		Src: planes, SrcStride: strides,
		Width: w, Height: h,
		Color:     Colorimetry{BT601, false},
		SrcFormat: pixel.I420, DstFormat: pixel.RGB24,
	}
	topDown := runBackend(t, ScalarName, job)
	job.Height = -h
	bottomUp := runBackend(t, ScalarName, job)

	stride := pixel.RGB24.PlaneStride(0, w)
	for y := 0; y < h; y++ {
		a := topDown[y*stride : (y+1)*stride]
		b := bottomUp[(h-1-y)*stride : (h-y)*stride]
		if !bytes.Equal(a, b) {
			t.Fatalf("row %d not mirrored", y)
		}
	}
}

func TestFlipRowsInvolution(t *testing.T) {
	const stride, rows = 12, 5
	src := make([]byte, stride*rows)
	rand.New(rand.NewSource(3)).Read(src)

	once := make([]byte, len(src))
	twice := make([]byte, len(src))
	FlipRows(once, stride, src, stride, stride, rows)
	FlipRows(twice, stride, once, stride, stride, rows)

	if !bytes.Equal(src, twice) {
		t.Error("flipping twice did not reproduce the original row order")
	}
	if bytes.Equal(src, once) {
		t.Error("single flip left row order unchanged")
	}
}

func TestShuffle(t *testing.T) {
	engine := NewEngine(nil, nil)

	// RGB24 → BGRA32: swap order, synthesize opaque alpha.
	src := []byte{1, 2, 3, 4, 5, 6}
	dst := make([]byte, 8)
	job := &Job{
		Src:       [3][]byte{src},
		SrcStride: [3]int{6},
		Dst:       dst, DstStride: 8,
		Width: 2, Height: 1,
		SrcFormat: pixel.RGB24, DstFormat: pixel.BGRA32,
	}
	if err := engine.Convert(job); err != nil {
		t.Fatal(err)
	}
	want := []byte{3, 2, 1, 255, 6, 5, 4, 255}
	if !bytes.Equal(dst, want) {
		t.Errorf("RGB24→BGRA32 = %v, want %v", dst, want)
	}

	// BGRA32 → RGB24 drops alpha silently.
	back := make([]byte, 6)
	job = &Job{
		Src:       [3][]byte{dst},
		SrcStride: [3]int{8},
		Dst:       back, DstStride: 6,
		Width: 2, Height: 1,
		SrcFormat: pixel.BGRA32, DstFormat: pixel.RGB24,
	}
	if err := engine.Convert(job); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(back, src) {
		t.Errorf("BGRA32→RGB24 = %v, want %v", back, src)
	}
}

func TestUnsupportedDirections(t *testing.T) {
	engine := NewEngine(nil, nil)
	rgbToYUV := &Job{
		Src:       [3][]byte{make([]byte, 12)},
		SrcStride: [3]int{12},
		Width:     4, Height: 1,
		SrcFormat: pixel.RGB24, DstFormat: pixel.NV12,
	}
	if err := engine.Convert(rgbToYUV); err != ErrUnsupportedConversion {
		t.Errorf("RGB→YUV: err = %v, want ErrUnsupportedConversion", err)
	}

	yuvToYUV := &Job{
		SrcFormat: pixel.NV12, DstFormat: pixel.I420,
		Width: 4, Height: 2,
	}
	if err := engine.Convert(yuvToYUV); err != ErrUnsupportedConversion {
		t.Errorf("YUV→YUV: err = %v, want ErrUnsupportedConversion", err)
	}
}

func TestPolicyFallback(t *testing.T) {
	var observed []*observer.Error
	engine := NewEngine(observer.Func(func(e *observer.Error) { observed = append(observed, e) }), nil)

	engine.SetPolicy(Policy{Mode: PolicyForceBackend, Backend: "no-such-backend"})
	if engine.Policy().Mode != PolicyAuto {
		t.Error("unavailable forced backend did not fall back to automatic policy")
	}
	if len(observed) != 1 || observed[0].Kind != observer.KindBackendUnavailable {
		t.Errorf("expected one BACKEND_UNAVAILABLE report, got %v", observed)
	}

	engine.SetPolicy(Policy{Mode: PolicyForceScalar})
	if engine.BackendName() != ScalarName {
		t.Errorf("forced scalar selected %q", engine.BackendName())
	}
}
