package pipeline

import (
	"testing"
	"time"

	"github.com/smazurov/framegrab/internal/convert"
	"github.com/smazurov/framegrab/internal/frame"
	"github.com/smazurov/framegrab/internal/observer"
	"github.com/smazurov/framegrab/internal/pixel"
	"github.com/smazurov/framegrab/internal/source"
)

// nv12Buffer builds a black NV12 capture buffer (video range).
func nv12Buffer(w, h int, ts int64, release func()) source.Buffer {
	y := make([]byte, w*h)
	uv := make([]byte, ((w+1)&^1)*((h+1)/2))
	for i := range y {
		y[i] = 16
	}
	for i := range uv {
		uv[i] = 128
	}
	return source.Buffer{
		Planes:         [3][]byte{y, uv, nil},
		Strides:        [3]int{w, (w + 1) &^ 1, 0},
		Width:          w,
		Height:         h,
		Format:         pixel.NV12,
		TimestampNanos: ts,
		Release:        release,
	}
}

func rgbBuffer(w, h int) source.Buffer {
	data := make([]byte, w*h*3)
	for i := range data {
		data[i] = byte(i)
	}
	return source.Buffer{
		Planes:  [3][]byte{data},
		Strides: [3]int{w * 3},
		Width:   w,
		Height:  h,
		Format:  pixel.RGB24,
	}
}

func newRunning(t *testing.T, cfg Config, sink observer.Sink) *Pipeline {
	t.Helper()
	p := New(cfg, nil, sink, nil, nil)
	p.Start()
	t.Cleanup(p.Stop)
	return p
}

func TestGrabFIFOAndMonotonicIndex(t *testing.T) {
	p := newRunning(t, Config{}, nil)

	for i := 0; i < 3; i++ {
		p.Deliver(nv12Buffer(4, 2, int64(i), nil))
	}

	var last uint64
	for i := 0; i < 3; i++ {
		f := p.Grab(time.Second)
		if f == nil {
			t.Fatalf("grab %d returned no frame", i)
		}
		if f.TimestampNanos != int64(i) {
			t.Errorf("grab %d: timestamp %d, want %d (FIFO violated)", i, f.TimestampNanos, i)
		}
		if i > 0 && f.FrameIndex != last+1 {
			t.Errorf("frame index %d after %d, want strictly monotonic", f.FrameIndex, last)
		}
		last = f.FrameIndex
		f.Release()
	}
}

func TestGrabTimeout(t *testing.T) {
	p := newRunning(t, Config{}, nil)
	start := time.Now()
	if f := p.Grab(50 * time.Millisecond); f != nil {
		t.Fatal("grab returned a frame from an empty queue")
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Error("grab returned before the timeout elapsed")
	}
}

func TestGrabWhileStopped(t *testing.T) {
	p := New(Config{}, nil, nil, nil, nil)
	if f := p.Grab(time.Second); f != nil {
		t.Fatal("grab on a stopped pipeline returned a frame")
	}
}

func TestBackpressureBound(t *testing.T) {
	const bound = 4
	p := newRunning(t, Config{MaxAvailableFrames: bound, MaxCachedFrames: bound + 2}, nil)

	for i := 0; i < bound+1; i++ {
		p.Deliver(nv12Buffer(4, 2, int64(i), nil))
	}

	stats := p.Stats()
	if stats.QueueDepth != bound {
		t.Errorf("queue depth = %d, want %d", stats.QueueDepth, bound)
	}
	if stats.FramesDropped != 1 {
		t.Errorf("frames dropped = %d, want 1", stats.FramesDropped)
	}

	// The oldest frame was sacrificed; the retained set is gapless and
	// monotonic starting at index 1.
	want := uint64(1)
	for {
		f := p.Grab(10 * time.Millisecond)
		if f == nil {
			break
		}
		if f.FrameIndex != want {
			t.Errorf("retained frame index %d, want %d", f.FrameIndex, want)
		}
		want++
		f.Release()
	}
	if want != bound+1 {
		t.Errorf("retained %d frames, want %d", want-1, bound)
	}
}

func TestPoolReusesFrameIdentity(t *testing.T) {
	p := newRunning(t, Config{MaxCachedFrames: 1, MaxAvailableFrames: 2}, nil)

	p.Deliver(nv12Buffer(4, 2, 0, nil))
	f1 := p.Grab(time.Second)
	if f1 == nil {
		t.Fatal("no frame")
	}
	f1.Release() // frame has no outside holder now; pool is at capacity

	p.Deliver(nv12Buffer(4, 2, 1, nil))
	f2 := p.Grab(time.Second)
	if f2 == nil {
		t.Fatal("no frame")
	}
	defer f2.Release()

	if f1 != f2 {
		t.Error("pool at capacity allocated a new frame instead of reusing the free one")
	}
	if p.Stats().LeakEvictions != 0 {
		t.Error("reuse path recorded a leak eviction")
	}
}

func TestPoolEvictionWarnsOnHeldFrames(t *testing.T) {
	p := newRunning(t, Config{MaxCachedFrames: 1, MaxAvailableFrames: 4}, nil)

	p.Deliver(nv12Buffer(4, 2, 0, nil))
	held := p.Grab(time.Second)
	if held == nil {
		t.Fatal("no frame")
	}
	defer held.Release() // consumer keeps holding past the cache bound

	p.Deliver(nv12Buffer(4, 2, 1, nil))
	if p.Stats().LeakEvictions != 1 {
		t.Errorf("leak evictions = %d, want 1", p.Stats().LeakEvictions)
	}

	next := p.Grab(time.Second)
	if next == nil {
		t.Fatal("no frame after eviction")
	}
	if next == held {
		t.Error("evicted frame identity was reused while still held")
	}
	next.Release()
}

func TestNoOpDeliveryIsZeroCopy(t *testing.T) {
	p := newRunning(t, Config{OutputFormat: pixel.NV12}, nil)

	buf := nv12Buffer(4, 2, 0, nil)
	p.Deliver(buf)
	f := p.Grab(time.Second)
	if f == nil {
		t.Fatal("no frame")
	}
	defer f.Release()

	if &f.Data[0][0] != &buf.Planes[0][0] {
		t.Error("no-op delivery copied the luma plane")
	}
	if !f.ExternallyOwned() {
		t.Error("zero-copy frame should remain externally owned")
	}
}

func TestConvertToRGBBlack(t *testing.T) {
	p := newRunning(t, Config{OutputFormat: pixel.RGB24}, nil)

	released := false
	p.Deliver(nv12Buffer(4, 2, 0, func() { released = true }))

	if !released {
		t.Error("external release obligation did not fire after conversion copied the pixels out")
	}

	f := p.Grab(time.Second)
	if f == nil {
		t.Fatal("no frame")
	}
	defer f.Release()

	if f.Format != pixel.RGB24 {
		t.Fatalf("delivered format %s, want rgb24", f.Format)
	}
	if f.ExternallyOwned() {
		t.Error("converted frame should be allocator-owned")
	}
	for i, b := range f.Data[0][:4*2*3] {
		if b != 0 {
			t.Fatalf("pixel byte %d = %d, want 0 (video-range black)", i, b)
		}
	}
}

func TestUnsupportedDirectionDeliversOriginal(t *testing.T) {
	var observed []*observer.Error
	p := newRunning(t, Config{OutputFormat: pixel.NV12},
		observer.Func(func(e *observer.Error) { observed = append(observed, e) }))

	buf := rgbBuffer(4, 2)
	p.Deliver(buf)

	f := p.Grab(time.Second)
	if f == nil {
		t.Fatal("no frame")
	}
	defer f.Release()

	if f.Format != pixel.RGB24 {
		t.Errorf("delivered format %s, want unchanged rgb24", f.Format)
	}
	if &f.Data[0][0] != &buf.Planes[0][0] {
		t.Error("fallback delivery was not zero-copy")
	}
	if len(observed) != 1 || observed[0].Kind != observer.KindUnsupportedConversion {
		t.Errorf("expected one UNSUPPORTED_CONVERSION report, got %v", observed)
	}
}

func TestPushCallbackSuppressesEnqueue(t *testing.T) {
	p := newRunning(t, Config{}, nil)

	var pushed []uint64
	p.SetPushCallback(func(f *frame.Frame) bool {
		pushed = append(pushed, f.FrameIndex)
		return f.FrameIndex%2 == 0 // buffer even frames only
	})

	for i := 0; i < 4; i++ {
		p.Deliver(nv12Buffer(4, 2, int64(i), nil))
	}

	if len(pushed) != 4 {
		t.Fatalf("push callback ran %d times, want 4", len(pushed))
	}
	var grabbed []uint64
	for {
		f := p.Grab(10 * time.Millisecond)
		if f == nil {
			break
		}
		grabbed = append(grabbed, f.FrameIndex)
		f.Release()
	}
	if len(grabbed) != 2 || grabbed[0] != 0 || grabbed[1] != 2 {
		t.Errorf("grabbed indices %v, want [0 2]", grabbed)
	}
}

func TestPushCallbackConsumedFrameReleasesBuffer(t *testing.T) {
	p := newRunning(t, Config{}, nil)
	p.SetPushCallback(func(*frame.Frame) bool { return false })

	released := false
	p.Deliver(nv12Buffer(4, 2, 0, func() { released = true }))
	if !released {
		t.Error("fully consumed frame did not release its external buffer")
	}
}

func TestFlipOnlyRGB(t *testing.T) {
	p := newRunning(t, Config{OutputFormat: pixel.RGB24, OutputOrientation: frame.BottomUp}, nil)

	buf := rgbBuffer(2, 2)
	topRow := append([]byte(nil), buf.Planes[0][:6]...)
	p.Deliver(buf)

	f := p.Grab(time.Second)
	if f == nil {
		t.Fatal("no frame")
	}
	defer f.Release()

	if f.Orientation != frame.BottomUp {
		t.Fatalf("orientation %s, want bottom-up", f.Orientation)
	}
	if f.ExternallyOwned() {
		t.Error("flipped frame should be allocator-owned")
	}
	// Original top row is now the last row in memory.
	got := f.Data[0][6:12]
	for i := range topRow {
		if got[i] != topRow[i] {
			t.Fatalf("flipped row byte %d = %d, want %d", i, got[i], topRow[i])
		}
	}
}

func TestGrabUnblocksOnStop(t *testing.T) {
	p := New(Config{}, nil, nil, nil, nil)
	p.Start()

	done := make(chan *frame.Frame, 1)
	go func() { done <- p.Grab(5 * time.Second) }()

	time.Sleep(20 * time.Millisecond)
	p.Stop()

	select {
	case f := <-done:
		if f != nil {
			t.Error("grab returned a frame after stop")
		}
	case <-time.After(time.Second):
		t.Fatal("grab did not unblock on stop")
	}
}

func TestDeliverAfterStopReleasesBuffer(t *testing.T) {
	p := New(Config{}, nil, nil, nil, nil)
	released := false
	p.Deliver(nv12Buffer(4, 2, 0, func() { released = true }))
	if !released {
		t.Error("buffer delivered to a stopped pipeline was not released")
	}
}

func TestBackendPolicyRoundTrip(t *testing.T) {
	p := newRunning(t, Config{}, nil)
	p.SetBackendPolicy(convert.Policy{Mode: convert.PolicyForceScalar})
	if got := p.Stats().Backend; got != convert.ScalarName {
		t.Errorf("backend = %q, want scalar", got)
	}
}
