// Package buffer provides the growable, alignment-guaranteed byte buffer
// that backs allocator-owned frames.
package buffer

import (
	"fmt"
	"unsafe"
)

// Alignment is the guaranteed base-address alignment of every allocator
// buffer. 32 bytes covers the widest vector width any conversion backend
// loads or stores.
const Alignment = 32

// MaxBytes caps a single buffer. Resize requests beyond it fail cleanly
// instead of letting a corrupt size take down the process. 512 MiB is far
// above any single raw frame (8K BGRA is ~127 MiB).
const MaxBytes = 512 << 20

// Allocator owns one contiguous buffer, reused across frames to avoid
// per-frame allocation churn. It is shared by reference; the zero value is
// an empty allocator ready for use.
//
// Allocator is not safe for concurrent use. Frames serialize access through
// the pipeline's ownership rules.
type Allocator struct {
	raw  []byte // backing storage, over-allocated for alignment
	data []byte // aligned view into raw, len == Size()
}

// Resize grows or shrinks the buffer to n bytes. The buffer is reallocated
// only when n exceeds the current aligned capacity or drops below half of
// it; inside that window the existing storage is resliced, so steady-state
// capture loops allocate nothing.
//
// On failure the allocator is left empty (Size() == 0), never with a stale
// view of freed storage.
func (a *Allocator) Resize(n int) error {
	if n < 0 || n > MaxBytes {
		a.raw = nil
		a.data = nil
		return fmt.Errorf("buffer resize to %d bytes out of range", n)
	}
	if n == 0 {
		a.data = a.data[:0]
		return nil
	}

	capacity := a.alignedCap()
	if n <= capacity && n >= capacity/2 {
		a.data = a.data[:n]
		return nil
	}

	raw := make([]byte, n+Alignment-1)
	off := 0
	if rem := int(uintptr(unsafe.Pointer(&raw[0])) % Alignment); rem != 0 {
		off = Alignment - rem
	}
	a.raw = raw
	a.data = raw[off : off+n : off+n]
	return nil
}

// Data returns the aligned buffer contents. The slice is valid until the
// next Resize that reallocates.
func (a *Allocator) Data() []byte { return a.data }

// Size returns the current buffer size in bytes.
func (a *Allocator) Size() int { return len(a.data) }

// alignedCap returns the usable capacity of the current aligned view.
func (a *Allocator) alignedCap() int {
	if a.data == nil {
		return 0
	}
	return cap(a.data)
}
