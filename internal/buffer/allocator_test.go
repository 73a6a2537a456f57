package buffer

import (
	"testing"
	"unsafe"
)

func addr(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}

func TestResizeAlignment(t *testing.T) {
	var a Allocator
	for _, n := range []int{1, 31, 32, 33, 4096, 1920 * 1080 * 4} {
		if err := a.Resize(n); err != nil {
			t.Fatalf("Resize(%d): %v", n, err)
		}
		if a.Size() != n {
			t.Fatalf("Resize(%d): Size = %d", n, a.Size())
		}
		if addr(a.Data())%Alignment != 0 {
			t.Errorf("Resize(%d): base address %#x not %d-byte aligned", n, addr(a.Data()), Alignment)
		}
	}
}

func TestResizeHysteresis(t *testing.T) {
	var a Allocator
	if err := a.Resize(1000); err != nil {
		t.Fatal(err)
	}
	base := addr(a.Data())

	// Shrinking to just above half reuses the buffer.
	if err := a.Resize(500); err != nil {
		t.Fatal(err)
	}
	if addr(a.Data()) != base {
		t.Error("shrink within hysteresis window reallocated")
	}

	// Growing back within capacity reuses it too.
	if err := a.Resize(900); err != nil {
		t.Fatal(err)
	}
	if addr(a.Data()) != base {
		t.Error("grow within capacity reallocated")
	}

	// Dropping below half reallocates.
	if err := a.Resize(100); err != nil {
		t.Fatal(err)
	}
	if a.Size() != 100 {
		t.Fatalf("Size = %d after shrink", a.Size())
	}

	// Growing beyond capacity reallocates.
	if err := a.Resize(10000); err != nil {
		t.Fatal(err)
	}
	if a.Size() != 10000 {
		t.Fatalf("Size = %d after grow", a.Size())
	}
}

func TestResizeFailureLeavesEmpty(t *testing.T) {
	var a Allocator
	if err := a.Resize(64); err != nil {
		t.Fatal(err)
	}
	if err := a.Resize(-1); err == nil {
		t.Fatal("expected error for negative size")
	}
	if a.Size() != 0 || a.Data() != nil {
		t.Error("failed resize did not leave the allocator empty")
	}

	if err := a.Resize(MaxBytes + 1); err == nil {
		t.Fatal("expected error for oversized request")
	}
	if a.Size() != 0 {
		t.Error("failed oversized resize did not leave the allocator empty")
	}
}

func TestResizeZero(t *testing.T) {
	var a Allocator
	if err := a.Resize(0); err != nil {
		t.Fatal(err)
	}
	if a.Size() != 0 {
		t.Errorf("Size = %d, want 0", a.Size())
	}
}
