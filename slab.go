package slotpool

import (
	"fmt"
	"strings"
	"unsafe"
)

// slab is the contiguous storage behind a pool: capacity slots of T laid out
// back to back, so that the address of slot id is always base + id*stride.
// It never grows, which keeps those addresses stable for the life of the
// process.
type slab[T any] struct {
	objs   []T
	base   uintptr
	stride uintptr
	// raw is true when T is pointer-free and its slots may be treated as
	// plain bytes (byte-wise zero-fill and poisoning).
	raw bool
}

// newSlab allocates storage for capacity objects of type T
func newSlab[T any](capacity uint) *slab[T] {
	objs := make([]T, capacity)
	return &slab[T]{
		objs:   objs,
		base:   uintptr(unsafe.Pointer(&objs[0])),
		stride: unsafe.Sizeof(objs[0]),
		raw:    !hasPointers(typeOf[T]()),
	}
}

func (s *slab[T]) capacity() uint {
	return uint(len(s.objs))
}

// getObj returns a pointer to the object slot at the given index
func (s *slab[T]) getObj(idx uint) *T {
	return &s.objs[idx]
}

// getObjAddr returns the address of the object slot at the given index
func (s *slab[T]) getObjAddr(idx uint) uintptr {
	return s.base + uintptr(idx)*s.stride
}

// getObjIdx takes an object address and returns the object index within
// this slab. The second value is false when the address is outside the slab
// or does not sit on a slot boundary.
func (s *slab[T]) getObjIdx(obj uintptr) (uint, bool) {
	if obj < s.base {
		return 0, false
	}
	offset := obj - s.base
	idx := offset / s.stride
	if idx >= uintptr(s.capacity()) || offset%s.stride != 0 {
		return 0, false
	}
	return uint(idx), true
}

// objBytes returns the memory of the slot at idx as a byte slice. Only valid
// for raw slabs.
func (s *slab[T]) objBytes(idx uint) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&s.objs[idx])), s.stride)
}

// zero clears every byte of the slot at idx, padding included for raw slabs.
func (s *slab[T]) zero(idx uint) {
	if s.raw {
		clear(s.objBytes(idx))
		return
	}
	var zero T
	s.objs[idx] = zero
}

func (s *slab[T]) poison(idx uint, b byte) {
	buf := s.objBytes(idx)
	for i := range buf {
		buf[i] = b
	}
}

// poisoned reports whether the slot at idx still holds the poison pattern
func (s *slab[T]) poisoned(idx uint, b byte) bool {
	for _, v := range s.objBytes(idx) {
		if v != b {
			return false
		}
	}
	return true
}

// String creates a multi-line string which illustrates the slab, marking
// each live slot with the used set
func (s *slab[T]) String(used freeList) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Slab Addr: %#x\n", s.base)
	fmt.Fprintf(&b, "Object Size: %d\n", s.stride)
	fmt.Fprintf(&b, "Object Count: %d\n", used.count())
	fmt.Fprintf(&b, "Objects Per Slab: %d\n", s.capacity())

	for i := uint(0); i < s.capacity(); i++ {
		state := "free"
		if used.isUsed(i) {
			state = "live"
		}
		fmt.Fprintf(&b, "% 4d %#x %s", i, s.getObjAddr(i), state)
		if s.raw && used.isUsed(i) {
			fmt.Fprintf(&b, " % x", s.objBytes(i))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
