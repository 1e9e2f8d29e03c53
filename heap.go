package slotpool

import (
	"unsafe"

	"github.com/rs/zerolog"
	"modernc.org/memory"
)

// HeapAllocator hands out zero-filled memory from a general purpose
// allocator for objects that have no identity constraint. The memory lives
// outside the Go heap, so it must only ever hold pointer-free data.
//
// Like Pool it is not safe for concurrent use. Failures to allocate and
// releases of memory it did not hand out panic.
type HeapAllocator struct {
	mem  memory.Allocator
	live map[uintptr]int
	log  zerolog.Logger
}

// NewHeapAllocator returns an allocator with no live allocations.
func NewHeapAllocator(opts ...Option) *HeapAllocator {
	cfg := buildConfig(opts)
	return &HeapAllocator{
		live: make(map[uintptr]int),
		log:  cfg.Logger.With().Str("allocator", "heap").Logger(),
	}
}

// Allocate returns size zero-filled bytes.
func (h *HeapAllocator) Allocate(size int) []byte {
	return unsafe.Slice((*byte)(h.alloc(size)), size)
}

// Release returns b, which must be a slice returned by Allocate.
func (h *HeapAllocator) Release(b []byte) {
	if len(b) == 0 {
		assertf(ErrForeignPointer, "heap: release of empty slice")
	}
	h.free(unsafe.Pointer(&b[0]))
}

// Len returns the number of live allocations.
func (h *HeapAllocator) Len() int {
	return len(h.live)
}

// Close returns all memory to the operating system. Any outstanding
// allocation becomes invalid.
func (h *HeapAllocator) Close() error {
	h.live = make(map[uintptr]int)
	return h.mem.Close()
}

func (h *HeapAllocator) alloc(size int) unsafe.Pointer {
	if size <= 0 {
		assertf(ErrSizeError, "heap: allocate %d bytes", size)
	}

	p, err := h.mem.UnsafeCalloc(size)
	if err != nil {
		assertf(ErrAllocFailed, "heap: allocate %d bytes: %v", size, err)
	}
	h.live[uintptr(p)] = size

	h.log.Debug().Int("size", size).Msg("++")
	return p
}

func (h *HeapAllocator) free(p unsafe.Pointer) {
	size, ok := h.live[uintptr(p)]
	if !ok {
		assertf(ErrForeignPointer, "heap: release %p", p)
	}
	delete(h.live, uintptr(p))

	if err := h.mem.UnsafeFree(p); err != nil {
		assertf(ErrForeignPointer, "heap: release %p: %v", p, err)
	}

	h.log.Debug().Int("size", size).Msg("--")
}

// New allocates a zero value of T from h. T must be pointer-free and not
// zero-sized.
func New[T any](h *HeapAllocator) *T {
	var zero T
	if unsafe.Sizeof(zero) == 0 {
		assertf(ErrSizeError, "heap: new %s", typeOf[T]())
	}
	if hasPointers(typeOf[T]()) {
		assertf(ErrPointerType, "heap: new %s", typeOf[T]())
	}
	return (*T)(h.alloc(int(unsafe.Sizeof(zero))))
}

// Delete releases an object obtained from New. Any teardown of obj must
// have happened before.
func Delete[T any](h *HeapAllocator, obj *T) {
	h.free(unsafe.Pointer(obj))
}
