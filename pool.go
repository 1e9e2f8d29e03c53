// Package slotpool provides fixed capacity slot tables whose slots are
// addressed by an externally assigned identity, and a zero-filling heap
// allocator for objects without one.
package slotpool

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/rs/zerolog"
)

// Pool is a fixed table of identity-addressed slots for objects of type T.
// The object with identity id always lives in the same slot, at
// Base() + id*Stride(), from Acquire until Release.
//
// A Pool is meant to be created once per type, usually as a package level
// variable, and is never resized. It does no locking: all calls must come
// from the same goroutine, or be serialised by the caller.
//
// Every broken precondition (identity out of range, acquiring a live slot,
// releasing a free one, a pointer that is not a slot) panics with an error
// whose cause is one of the package's sentinel errors.
type Pool[T any] struct {
	name       string
	slab       *slab[T]
	free       freeList
	poison     bool
	poisonByte byte
	log        zerolog.Logger
	stats      Stats
}

// Stats counts the slot transitions a pool has performed.
type Stats struct {
	Acquires uint64
	Releases uint64
}

// NewPool creates a pool named name with capacity slots for objects of type
// T. All slots start free. It panics when capacity is not positive or T has
// zero size, since identities could then not be told apart by address.
func NewPool[T any](name string, capacity int, opts ...Option) *Pool[T] {
	cfg := buildConfig(opts)

	var zero T
	if unsafe.Sizeof(zero) == 0 {
		assertf(ErrSizeError, "pool %s: element type %s has zero size", name, typeOf[T]())
	}
	if capacity <= 0 {
		assertf(ErrSizeError, "pool %s: capacity %d", name, capacity)
	}

	p := &Pool[T]{
		name:       name,
		slab:       newSlab[T](uint(capacity)),
		free:       newFreeList(uint(capacity)),
		poisonByte: cfg.PoisonByte,
		log:        cfg.Logger.With().Str("pool", name).Logger(),
	}

	if cfg.Poison {
		switch {
		case !p.slab.raw:
			p.log.Warn().Str("type", typeOf[T]().String()).Msg("poisoning disabled for pointer-bearing type")
		case cfg.PoisonByte == 0:
			p.log.Warn().Msg("poisoning disabled for zero poison byte")
		default:
			p.poison = true
			for i := uint(0); i < p.slab.capacity(); i++ {
				p.slab.poison(i, p.poisonByte)
			}
		}
	}

	if cfg.Registry != nil {
		if err := cfg.Registry.Register(p); err != nil {
			panic(err)
		}
	}

	p.log.Debug().
		Int("capacity", capacity).
		Uint64("stride", uint64(p.slab.stride)).
		Bool("poison", p.poison).
		Msg("pool created")

	return p
}

// index validates id against the capacity and converts it to a slot index
func (p *Pool[T]) index(id int, op string) uint {
	if id < 0 || id >= p.Cap() {
		assertf(ErrOutOfRange, "pool %s: %s %d (capacity %d)", p.name, op, id, p.Cap())
	}
	return uint(id)
}

// Acquire marks the slot of identity id live and returns it zero-filled, for
// the caller to construct its object in place. It panics if id is out of
// range or the slot is already live.
func (p *Pool[T]) Acquire(id int) *T {
	idx := p.index(id, "acquire")
	if p.free.isUsed(idx) {
		assertf(ErrAlreadyUsed, "pool %s: acquire %d", p.name, id)
	}

	// a free slot that lost its pattern was written through a stale pointer
	if p.poison && !p.slab.poisoned(idx, p.poisonByte) {
		assertf(ErrPoisoned, "pool %s: acquire %d", p.name, id)
	}

	p.free.setUsed(idx)
	p.slab.zero(idx)
	p.stats.Acquires++

	p.log.Debug().Int("id", id).Msg("++")
	return p.slab.getObj(idx)
}

// Release returns the slot of identity id to the pool. The caller must have
// finished tearing its object down; the slot is zero-filled and, with
// poisoning enabled, filled with the poison pattern until the next Acquire.
// Only an unpoisoned pool leaves the released bytes all zero; a poisoned one
// holds the pattern instead.
func (p *Pool[T]) Release(id int) {
	p.release(p.index(id, "release"), "release")
}

// ReleasePtr releases the slot obj points at. The identity is recovered from
// the pointer's offset to the table base, so obj must be exactly a pointer
// returned by Acquire.
func (p *Pool[T]) ReleasePtr(obj *T) {
	idx, ok := p.slab.getObjIdx(uintptr(unsafe.Pointer(obj)))
	if !ok {
		assertf(ErrInvalidID, "pool %s: release %p", p.name, obj)
	}
	p.release(idx, "release")
}

// ReleaseAt releases identity id, checking that obj is the object stored
// under it.
func (p *Pool[T]) ReleaseAt(id int, obj *T) {
	idx := p.index(id, "release")
	if !p.free.isUsed(idx) {
		assertf(ErrNotUsed, "pool %s: release %d", p.name, id)
	}
	if got, ok := p.slab.getObjIdx(uintptr(unsafe.Pointer(obj))); !ok || got != idx {
		assertf(ErrInvalidID, "pool %s: release %d with %p", p.name, id, obj)
	}
	p.release(idx, "release")
}

func (p *Pool[T]) release(idx uint, op string) {
	if !p.free.isUsed(idx) {
		assertf(ErrNotUsed, "pool %s: %s %d", p.name, op, idx)
	}

	p.free.setFree(idx)
	p.slab.zero(idx)
	if p.poison {
		p.slab.poison(idx, p.poisonByte)
	}
	p.stats.Releases++

	p.log.Debug().Uint("id", idx).Msg("--")
}

// Get returns the live object with identity id. Free slots are reported as
// absent rather than handing out their memory.
func (p *Pool[T]) Get(id int) (*T, bool) {
	idx := p.index(id, "get")
	if !p.free.isUsed(idx) {
		return nil, false
	}
	return p.slab.getObj(idx), true
}

// IsUsed reports whether the slot of identity id is live.
func (p *Pool[T]) IsUsed(id int) bool {
	return p.free.isUsed(p.index(id, "test"))
}

// IDOf returns the identity of the slot obj points at. It does not require
// the slot to be live.
func (p *Pool[T]) IDOf(obj *T) (int, bool) {
	idx, ok := p.slab.getObjIdx(uintptr(unsafe.Pointer(obj)))
	return int(idx), ok
}

// Addr returns the fixed address of the slot of identity id.
func (p *Pool[T]) Addr(id int) uintptr {
	return p.slab.getObjAddr(p.index(id, "addr"))
}

// FirstFree returns the lowest identity whose slot is free.
func (p *Pool[T]) FirstFree() (int, bool) {
	idx, ok := p.free.getFree()
	return int(idx), ok
}

// Each calls fn for every live slot in identity order until fn returns false.
// fn may release the slot it is given.
func (p *Pool[T]) Each(fn func(id int, obj *T) bool) {
	for idx, ok := p.free.nextUsed(0); ok; idx, ok = p.free.nextUsed(idx + 1) {
		if !fn(int(idx), p.slab.getObj(idx)) {
			return
		}
	}
}

// Name returns the name the pool was created with.
func (p *Pool[T]) Name() string { return p.name }

// Cap returns the fixed number of slots.
func (p *Pool[T]) Cap() int { return int(p.slab.capacity()) }

// Len returns the number of live slots.
func (p *Pool[T]) Len() int { return int(p.free.count()) }

// Stride returns the distance in bytes between two adjacent slots.
func (p *Pool[T]) Stride() uintptr { return p.slab.stride }

// Base returns the address of the slot of identity 0.
func (p *Pool[T]) Base() uintptr { return p.slab.base }

// Stats returns the acquire and release counts so far.
func (p *Pool[T]) Stats() Stats { return p.stats }

// String renders the pool and every slot's state
func (p *Pool[T]) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "-------------------------------\n")
	fmt.Fprintf(&b, "Pool: %s (%s)\n", p.name, typeOf[T]())
	fmt.Fprintf(&b, "Poison: %t\n", p.poison)
	fmt.Fprintf(&b, "Acquires: %d Releases: %d\n", p.stats.Acquires, p.stats.Releases)
	b.WriteString(p.slab.String(p.free))
	return b.String()
}
