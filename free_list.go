package slotpool

import "github.com/bits-and-blooms/bitset"

// freeList tracks which slots of a table are live. A set bit means used.
type freeList struct {
	used *bitset.BitSet
}

func newFreeList(size uint) freeList {
	return freeList{used: bitset.New(size)}
}

func (f freeList) setUsed(id uint) {
	f.used.Set(id)
}

func (f freeList) setFree(id uint) {
	f.used.Clear(id)
}

func (f freeList) isUsed(id uint) bool {
	return f.used.Test(id)
}

func (f freeList) count() uint {
	return f.used.Count()
}

// getFree returns the position of the first free slot
// the second returned value indicates whether it found a free slot or not
func (f freeList) getFree() (uint, bool) {
	id, ok := f.used.NextClear(0)
	if !ok || id >= f.used.Len() {
		return 0, false
	}
	return id, true
}

// nextUsed returns the first used slot at or after id.
func (f freeList) nextUsed(id uint) (uint, bool) {
	return f.used.NextSet(id)
}
