package slotpool

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Table is the type-erased view of a Pool that the Registry and Metrics
// work with.
type Table interface {
	Name() string
	Cap() int
	Len() int
	Stride() uintptr
	Base() uintptr
	IsUsed(id int) bool
	Stats() Stats
	String() string
}

// Registry keeps the tables of a process by name. It also keeps a lookup
// table of their base addresses, sorted in descending order and updated
// whenever a table is registered, to map any slot address back to its table
// and identity.
type Registry struct {
	tables      map[string]Table
	lookupTable []Table
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tables: make(map[string]Table),
	}
}

// Register adds t to the registry. Names must be unique.
func (r *Registry) Register(t Table) error {
	if _, ok := r.tables[t.Name()]; ok {
		return errors.Wrapf(ErrDuplicateName, "register %q", t.Name())
	}
	r.tables[t.Name()] = t

	// we keep the lookup table sorted in descending order and insert new entries at an appropriate position
	base := t.Base()
	insertAt := sort.Search(len(r.lookupTable), func(i int) bool { return r.lookupTable[i].Base() < base })
	r.lookupTable = append(r.lookupTable, nil)
	copy(r.lookupTable[insertAt+1:], r.lookupTable[insertAt:])
	r.lookupTable[insertAt] = t

	return nil
}

// Lookup returns the table registered under name.
func (r *Registry) Lookup(name string) (Table, bool) {
	t, ok := r.tables[name]
	return t, ok
}

// Tables returns all registered tables sorted by name.
func (r *Registry) Tables() []Table {
	res := make([]Table, 0, len(r.tables))
	for _, t := range r.tables {
		res = append(res, t)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name() < res[j].Name() })
	return res
}

// Locate finds the table whose storage contains addr and the identity of the
// slot starting at addr.
// On failure it returns an error wrapping ErrNotFound, or ErrInvalidID when
// addr falls inside a table but not on a slot boundary.
func (r *Registry) Locate(addr uintptr) (Table, int, error) {
	idx := sort.Search(len(r.lookupTable), func(i int) bool { return r.lookupTable[i].Base() <= addr })
	if idx >= len(r.lookupTable) {
		return nil, 0, errors.Wrapf(ErrNotFound, "locate %#x", addr)
	}

	t := r.lookupTable[idx]
	offset := addr - t.Base()
	if offset >= uintptr(t.Cap())*t.Stride() {
		return nil, 0, errors.Wrapf(ErrNotFound, "locate %#x", addr)
	}
	if offset%t.Stride() != 0 {
		return t, 0, errors.Wrapf(ErrInvalidID, "locate %#x in %s", addr, t.Name())
	}
	return t, int(offset / t.Stride()), nil
}

// String dumps every registered table.
func (r *Registry) String() string {
	var b strings.Builder
	for _, t := range r.Tables() {
		b.WriteString(t.String())
	}
	return b.String()
}
