package slotpool

import (
	"testing"
	"unsafe"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

type entity24 struct {
	A, B, C uint64
}

func TestRegistry(t *testing.T) {
	Convey("Given a registry with pools of different types", t, func() {
		r := NewRegistry()
		small := NewPool[entity16]("small", 10, WithRegistry(r))
		large := NewPool[entity24]("large", 20, WithRegistry(r))
		odd := NewPool[padded]("odd", 3, WithRegistry(r))

		Convey("tables should be listed by name", func() {
			tables := r.Tables()
			So(len(tables), ShouldEqual, 3)
			So(tables[0].Name(), ShouldEqual, "large")
			So(tables[1].Name(), ShouldEqual, "odd")
			So(tables[2].Name(), ShouldEqual, "small")
		})

		Convey("the lookup table should be sorted by base address in descending order", func() {
			for i := 1; i < len(r.lookupTable); i++ {
				So(r.lookupTable[i-1].Base(), ShouldBeGreaterThan, r.lookupTable[i].Base())
			}
		})

		Convey("every slot address should be located in its table", func() {
			for id := 0; id < small.Cap(); id++ {
				tbl, got, err := r.Locate(small.Addr(id))
				So(err, ShouldBeNil)
				So(tbl.Name(), ShouldEqual, "small")
				So(got, ShouldEqual, id)
			}
			for id := 0; id < large.Cap(); id++ {
				tbl, got, err := r.Locate(uintptr(unsafe.Pointer(large.Acquire(id))))
				So(err, ShouldBeNil)
				So(tbl.Name(), ShouldEqual, "large")
				So(got, ShouldEqual, id)
			}
			tbl, got, err := r.Locate(odd.Addr(2))
			So(err, ShouldBeNil)
			So(tbl, ShouldEqual, odd)
			So(got, ShouldEqual, 2)
		})

		Convey("an address inside a slot should be an invalid id", func() {
			_, _, err := r.Locate(large.Addr(4) + 8)
			So(errors.Cause(err), ShouldEqual, ErrInvalidID)
		})

		Convey("an address outside every table should not be found", func() {
			var local entity16
			_, _, err := r.Locate(uintptr(unsafe.Pointer(&local)))
			So(errors.Cause(err), ShouldEqual, ErrNotFound)

			_, _, err = r.Locate(0)
			So(errors.Cause(err), ShouldEqual, ErrNotFound)
		})

		Convey("registering a table under a taken name should fail", func() {
			err := r.Register(NewPool[entity16]("small", 1))
			So(errors.Cause(err), ShouldEqual, ErrDuplicateName)
		})

		Convey("the dump should contain every table", func() {
			out := r.String()
			So(out, ShouldContainSubstring, "Pool: small")
			So(out, ShouldContainSubstring, "Pool: large")
			So(out, ShouldContainSubstring, "Pool: odd")
		})
	})
}
