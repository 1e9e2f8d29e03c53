package sim

import (
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"

	slotpool "github.com/replay/go-slot-pool"
)

func newTestWorld(seed int64) *World {
	cfg := DefaultConfig()
	cfg.Seed = seed
	cfg.PoolOpts = []slotpool.Option{slotpool.WithPoison(true)}
	return NewWorld(cfg)
}

func TestConnectDisconnect(t *testing.T) {
	Convey("Given an empty world", t, func() {
		w := newTestWorld(1)
		defer w.Close()

		Convey("connections should take the lowest free identities", func() {
			for i := 0; i < 3; i++ {
				id, err := w.Connect()
				So(err, ShouldBeNil)
				So(id, ShouldEqual, i)
				p, ok := w.Players.Get(id)
				So(ok, ShouldBeTrue)
				So(p.ID, ShouldEqual, int32(id))
				So(p.Health, ShouldEqual, int32(startHealth))
			}

			Convey("and a freed identity should be reused with a fresh player", func() {
				p, _ := w.Players.Get(1)
				p.Score = 99
				w.Disconnect(1)
				So(w.Players.IsUsed(1), ShouldBeFalse)

				id, err := w.Connect()
				So(err, ShouldBeNil)
				So(id, ShouldEqual, 1)
				again, _ := w.Players.Get(1)
				So(again, ShouldEqual, p)
				So(again.Score, ShouldEqual, int32(0))
			})
		})

		Convey("a full server should refuse connections", func() {
			for i := 0; i < MaxPlayers; i++ {
				_, err := w.Connect()
				So(err, ShouldBeNil)
			}
			_, err := w.Connect()
			So(err, ShouldEqual, ErrServerFull)
		})

		Convey("spawning an identity twice should abort", func() {
			w.Spawn(7)
			So(func() { w.Spawn(7) }, ShouldPanic)
		})

		Convey("disconnecting a free identity should abort", func() {
			defer func() {
				r := recover()
				So(r, ShouldNotBeNil)
				So(errors.Cause(r.(error)), ShouldEqual, slotpool.ErrNotUsed)
			}()
			w.Disconnect(3)
		})
	})
}

func TestProjectiles(t *testing.T) {
	Convey("Given a world with two players", t, func() {
		w := newTestWorld(2)
		defer w.Close()
		w.Spawn(0)
		w.Spawn(1)

		Convey("firing should spawn owned projectiles", func() {
			id, ok := w.Fire(0)
			So(ok, ShouldBeTrue)
			pr, ok := w.Projectiles.Get(id)
			So(ok, ShouldBeTrue)
			So(pr.Owner, ShouldEqual, int32(0))
			So(pr.Life, ShouldEqual, int32(projectileLife))

			Convey("and disconnecting the owner should remove them", func() {
				w.Fire(1)
				w.Fire(0)
				So(w.Projectiles.Len(), ShouldEqual, 3)
				w.Disconnect(0)
				So(w.Projectiles.Len(), ShouldEqual, 1)
				w.Projectiles.Each(func(_ int, pr *Projectile) bool {
					So(pr.Owner, ShouldEqual, int32(1))
					return true
				})
			})
		})

		Convey("a free player cannot fire", func() {
			_, ok := w.Fire(5)
			So(ok, ShouldBeFalse)
		})

		Convey("projectiles should expire after their life time", func() {
			w.cfg.ConnectChance = 0
			w.cfg.DisconnectChance = 0
			w.cfg.FireChance = 0
			w.Fire(0)
			for i := 0; i < projectileLife; i++ {
				w.Step()
			}
			So(w.Projectiles.Len(), ShouldEqual, 0)
			So(w.Projectiles.Stats().Releases, ShouldEqual, uint64(1))
		})
	})
}

func TestSteps(t *testing.T) {
	Convey("When running a poisoned world for many ticks", t, func() {
		w := newTestWorld(42)
		defer w.Close()

		var connected, disconnected int
		for i := 0; i < 2000; i++ {
			s := w.Step()
			connected += s.Connected
			disconnected += s.Disconnected
		}

		Convey("pool occupancy should match the churn", func() {
			So(w.Tick(), ShouldEqual, uint64(2000))
			So(w.Players.Len(), ShouldEqual, connected-disconnected)
			st := w.Players.Stats()
			So(st.Acquires-st.Releases, ShouldEqual, uint64(w.Players.Len()))
			So(w.Players.Len(), ShouldBeLessThanOrEqualTo, MaxPlayers)
		})

		Convey("every live entity should sit in the slot of its identity", func() {
			w.Players.Each(func(id int, p *Player) bool {
				So(p.ID, ShouldEqual, int32(id))
				tbl, got, err := w.Registry.Locate(w.Players.Addr(id))
				So(err, ShouldBeNil)
				So(tbl.Name(), ShouldEqual, "player")
				So(got, ShouldEqual, id)
				return true
			})
			w.Projectiles.Each(func(id int, pr *Projectile) bool {
				So(pr.ID, ShouldEqual, int32(id))
				So(w.Players.IsUsed(int(pr.Owner)), ShouldBeTrue)
				return true
			})
		})
	})

	Convey("Two worlds with the same seed should evolve identically", t, func() {
		a, b := newTestWorld(7), newTestWorld(7)
		defer a.Close()
		defer b.Close()
		for i := 0; i < 500; i++ {
			So(a.Step(), ShouldResemble, b.Step())
		}
	})
}

func TestSnapshot(t *testing.T) {
	Convey("Given a world with players", t, func() {
		w := newTestWorld(3)
		defer w.Close()

		Convey("an empty world should produce an empty snapshot", func() {
			w.Snapshot(func(buf []byte) {
				So(buf, ShouldBeNil)
			})
		})

		Convey("the snapshot should encode every live player in identity order", func() {
			w.cfg.ConnectChance = 0
			w.cfg.DisconnectChance = 0
			w.cfg.FireChance = 0
			w.Spawn(4).Score = 12
			w.Spawn(9).Score = 3
			w.Step()

			w.Snapshot(func(buf []byte) {
				So(len(buf), ShouldEqual, 8+2*playerRecordSize)
				So(binary.LittleEndian.Uint64(buf), ShouldEqual, w.Tick())

				first := DecodePlayer(buf[8:])
				second := DecodePlayer(buf[8+playerRecordSize:])
				So(first.ID, ShouldEqual, int32(4))
				So(first.Score, ShouldEqual, int32(12))
				So(second.ID, ShouldEqual, int32(9))

				p, _ := w.Players.Get(4)
				So(first.Pos, ShouldResemble, p.Pos)
			})
			So(w.heap.Len(), ShouldEqual, 0)
		})
	})
}
