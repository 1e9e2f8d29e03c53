// Package sim is a small game world whose entities live in identity
// addressed slot pools: players keyed by their connection slot and
// projectiles keyed by a spawn identity.
package sim

import (
	"encoding/binary"
	"math/rand"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	slotpool "github.com/replay/go-slot-pool"
)

const (
	MaxPlayers     = 64
	MaxProjectiles = 256

	// projectileLife is how many ticks a projectile flies before expiring.
	projectileLife = 30
	arenaSize      = 1000
	startHealth    = 100
)

// ErrServerFull is returned by Connect when every player slot is live.
var ErrServerFull = errors.New("sim: server full")

// World owns the entity pools and advances them tick by tick. It is driven
// from a single goroutine.
type World struct {
	Players     *slotpool.Pool[Player]
	Projectiles *slotpool.Pool[Projectile]
	Registry    *slotpool.Registry

	cfg  Config
	heap *slotpool.HeapAllocator
	rng  *rand.Rand
	tick uint64
	log  zerolog.Logger
}

// Config tunes a World.
type Config struct {
	Seed int64
	// ConnectChance and DisconnectChance are per-tick probabilities.
	ConnectChance    float64
	DisconnectChance float64
	// FireChance is the per-player, per-tick probability of shooting.
	FireChance float64
	Logger     zerolog.Logger
	PoolOpts   []slotpool.Option
}

// DefaultConfig returns a config with moderate churn.
func DefaultConfig() Config {
	return Config{
		Seed:             1,
		ConnectChance:    0.3,
		DisconnectChance: 0.05,
		FireChance:       0.1,
		Logger:           zerolog.Nop(),
	}
}

// NewWorld creates a world with empty pools registered in a fresh registry.
func NewWorld(cfg Config) *World {
	reg := slotpool.NewRegistry()
	opts := append([]slotpool.Option{
		slotpool.WithLogger(cfg.Logger),
		slotpool.WithRegistry(reg),
	}, cfg.PoolOpts...)

	return &World{
		Players:     slotpool.NewPool[Player]("player", MaxPlayers, opts...),
		Projectiles: slotpool.NewPool[Projectile]("projectile", MaxProjectiles, opts...),
		Registry:    reg,
		cfg:         cfg,
		heap:        slotpool.NewHeapAllocator(slotpool.WithLogger(cfg.Logger)),
		rng:         rand.New(rand.NewSource(cfg.Seed)),
		log:         cfg.Logger,
	}
}

// Close releases the world's heap memory.
func (w *World) Close() error {
	return w.heap.Close()
}

// Tick returns the number of completed steps.
func (w *World) Tick() uint64 {
	return w.tick
}

// Connect assigns the lowest free player identity and spawns a player there.
func (w *World) Connect() (int, error) {
	id, ok := w.Players.FirstFree()
	if !ok {
		return 0, ErrServerFull
	}
	w.Spawn(id)
	return id, nil
}

// Spawn creates the player with identity id. The identity must be free.
func (w *World) Spawn(id int) *Player {
	p := w.Players.Acquire(id)
	p.init(int32(id), Vec{
		X: w.rng.Float32() * arenaSize,
		Y: w.rng.Float32() * arenaSize,
	})
	w.log.Debug().Int("player", id).Uint64("tick", w.tick).Msg("player connected")
	return p
}

// Disconnect removes the player with identity id together with every
// projectile it owns.
func (w *World) Disconnect(id int) {
	w.Projectiles.Each(func(pid int, pr *Projectile) bool {
		if pr.Owner == int32(id) {
			pr.destroy()
			w.Projectiles.Release(pid)
		}
		return true
	})

	p, ok := w.Players.Get(id)
	if !ok {
		panic(errors.Wrapf(slotpool.ErrNotUsed, "sim: disconnect %d", id))
	}
	score := p.Score
	p.destroy()
	w.Players.ReleaseAt(id, p)
	w.log.Debug().Int("player", id).Int32("score", score).Msg("player disconnected")
}

// Fire spawns a projectile for the live player owner. It reports false when
// every projectile slot is taken.
func (w *World) Fire(owner int) (int, bool) {
	p, ok := w.Players.Get(owner)
	if !ok {
		return 0, false
	}
	id, ok := w.Projectiles.FirstFree()
	if !ok {
		return 0, false
	}
	pr := w.Projectiles.Acquire(id)
	pr.init(int32(id), p)
	return id, true
}

// TickStats summarises one step.
type TickStats struct {
	Tick         uint64
	Connected    int
	Disconnected int
	Fired        int
	Expired      int
	Hits         int
}

// Step advances the world by one tick, applying random churn.
func (w *World) Step() TickStats {
	w.tick++
	stats := TickStats{Tick: w.tick}

	if w.rng.Float64() < w.cfg.ConnectChance {
		if _, err := w.Connect(); err == nil {
			stats.Connected++
		}
	}

	var leaving []int
	w.Players.Each(func(id int, p *Player) bool {
		p.move()
		if w.rng.Float64() < w.cfg.DisconnectChance {
			leaving = append(leaving, id)
		} else if w.rng.Float64() < w.cfg.FireChance {
			if _, ok := w.Fire(id); ok {
				stats.Fired++
			}
		}
		return true
	})

	w.Projectiles.Each(func(id int, pr *Projectile) bool {
		pr.move()
		if victim := w.hit(pr); victim != nil {
			victim.damage(w.rng, 10)
			if shooter, ok := w.Players.Get(int(pr.Owner)); ok {
				shooter.Score++
			}
			pr.Life = 0
			stats.Hits++
		}
		if pr.Life <= 0 {
			pr.destroy()
			w.Projectiles.ReleasePtr(pr)
			stats.Expired++
		}
		return true
	})

	for _, id := range leaving {
		w.Disconnect(id)
		stats.Disconnected++
	}

	return stats
}

// hit returns a live player other than the owner that pr is touching.
func (w *World) hit(pr *Projectile) *Player {
	var victim *Player
	w.Players.Each(func(id int, p *Player) bool {
		if int32(id) != pr.Owner && p.Pos.dist2(pr.Pos) < 4 {
			victim = p
			return false
		}
		return true
	})
	return victim
}

// playerRecordSize is the wire size of one player in a snapshot: id,
// health, score and position.
const playerRecordSize = 4 + 4 + 4 + 4 + 4

// Snapshot encodes every live player into a buffer drawn from the heap
// allocator and hands it to fn. The buffer is released when fn returns and
// must not be retained.
func (w *World) Snapshot(fn func(buf []byte)) {
	n := w.Players.Len()
	if n == 0 {
		fn(nil)
		return
	}

	buf := w.heap.Allocate(8 + n*playerRecordSize)
	defer w.heap.Release(buf)

	binary.LittleEndian.PutUint64(buf, w.tick)
	off := 8
	w.Players.Each(func(id int, p *Player) bool {
		p.encode(buf[off : off+playerRecordSize])
		off += playerRecordSize
		return true
	})
	fn(buf)
}
