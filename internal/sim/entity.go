package sim

import (
	"encoding/binary"
	"math"
	"math/rand"
)

type Vec struct {
	X, Y float32
}

func (v Vec) add(o Vec) Vec {
	return Vec{X: v.X + o.X, Y: v.Y + o.Y}
}

func (v Vec) dist2(o Vec) float32 {
	dx, dy := v.X-o.X, v.Y-o.Y
	return dx*dx + dy*dy
}

// wrap keeps v inside the arena
func (v Vec) wrap() Vec {
	return Vec{
		X: float32(math.Mod(float64(v.X)+arenaSize, arenaSize)),
		Y: float32(math.Mod(float64(v.Y)+arenaSize, arenaSize)),
	}
}

// Player is constructed in place in its pool slot. It is pointer-free so
// its slot can be poisoned while free.
type Player struct {
	ID     int32
	Health int32
	Score  int32
	Pos    Vec
	Vel    Vec
}

func (p *Player) init(id int32, pos Vec) {
	p.ID = id
	p.Health = startHealth
	p.Pos = pos
	p.Vel = Vec{X: 1, Y: 0.5}
}

func (p *Player) move() {
	p.Pos = p.Pos.add(p.Vel).wrap()
}

// damage subtracts n health and respawns the player elsewhere when it runs
// out.
func (p *Player) damage(rng *rand.Rand, n int32) {
	p.Health -= n
	if p.Health <= 0 {
		p.Health = startHealth
		p.Pos = Vec{X: rng.Float32() * arenaSize, Y: rng.Float32() * arenaSize}
	}
}

func (p *Player) destroy() {
	p.Vel = Vec{}
}

func (p *Player) encode(b []byte) {
	binary.LittleEndian.PutUint32(b[0:], uint32(p.ID))
	binary.LittleEndian.PutUint32(b[4:], uint32(p.Health))
	binary.LittleEndian.PutUint32(b[8:], uint32(p.Score))
	binary.LittleEndian.PutUint32(b[12:], math.Float32bits(p.Pos.X))
	binary.LittleEndian.PutUint32(b[16:], math.Float32bits(p.Pos.Y))
}

// DecodePlayer reads one player record written by Snapshot.
func DecodePlayer(b []byte) Player {
	return Player{
		ID:     int32(binary.LittleEndian.Uint32(b[0:])),
		Health: int32(binary.LittleEndian.Uint32(b[4:])),
		Score:  int32(binary.LittleEndian.Uint32(b[8:])),
		Pos: Vec{
			X: math.Float32frombits(binary.LittleEndian.Uint32(b[12:])),
			Y: math.Float32frombits(binary.LittleEndian.Uint32(b[16:])),
		},
	}
}

// Projectile is constructed in place in its pool slot.
type Projectile struct {
	ID    int32
	Owner int32
	Life  int32
	Pos   Vec
	Vel   Vec
}

func (pr *Projectile) init(id int32, owner *Player) {
	pr.ID = id
	pr.Owner = owner.ID
	pr.Life = projectileLife
	pr.Pos = owner.Pos
	pr.Vel = Vec{X: owner.Vel.X * 4, Y: owner.Vel.Y * 4}
}

func (pr *Projectile) move() {
	pr.Pos = pr.Pos.add(pr.Vel).wrap()
	pr.Life--
}

func (pr *Projectile) destroy() {
	pr.Life = 0
}
