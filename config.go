package slotpool

import "github.com/rs/zerolog"

// Config provides a PoolConfig with default settings.
var Config = NewConfig()

// PoolConfig is used by pools and the heap allocator when creating a new
// instance. Individual settings can be overridden with Options.
type PoolConfig struct {
	// Poison fills free slots with PoisonByte and verifies the pattern on
	// the next acquire, catching writes through stale pointers.
	Poison     bool
	PoisonByte byte
	Logger     zerolog.Logger
	Registry   *Registry
}

// NewConfig returns a new pool configuration with default settings.
// Poisoning defaults to on only in builds tagged slotpooldebug.
func NewConfig() PoolConfig {
	return PoolConfig{
		Poison:     poisonByDefault,
		PoisonByte: 0xa5,
		Logger:     zerolog.Nop(),
	}
}

// Option overrides a single PoolConfig setting.
type Option func(*PoolConfig)

// WithPoison turns free-slot poisoning on or off.
func WithPoison(enabled bool) Option {
	return func(c *PoolConfig) {
		c.Poison = enabled
	}
}

// WithPoisonByte sets the byte free slots are filled with. It must not be
// zero, otherwise a freshly released slot is indistinguishable from a
// poisoned one.
func WithPoisonByte(b byte) Option {
	return func(c *PoolConfig) {
		c.PoisonByte = b
	}
}

// WithLogger sets the logger slot transitions are reported to.
func WithLogger(l zerolog.Logger) Option {
	return func(c *PoolConfig) {
		c.Logger = l
	}
}

// WithRegistry registers the pool in r as part of its construction.
func WithRegistry(r *Registry) Option {
	return func(c *PoolConfig) {
		c.Registry = r
	}
}

func buildConfig(opts []Option) PoolConfig {
	cfg := Config
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
