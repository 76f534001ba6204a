package engine

import (
	"math/rand"
	"time"
)

// Clock предоставляет единственный источник текущего времени для движка,
// чтобы тесты могли подставлять детерминированные значения вместо time.Now.
type Clock interface {
	Now() time.Time
}

// SystemClock реализует Clock поверх системных часов.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant; useful in tests.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }

// Rand is the one seedable source of randomness the engine uses, for battle
// end-time jitter and skirmish-time jitter (the only randomness in the core).
type Rand interface {
	Intn(n int) int
}

// NewRand wraps a seeded math/rand source.
func NewRand(seed int64) Rand {
	return rand.New(rand.NewSource(seed))
}
