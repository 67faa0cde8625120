package client

import (
	"math/rand"
	"sync"
	"time"
)

// Clock abstracts timer scheduling so tests can drive time manually
// instead of sleeping through real countdowns and grace periods.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a cancelable one-shot timer handle.
type Timer interface {
	Stop() bool
}

// RandomSource abstracts the randomness used by the bot opponent.
type RandomSource interface {
	Intn(n int) int
	Bool() bool
}

type realClock struct{}

// NewClock returns a Clock backed by the time package.
func NewClock() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomSource returns a RandomSource seeded from the current time.
func NewRandomSource() RandomSource {
	return &lockedRand{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (r *lockedRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(n)
}

func (r *lockedRand) Bool() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(2) == 0
}
