package advisor

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Random is a goroutine-safe source for the simulated feeds
type Random struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRandom seeds a source. A zero seed uses the current time.
func NewRandom(seed uint64) *Random {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Random{r: rand.New(rand.NewPCG(seed, seed>>1|1))}
}

// Float64 returns a value in [0,1)
func (r *Random) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.r.Float64()
}

// IntN returns a value in [0,n)
func (r *Random) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.r.IntN(n)
}
