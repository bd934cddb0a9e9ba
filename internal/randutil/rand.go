package randutil

import (
	"hash/fnv"
	rand "math/rand/v2"
)

const (
	goldenRatio64 = 0x9e3779b97f4a7c15
)

// New returns a *rand.Rand seeded deterministically from the provided int64.
// The helper centralises how we derive the two 64-bit seeds required by rand/v2
// so that all call sites get reproducible sequences.
func New(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))
}

// CardSeed derives a stable seed for a cartela's card grid from the room
// instance id and the cartela number. The same pair always yields the same
// seed, so a card regenerated for win evaluation matches the one the player
// was shown at selection time.
func CardSeed(roomID string, cartelaNumber int) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(roomID))
	return int64(mix(h.Sum64() + uint64(cartelaNumber)*goldenRatio64))
}

// ShuffledBalls returns the numbers 1..n in a random order drawn from rng.
// The caller consumes the slice front to back as the draw sequence.
func ShuffledBalls(rng *rand.Rand, n int) []int {
	balls := make([]int, n)
	for i := range balls {
		balls[i] = i + 1
	}
	rng.Shuffle(len(balls), func(i, j int) {
		balls[i], balls[j] = balls[j], balls[i]
	})
	return balls
}

func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
