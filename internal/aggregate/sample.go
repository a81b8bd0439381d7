package aggregate

import (
	"math/rand/v2"
	"sort"

	"github.com/banshee-data/collision.report/internal/collision"
)

// Sample picks n records without replacement using a generator seeded with
// seed, so the same inputs always give the same rows. The chosen records
// keep their original relative order. When n <= 0 or n >= len(records)
// every record is returned.
func Sample(records []collision.Record, n int, seed uint64) []collision.Record {
	if n <= 0 || n >= len(records) {
		out := make([]collision.Record, len(records))
		copy(out, records)
		return out
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	idx := rng.Perm(len(records))[:n]
	sort.Ints(idx)

	out := make([]collision.Record, n)
	for i, j := range idx {
		out[i] = records[j]
	}
	return out
}
