package ddsp

import (
	"math"

	"github.com/RoaringBitmap/roaring/v2"
)

// Stats summarizes codebook health.
type Stats struct {
	// ActiveCodes holds the codes currently considered alive.
	ActiveCodes *roaring.Bitmap

	// Active and Dead partition the k codes.
	Active int
	Dead   int

	// Perplexity is exp(entropy) of the EMA count distribution: k when usage
	// is uniform, 1 when a single code absorbs everything, 0 for an empty
	// codebook.
	Perplexity float64
}

// Stats reports codebook usage. batchSize is the reference batch size the
// restart rule would be evaluated against (counts[i]*k > threshold*n with
// n = batchSize*NumHeads); pass 0 to count every code with nonzero mass as
// active.
func (q *VectorQuantizer) Stats(batchSize int) (Stats, error) {
	if q.cb == nil {
		return Stats{}, ErrNotInitialized
	}

	counts := q.cb.Counts()
	n := float32(batchSize * q.numHeads)

	active := roaring.New()
	for i, c := range counts {
		if batchSize <= 0 {
			if c > 0 {
				active.Add(uint32(i))
			}
			continue
		}
		if c*float32(q.k) > q.restartThreshold*n {
			active.Add(uint32(i))
		}
	}

	var total float64
	for _, c := range counts {
		total += float64(c)
	}

	var entropy float64
	if total > 0 {
		for _, c := range counts {
			if c <= 0 {
				continue
			}
			p := float64(c) / total
			entropy -= p * math.Log(p)
		}
	}

	s := Stats{
		ActiveCodes: active,
		Active:      int(active.GetCardinality()),
	}
	s.Dead = q.k - s.Active
	if total > 0 {
		s.Perplexity = math.Exp(entropy)
	}

	return s, nil
}
