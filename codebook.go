package ddsp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Codebook holds the sufficient statistics of an EMA-maintained codebook:
// per-centroid assignment counts and per-centroid vector sums. The effective
// centroid values are always derived as sums/counts, never stored directly.
//
// Counts and sums are mutated only by Update, exactly once per training step.
// Both are shared across quantizer heads: heads produce independent
// assignments against the same k centroids.
type Codebook struct {
	k         int
	headDepth int

	// counts[i] is the EMA-smoothed number of vectors assigned to centroid i.
	counts []float32

	// sums is a flattened k x headDepth matrix; row i is the EMA-smoothed sum
	// of vectors assigned to centroid i.
	sums []float32
}

// NewCodebook creates a zero-initialized codebook with k centroids of the
// given per-head width.
func NewCodebook(k, headDepth int) (*Codebook, error) {
	if k <= 0 {
		return nil, errors.New("k must be positive")
	}
	if headDepth <= 0 {
		return nil, errors.New("headDepth must be positive")
	}

	return &Codebook{
		k:         k,
		headDepth: headDepth,
		counts:    make([]float32, k),
		sums:      make([]float32, k*headDepth),
	}, nil
}

// K returns the number of centroids.
func (cb *Codebook) K() int {
	return cb.k
}

// HeadDepth returns the per-head centroid width.
func (cb *Codebook) HeadDepth() int {
	return cb.headDepth
}

// Counts returns the live counts slice. Callers must treat it as read-only.
func (cb *Codebook) Counts() []float32 {
	return cb.counts
}

// Sums returns the live flattened sums matrix. Callers must treat it as read-only.
func (cb *Codebook) Sums() []float32 {
	return cb.sums
}

// SetState overwrites counts and sums, e.g. when restoring a snapshot.
// The slices are copied.
func (cb *Codebook) SetState(counts, sums []float32) error {
	if len(counts) != cb.k {
		return fmt.Errorf("counts length %d, want %d", len(counts), cb.k)
	}
	if len(sums) != cb.k*cb.headDepth {
		return fmt.Errorf("sums length %d, want %d", len(sums), cb.k*cb.headDepth)
	}

	copy(cb.counts, counts)
	copy(cb.sums, sums)
	return nil
}

// Centroids returns a freshly allocated flattened k x headDepth matrix of
// effective centroid values sums[i]/counts[i]. A zero count yields a zero
// row (0/0 := 0), never NaN or Inf.
func (cb *Codebook) Centroids() []float32 {
	e := make([]float32, cb.k*cb.headDepth)

	for i := 0; i < cb.k; i++ {
		c := cb.counts[i]
		if c == 0 {
			continue
		}

		inv := 1.0 / c
		row := cb.sums[i*cb.headDepth : (i+1)*cb.headDepth]
		dst := e[i*cb.headDepth : (i+1)*cb.headDepth]
		for j, v := range row {
			dst[j] = v * inv
		}
	}

	return e
}

// Update blends one batch of statistics into the codebook in place:
//
//	s <- s - (1-gamma)*(s - batch)
//
// which is the standard EMA recurrence s <- gamma*s + (1-gamma)*batch.
func (cb *Codebook) Update(gamma float32, batchCounts, batchSums []float32) error {
	if len(batchCounts) != cb.k {
		return fmt.Errorf("batch counts length %d, want %d", len(batchCounts), cb.k)
	}
	if len(batchSums) != cb.k*cb.headDepth {
		return fmt.Errorf("batch sums length %d, want %d", len(batchSums), cb.k*cb.headDepth)
	}

	alpha := 1 - gamma
	for i, v := range batchCounts {
		cb.counts[i] -= alpha * (cb.counts[i] - v)
	}
	for i, v := range batchSums {
		cb.sums[i] -= alpha * (cb.sums[i] - v)
	}

	return nil
}

// Clone returns a deep copy of the codebook.
func (cb *Codebook) Clone() *Codebook {
	c := &Codebook{
		k:         cb.k,
		headDepth: cb.headDepth,
		counts:    make([]float32, len(cb.counts)),
		sums:      make([]float32, len(cb.sums)),
	}
	copy(c.counts, cb.counts)
	copy(c.sums, cb.sums)
	return c
}

// MarshalBinary implements encoding.BinaryMarshaler.
// Format (little-endian): [k:uint32][headDepth:uint32][counts:k*float32][sums:k*headDepth*float32]
func (cb *Codebook) MarshalBinary() ([]byte, error) {
	b := make([]byte, 8+4*len(cb.counts)+4*len(cb.sums))
	binary.LittleEndian.PutUint32(b[0:4], uint32(cb.k))
	binary.LittleEndian.PutUint32(b[4:8], uint32(cb.headDepth))

	off := 8
	for _, v := range cb.counts {
		binary.LittleEndian.PutUint32(b[off:], math.Float32bits(v))
		off += 4
	}
	for _, v := range cb.sums {
		binary.LittleEndian.PutUint32(b[off:], math.Float32bits(v))
		off += 4
	}

	return b, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (cb *Codebook) UnmarshalBinary(data []byte) error {
	if len(data) < 8 {
		return errors.New("invalid codebook binary length")
	}

	k := int(binary.LittleEndian.Uint32(data[0:4]))
	headDepth := int(binary.LittleEndian.Uint32(data[4:8]))
	if k <= 0 || headDepth <= 0 {
		return errors.New("invalid codebook header")
	}
	if len(data) != 8+4*k+4*k*headDepth {
		return errors.New("invalid codebook binary length")
	}

	counts := make([]float32, k)
	sums := make([]float32, k*headDepth)

	off := 8
	for i := range counts {
		counts[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
		off += 4
	}
	for i := range sums {
		sums[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
		off += 4
	}

	cb.k = k
	cb.headDepth = headDepth
	cb.counts = counts
	cb.sums = sums
	return nil
}
