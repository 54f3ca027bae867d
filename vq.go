package ddsp

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kailuenliang/ddsp/internal/math32"
)

// ErrDepthNotDivisible is returned when the input vector width is not a
// multiple of the number of heads. It is detected once, when the quantizer
// first observes its input depth.
var ErrDepthNotDivisible = errors.New("input depth must be a multiple of the number of heads")

// ErrNotInitialized is returned by operations that need a bound codebook
// before the quantizer has observed its input depth.
var ErrNotInitialized = errors.New("codebook not initialized: quantizer has not observed input depth")

// Options holds vector quantizer configuration.
type Options struct {
	// Gamma is the EMA decay applied to codebook statistics, in [0, 1].
	Gamma float32

	// RestartThreshold controls dead-code detection: during training,
	// centroid i is restarted unless counts[i]*k > RestartThreshold*n,
	// where n is the number of flattened sub-vectors in the batch.
	RestartThreshold float32

	// NumHeads splits each input vector into independent sub-vectors that
	// are quantized against the same shared codebook.
	NumHeads int

	// CommitmentLossWeight scales the commitment loss.
	CommitmentLossWeight float32

	// Rand is the source of restart draws. If nil, a time-seeded source is
	// used. Inject a fixed-seed source for reproducible restarts.
	Rand *rand.Rand
}

// DefaultOptions are the default quantizer options.
var DefaultOptions = Options{
	Gamma:                0.99,
	RestartThreshold:     0.0,
	NumHeads:             1,
	CommitmentLossWeight: 0.2,
}

// VectorQuantizer assigns continuous vectors to their nearest centroid in a
// shared codebook, maintaining the codebook online with EMA statistics and a
// dead-code restart policy.
//
// The quantizer has no internal locking: a training call performs one logical
// read-modify-write of the codebook, and concurrent calls on the same
// instance must be serialized by the caller.
type VectorQuantizer struct {
	k                int
	gamma            float32
	restartThreshold float32
	numHeads         int
	commitmentWeight float32
	rng              *rand.Rand

	// Bound lazily on the first call, once the input depth is known.
	depth     int
	headDepth int
	cb        *Codebook
}

// New creates a vector quantizer with k codes.
func New(k int, optFns ...func(o *Options)) (*VectorQuantizer, error) {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if k <= 0 {
		return nil, errors.New("k must be positive")
	}
	if opts.Gamma < 0 || opts.Gamma > 1 {
		return nil, fmt.Errorf("gamma %v outside [0, 1]", opts.Gamma)
	}
	if opts.RestartThreshold < 0 {
		return nil, fmt.Errorf("restart threshold %v must be non-negative", opts.RestartThreshold)
	}
	if opts.NumHeads <= 0 {
		return nil, errors.New("numHeads must be positive")
	}
	if opts.CommitmentLossWeight < 0 {
		return nil, fmt.Errorf("commitment loss weight %v must be non-negative", opts.CommitmentLossWeight)
	}

	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &VectorQuantizer{
		k:                k,
		gamma:            opts.Gamma,
		restartThreshold: opts.RestartThreshold,
		numHeads:         opts.NumHeads,
		commitmentWeight: opts.CommitmentLossWeight,
		rng:              rng,
	}, nil
}

// K returns the codebook size.
func (q *VectorQuantizer) K() int {
	return q.k
}

// NumHeads returns the number of heads.
func (q *VectorQuantizer) NumHeads() int {
	return q.numHeads
}

// Depth returns the bound input width, or 0 before the first call.
func (q *VectorQuantizer) Depth() int {
	return q.depth
}

// Codebook returns the quantizer's codebook, or nil before the first call.
// Callers persist and restore it for checkpointing; see the snapshot package.
func (q *VectorQuantizer) Codebook() *Codebook {
	return q.cb
}

// Restore attaches a previously persisted codebook, binding the quantizer's
// depth to match. It replaces any existing state.
func (q *VectorQuantizer) Restore(cb *Codebook) error {
	if cb.K() != q.k {
		return fmt.Errorf("codebook has %d centroids, quantizer wants %d", cb.K(), q.k)
	}

	q.cb = cb
	q.headDepth = cb.HeadDepth()
	q.depth = cb.HeadDepth() * q.numHeads
	return nil
}

func (q *VectorQuantizer) bind(depth int) error {
	if q.cb != nil {
		if depth != q.depth {
			return fmt.Errorf("input depth %d, want %d", depth, q.depth)
		}
		return nil
	}

	if depth <= 0 {
		return errors.New("input depth must be positive")
	}
	if depth%q.numHeads != 0 {
		return fmt.Errorf("%w: depth %d, heads %d", ErrDepthNotDivisible, depth, q.numHeads)
	}

	cb, err := NewCodebook(q.k, depth/q.numHeads)
	if err != nil {
		return err
	}

	q.depth = depth
	q.headDepth = depth / q.numHeads
	q.cb = cb
	return nil
}

// Quantize maps each row of x to its nearest centroid, per head, and returns
// the quantized rows together with the assigned codes (one code per head).
//
// Each row is split into NumHeads sub-vectors, all of which share one
// nearest-neighbor search against the same codebook. The returned quantized
// value is the forward half of the straight-through estimator: callers that
// backpropagate treat the quantizer as the identity on x.
//
// With training set, dead centroids are restarted from shuffled batch rows
// (uniform random draws when the batch runs out) and the codebook statistics
// are EMA-updated in place. The state mutation happens once, after assignment
// completes; cancellation via ctx leaves the codebook untouched.
func (q *VectorQuantizer) Quantize(ctx context.Context, x [][]float32, training bool) ([][]float32, [][]uint32, error) {
	n := len(x)
	if n == 0 {
		return nil, nil, nil
	}

	if err := q.bind(len(x[0])); err != nil {
		return nil, nil, err
	}
	for i, row := range x {
		if len(row) != q.depth {
			return nil, nil, fmt.Errorf("row %d: vector width %d, want %d", i, len(row), q.depth)
		}
	}

	hd := q.headDepth
	nFlat := n * q.numHeads

	// Head-major flattening: sub-vectors of head h occupy rows [h*n, (h+1)*n).
	xFlat := make([]float32, nFlat*hd)
	for i, row := range x {
		for h := 0; h < q.numHeads; h++ {
			copy(xFlat[(h*n+i)*hd:(h*n+i+1)*hd], row[h*hd:(h+1)*hd])
		}
	}

	var e []float32
	if training {
		e = q.restartCentroids(xFlat, nFlat)
	} else {
		e = q.cb.Centroids()
	}

	normsSq := make([]float32, q.k)
	for i := range normsSq {
		normsSq[i] = math32.SquaredNorm(e[i*hd : (i+1)*hd])
	}

	codes := make([]uint32, nFlat)
	if err := q.assign(ctx, xFlat, e, normsSq, codes); err != nil {
		return nil, nil, err
	}

	z := make([][]float32, n)
	for i := range z {
		z[i] = make([]float32, q.depth)
		for h := 0; h < q.numHeads; h++ {
			c := int(codes[h*n+i])
			copy(z[i][h*hd:(h+1)*hd], e[c*hd:(c+1)*hd])
		}
	}

	if training {
		batchCounts := make([]float32, q.k)
		batchSums := make([]float32, q.k*hd)
		for r := 0; r < nFlat; r++ {
			c := int(codes[r])
			batchCounts[c]++
			math32.Axpy(batchSums[c*hd:(c+1)*hd], 1, xFlat[r*hd:(r+1)*hd])
		}
		if err := q.cb.Update(q.gamma, batchCounts, batchSums); err != nil {
			return nil, nil, err
		}
	}

	out := make([][]uint32, n)
	for i := range out {
		out[i] = make([]uint32, q.numHeads)
		for h := 0; h < q.numHeads; h++ {
			out[i][h] = codes[h*n+i]
		}
	}

	return z, out, nil
}

// restartCentroids resolves the effective centroids for a training step.
// Centroid i is kept while counts[i]*k > threshold*nFlat; dead centroids are
// replaced with distinct shuffled batch rows, falling back to uniform random
// draws once the batch is exhausted.
func (q *VectorQuantizer) restartCentroids(xFlat []float32, nFlat int) []float32 {
	hd := q.headDepth
	counts := q.cb.Counts()
	e := q.cb.Centroids()

	var dead []int
	for i := 0; i < q.k; i++ {
		if counts[i]*float32(q.k) > q.restartThreshold*float32(nFlat) {
			continue
		}
		dead = append(dead, i)
	}
	if len(dead) == 0 {
		return e
	}

	// Fallback draws first, so dead slots beyond the batch still move.
	for _, i := range dead {
		row := e[i*hd : (i+1)*hd]
		for j := range row {
			row[j] = q.rng.Float32()
		}
	}

	nReplace := len(dead)
	if nReplace > nFlat {
		nReplace = nFlat
	}
	perm := q.rng.Perm(nFlat)
	for j := 0; j < nReplace; j++ {
		i := dead[j]
		r := perm[j]
		copy(e[i*hd:(i+1)*hd], xFlat[r*hd:(r+1)*hd])
	}

	return e
}

// assign finds the nearest centroid for every flattened sub-vector. Rows are
// fanned out across chunks; assignment only reads shared state.
func (q *VectorQuantizer) assign(ctx context.Context, xFlat, e, normsSq []float32, codes []uint32) error {
	hd := q.headDepth
	nFlat := len(codes)

	workers := runtime.GOMAXPROCS(0)
	if workers > nFlat {
		workers = nFlat
	}
	chunk := (nFlat + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > nFlat {
			end = nFlat
		}
		if start >= end {
			continue
		}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for r := start; r < end; r++ {
				idx, _ := math32.NearestCentroid(xFlat[r*hd:(r+1)*hd], e, normsSq)
				codes[r] = uint32(idx)
			}
			return nil
		})
	}

	return g.Wait()
}

// Unquantize looks up codes in the current codebook and reassembles full
// vectors. It never mutates state and skips the restart branch entirely, so
// never-assigned codes map to zero vectors (0/0 := 0).
func (q *VectorQuantizer) Unquantize(codes [][]uint32) ([][]float32, error) {
	if q.cb == nil {
		return nil, ErrNotInitialized
	}

	hd := q.headDepth
	e := q.cb.Centroids()

	z := make([][]float32, len(codes))
	for i, row := range codes {
		if len(row) != q.numHeads {
			return nil, fmt.Errorf("row %d: %d codes, want %d heads", i, len(row), q.numHeads)
		}

		z[i] = make([]float32, q.depth)
		for h, c := range row {
			if int(c) >= q.k {
				return nil, fmt.Errorf("row %d: code %d out of range [0, %d)", i, c, q.k)
			}
			copy(z[i][h*hd:(h+1)*hd], e[int(c)*hd:(int(c)+1)*hd])
		}
	}

	return z, nil
}

// CommitmentLoss returns the weighted mean squared difference between encoder
// outputs z and their quantized values zq. zq is treated as detached: the
// loss pulls the encoder toward existing centroids and never moves centroids
// directly (centroids move only via the EMA update).
func (q *VectorQuantizer) CommitmentLoss(z, zq [][]float32) (float32, error) {
	if len(z) != len(zq) {
		return 0, fmt.Errorf("batch sizes differ: %d vs %d", len(z), len(zq))
	}

	var sum float64
	var count int
	for i := range z {
		if len(z[i]) != len(zq[i]) {
			return 0, fmt.Errorf("row %d: widths differ: %d vs %d", i, len(z[i]), len(zq[i]))
		}
		sum += float64(math32.SquaredL2(z[i], zq[i]))
		count += len(z[i])
	}
	if count == 0 {
		return 0, nil
	}

	return q.commitmentWeight * float32(sum/float64(count)), nil
}

// CommitmentGrad returns the gradient of CommitmentLoss with respect to z.
// The gradient into zq is identically zero by contract, and under the
// straight-through convention the returned values apply directly to the
// encoder output that produced z.
func (q *VectorQuantizer) CommitmentGrad(z, zq [][]float32) ([][]float32, error) {
	if len(z) != len(zq) {
		return nil, fmt.Errorf("batch sizes differ: %d vs %d", len(z), len(zq))
	}

	var count int
	for i := range z {
		if len(z[i]) != len(zq[i]) {
			return nil, fmt.Errorf("row %d: widths differ: %d vs %d", i, len(z[i]), len(zq[i]))
		}
		count += len(z[i])
	}

	grad := make([][]float32, len(z))
	if count == 0 {
		return grad, nil
	}

	scale := q.commitmentWeight * 2 / float32(count)
	for i := range z {
		grad[i] = make([]float32, len(z[i]))
		for j := range z[i] {
			grad[i][j] = scale * (z[i][j] - zq[i][j])
		}
	}

	return grad, nil
}
