// Package ddsp provides vector quantization building blocks for audio
// synthesis training pipelines.
//
// The core type is VectorQuantizer: an online clustering component that
// assigns continuous vectors to their nearest centroid in a shared codebook,
// maintains the codebook with exponential-moving-average statistics, and
// restarts underused codes from the incoming batch to avoid codebook
// collapse.
//
// # Quantization
//
//	q, err := ddsp.New(512, func(o *ddsp.Options) {
//	    o.NumHeads = 4
//	    o.RestartThreshold = 0.1
//	})
//	...
//	z, codes, err := q.Quantize(ctx, batch, true) // training step
//	loss, err := q.CommitmentLoss(batch, z)
//
// Each input row of width depth is split into NumHeads sub-vectors of width
// depth/NumHeads, all quantized against the same k-centroid codebook: heads
// share centroid values but produce independent codes.
//
// # Straight-through estimator
//
// Quantize returns the forward value of the straight-through estimator.
// There is no autodiff engine in this stack, so the backward half is a
// calling convention: gradients with respect to the quantized output apply
// unchanged to the input, and CommitmentGrad supplies the explicit gradient
// of the commitment loss.
//
// # Checkpointing
//
// The codebook (counts and sums) is the only mutable state. The snapshot
// package persists it with optional compression to any blobstore.Store.
package ddsp
