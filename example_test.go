package ddsp_test

import (
	"context"
	"fmt"

	"github.com/kailuenliang/ddsp"
	"github.com/kailuenliang/ddsp/bundle"
)

// quantizerWithCentroids builds a quantizer whose codebook holds the given
// 2-dim centroids with unit counts.
func quantizerWithCentroids(centroids ...[]float32) *ddsp.VectorQuantizer {
	q, err := ddsp.New(len(centroids))
	if err != nil {
		panic(err)
	}

	cb, err := ddsp.NewCodebook(len(centroids), 2)
	if err != nil {
		panic(err)
	}

	counts := make([]float32, len(centroids))
	sums := make([]float32, len(centroids)*2)
	for i, c := range centroids {
		counts[i] = 1
		copy(sums[i*2:], c)
	}
	if err := cb.SetState(counts, sums); err != nil {
		panic(err)
	}
	if err := q.Restore(cb); err != nil {
		panic(err)
	}

	return q
}

func ExampleVectorQuantizer_Quantize() {
	q := quantizerWithCentroids([]float32{0, 0}, []float32{10, 10})

	z, codes, err := q.Quantize(context.Background(), [][]float32{{9, 11}, {1, -1}}, false)
	if err != nil {
		panic(err)
	}

	fmt.Println(z)
	fmt.Println(codes)
	// Output:
	// [[10 10] [0 0]]
	// [[1] [0]]
}

func Example_bundleAdapter() {
	q := quantizerWithCentroids([]float32{0, 0}, []float32{10, 10})

	fn := bundle.Func{
		Name:    "vq",
		Inputs:  []string{"z"},
		Outputs: []string{"z_q"},
		Apply: func(ctx context.Context, args ...[][]float32) ([][][]float32, error) {
			zq, _, err := q.Quantize(ctx, args[0], false)
			return [][][]float32{zq}, err
		},
	}

	a, err := bundle.NewAdapter(fn, map[string]string{"z": "encoder_out"})
	if err != nil {
		panic(err)
	}

	out, err := a.Call(context.Background(), bundle.Bundle{
		"encoder_out": {{9, 11}},
	})
	if err != nil {
		panic(err)
	}

	fmt.Println(out["z_q"])
	// Output:
	// [[10 10]]
}
