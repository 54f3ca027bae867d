// Package math32 provides float32 vector operations for codebook maintenance.
// This is an internal package - external users should go through the ddsp package.
package math32

// Dot calculates the dot product of two vectors.
func Dot(a, b []float32) float32 {
	var ret float32
	for i := range a {
		ret += a[i] * b[i]
	}

	return ret
}

// SquaredL2 calculates the squared L2 distance.
func SquaredL2(a, b []float32) float32 {
	var distance float32
	for i := range a {
		distance += (a[i] - b[i]) * (a[i] - b[i])
	}

	return distance
}

// SquaredNorm calculates the squared L2 norm of a vector.
func SquaredNorm(a []float32) float32 {
	var ret float32
	for _, v := range a {
		ret += v * v
	}

	return ret
}

// ScaleInPlace multiplies all elements of a by scalar.
func ScaleInPlace(a []float32, scalar float32) {
	for i := range a {
		a[i] *= scalar
	}
}

// Axpy computes a += alpha * x elementwise.
func Axpy(a []float32, alpha float32, x []float32) {
	for i := range a {
		a[i] += alpha * x[i]
	}
}

// NearestCentroid returns the index of the centroid closest to vec under
// squared L2 distance, together with that distance. centroids is a flattened
// k x dim matrix and normsSq holds the precomputed squared norm of each row.
//
// The distance is evaluated via the expansion ||x||^2 - 2*x.c + ||c||^2 so the
// inner loop reduces to a single dot product per centroid. Ties resolve to the
// lowest centroid index.
func NearestCentroid(vec []float32, centroids []float32, normsSq []float32) (int, float32) {
	dim := len(vec)
	xNorm := SquaredNorm(vec)

	best := 0
	bestDist := xNorm - 2*Dot(vec, centroids[:dim]) + normsSq[0]

	for i := 1; i < len(normsSq); i++ {
		d := xNorm - 2*Dot(vec, centroids[i*dim:(i+1)*dim]) + normsSq[i]
		if d < bestDist {
			bestDist = d
			best = i
		}
	}

	return best, bestDist
}
