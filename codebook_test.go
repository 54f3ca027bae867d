package ddsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCodebook_Validation(t *testing.T) {
	_, err := NewCodebook(0, 2)
	assert.Error(t, err)

	_, err = NewCodebook(2, 0)
	assert.Error(t, err)

	cb, err := NewCodebook(2, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, cb.K())
	assert.Equal(t, 3, cb.HeadDepth())
	assert.Len(t, cb.Counts(), 2)
	assert.Len(t, cb.Sums(), 6)
}

func TestCodebook_Centroids_SafeDivision(t *testing.T) {
	cb, err := NewCodebook(2, 2)
	require.NoError(t, err)
	require.NoError(t, cb.SetState([]float32{0, 4}, []float32{7, 7, 8, 12}))

	e := cb.Centroids()
	// Zero count divides to zero, not NaN.
	assert.Equal(t, []float32{0, 0, 2, 3}, e)
}

func TestCodebook_Update(t *testing.T) {
	cb, err := NewCodebook(2, 1)
	require.NoError(t, err)
	require.NoError(t, cb.SetState([]float32{10, 2}, []float32{100, 4}))

	require.NoError(t, cb.Update(0.9, []float32{0, 12}, []float32{0, 24}))

	assert.InDelta(t, 9.0, cb.Counts()[0], 1e-6)
	assert.InDelta(t, 3.0, cb.Counts()[1], 1e-6)
	assert.InDelta(t, 90.0, cb.Sums()[0], 1e-6)
	assert.InDelta(t, 6.0, cb.Sums()[1], 1e-6)

	// Length mismatches are rejected.
	assert.Error(t, cb.Update(0.9, []float32{1}, []float32{0, 0}))
	assert.Error(t, cb.Update(0.9, []float32{1, 2}, []float32{0}))
}

func TestCodebook_SetState_Validation(t *testing.T) {
	cb, err := NewCodebook(2, 2)
	require.NoError(t, err)

	assert.Error(t, cb.SetState([]float32{1}, make([]float32, 4)))
	assert.Error(t, cb.SetState([]float32{1, 2}, make([]float32, 3)))
}

func TestCodebook_Clone(t *testing.T) {
	cb, err := NewCodebook(2, 1)
	require.NoError(t, err)
	require.NoError(t, cb.SetState([]float32{1, 2}, []float32{3, 4}))

	c := cb.Clone()
	c.Counts()[0] = 99

	assert.Equal(t, float32(1), cb.Counts()[0])
	assert.Equal(t, float32(99), c.Counts()[0])
}

func TestCodebook_BinaryRoundTrip(t *testing.T) {
	cb, err := NewCodebook(3, 2)
	require.NoError(t, err)
	require.NoError(t, cb.SetState(
		[]float32{1.5, 0, 2.25},
		[]float32{1, 2, 3, 4, 5, 6},
	))

	data, err := cb.MarshalBinary()
	require.NoError(t, err)

	var back Codebook
	require.NoError(t, back.UnmarshalBinary(data))

	assert.Equal(t, cb.K(), back.K())
	assert.Equal(t, cb.HeadDepth(), back.HeadDepth())
	assert.Equal(t, cb.Counts(), back.Counts())
	assert.Equal(t, cb.Sums(), back.Sums())
}

func TestCodebook_UnmarshalBinary_Invalid(t *testing.T) {
	var cb Codebook
	assert.Error(t, cb.UnmarshalBinary(nil))
	assert.Error(t, cb.UnmarshalBinary([]byte{1, 2, 3}))

	// Valid header, truncated body.
	good, err := func() ([]byte, error) {
		c, err := NewCodebook(2, 2)
		if err != nil {
			return nil, err
		}
		return c.MarshalBinary()
	}()
	require.NoError(t, err)
	assert.Error(t, cb.UnmarshalBinary(good[:len(good)-1]))
}
