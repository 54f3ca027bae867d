package snapshot

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailuenliang/ddsp"
	"github.com/kailuenliang/ddsp/testutil"
)

func testCodebook(t *testing.T, k, headDepth int) *ddsp.Codebook {
	t.Helper()

	cb, err := ddsp.NewCodebook(k, headDepth)
	require.NoError(t, err)

	rng := testutil.NewRNG(42)
	counts := make([]float32, k)
	sums := make([]float32, k*headDepth)
	rng.FillUniform(counts)
	rng.FillGaussian(sums)
	require.NoError(t, cb.SetState(counts, sums))

	return cb
}

func TestWriteRead_RoundTrip(t *testing.T) {
	codecs := map[string]Codec{
		"none": CodecNone,
		"lz4":  CodecLZ4,
		"zstd": CodecZstd,
	}

	for name, codec := range codecs {
		t.Run(name, func(t *testing.T) {
			cb := testCodebook(t, 16, 4)

			var buf bytes.Buffer
			require.NoError(t, Write(&buf, cb, func(o *Options) { o.Codec = codec }))

			back, err := Read(&buf)
			require.NoError(t, err)

			assert.Equal(t, cb.K(), back.K())
			assert.Equal(t, cb.HeadDepth(), back.HeadDepth())
			assert.Equal(t, cb.Counts(), back.Counts())
			assert.Equal(t, cb.Sums(), back.Sums())
		})
	}
}

func TestRead_BadMagic(t *testing.T) {
	_, err := Read(bytes.NewReader(make([]byte, 32)))
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestRead_ChecksumMismatch(t *testing.T) {
	cb := testCodebook(t, 4, 2)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, cb, func(o *Options) { o.Codec = CodecNone }))

	data := buf.Bytes()
	data[20] ^= 0xff // flip a payload bit

	_, err := Read(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrChecksum)
}

func TestRead_Truncated(t *testing.T) {
	cb := testCodebook(t, 4, 2)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, cb))

	data := buf.Bytes()
	_, err := Read(bytes.NewReader(data[:len(data)-5]))
	assert.Error(t, err)
}

func TestWrite_IncompressibleFallsBackToRaw(t *testing.T) {
	// Random float payloads barely compress; tiny codebooks end up raw.
	cb := testCodebook(t, 2, 1)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, cb, func(o *Options) { o.Codec = CodecLZ4 }))

	back, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, cb.Counts(), back.Counts())
}
