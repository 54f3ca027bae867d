// Package snapshot persists codebook state in a checksummed binary format.
//
// A snapshot holds the two arrays that define a codebook, counts[k] and
// sums[k*headDepth], restorable verbatim so training resumes with an
// unchanged codebook. The payload can be compressed with LZ4 (fast) or zstd
// (better ratio) and is protected by a CRC32 trailer against storage
// corruption.
//
// Format (little-endian):
//
//	[magic "VQSN":4][version:uint16][codec:uint8][reserved:uint8]
//	[uncompressedLen:uint32][payloadLen:uint32]
//	[payload:payloadLen][crc32(payload):uint32]
package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/kailuenliang/ddsp"
)

// Magic identifies a codebook snapshot stream.
const Magic = "VQSN"

// Version is the current snapshot format version.
const Version uint16 = 1

// Codec selects the payload compression algorithm.
type Codec uint8

const (
	// CodecNone stores the payload uncompressed.
	CodecNone Codec = 0
	// CodecLZ4 uses LZ4 block compression (fast).
	CodecLZ4 Codec = 1
	// CodecZstd uses zstd compression (better ratio).
	CodecZstd Codec = 2
)

var (
	// ErrBadMagic is returned when the stream does not start with Magic.
	ErrBadMagic = errors.New("snapshot: bad magic")
	// ErrChecksum is returned when the payload fails CRC verification.
	ErrChecksum = errors.New("snapshot: checksum mismatch")
)

// Options holds snapshot encoding options.
type Options struct {
	// Codec is the payload compression algorithm.
	Codec Codec
}

// DefaultOptions are the default snapshot options.
var DefaultOptions = Options{
	Codec: CodecZstd,
}

// Write encodes the codebook to w.
func Write(w io.Writer, cb *ddsp.Codebook, optFns ...func(o *Options)) error {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	data, err := cb.MarshalBinary()
	if err != nil {
		return err
	}

	codec := opts.Codec
	payload, err := compress(codec, data)
	if err != nil {
		return err
	}
	if payload == nil {
		// Incompressible; store raw.
		codec = CodecNone
		payload = data
	}

	header := make([]byte, 16)
	copy(header[0:4], Magic)
	binary.LittleEndian.PutUint16(header[4:6], Version)
	header[6] = byte(codec)
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(data)))
	binary.LittleEndian.PutUint32(header[12:16], uint32(len(payload)))

	if _, err := w.Write(header); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}

	var crc [4]byte
	binary.LittleEndian.PutUint32(crc[:], crc32.ChecksumIEEE(payload))
	_, err = w.Write(crc[:])
	return err
}

// Read decodes a codebook from r.
func Read(r io.Reader) (*ddsp.Codebook, error) {
	header := make([]byte, 16)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	if !bytes.Equal(header[0:4], []byte(Magic)) {
		return nil, ErrBadMagic
	}
	if v := binary.LittleEndian.Uint16(header[4:6]); v != Version {
		return nil, fmt.Errorf("snapshot: unsupported version %d", v)
	}

	codec := Codec(header[6])
	uncompressedLen := binary.LittleEndian.Uint32(header[8:12])
	payloadLen := binary.LittleEndian.Uint32(header[12:16])

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}

	var crc [4]byte
	if _, err := io.ReadFull(r, crc[:]); err != nil {
		return nil, err
	}
	if binary.LittleEndian.Uint32(crc[:]) != crc32.ChecksumIEEE(payload) {
		return nil, ErrChecksum
	}

	data, err := decompress(codec, payload, int(uncompressedLen))
	if err != nil {
		return nil, err
	}

	cb := &ddsp.Codebook{}
	if err := cb.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return cb, nil
}

// compress returns the encoded payload, or nil when the codec could not
// shrink the data and the caller should fall back to CodecNone.
func compress(codec Codec, data []byte) ([]byte, error) {
	switch codec {
	case CodecNone:
		return data, nil

	case CodecLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, dst, nil)
		if err != nil {
			return nil, err
		}
		if n == 0 || n >= len(data) {
			return nil, nil
		}
		return dst[:n], nil

	case CodecZstd:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, err
		}
		defer enc.Close()

		payload := enc.EncodeAll(data, nil)
		if len(payload) >= len(data) {
			return nil, nil
		}
		return payload, nil

	default:
		return nil, fmt.Errorf("snapshot: unknown codec %d", codec)
	}
}

func decompress(codec Codec, payload []byte, uncompressedLen int) ([]byte, error) {
	switch codec {
	case CodecNone:
		return payload, nil

	case CodecLZ4:
		data := make([]byte, uncompressedLen)
		n, err := lz4.UncompressBlock(payload, data)
		if err != nil {
			return nil, err
		}
		return data[:n], nil

	case CodecZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()

		return dec.DecodeAll(payload, make([]byte, 0, uncompressedLen))

	default:
		return nil, fmt.Errorf("snapshot: unknown codec %d", codec)
	}
}
