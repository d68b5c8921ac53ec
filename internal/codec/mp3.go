package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"

	"github.com/audiobatch/audiobatch-go/internal/sample"
)

// go-mp3 always emits 16-bit little-endian stereo.
const (
	mp3Channels  = 2
	mp3ValueSize = 2
)

const mp3ChunkBytes = 8192

type mp3Decoder struct {
	dec *mp3.Decoder
	buf []byte
}

func openMP3(data []byte) (Decoder, Metadata, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("%w: %w", ErrInvalidData, err)
	}

	byteLen := dec.Length()
	if byteLen < 0 {
		return nil, Metadata{}, fmt.Errorf("%w: stream length unknown", ErrInvalidData)
	}

	meta := Metadata{
		Format:     FormatMP3,
		Length:     byteLen / (mp3Channels * mp3ValueSize),
		Channels:   mp3Channels,
		SampleRate: dec.SampleRate(),
	}
	return &mp3Decoder{dec: dec, buf: make([]byte, mp3ChunkBytes)}, meta, nil
}

func (d *mp3Decoder) DecodeInt16(dst []int16) (int, error)     { return decodeMP3(d, dst) }
func (d *mp3Decoder) DecodeInt32(dst []int32) (int, error)     { return decodeMP3(d, dst) }
func (d *mp3Decoder) DecodeFloat32(dst []float32) (int, error) { return decodeMP3(d, dst) }

func (d *mp3Decoder) Close() error {
	d.dec = nil
	return nil
}

func decodeMP3[T sample.Value](d *mp3Decoder, dst []T) (int, error) {
	pos := 0
	for pos < len(dst) {
		want := min((len(dst)-pos)*mp3ValueSize, len(d.buf))
		n, err := io.ReadFull(d.dec, d.buf[:want])
		n -= n % mp3ValueSize
		for i := 0; i < n; i += mp3ValueSize {
			dst[pos] = sample.Convert[T](int16(binary.LittleEndian.Uint16(d.buf[i:])))
			pos++
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return pos, fmt.Errorf("%w: %d of %d values", ErrShortRead, pos, len(dst))
			}
			return pos, fmt.Errorf("mp3: %w", err)
		}
	}
	return pos, nil
}
