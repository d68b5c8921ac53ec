package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/tphakala/flac"

	"github.com/audiobatch/audiobatch-go/internal/sample"
)

type flacDecoder struct {
	dec   *flac.Decoder
	depth int
}

func openFLAC(data []byte) (Decoder, Metadata, error) {
	dec, err := flac.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("%w: %w", ErrInvalidData, err)
	}

	switch dec.BitsPerSample {
	case 8, 16, 24, 32:
	default:
		return nil, Metadata{}, fmt.Errorf("%w: %d-bit FLAC", ErrUnsupportedDepth, dec.BitsPerSample)
	}

	meta := Metadata{
		Format:     FormatFLAC,
		Length:     int64(dec.TotalSamples),
		Channels:   dec.NChannels,
		SampleRate: dec.SampleRate,
	}
	return &flacDecoder{dec: dec, depth: dec.BitsPerSample}, meta, nil
}

func (d *flacDecoder) DecodeInt16(dst []int16) (int, error)     { return decodeFLAC(d, dst) }
func (d *flacDecoder) DecodeInt32(dst []int32) (int, error)     { return decodeFLAC(d, dst) }
func (d *flacDecoder) DecodeFloat32(dst []float32) (int, error) { return decodeFLAC(d, dst) }

func (d *flacDecoder) Close() error {
	d.dec = nil
	return nil
}

func decodeFLAC[T sample.Value](d *flacDecoder, dst []T) (int, error) {
	pos := 0
	for pos < len(dst) {
		frame, err := d.dec.Next()
		if errors.Is(err, io.EOF) {
			return pos, fmt.Errorf("%w: %d of %d values", ErrShortRead, pos, len(dst))
		}
		if err != nil {
			return pos, fmt.Errorf("flac: %w", err)
		}
		n, err := fromPCMBytes(dst[pos:], frame, d.depth)
		if err != nil {
			return pos, err
		}
		pos += n
	}
	return pos, nil
}
