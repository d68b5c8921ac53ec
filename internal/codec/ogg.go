package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"

	"github.com/audiobatch/audiobatch-go/internal/sample"
)

const oggChunkValues = 4096

type oggDecoder struct {
	dec *oggvorbis.Reader
	buf []float32
}

func openOgg(data []byte) (Decoder, Metadata, error) {
	dec, err := oggvorbis.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("%w: %w", ErrInvalidData, err)
	}

	meta := Metadata{
		Format:     FormatOGG,
		Length:     dec.Length(),
		Channels:   dec.Channels(),
		SampleRate: dec.SampleRate(),
	}
	return &oggDecoder{dec: dec}, meta, nil
}

func (d *oggDecoder) DecodeInt16(dst []int16) (int, error) { return decodeOgg(d, dst) }
func (d *oggDecoder) DecodeInt32(dst []int32) (int, error) { return decodeOgg(d, dst) }

// DecodeFloat32 reads the decoder's native representation straight into dst.
func (d *oggDecoder) DecodeFloat32(dst []float32) (int, error) {
	pos := 0
	for pos < len(dst) {
		n, err := d.dec.Read(dst[pos:])
		pos += n
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return pos, fmt.Errorf("ogg: %w", err)
		}
		if n == 0 {
			break
		}
	}
	if pos < len(dst) {
		return pos, fmt.Errorf("%w: %d of %d values", ErrShortRead, pos, len(dst))
	}
	return pos, nil
}

func (d *oggDecoder) Close() error {
	d.dec = nil
	return nil
}

func decodeOgg[T sample.Value](d *oggDecoder, dst []T) (int, error) {
	if d.buf == nil {
		d.buf = make([]float32, oggChunkValues)
	}
	pos := 0
	for pos < len(dst) {
		n, err := d.dec.Read(d.buf[:min(len(dst)-pos, len(d.buf))])
		for _, f := range d.buf[:n] {
			dst[pos] = sample.Saturate[T](f)
			pos++
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return pos, fmt.Errorf("ogg: %w", err)
		}
		if n == 0 {
			break
		}
	}
	if pos < len(dst) {
		return pos, fmt.Errorf("%w: %d of %d values", ErrShortRead, pos, len(dst))
	}
	return pos, nil
}
