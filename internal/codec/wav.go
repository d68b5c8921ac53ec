package codec

import (
	"bytes"
	"fmt"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/audiobatch/audiobatch-go/internal/sample"
)

// RIFF fmt tag for uncompressed integer PCM, the only WAV flavor handled.
const wavFormatPCM = 1

// wavChunkFrames is the number of frames pulled per PCMBuffer call.
const wavChunkFrames = 2048

type wavDecoder struct {
	dec   *wav.Decoder
	buf   *audio.IntBuffer
	depth int
}

func openWAV(data []byte) (Decoder, Metadata, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return nil, Metadata{}, fmt.Errorf("%w: not a readable WAV file", ErrInvalidData)
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, Metadata{}, fmt.Errorf("%w: WAV format tag %d", ErrInvalidData, dec.WavAudioFormat)
	}

	depth := int(dec.BitDepth)
	switch depth {
	case 8, 16, 24, 32:
	default:
		return nil, Metadata{}, fmt.Errorf("%w: %d-bit WAV", ErrUnsupportedDepth, depth)
	}

	if err := dec.FwdToPCM(); err != nil {
		return nil, Metadata{}, fmt.Errorf("%w: %w", ErrInvalidData, err)
	}

	chans := int(dec.NumChans)
	frameBytes := int64(((depth-1)/8 + 1) * chans)
	meta := Metadata{
		Format:     FormatWAV,
		Length:     dec.PCMLen() / frameBytes,
		Channels:   chans,
		SampleRate: int(dec.SampleRate),
	}

	d := &wavDecoder{
		dec:   dec,
		depth: depth,
		buf: &audio.IntBuffer{
			Data:   make([]int, wavChunkFrames*chans),
			Format: &audio.Format{NumChannels: chans, SampleRate: int(dec.SampleRate)},
		},
	}
	return d, meta, nil
}

func (d *wavDecoder) DecodeInt16(dst []int16) (int, error)     { return decodeWAV(d, dst) }
func (d *wavDecoder) DecodeInt32(dst []int32) (int, error)     { return decodeWAV(d, dst) }
func (d *wavDecoder) DecodeFloat32(dst []float32) (int, error) { return decodeWAV(d, dst) }

func (d *wavDecoder) Close() error {
	d.dec = nil
	return nil
}

func decodeWAV[T sample.Value](d *wavDecoder, dst []T) (int, error) {
	full := d.buf.Data[:cap(d.buf.Data)]
	pos := 0
	for pos < len(dst) {
		d.buf.Data = full[:min(len(dst)-pos, len(full))]
		n, err := d.dec.PCMBuffer(d.buf)
		if err != nil {
			return pos, fmt.Errorf("wav: %w", err)
		}
		if n == 0 {
			return pos, fmt.Errorf("%w: %d of %d values", ErrShortRead, pos, len(dst))
		}
		for i, v := range d.buf.Data[:n] {
			dst[pos+i] = fromPCMInt[T](v, d.depth)
		}
		pos += n
	}
	return pos, nil
}
