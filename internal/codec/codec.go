// Package codec identifies and decodes the audio containers accepted by the
// batch decoder. Clips are complete in-memory byte buffers: Open sniffs the
// container from its magic bytes, parses the header without touching the
// audio payload, and returns a decoder bound to that clip together with its
// metadata. Decoders read their clip front to back exactly once.
package codec

import (
	"errors"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
)

// Format identifies a supported audio container.
type Format string

const (
	FormatWAV  Format = "wav"
	FormatFLAC Format = "flac"
	FormatOGG  Format = "ogg"
	FormatMP3  Format = "mp3"
)

var (
	// ErrUnknownFormat is returned when the magic bytes match none of the
	// supported containers.
	ErrUnknownFormat = errors.New("unrecognized audio format")
	// ErrInvalidData is returned when a container is recognized but its
	// header cannot be parsed or describes an unusable stream.
	ErrInvalidData = errors.New("invalid audio data")
	// ErrUnsupportedDepth is returned for PCM bit depths outside 8/16/24/32.
	ErrUnsupportedDepth = errors.New("unsupported bit depth")
	// ErrShortRead is returned when a clip yields fewer values than its
	// header declared.
	ErrShortRead = errors.New("audio stream shorter than header declared")
)

// Metadata describes one clip as reported by its container header.
type Metadata struct {
	Format     Format
	Length     int64 // frames per channel
	Channels   int
	SampleRate int
}

func (m Metadata) validate() error {
	if m.Channels < 1 {
		return fmt.Errorf("%w: channel count %d", ErrInvalidData, m.Channels)
	}
	if m.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrInvalidData, m.SampleRate)
	}
	if m.Length < 0 {
		return fmt.Errorf("%w: negative length %d", ErrInvalidData, m.Length)
	}
	return nil
}

// Decoder decodes one clip's PCM into a caller-provided interleaved buffer,
// converting to the buffer's representation. Each call continues from the
// stream position left by the previous one; decoding a clip twice requires
// reopening it. Decoders are not safe for concurrent use.
type Decoder interface {
	DecodeInt16(dst []int16) (int, error)
	DecodeInt32(dst []int32) (int, error)
	DecodeFloat32(dst []float32) (int, error)
	Close() error
}

// Sniff identifies the container format from the clip's leading bytes.
func Sniff(data []byte) (Format, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty input", ErrUnknownFormat)
	}
	mtype := mimetype.Detect(data)
	switch {
	case mtype.Is("audio/wav"):
		return FormatWAV, nil
	case mtype.Is("audio/flac"):
		return FormatFLAC, nil
	case mtype.Is("audio/ogg"), mtype.Is("application/ogg"):
		return FormatOGG, nil
	case mtype.Is("audio/mpeg"):
		return FormatMP3, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, mtype.String())
}

// Open sniffs the clip's container, parses its header and returns a decoder
// bound to the clip along with its metadata.
func Open(data []byte) (Decoder, Metadata, error) {
	format, err := Sniff(data)
	if err != nil {
		return nil, Metadata{}, err
	}

	var (
		dec  Decoder
		meta Metadata
	)
	switch format {
	case FormatWAV:
		dec, meta, err = openWAV(data)
	case FormatFLAC:
		dec, meta, err = openFLAC(data)
	case FormatOGG:
		dec, meta, err = openOgg(data)
	case FormatMP3:
		dec, meta, err = openMP3(data)
	}
	if err != nil {
		return nil, Metadata{}, err
	}

	if err := meta.validate(); err != nil {
		_ = dec.Close()
		return nil, Metadata{}, err
	}
	return dec, meta, nil
}

// Formats lists the supported container names in sniffing order.
func Formats() []string {
	return []string{string(FormatWAV), string(FormatFLAC), string(FormatOGG), string(FormatMP3)}
}
