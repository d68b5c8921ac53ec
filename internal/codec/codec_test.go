package codec

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildWAV assembles a minimal RIFF/WAVE byte stream around the given PCM
// payload.
func buildWAV(channels, rate, depth int, payload []byte) []byte {
	blockAlign := channels * depth / 8

	b := make([]byte, 0, 44+len(payload))
	b = append(b, "RIFF"...)
	b = binary.LittleEndian.AppendUint32(b, uint32(36+len(payload)))
	b = append(b, "WAVE"...)

	b = append(b, "fmt "...)
	b = binary.LittleEndian.AppendUint32(b, 16)
	b = binary.LittleEndian.AppendUint16(b, 1) // PCM
	b = binary.LittleEndian.AppendUint16(b, uint16(channels))
	b = binary.LittleEndian.AppendUint32(b, uint32(rate))
	b = binary.LittleEndian.AppendUint32(b, uint32(rate*blockAlign))
	b = binary.LittleEndian.AppendUint16(b, uint16(blockAlign))
	b = binary.LittleEndian.AppendUint16(b, uint16(depth))

	b = append(b, "data"...)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(payload)))
	b = append(b, payload...)
	return b
}

func pcm16(samples ...int16) []byte {
	b := make([]byte, 0, 2*len(samples))
	for _, s := range samples {
		b = binary.LittleEndian.AppendUint16(b, uint16(s))
	}
	return b
}

func pcm24(samples ...int32) []byte {
	b := make([]byte, 0, 3*len(samples))
	for _, s := range samples {
		b = append(b, byte(s), byte(s>>8), byte(s>>16))
	}
	return b
}

func pcm32(samples ...int32) []byte {
	b := make([]byte, 0, 4*len(samples))
	for _, s := range samples {
		b = binary.LittleEndian.AppendUint32(b, uint32(s))
	}
	return b
}

func TestSniff(t *testing.T) {
	oggPage := append([]byte("OggS"), make([]byte, 24)...)
	oggPage[26] = 1  // one segment
	oggPage[27] = 30 // lacing value
	oggPage = append(oggPage, "\x01vorbis"...)

	tests := []struct {
		name    string
		data    []byte
		want    Format
		wantErr bool
	}{
		{"wav", buildWAV(1, 16000, 16, pcm16(0, 1, 2)), FormatWAV, false},
		{"flac", append([]byte("fLaC\x00\x00\x00\x22"), make([]byte, 34)...), FormatFLAC, false},
		{"ogg vorbis", oggPage, FormatOGG, false},
		{"mp3 id3", append([]byte("ID3\x03\x00\x00\x00\x00\x00\x00"), make([]byte, 32)...), FormatMP3, false},
		{"junk", []byte("not audio at all, promise"), "", true},
		{"empty", nil, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sniff(tt.data)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnknownFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpenUnknownFormat(t *testing.T) {
	_, _, err := Open([]byte{0xde, 0xad, 0xbe, 0xef})
	require.ErrorIs(t, err, ErrUnknownFormat)
}

func TestOpenMangledWAV(t *testing.T) {
	// valid magic, nothing behind it
	_, _, err := Open([]byte("RIFF\x10\x00\x00\x00WAVEdata"))
	require.ErrorIs(t, err, ErrInvalidData)
}

func TestOpenWAVMetadata(t *testing.T) {
	data := buildWAV(2, 44100, 16, pcm16(1, 2, 3, 4, 5, 6, 7, 8))

	dec, meta, err := Open(data)
	require.NoError(t, err)
	defer dec.Close()

	assert.Equal(t, FormatWAV, meta.Format)
	assert.Equal(t, int64(4), meta.Length)
	assert.Equal(t, 2, meta.Channels)
	assert.Equal(t, 44100, meta.SampleRate)
}

func TestWAVDecodeInt16KeepsInterleave(t *testing.T) {
	src := []int16{0x1000, 0x0100, 0x2000, 0x0200, 0x3000, 0x0300}
	data := buildWAV(2, 44100, 16, pcm16(src...))

	dec, meta, err := Open(data)
	require.NoError(t, err)
	defer dec.Close()

	out := make([]int16, meta.Length*int64(meta.Channels))
	n, err := dec.DecodeInt16(out)
	require.NoError(t, err)
	assert.Equal(t, len(src), n)
	assert.Equal(t, src, out)
}

func TestWAVDecodeFloat32(t *testing.T) {
	src := []int16{32767, -32767, 0, 16384}
	data := buildWAV(1, 16000, 16, pcm16(src...))

	dec, meta, err := Open(data)
	require.NoError(t, err)
	defer dec.Close()

	out := make([]float32, meta.Length)
	_, err = dec.DecodeFloat32(out)
	require.NoError(t, err)

	for i, s := range src {
		assert.InDelta(t, float64(s)/32767, float64(out[i]), 1e-6, "sample %d", i)
	}
}

func TestWAVDecodeInt32FullScale(t *testing.T) {
	data := buildWAV(1, 16000, 16, pcm16(32767, -32767, 0))

	dec, meta, err := Open(data)
	require.NoError(t, err)
	defer dec.Close()

	out := make([]int32, meta.Length)
	_, err = dec.DecodeInt32(out)
	require.NoError(t, err)
	assert.Equal(t, []int32{2147483647, -2147483647, 0}, out)
}

func TestWAVDecode8BitUnsigned(t *testing.T) {
	data := buildWAV(1, 8000, 8, []byte{0x80, 0xff, 0x00, 0x80})

	dec, meta, err := Open(data)
	require.NoError(t, err)
	defer dec.Close()

	require.Equal(t, int64(4), meta.Length)
	out := make([]int16, meta.Length)
	_, err = dec.DecodeInt16(out)
	require.NoError(t, err)
	assert.Equal(t, []int16{0, 32512, -32768, 0}, out)
}

func TestWAVDecode24Bit(t *testing.T) {
	data := buildWAV(1, 48000, 24, pcm24(0x7fffff, -0x800000, 0))

	dec, meta, err := Open(data)
	require.NoError(t, err)
	defer dec.Close()

	out := make([]float32, meta.Length)
	_, err = dec.DecodeFloat32(out)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, float64(out[0]), 1e-6)
	assert.InDelta(t, -1.0, float64(out[1]), 1e-6)
	assert.Zero(t, out[2])
}

func TestWAVDecode32Bit(t *testing.T) {
	src := []int32{2147483647, -2147483648, 0, 12345678}
	data := buildWAV(1, 48000, 32, pcm32(src...))

	dec, meta, err := Open(data)
	require.NoError(t, err)
	defer dec.Close()

	out := make([]int32, meta.Length)
	_, err = dec.DecodeInt32(out)
	require.NoError(t, err)
	assert.Equal(t, src, out)
}

func TestWAVShortData(t *testing.T) {
	data := buildWAV(1, 16000, 16, pcm16(1, 2, 3, 4, 5, 6, 7, 8))
	truncated := data[:len(data)-8] // keep the declared size, drop 4 samples

	dec, meta, err := Open(truncated)
	require.NoError(t, err)
	defer dec.Close()

	require.Equal(t, int64(8), meta.Length)
	out := make([]int16, meta.Length)
	_, err = dec.DecodeInt16(out)
	require.ErrorIs(t, err, ErrShortRead)
}

func TestFromPCMBytes24SignExtension(t *testing.T) {
	dst := make([]float32, 2)
	n, err := fromPCMBytes(dst, []byte{0x00, 0x00, 0x80, 0xff, 0xff, 0x7f}, 24)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	assert.InDelta(t, -1.0, float64(dst[0]), 1e-6)
	assert.InDelta(t, 1.0, float64(dst[1]), 1e-6)
}

func TestFromPCMBytesOverflow(t *testing.T) {
	dst := make([]int16, 1)
	_, err := fromPCMBytes(dst, pcm16(1, 2, 3), 16)
	require.ErrorIs(t, err, ErrInvalidData)
}

func TestFormats(t *testing.T) {
	assert.Equal(t, []string{"wav", "flac", "ogg", "mp3"}, Formats())
}
