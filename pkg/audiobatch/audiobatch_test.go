package audiobatch

import (
	"encoding/binary"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiobatch/audiobatch-go/internal/codec"
	"github.com/audiobatch/audiobatch-go/internal/observability/metrics"
)

// wavBytes builds a complete in-memory 16-bit PCM WAV clip with the given
// interleaved values.
func wavBytes(channels, rate int, values []int16) []byte {
	payload := make([]byte, 0, len(values)*2)
	for _, v := range values {
		payload = binary.LittleEndian.AppendUint16(payload, uint16(v))
	}
	blockAlign := channels * 2

	var b []byte
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
	b = binary.LittleEndian.AppendUint16(b, 16)
	b = append(b, "data"...)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(payload)))
	return append(b, payload...)
}

// ramp produces a deterministic non-constant signal within a safe range.
func ramp(n int) []int16 {
	values := make([]int16, n)
	for i := range values {
		values[i] = int16((i*37)%8001 - 4000)
	}
	return values
}

func newDecoder(t *testing.T, cfg Config) *BatchDecoder {
	t.Helper()
	bd, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(bd.Close)
	return bd
}

func TestMonoPassthroughInt16(t *testing.T) {
	values := ramp(16000)
	bd := newDecoder(t, Config{Kind: Int16, Workers: 2})

	plan, err := bd.Setup([]Sample{{Data: wavBytes(1, 16000, values), Source: "tone.wav"}})
	require.NoError(t, err)
	require.Equal(t, 1, plan.Samples())
	assert.Equal(t, Int16, plan.Kind)
	assert.Equal(t, []int{16000, 1}, plan.Shapes[0])
	assert.Equal(t, float64(16000), plan.Rates[0])
	assert.Equal(t, int64(16000), plan.Elements)

	out := plan.NewOutput()
	require.Len(t, out.Int16, 16000)
	require.NoError(t, bd.Run(out))

	assert.Equal(t, float32(16000), out.Rates[0])
	assert.Equal(t, values, out.Int16)
}

func TestResampleToHalfRate(t *testing.T) {
	values := ramp(16000)
	bd := newDecoder(t, Config{Kind: Int16, TargetRate: 8000, Quality: 50, Workers: 2})

	plan, err := bd.Setup([]Sample{{Data: wavBytes(1, 16000, values), Source: "tone.wav"}})
	require.NoError(t, err)
	require.Equal(t, []int{8000, 1}, plan.Shapes[0])
	require.Equal(t, float64(8000), plan.Rates[0])

	out := plan.NewOutput()
	require.NoError(t, bd.Run(out))
	assert.Equal(t, float32(8000), out.Rates[0])

	// Integer-ratio decimation evaluates the window on exact frame
	// positions, so every output value equals a source value.
	for o := range 8000 {
		if out.Int16[o] != values[2*o] {
			t.Fatalf("frame %d: got %d, want %d", o, out.Int16[o], values[2*o])
		}
	}
}

func TestStereoDownmixAverages(t *testing.T) {
	// interleaved pairs with even sums so the averages are exact
	frames := []int16{100, 200, -300, -500, 0, 0, 4000, -2000, 31000, 2000}
	want := []int16{150, -400, 0, 1000, 16500}
	bd := newDecoder(t, Config{Kind: Int16, Downmix: true, Workers: 2})

	monoValues := ramp(500)
	plan, err := bd.Setup([]Sample{
		{Data: wavBytes(2, 8000, frames), Source: "stereo.wav"},
		{Data: wavBytes(1, 8000, monoValues), Source: "mono.wav"},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{5}, plan.Shapes[0], "downmixed outputs are rank 1")
	assert.Equal(t, []int{500}, plan.Shapes[1], "mono stays rank 1 under downmix")
	require.Equal(t, int64(505), plan.Elements)

	out := plan.NewOutput()
	require.NoError(t, bd.Run(out))

	start, end := out.Span(0)
	assert.Equal(t, want, out.Int16[start:end])
	start, end = out.Span(1)
	assert.Equal(t, monoValues, out.Int16[start:end], "single-channel downmix is the identity")
}

func TestDownmixedResampleKeepsConstant(t *testing.T) {
	// constant stereo signal: downmix and 2:1 decimation both preserve it
	frames := make([]int16, 2*1024)
	for i := range frames {
		frames[i] = 12000
	}
	bd := newDecoder(t, Config{Kind: Int16, Downmix: true, TargetRate: 8000, Quality: 50, Workers: 1})

	plan, err := bd.Setup([]Sample{{Data: wavBytes(2, 16000, frames), Source: "dc.wav"}})
	require.NoError(t, err)
	require.Equal(t, []int{512}, plan.Shapes[0])

	out := plan.NewOutput()
	require.NoError(t, bd.Run(out))
	for i, v := range out.Int16 {
		if v != 12000 {
			t.Fatalf("frame %d: got %d, want 12000", i, v)
		}
	}
}

func TestIdentityTargetRateSkipsKernel(t *testing.T) {
	// target equals native, so the clip converts through float without
	// interpolating and the round trip back to int16 is exact
	values := ramp(2048)
	bd := newDecoder(t, Config{Kind: Int16, TargetRate: 16000, Quality: 50, Workers: 2})

	plan, err := bd.Setup([]Sample{{Data: wavBytes(1, 16000, values), Source: "tone.wav"}})
	require.NoError(t, err)
	require.Equal(t, []int{2048, 1}, plan.Shapes[0])
	require.Equal(t, Float32, bd.decodeKind)

	out := plan.NewOutput()
	require.NoError(t, bd.Run(out))
	assert.Equal(t, float32(16000), out.Rates[0])
	assert.Equal(t, values, out.Int16)
}

func TestFloat32Output(t *testing.T) {
	values := []int16{32767, -32767, 0, 16384}
	bd := newDecoder(t, Config{Workers: 1})

	plan, err := bd.Setup([]Sample{{Data: wavBytes(1, 44100, values)}})
	require.NoError(t, err)
	require.Equal(t, Float32, plan.Kind, "zero config kind defaults to float32")

	out := plan.NewOutput()
	require.NoError(t, bd.Run(out))
	assert.Equal(t, float32(1), out.Float32[0])
	assert.Equal(t, float32(-1), out.Float32[1])
	assert.Equal(t, float32(0), out.Float32[2])
	assert.InDelta(t, 0.5, out.Float32[3], 1e-4)
}

func TestInt32OutputFullScale(t *testing.T) {
	values := []int16{32767, -32767, 0}
	bd := newDecoder(t, Config{Kind: Int32, Workers: 1})

	plan, err := bd.Setup([]Sample{{Data: wavBytes(1, 8000, values)}})
	require.NoError(t, err)

	out := plan.NewOutput()
	require.NoError(t, bd.Run(out))
	assert.Equal(t, []int32{2147483647, -2147483647, 0}, out.Int32)
}

func TestPerClipTargetRates(t *testing.T) {
	values := ramp(1600)
	data := wavBytes(1, 16000, values)
	bd := newDecoder(t, Config{Kind: Float32, TargetRates: []float64{8000, -1, 16000}, Quality: 50, Workers: 2})

	plan, err := bd.Setup([]Sample{
		{Data: data, Source: "a.wav"},
		{Data: data, Source: "b.wav"},
		{Data: data, Source: "c.wav"},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{800, 1}, plan.Shapes[0])
	assert.Equal(t, []int{1600, 1}, plan.Shapes[1], "non-positive entry keeps the native rate")
	assert.Equal(t, []int{1600, 1}, plan.Shapes[2], "matching target resolves to the native rate")
	assert.Equal(t, []float64{8000, 16000, 16000}, plan.Rates)

	out := plan.NewOutput()
	require.NoError(t, bd.Run(out))
	assert.Equal(t, []float32{8000, 16000, 16000}, out.Rates)
}

func TestTargetRateCountMustMatchBatch(t *testing.T) {
	bd := newDecoder(t, Config{Kind: Float32, TargetRates: []float64{8000, 8000}, Workers: 1})

	_, err := bd.Setup([]Sample{{Data: wavBytes(1, 16000, ramp(16))}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target rates")
}

func TestResampledLengthRoundsUp(t *testing.T) {
	values := ramp(1001)
	bd := newDecoder(t, Config{Kind: Float32, TargetRate: 48000, Quality: 25, Workers: 1})

	plan, err := bd.Setup([]Sample{{Data: wavBytes(1, 44100, values)}})
	require.NoError(t, err)
	// ceil(1001 * 48000 / 44100) = 1090
	assert.Equal(t, []int{1090, 1}, plan.Shapes[0])

	out := plan.NewOutput()
	require.NoError(t, bd.Run(out))
	assert.Equal(t, float32(48000), out.Rates[0])
}

func TestRejectsNonRankOneInput(t *testing.T) {
	data := wavBytes(1, 8000, ramp(64))
	bd := newDecoder(t, Config{Kind: Float32, Workers: 1})

	_, err := bd.Setup([]Sample{{Data: data, Shape: []int{2, len(data) / 2}, Source: "bad.wav"}})
	require.ErrorIs(t, err, ErrInputShape)
	assert.Contains(t, err.Error(), "bad.wav")

	_, err = bd.Setup([]Sample{{Data: data, Shape: []int{len(data) + 1}}})
	require.ErrorIs(t, err, ErrInputShape)

	_, err = bd.Setup([]Sample{{Data: data, Kind: Int16}})
	require.ErrorIs(t, err, ErrInputKind)

	// nothing was planned, so the decode pass refuses to start
	err = bd.Run(&Output{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Setup")
}

func TestUnknownFormatFailsSetup(t *testing.T) {
	bd := newDecoder(t, Config{Kind: Float32, Workers: 1})

	_, err := bd.Setup([]Sample{
		{Data: wavBytes(1, 8000, ramp(16)), Source: "ok.wav"},
		{Data: []byte("definitely not audio data"), Source: "junk.bin"},
	})
	require.ErrorIs(t, err, codec.ErrUnknownFormat)
	assert.Contains(t, err.Error(), "sample 1")
	assert.Contains(t, err.Error(), "junk.bin")
}

func TestCorruptClipFailsWholeBatch(t *testing.T) {
	good := wavBytes(1, 16000, ramp(4000))
	truncated := good[:len(good)-1000]
	bd := newDecoder(t, Config{Kind: Int16, Workers: 2})

	plan, err := bd.Setup([]Sample{
		{Data: good, Source: "clip-0.wav"},
		{Data: good, Source: "clip-1.wav"},
		{Data: truncated, Source: "clip-2.wav"},
		{Data: good, Source: "clip-3.wav"},
	})
	require.NoError(t, err, "truncation is only visible once audio is read")
	require.Equal(t, 4, plan.Samples())

	err = bd.Run(plan.NewOutput())
	require.ErrorIs(t, err, ErrDecode)
	require.ErrorIs(t, err, codec.ErrShortRead)
	assert.Contains(t, err.Error(), "sample 2")
	assert.Contains(t, err.Error(), "clip-2.wav")
}

func TestDecodeIsDeterministic(t *testing.T) {
	samples := []Sample{
		{Data: wavBytes(2, 44100, ramp(2000)), Source: "a.wav"},
		{Data: wavBytes(1, 22050, ramp(999)), Source: "b.wav"},
	}
	bd := newDecoder(t, Config{Kind: Int16, Downmix: true, TargetRate: 16000, Quality: 50, Workers: 4})

	decode := func() []int16 {
		plan, err := bd.Setup(samples)
		require.NoError(t, err)
		out := plan.NewOutput()
		require.NoError(t, bd.Run(out))
		return out.Int16
	}

	first := decode()
	second := decode()
	assert.Equal(t, first, second)
}

func TestOutputMustMatchCurrentPlan(t *testing.T) {
	data := wavBytes(1, 8000, ramp(64))
	bd := newDecoder(t, Config{Kind: Float32, Workers: 1})

	plan1, err := bd.Setup([]Sample{{Data: data}})
	require.NoError(t, err)
	stale := plan1.NewOutput()

	plan2, err := bd.Setup([]Sample{{Data: data}})
	require.NoError(t, err)

	err = bd.Run(stale)
	require.ErrorIs(t, err, ErrShapeMismatch)

	short := plan2.NewOutput()
	short.Float32 = short.Float32[:10]
	err = bd.Run(short)
	require.ErrorIs(t, err, ErrShapeMismatch)

	out := plan2.NewOutput()
	out.Rates = out.Rates[:0]
	err = bd.Run(out)
	require.ErrorIs(t, err, ErrShapeMismatch)

	out = plan2.NewOutput()
	require.NoError(t, bd.Run(out))
}

func TestBatchRunsOnce(t *testing.T) {
	bd := newDecoder(t, Config{Kind: Float32, Workers: 1})

	plan, err := bd.Setup([]Sample{{Data: wavBytes(1, 8000, ramp(64))}})
	require.NoError(t, err)
	out := plan.NewOutput()
	require.NoError(t, bd.Run(out))

	// decoders are released at the end of the run
	err = bd.Run(out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Setup")
}

func TestEmptyBatch(t *testing.T) {
	bd := newDecoder(t, Config{Kind: Int16, Workers: 1})

	plan, err := bd.Setup(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, plan.Samples())
	assert.Equal(t, int64(0), plan.Elements)

	require.NoError(t, bd.Run(plan.NewOutput()))
}

func TestScratchPersistsAcrossBatches(t *testing.T) {
	bd := newDecoder(t, Config{Kind: Int16, Downmix: true, TargetRate: 8000, Quality: 0, Workers: 1})

	decodeBytes, stageBytes := bd.scratch.bytes()
	require.Zero(t, decodeBytes)
	require.Zero(t, stageBytes)

	plan, err := bd.Setup([]Sample{{Data: wavBytes(2, 16000, ramp(8000))}})
	require.NoError(t, err)
	require.NoError(t, bd.Run(plan.NewOutput()))

	decodeBytes, stageBytes = bd.scratch.bytes()
	assert.Equal(t, int64(16000), decodeBytes, "4000 stereo frames of int16")
	assert.Equal(t, int64(16000), stageBytes, "4000 downmixed float frames")

	// a smaller batch reuses the grown buffers
	plan, err = bd.Setup([]Sample{{Data: wavBytes(1, 16000, ramp(100))}})
	require.NoError(t, err)
	require.NoError(t, bd.Run(plan.NewOutput()))

	decodeBytes, stageBytes = bd.scratch.bytes()
	assert.Equal(t, int64(16000), decodeBytes)
	assert.Equal(t, int64(16000), stageBytes)
}

func TestConfigValidation(t *testing.T) {
	_, err := New(Config{Quality: -1})
	require.Error(t, err)

	_, err = New(Config{Quality: 101})
	require.Error(t, err)

	_, err = New(Config{Kind: Kind(9)})
	require.ErrorIs(t, err, ErrUnsupportedKind)

	bd, err := New(Config{Workers: 1})
	require.NoError(t, err)
	defer bd.Close()
	assert.Equal(t, 1, bd.Workers())
	assert.Equal(t, Float32, bd.cfg.Kind)
}

func TestMetricsRecording(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := metrics.NewDecodeMetrics(registry)
	require.NoError(t, err)

	bd := newDecoder(t, Config{Kind: Int16, TargetRate: 8000, Quality: 0, Workers: 1})
	bd.SetMetrics(m)

	plan, err := bd.Setup([]Sample{{Data: wavBytes(1, 16000, ramp(1600)), Source: "tone.wav"}})
	require.NoError(t, err)
	require.NoError(t, bd.Run(plan.NewOutput()))

	families, err := registry.Gather()
	require.NoError(t, err)

	values := make(map[string]float64)
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				values[mf.GetName()] += c.GetValue()
			}
		}
	}
	assert.Equal(t, float64(1), values["audiobatch_batches_total"])
	assert.Equal(t, float64(1), values["audiobatch_samples_total"])
	assert.Equal(t, float64(1), values["audiobatch_resamples_total"])
	assert.Equal(t, float64(800), values["audiobatch_decoded_frames_total"])
}
